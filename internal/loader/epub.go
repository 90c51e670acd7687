package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cuongbtq/book-ingest/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const epubContainer = "META-INF/container.xml"

type epubContainerDoc struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// LoadEPUB extracts the text of every spine document in reading order,
// one page per section.
func LoadEPUB(data []byte) ([]domain.Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}

	raw, err := readZipFile(zr, epubContainer)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	var container epubContainerDoc
	if err := xml.Unmarshal(raw, &container); err != nil {
		return nil, fmt.Errorf("parse epub container: %w", err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, errors.New("parse epub container: no rootfile")
	}

	opfPath := container.Rootfiles[0].FullPath
	raw, err = readZipFile(zr, opfPath)
	if err != nil {
		return nil, fmt.Errorf("open epub package: %w", err)
	}
	var pkg epubPackage
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("parse epub package: %w", err)
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}

	base := path.Dir(opfPath)
	var pages []domain.Page
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		name := path.Clean(path.Join(base, href))
		doc, err := readZipFile(zr, name)
		if err != nil {
			return nil, fmt.Errorf("open epub section: %w", err)
		}
		text, err := htmlText(doc)
		if err != nil {
			return nil, fmt.Errorf("parse epub section %s: %w", name, err)
		}
		pages = append(pages, domain.Page{Number: len(pages) + 1, Text: Normalize(text)})
	}

	if len(pages) == 0 {
		return nil, errors.New("epub has no readable sections")
	}
	return pages, nil
}

// htmlText returns the visible text of an (X)HTML document, with block
// elements on their own lines.
func htmlText(doc []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			b.WriteByte('\n')
		}
	}
	walk(root)

	return strings.TrimSpace(b.String()), nil
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.Blockquote, atom.Section,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
