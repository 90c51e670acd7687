// Package loadertest builds small in-memory documents for tests.
package loadertest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
)

// PDFPage describes one generated page. Lines are drawn one per text line;
// Image adds a 1x1 image XObject to the page resources.
type PDFPage struct {
	Lines []string
	Image bool
}

// BuildPDF writes a minimal, uncompressed PDF with a classic xref table.
func BuildPDF(pages []PDFPage) []byte {
	var objects []string

	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("") // patched below
	pagesObj := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	image := add(streamObject("/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8", "\x00"))

	kids := make([]string, 0, len(pages))
	for _, p := range pages {
		var content strings.Builder
		content.WriteString("BT\n/F1 12 Tf\n72 720 Td\n14 TL\n")
		for _, line := range p.Lines {
			content.WriteString("(" + escapePDF(line) + ") Tj\nT*\n")
		}
		content.WriteString("ET\n")
		if p.Image {
			content.WriteString("q 100 0 0 100 0 0 cm /Im1 Do Q\n")
		}
		contents := add(streamObject("", content.String()))

		resources := fmt.Sprintf("/Font << /F1 %d 0 R >>", font)
		if p.Image {
			resources += fmt.Sprintf(" /XObject << /Im1 %d 0 R >>", image)
		}
		page := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << %s >> /Contents %d 0 R >>",
			pagesObj, resources, contents))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}

	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objects[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)

	return buf.Bytes()
}

func streamObject(dict, data string) string {
	if dict != "" {
		dict += " "
	}
	return fmt.Sprintf("<< %s/Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

func escapePDF(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// BuildDOCX writes a Word document whose pages are separated by page breaks.
// Each string in a page becomes one paragraph.
func BuildDOCX(pages [][]string) []byte {
	var body strings.Builder
	for i, paragraphs := range pages {
		if i > 0 {
			body.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
		for _, p := range paragraphs {
			body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + html.EscapeString(p) + `</w:t></w:r></w:p>`)
		}
	}

	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	return buildZip(map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml":   doc,
	})
}

// BuildEPUB writes an EPUB with one XHTML section per entry, in spine order.
func BuildEPUB(sections [][]string) []byte {
	files := map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?>` +
			`<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">` +
			`<rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`,
	}

	var manifest, spine strings.Builder
	for i, paragraphs := range sections {
		id := fmt.Sprintf("s%d", i+1)
		href := fmt.Sprintf("text/%s.xhtml", id)
		fmt.Fprintf(&manifest, `<item id="%s" href="%s" media-type="application/xhtml+xml"/>`, id, href)
		fmt.Fprintf(&spine, `<itemref idref="%s"/>`, id)

		var body strings.Builder
		for _, p := range paragraphs {
			body.WriteString("<p>" + html.EscapeString(p) + "</p>")
		}
		files["OEBPS/"+href] = `<?xml version="1.0" encoding="utf-8"?><html xmlns="http://www.w3.org/1999/xhtml">` +
			`<head><title>Section</title><style>p{margin:0}</style></head><body>` + body.String() + `</body></html>`
	}

	files["OEBPS/content.opf"] = `<?xml version="1.0" encoding="utf-8"?>` +
		`<package xmlns="http://www.idpf.org/2007/opf" version="3.0"><metadata/>` +
		`<manifest>` + manifest.String() + `</manifest><spine>` + spine.String() + `</spine></package>`

	files["mimetype"] = "application/epub+zip"
	return buildZip(files)
}

func buildZip(files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, _ := zw.Create(name)
		_, _ = w.Write([]byte(files[name]))
	}

	_ = zw.Close()
	return buf.Bytes()
}
