// Package index stores embedded chunks in Badger, one namespace per kind of
// content.
package index

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/go-crypt/x/blake2b"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

const (
	chunkPrefix      = "chunk"
	generationPrefix = "docgen"
	generationSeq    = "docgenseq"

	sequenceBandwidth = 100
	maxSwitchAttempts = 5
)

// Index is a chunk store keyed by namespace and document. Each Upsert writes
// a fresh generation of chunks and then switches the document over to it, so
// readers see either the old chunks or the new ones, never a mix.
type Index struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the index at path, creating the directory if needed. With
// inMemory set the path is ignored and nothing touches disk.
func Open(path string, inMemory bool, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	seq, err := db.GetSequence([]byte(generationSeq), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open generation sequence: %w", err)
	}

	return &Index{
		db:     db,
		seq:    seq,
		logger: logger,
	}, nil
}

// Close releases the sequence and closes the database.
func (x *Index) Close() error {
	if err := x.seq.Release(); err != nil {
		x.logger.Warn("Failed to release generation sequence", slog.Any("error", err))
	}
	return x.db.Close()
}

// ChunkID derives a stable identifier from a chunk's position and text.
func ChunkID(ns domain.Namespace, documentID string, index int, text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(ns))
	h.Write([]byte{0})
	h.Write([]byte(documentID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Upsert replaces every chunk the document has in the namespace. vectors
// pairs with chunks by position.
func (x *Index) Upsert(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32, ns domain.Namespace) error {
	if documentID == "" {
		return errors.New("index upsert: empty document id")
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("index upsert: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	gen, err := x.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate generation: %w", err)
	}

	wb := x.db.NewWriteBatch()
	defer wb.Cancel()

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Index = i
		c.DocumentID = documentID
		c.Namespace = ns
		c.Vector = vectors[i]
		c.ID = ChunkID(ns, documentID, i, c.Text)

		val, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode chunk %d: %w", i, err)
		}
		if err := wb.Set(chunkKey(ns, documentID, gen, i), val); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", i, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush chunks: %w", err)
	}

	var previous uint64
	var hadPrevious bool
	for attempt := 0; attempt < maxSwitchAttempts; attempt++ {
		err = x.db.Update(func(txn *badger.Txn) error {
			var readErr error
			previous, hadPrevious, readErr = readGeneration(txn, ns, documentID)
			if readErr != nil {
				return readErr
			}
			return txn.Set(generationKey(ns, documentID), encodeGeneration(gen))
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		x.dropGeneration(ns, documentID, gen)
		return fmt.Errorf("failed to switch document generation: %w", err)
	}

	if hadPrevious {
		x.dropGeneration(ns, documentID, previous)
	}

	x.logger.Debug("Chunks upserted",
		slog.String("document_id", documentID),
		slog.String("namespace", string(ns)),
		slog.Int("chunks", len(chunks)),
		slog.Uint64("generation", gen),
	)

	return nil
}

// Chunks returns the document's current chunks in order.
func (x *Index) Chunks(ctx context.Context, ns domain.Namespace, documentID string) ([]domain.Chunk, error) {
	var out []domain.Chunk

	err := x.db.View(func(txn *badger.Txn) error {
		gen, ok, err := readGeneration(txn, ns, documentID)
		if err != nil || !ok {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = generationChunkPrefix(ns, documentID, gen)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var c domain.Chunk
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			})
			if err != nil {
				return fmt.Errorf("failed to decode chunk: %w", err)
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Delete removes the document from the namespace. It reports whether the
// document was present.
func (x *Index) Delete(ctx context.Context, ns domain.Namespace, documentID string) (bool, error) {
	var gen uint64
	var ok bool
	err := x.db.Update(func(txn *badger.Txn) error {
		var err error
		gen, ok, err = readGeneration(txn, ns, documentID)
		if err != nil || !ok {
			return err
		}
		return txn.Delete(generationKey(ns, documentID))
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	if ok {
		x.dropGeneration(ns, documentID, gen)
	}
	return ok, nil
}

// Documents counts the documents present in the namespace.
func (x *Index) Documents(ctx context.Context, ns domain.Namespace) (int, error) {
	n := 0
	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(generationPrefix + ":" + string(ns) + ":")
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// dropGeneration deletes one generation's chunks. Failures leave orphaned
// keys that no reader can reach, so they are logged rather than returned.
func (x *Index) dropGeneration(ns domain.Namespace, documentID string, gen uint64) {
	var keys [][]byte
	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = generationChunkPrefix(ns, documentID, gen)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	})
	if err == nil {
		wb := x.db.NewWriteBatch()
		defer wb.Cancel()
		for _, k := range keys {
			if err = wb.Delete(k); err != nil {
				break
			}
		}
		if err == nil {
			err = wb.Flush()
		}
	}
	if err != nil {
		x.logger.Warn("Failed to drop chunk generation",
			slog.String("document_id", documentID),
			slog.String("namespace", string(ns)),
			slog.Uint64("generation", gen),
			slog.Any("error", err),
		)
	}
}

func readGeneration(txn *badger.Txn, ns domain.Namespace, documentID string) (uint64, bool, error) {
	item, err := txn.Get(generationKey(ns, documentID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var gen uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt generation value of %d bytes", len(val))
		}
		gen = binary.BigEndian.Uint64(val)
		return nil
	})
	return gen, err == nil, err
}

func encodeGeneration(gen uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, gen)
	return buf
}

// generationKey: docgen:<ns>:<escaped doc id>
func generationKey(ns domain.Namespace, documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", generationPrefix, ns, url.PathEscape(documentID)))
}

// generationChunkPrefix: chunk:<ns>:<escaped doc id>:<generation>:
func generationChunkPrefix(ns domain.Namespace, documentID string, gen uint64) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%016x:", chunkPrefix, ns, url.PathEscape(documentID), gen))
}

// chunkKey zero-pads the index so keys sort in chunk order.
func chunkKey(ns domain.Namespace, documentID string, gen uint64, index int) []byte {
	return append(generationChunkPrefix(ns, documentID, gen), []byte(fmt.Sprintf("%08d", index))...)
}
