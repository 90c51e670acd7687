package pipeline

import "errors"

var (
	ErrJobStoreRequired      = errors.New("job store is required")
	ErrDocumentStoreRequired = errors.New("document store is required")
	ErrGateRequired          = errors.New("quality gate is required")
	ErrEmbedderRequired      = errors.New("embedder is required")
	ErrIndexRequired         = errors.New("index is required")

	// errNoChunks is returned when an accepted document yields no text.
	errNoChunks = errors.New("no text chunks extracted")
	// errStopped marks a run cut short because the job became terminal.
	errStopped = errors.New("job stopped")
)
