package score

import "fmt"

// EpochNotFoundError reports a stage lookup or mutation for an id no
// epoch in the document carries. The document, in memory and on disk, is
// unchanged when this is returned.
type EpochNotFoundError struct {
	ID string
}

func (e *EpochNotFoundError) Error() string {
	return fmt.Sprintf("epoch not found: %s", e.ID)
}

// ReadError reports an annotation document that could not be read or
// parsed. A store that failed to open is not usable.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read annotation document %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failed persist. The in-memory document is still
// valid, including any mutation that triggered the save; only the on-disk
// copy is stale, so callers may retry the save.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write annotation document %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
