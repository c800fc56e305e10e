package portable

import "fmt"

// MalformedDocumentError reports a portable document that cannot be
// decoded into a graph. Reason is a short human-readable diagnosis; Err,
// when set, is the underlying decode failure.
type MalformedDocumentError struct {
	Reason string
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed document: %s", e.Reason)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

func malformed(err error, format string, args ...any) *MalformedDocumentError {
	return &MalformedDocumentError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// StorageError reports a failed read or write of a portable document
// file. Op is "read" or "write".
type StorageError struct {
	Path string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
