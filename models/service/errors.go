package service

import (
	"fmt"
	"runtime"
)

type ProcessingError struct {
	BookKey    string
	Identifier string
	IsFatal    bool
	Message    string
	Source     string
}

// NewProcessingError returns a new ProcessingError. Param bookKey is
// the canonical cache key of the book being processed when the error
// occurred (empty when there is none). Param identifier names the
// resource the error pertains to: a provider source tag, a storage
// key, or a URL. Param isFatal describes whether the error is fatal.
// Fatal errors are those which will keep failing on retry, like a
// book with no usable identifier. Transient errors, like a provider
// timeout, are non-fatal and worth retrying; workers may flag them
// fatal after too many attempts so an admin can look into the issue.
func NewProcessingError(bookKey, identifier, message string, isFatal bool) *ProcessingError {
	_, filename, line, ok := runtime.Caller(1)
	source := "unknown:0"
	if ok {
		source = fmt.Sprintf("%s:%d", filename, line)
	}
	return &ProcessingError{
		BookKey:    bookKey,
		Identifier: identifier,
		IsFatal:    isFatal,
		Message:    message,
		Source:     source,
	}
}

func (e *ProcessingError) Error() string {
	severity := "non-fatal"
	if e.IsFatal {
		severity = "fatal"
	}
	source := "unknown:0"
	if e.Source != "" {
		source = e.Source
	}
	return fmt.Sprintf("(book %s) (message: %s) (severity: %s) "+
		"(identifier: %s) (source: %s)", e.BookKey, e.Message,
		severity, e.Identifier, source)
}
