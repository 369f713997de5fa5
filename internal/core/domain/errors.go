package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrChunking            = errors.New("chunking failed")
	ErrIndexUnavailable    = errors.New("index unavailable")
	ErrUngroundedCitation  = errors.New("ungrounded citation")
	ErrIncompatibleVersion = errors.New("incompatible index format version")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
