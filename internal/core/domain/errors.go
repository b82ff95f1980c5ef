package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDuplicateID        = errors.New("duplicate document id")
	ErrInvalidSpan        = errors.New("invalid risk span")
	ErrMalformedAnalysis  = errors.New("malformed analysis")
	ErrInvalidTransition  = errors.New("invalid document transition")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")
	ErrAnalysisCancelled  = errors.New("analysis cancelled")
	ErrUnsupportedContent = errors.New("unsupported content")
	ErrInvalidEncoding    = errors.New("content is not valid utf-8")
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
