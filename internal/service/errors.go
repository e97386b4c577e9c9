package service

import (
	"errors"
	"fmt"

	"snapjournal/internal/storage"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSelfFollow      = errors.New("cannot follow yourself")
	ErrUploadFailed    = errors.New("upload failed")
)

// invalidUpload maps rejected uploads to ErrInvalidInput and passes other
// errors through.
func invalidUpload(err error) error {
	switch {
	case errors.Is(err, storage.ErrEmptyObject),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrUnsupportedType):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
