// Package storage uploads media blobs and returns stable retrieval URLs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrEmptyObject     = errors.New("empty upload")
	ErrTooLarge        = errors.New("upload too large")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

// Object is a blob ready for upload. Prefix groups objects by use, e.g.
// "images" for posts or "profile" for profile pictures.
type Object struct {
	Prefix      string
	Owner       string
	FileName    string
	ContentType string
	Extension   string
	Size        int64
	Body        io.Reader
}

type StoredObject struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type MediaStore interface {
	Upload(ctx context.Context, obj Object) (StoredObject, error)
	Delete(ctx context.Context, name string) error
}

// PrepareImage checks size and sniffs the content type of an uploaded image.
// The returned Object still reads the full body, sniffed bytes included.
func PrepareImage(body io.Reader, fileName string, size, maxSize int64) (Object, error) {
	if body == nil || size == 0 {
		return Object{}, ErrEmptyObject
	}
	if maxSize > 0 && size > maxSize {
		return Object{}, fmt.Errorf("%w: %s exceeds the %s limit",
			ErrTooLarge, humanize.Bytes(uint64(size)), humanize.Bytes(uint64(maxSize)))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Object{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return Object{}, ErrEmptyObject
	}

	mtype := mimetype.Detect(head)
	if !isImage(mtype) {
		return Object{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	return Object{
		FileName:    fileName,
		ContentType: mtype.String(),
		Extension:   mtype.Extension(),
		Size:        size,
		Body:        io.MultiReader(bytes.NewReader(head), body),
	}, nil
}

func isImage(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

// objectName lays objects out as prefix/yyyy/mm/uuid.ext.
func objectName(obj Object, now time.Time) string {
	prefix := obj.Prefix
	if prefix == "" {
		prefix = "images"
	}
	ext := obj.Extension
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/%d/%02d/%s%s", prefix, now.Year(), now.Month(), uuid.New().String(), ext)
}

func metadata(obj Object, now time.Time) map[string]string {
	return map[string]string{
		"original-filename": obj.FileName,
		"owner":             obj.Owner,
		"uploaded-at":       now.Format(time.RFC3339),
	}
}
