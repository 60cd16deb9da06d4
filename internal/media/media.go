// Package media stores post attachments in a chunked blob store and
// classifies them by media kind.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

var (
	// ErrNotFound is returned when no object exists under the requested name.
	ErrNotFound = errors.New("file not found")
	// ErrUnsupportedKind is returned for attachments that are neither image nor video.
	ErrUnsupportedKind = errors.New("unsupported media kind")
)

// Kind is the coarse media class of an attachment.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Classify maps a declared content type to its Kind.
func Classify(contentType string) (Kind, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, contentType)
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage, nil
	case strings.HasPrefix(mediaType, "video/"):
		return KindVideo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, mediaType)
}

// Object is a stored blob opened for reading. Callers must close Body.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Store is a name-addressed blob store.
type Store interface {
	// Put streams r into the store under name. size is the number of bytes
	// r will yield, or -1 when unknown.
	Put(ctx context.Context, name, contentType string, r io.Reader, size int64) error
	// Get opens the latest object stored under name.
	Get(ctx context.Context, name string) (*Object, error)
}
