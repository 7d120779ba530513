package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrCancelled is returned by Request when the user backs out of a pick.
// It is not a failure.
var ErrCancelled = errors.New("image selection cancelled")

// Result is the outcome of an image request: either a locator or a
// cancellation.
type Result struct {
	URI       string `json:"uri,omitempty"`
	Cancelled bool   `json:"cancelled"`
}

// Picked returns a Result holding uri.
func Picked(uri string) Result {
	return Result{URI: uri}
}

// Cancelled is the Result of a pick the user backed out of.
var Cancelled = Result{Cancelled: true}

// Source asynchronously obtains an overlay image.
type Source interface {
	RequestImage(ctx context.Context) (Result, error)
}

// Request runs src and folds a cancelled Result into ErrCancelled.
func Request(ctx context.Context, src Source) (string, error) {
	res, err := src.RequestImage(ctx)
	if err != nil {
		return "", err
	}
	if res.Cancelled || res.URI == "" {
		return "", ErrCancelled
	}
	return res.URI, nil
}

// UploadSource imports an image submitted through the browser's file input.
// A missing upload is a cancelled pick.
type UploadSource struct {
	Library *Library
	Name    string
	Body    io.Reader
}

// RequestImage implements Source.
func (s *UploadSource) RequestImage(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if s.Body == nil {
		return Cancelled, nil
	}
	d, err := s.Library.Import(s.Name, s.Body)
	if err != nil {
		return Result{}, err
	}
	return Picked(DesignURI(d.ID)), nil
}

// FileSource imports an image file from the local disk. An empty path is a
// cancelled pick.
type FileSource struct {
	Library *Library
	Path    string
}

// RequestImage implements Source.
func (s *FileSource) RequestImage(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if s.Path == "" {
		return Cancelled, nil
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return Result{}, fmt.Errorf("open design: %w", err)
	}
	defer f.Close()

	d, err := s.Library.Import(filepath.Base(s.Path), f)
	if err != nil {
		return Result{}, err
	}
	return Picked(DesignURI(d.ID)), nil
}

// LibrarySource picks a design already in the library. An empty locator is
// a cancelled pick.
type LibrarySource struct {
	Library *Library
	URI     string
}

// RequestImage implements Source.
func (s *LibrarySource) RequestImage(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if s.URI == "" {
		return Cancelled, nil
	}
	if _, err := s.Library.Get(s.URI); err != nil {
		return Result{}, err
	}
	return Picked(s.URI), nil
}
