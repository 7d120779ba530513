// Package source supplies overlay images: it normalizes picked or uploaded
// designs into the SQLite library and resolves image locators back to bytes.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/ayusman/inkcam/internal/store"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// DesignScheme prefixes locators of designs held in the library.
	DesignScheme = "design://"
	// FileScheme prefixes locators of images on the local disk.
	FileScheme = "file://"

	// MaxDimension bounds the width and height of a stored design.
	MaxDimension = 1024
	// MaxUploadSize bounds the raw bytes accepted for one design.
	MaxUploadSize = 16 << 20
)

var (
	// ErrUnsupportedType is returned for content that is not a decodable image.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrInvalidURI is returned for locators with an unknown scheme.
	ErrInvalidURI = errors.New("invalid image locator")
	// ErrTooLarge is returned when an upload exceeds MaxUploadSize.
	ErrTooLarge = errors.New("image too large")
)

var acceptedTypes = []string{"image/png", "image/jpeg", "image/gif", "image/bmp", "image/tiff"}

// Library stores normalized designs.
type Library struct {
	designs *store.DesignRepository
}

// NewLibrary creates a Library backed by s.
func NewLibrary(s *store.Store) *Library {
	return &Library{designs: s.Designs()}
}

// DesignURI returns the locator for a stored design.
func DesignURI(id string) string {
	return DesignScheme + id
}

// DesignID extracts the design ID from a design:// locator.
func DesignID(uri string) (string, error) {
	id, ok := strings.CutPrefix(uri, DesignScheme)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return id, nil
}

// Import validates, orients, downsizes and stores an image, returning the
// new design. Images are re-encoded as PNG to keep transparency.
func (l *Library) Import(name string, r io.Reader) (*store.Design, error) {
	content, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(content) > MaxUploadSize {
		return nil, ErrTooLarge
	}

	mtype := mimetype.Detect(content)
	if !slices.Contains(acceptedTypes, mtype.String()) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	b := img.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode design: %w", err)
	}

	b = img.Bounds()
	d := &store.Design{
		ID:     uuid.New().String(),
		Name:   name,
		MIME:   "image/png",
		Width:  b.Dx(),
		Height: b.Dy(),
		Data:   out.Bytes(),
	}
	if err := l.designs.Create(d); err != nil {
		return nil, fmt.Errorf("store design: %w", err)
	}
	return d, nil
}

// Get returns a stored design by locator.
func (l *Library) Get(uri string) (*store.Design, error) {
	id, err := DesignID(uri)
	if err != nil {
		return nil, err
	}
	return l.designs.GetByID(id)
}

// List returns the stored designs without image data, newest first.
func (l *Library) List() ([]*store.Design, error) {
	return l.designs.List()
}

// Delete removes a stored design.
func (l *Library) Delete(id string) error {
	return l.designs.Delete(id)
}

// Resolve dereferences a design:// or file:// locator to encoded image bytes.
func (l *Library) Resolve(uri string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, DesignScheme):
		d, err := l.Get(uri)
		if err != nil {
			return nil, err
		}
		return d.Data, nil
	case strings.HasPrefix(uri, FileScheme):
		data, err := os.ReadFile(strings.TrimPrefix(uri, FileScheme))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", uri, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
}
