// Package segment estimates the wearer's skin tone from camera frames and
// blends overlay designs toward it.
package segment

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// DefaultOpacity is the blend opacity used when none is given.
const DefaultOpacity = 0.85

// ErrEmptyFrame is returned when a segmenter receives no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// SkinTone is an average skin colour in 0-255 RGB.
type SkinTone struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Hex returns the tone as a #rrggbb string.
func (t SkinTone) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(t.R), channel(t.G), channel(t.B))
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// Segmenter estimates skin tone from a frame.
type Segmenter interface {
	// Segment returns the estimated skin tone of the person in frame,
	// or nil when nobody is detected.
	Segment(ctx context.Context, frame *gocv.Mat) (*SkinTone, error)

	// Close releases any resources held by the segmenter.
	Close() error
}

// Blender blends an overlay image toward a skin tone and returns the
// locator of the blended image.
type Blender interface {
	Blend(ctx context.Context, imageURI string, tone SkinTone, opacity float64) (string, error)
}

// Config holds configuration options for skin segmentation.
type Config struct {
	// MinCoverage is the fraction of the frame (0.0-1.0) that must be
	// classified as skin for a person to count as present.
	MinCoverage float64

	// MinConfidence is the mask threshold for model-based segmenters (0.0-1.0).
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinCoverage:   0.02,
		MinConfidence: 0.5,
	}
}
