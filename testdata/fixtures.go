// Package testdata generates synthetic camera frames and overlay designs
// for tests.
package testdata

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"gocv.io/x/gocv"
)

// Frame colours in BGR order.
var (
	// Skin falls inside the YCrCb skin range and averages to RGB(220,160,120).
	Skin = gocv.NewScalar(120, 160, 220, 0)
	// Backdrop is a blue wall with no skin pixels.
	Backdrop = gocv.NewScalar(200, 60, 20, 0)
)

// Frame returns a width x height BGR frame filled with c. The caller must
// close it.
func Frame(c gocv.Scalar, width, height int) *gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(c, height, width, gocv.MatTypeCV8UC3)
	return &m
}

// Sequence returns one frame per colour, all of the same size.
func Sequence(width, height int, colors ...gocv.Scalar) []*gocv.Mat {
	frames := make([]*gocv.Mat, len(colors))
	for i, c := range colors {
		frames[i] = Frame(c, width, height)
	}
	return frames
}

// CloseAll releases frames returned by Frame or Sequence.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// Design returns a PNG of the given size filled with c and a transparent
// top-left pixel, so alpha survives decoding.
func Design(width, height int, c color.NRGBA) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("design size %dx%d", width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	img.SetNRGBA(0, 0, color.NRGBA{})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode design: %w", err)
	}
	return buf.Bytes(), nil
}
