// Package overlay draws the tattoo design onto camera frames.
package overlay

import (
	"image"
	"math"

	"github.com/ayusman/inkcam/internal/gesture"
)

// Layout constants, in frame pixels.
const (
	// BaseSize is the side of the square the design is fitted into at scale 1.
	BaseSize = 200
	// TopRatio places the unscaled box's top edge at this fraction of the frame height.
	TopRatio = 0.3
	// DefaultOpacity is the alpha applied on top of the design's own transparency.
	DefaultOpacity = 0.8
)

// Box returns the on-screen square occupied by the overlay. At scale 1 and
// zero offset it is horizontally centred with its top at 30% of the frame
// height; scaling is about the square's centre, then the offset is added.
func Box(frame image.Point, st gesture.State) image.Rectangle {
	scale := st.Scale
	if scale <= 0 {
		scale = 1
	}
	cx := float64(frame.X)/2 + st.Offset.X
	cy := float64(frame.Y)*TopRatio + BaseSize/2 + st.Offset.Y
	half := BaseSize * scale / 2

	return image.Rect(
		int(math.Round(cx-half)),
		int(math.Round(cy-half)),
		int(math.Round(cx+half)),
		int(math.Round(cy+half)),
	)
}

// Fit returns the rectangle a design of size img occupies when fitted inside
// box preserving its aspect ratio, centred.
func Fit(box image.Rectangle, img image.Point) image.Rectangle {
	if img.X <= 0 || img.Y <= 0 || box.Empty() {
		return image.Rectangle{}
	}
	bw, bh := float64(box.Dx()), float64(box.Dy())
	ratio := math.Min(bw/float64(img.X), bh/float64(img.Y))
	w := int(math.Round(float64(img.X) * ratio))
	h := int(math.Round(float64(img.Y) * ratio))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x := box.Min.X + (box.Dx()-w)/2
	y := box.Min.Y + (box.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// HitTest returns a gesture.HitFunc that reports touches inside the overlay
// box for the current state. frame and state are read on every call.
func HitTest(frame func() image.Point, state func() (gesture.State, bool)) gesture.HitFunc {
	return func(p gesture.Vector2) bool {
		st, ok := state()
		if !ok {
			return false
		}
		pt := image.Pt(int(math.Floor(p.X)), int(math.Floor(p.Y)))
		return pt.In(Box(frame(), st))
	}
}
