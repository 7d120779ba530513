package overlay

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/ayusman/inkcam/internal/gesture"
	"gocv.io/x/gocv"
)

const cacheLimit = 4

var borderColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Resolver dereferences an image locator to encoded image bytes.
type Resolver interface {
	Resolve(uri string) ([]byte, error)
}

// Compositor alpha-blends designs onto BGR frames. Decoded designs are
// cached by locator.
type Compositor struct {
	resolver Resolver
	opacity  float64

	mu    sync.Mutex
	cache map[string]gocv.Mat
	order []string
}

// NewCompositor creates a Compositor. An opacity outside (0, 1] selects
// DefaultOpacity.
func NewCompositor(resolver Resolver, opacity float64) *Compositor {
	if opacity <= 0 || opacity > 1 {
		opacity = DefaultOpacity
	}
	return &Compositor{
		resolver: resolver,
		opacity:  opacity,
		cache:    make(map[string]gocv.Mat),
	}
}

// Draw composites the design at uri onto frame in place. Parts of the
// overlay outside the frame are clipped.
func (c *Compositor) Draw(frame *gocv.Mat, uri string, st gesture.State) error {
	if uri == "" || frame == nil || frame.Empty() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	design, err := c.designLocked(uri)
	if err != nil {
		return err
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	box := Box(bounds.Max, st)
	placed := Fit(box, image.Pt(design.Cols(), design.Rows()))
	if placed.Empty() {
		return nil
	}

	visible := placed.Intersect(bounds)
	if !visible.Empty() {
		scaled := gocv.NewMat()
		defer scaled.Close()
		gocv.Resize(design, &scaled, placed.Size(), 0, 0, gocv.InterpolationLinear)

		src := scaled.Region(visible.Sub(placed.Min))
		defer src.Close()
		dst := frame.Region(visible)
		defer dst.Close()

		blendInto(&dst, src, c.opacity)
	}

	if st.Selected {
		if border := box.Intersect(bounds); !border.Empty() {
			gocv.Rectangle(frame, border, borderColor, 2)
		}
	}
	return nil
}

// blendInto computes dst + a*(src-dst) where a is src's alpha scaled by opacity.
func blendInto(dst *gocv.Mat, src gocv.Mat, opacity float64) {
	channels := gocv.Split(src)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.Merge(channels[:3], &bgr)

	alpha := gocv.NewMat()
	defer alpha.Close()
	channels[3].ConvertToWithParams(&alpha, gocv.MatTypeCV32F, float32(opacity/255), 0)

	alpha3 := gocv.NewMat()
	defer alpha3.Close()
	gocv.Merge([]gocv.Mat{alpha, alpha, alpha}, &alpha3)

	srcF := gocv.NewMat()
	defer srcF.Close()
	bgr.ConvertTo(&srcF, gocv.MatTypeCV32FC3)

	dstF := gocv.NewMat()
	defer dstF.Close()
	dst.ConvertTo(&dstF, gocv.MatTypeCV32FC3)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(srcF, dstF, &diff)
	gocv.Multiply(diff, alpha3, &diff)

	out := gocv.NewMat()
	defer out.Close()
	gocv.Add(dstF, diff, &out)

	result := gocv.NewMat()
	defer result.Close()
	out.ConvertTo(&result, gocv.MatTypeCV8UC3)
	result.CopyTo(dst)
}

// designLocked returns the decoded BGRA design for uri.
func (c *Compositor) designLocked(uri string) (gocv.Mat, error) {
	if m, ok := c.cache[uri]; ok {
		return m, nil
	}

	data, err := c.resolver.Resolve(uri)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("resolve %s: %w", uri, err)
	}
	m, err := decodeBGRA(data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("decode %s: %w", uri, err)
	}

	if len(c.order) >= cacheLimit {
		oldest := c.order[0]
		c.order = c.order[1:]
		if old, ok := c.cache[oldest]; ok {
			old.Close()
			delete(c.cache, oldest)
		}
	}
	c.cache[uri] = m
	c.order = append(c.order, uri)
	return m, nil
}

func decodeBGRA(data []byte) (gocv.Mat, error) {
	m, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return gocv.Mat{}, err
	}
	if m.Empty() {
		m.Close()
		return gocv.Mat{}, fmt.Errorf("empty image")
	}

	var code gocv.ColorConversionCode
	switch m.Channels() {
	case 4:
		return m, nil
	case 3:
		code = gocv.ColorBGRToBGRA
	case 1:
		code = gocv.ColorGrayToBGRA
	default:
		m.Close()
		return gocv.Mat{}, fmt.Errorf("unsupported channel count %d", m.Channels())
	}

	bgra := gocv.NewMat()
	gocv.CvtColor(m, &bgra, code)
	m.Close()
	return bgra, nil
}

// Forget drops a cached design, as after it was deleted from the library.
func (c *Compositor) Forget(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.cache[uri]; ok {
		m.Close()
		delete(c.cache, uri)
		for i, u := range c.order {
			if u == uri {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Close releases all cached designs.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for uri, m := range c.cache {
		m.Close()
		delete(c.cache, uri)
	}
	c.order = nil
	return nil
}
