package gesture

// Scale limits for the overlay.
const (
	MinScale  = 0.5
	MaxScale  = 3.0
	ScaleStep = 0.1
)

// State is a snapshot of the overlay transform and gesture bookkeeping.
type State struct {
	Offset            Vector2 `json:"offset"`
	Scale             float64 `json:"scale"`
	ActivePointers    int     `json:"active_pointers"`
	LastPinchDistance float64 `json:"last_pinch_distance"`
	Selected          bool    `json:"selected"`
}

// Controller owns the transform of one overlay element.
//
// The offset is kept as a baseline captured at gesture start plus the delta
// of the gesture in progress; End flattens the two into a new baseline.
// Controller is not safe for concurrent use; callers serialize events.
type Controller struct {
	base      Vector2
	delta     Vector2
	anchor    Vector2
	anchored  bool
	scale     float64
	pointers  int
	lastPinch float64
	selected  bool
	image     string
}

// NewController creates a Controller with no overlay and an identity transform.
func NewController() *Controller {
	return &Controller{scale: 1}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	return State{
		Offset:            c.Offset(),
		Scale:             c.scale,
		ActivePointers:    c.pointers,
		LastPinchDistance: c.lastPinch,
		Selected:          c.selected,
	}
}

// Offset returns the resolved translation of the overlay.
func (c *Controller) Offset() Vector2 {
	return c.base.Add(c.delta)
}

// Scale returns the current uniform scale.
func (c *Controller) Scale() float64 {
	return c.scale
}

// Selected reports whether the overlay is selected for editing.
func (c *Controller) Selected() bool {
	return c.selected
}

// Image returns the overlay image reference, or "" when there is none.
func (c *Controller) Image() string {
	return c.image
}

// Start begins a gesture on the overlay and selects it. The running offset
// becomes the baseline. The first touch, if given, anchors the drag.
func (c *Controller) Start(touches ...Touch) {
	c.selected = true
	c.base = c.Offset()
	c.delta = Vector2{}
	c.pointers = len(touches)
	c.lastPinch = 0
	c.anchored = false
	if len(touches) > 0 {
		c.anchor = touches[0].Pos()
		c.anchored = true
	}
}

// Move applies one pointer-move event.
//
// Two or more touches pinch: the scale follows the ratio of successive
// distances between the first two touches and translation is skipped for
// the event. A single touch drags relative to the anchor. No touches is a
// no-op.
func (c *Controller) Move(touches []Touch) {
	switch {
	case len(touches) >= 2:
		c.pointers = len(touches)
		d := touches[0].Pos().Dist(touches[1].Pos())
		if c.lastPinch > 0 {
			c.scale = clamp(c.scale*(d/c.lastPinch), MinScale, MaxScale)
		}
		c.lastPinch = d
		// Re-anchor the next single-touch drag where the fingers lift.
		c.anchored = false

	case len(touches) == 1:
		c.pointers = 1
		c.lastPinch = 0
		p := touches[0].Pos()
		if !c.anchored {
			c.base = c.Offset()
			c.delta = Vector2{}
			c.anchor = p
			c.anchored = true
			return
		}
		c.delta = p.Sub(c.anchor)
	}
}

// End finishes the gesture, flattening baseline and delta into one offset.
// Selection is left unchanged.
func (c *Controller) End() {
	c.base = c.Offset()
	c.delta = Vector2{}
	c.anchored = false
	c.pointers = 0
	c.lastPinch = 0
}

// BackgroundTap deselects the overlay. It does nothing when already deselected.
func (c *Controller) BackgroundTap() {
	if c.selected {
		c.selected = false
	}
}

// IncreaseSize grows the overlay by one step.
func (c *Controller) IncreaseSize() {
	c.scale = clamp(c.scale+ScaleStep, MinScale, MaxScale)
}

// DecreaseSize shrinks the overlay by one step.
func (c *Controller) DecreaseSize() {
	c.scale = clamp(c.scale-ScaleStep, MinScale, MaxScale)
}

// ResetTransform restores the identity transform. Selection and the image
// reference are kept.
func (c *Controller) ResetTransform() {
	c.base = Vector2{}
	c.delta = Vector2{}
	c.anchored = false
	c.pointers = 0
	c.lastPinch = 0
	c.scale = 1
}

// Clear removes the overlay entirely.
func (c *Controller) Clear() {
	c.ResetTransform()
	c.selected = false
	c.image = ""
}

// LoadNewImage replaces the overlay image, discarding any gesture in progress.
func (c *Controller) LoadNewImage(ref string) {
	c.ResetTransform()
	c.selected = true
	c.image = ref
}
