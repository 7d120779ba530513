package gesture

import "sort"

// Pointer is one pressed pointer in a polled input frame.
type Pointer struct {
	ID int
	X  float64
	Y  float64
}

// Target receives the gesture events derived by a PointerTracker.
// *Controller satisfies it.
type Target interface {
	Start(touches ...Touch)
	Move(touches []Touch)
	End()
	BackgroundTap()
}

// HitFunc reports whether a screen position lies on the overlay.
type HitFunc func(p Vector2) bool

// PointerTracker converts per-frame pointer snapshots, as polled from ebiten
// or reported by a browser, into Start/Move/End/BackgroundTap events.
//
// A press that lands on the overlay starts a gesture that lasts until every
// pointer is released. A press that lands elsewhere is a background tap,
// delivered on release.
type PointerTracker struct {
	target   Target
	hit      HitFunc
	active   bool
	tapping  bool
	previous []Touch
}

// NewPointerTracker creates a tracker that feeds target. A nil hit function
// treats every press as landing on the overlay.
func NewPointerTracker(target Target, hit HitFunc) *PointerTracker {
	return &PointerTracker{target: target, hit: hit}
}

// Update processes the pointers pressed during the current frame.
func (t *PointerTracker) Update(pointers []Pointer) {
	touches := orderedTouches(pointers)

	if len(touches) == 0 {
		switch {
		case t.active:
			t.target.End()
		case t.tapping:
			t.target.BackgroundTap()
		}
		t.active = false
		t.tapping = false
		t.previous = nil
		return
	}

	if !t.active && !t.tapping {
		if t.hit == nil || t.hit(touches[0].Pos()) {
			t.active = true
			t.target.Start(touches...)
		} else {
			t.tapping = true
		}
		t.previous = touches
		return
	}

	if t.active && !sameTouches(t.previous, touches) {
		t.target.Move(touches)
	}
	t.previous = touches
}

// Active reports whether a gesture on the overlay is in progress.
func (t *PointerTracker) Active() bool {
	return t.active
}

// Cancel drops any tracked press without emitting events.
func (t *PointerTracker) Cancel() {
	t.active = false
	t.tapping = false
	t.previous = nil
}

func orderedTouches(pointers []Pointer) []Touch {
	if len(pointers) == 0 {
		return nil
	}
	sorted := make([]Pointer, len(pointers))
	copy(sorted, pointers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	touches := make([]Touch, len(sorted))
	for i, p := range sorted {
		touches[i] = Touch{X: p.X, Y: p.Y}
	}
	return touches
}

func sameTouches(a, b []Touch) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
