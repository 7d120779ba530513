package gesture

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestNewController(t *testing.T) {
	c := NewController()
	s := c.State()

	require.Equal(t, Vector2{}, s.Offset)
	require.Equal(t, 1.0, s.Scale)
	require.False(t, s.Selected)
	require.Zero(t, s.LastPinchDistance)
	require.Empty(t, c.Image())
}

func TestController_SizeSteps(t *testing.T) {
	tests := []struct {
		name      string
		start     int // number of increase (+) or decrease (-) steps before the checked call
		increase  bool
		wantScale float64
	}{
		{name: "increase from 1", start: 0, increase: true, wantScale: 1.1},
		{name: "decrease from 1", start: 0, increase: false, wantScale: 0.9},
		{name: "increase clamps at max", start: 25, increase: true, wantScale: MaxScale},
		{name: "decrease clamps at min", start: -10, increase: false, wantScale: MinScale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController()
			for i := 0; i < tt.start; i++ {
				c.IncreaseSize()
			}
			for i := 0; i > tt.start; i-- {
				c.DecreaseSize()
			}

			if tt.increase {
				c.IncreaseSize()
			} else {
				c.DecreaseSize()
			}

			require.InDelta(t, tt.wantScale, c.Scale(), epsilon)
		})
	}
}

func TestController_SizeStepsStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := NewController()

	for i := 0; i < 2000; i++ {
		before := c.Scale()
		up := rng.Intn(2) == 0
		if up {
			c.IncreaseSize()
		} else {
			c.DecreaseSize()
		}
		after := c.Scale()

		require.GreaterOrEqual(t, after, MinScale)
		require.LessOrEqual(t, after, MaxScale)

		switch {
		case up && after < MaxScale:
			require.InDelta(t, ScaleStep, after-before, 1e-6)
		case !up && after > MinScale:
			require.InDelta(t, -ScaleStep, after-before, 1e-6)
		}
	}
}

func TestController_ResetTransform(t *testing.T) {
	c := NewController()
	c.LoadNewImage("design://a")
	c.Start(Touch{X: 10, Y: 10})
	c.Move([]Touch{{X: 60, Y: 90}})
	c.End()
	c.IncreaseSize()
	c.IncreaseSize()
	c.BackgroundTap()

	c.ResetTransform()

	s := c.State()
	require.Equal(t, Vector2{}, s.Offset)
	require.Equal(t, 1.0, s.Scale)
	require.False(t, s.Selected, "reset keeps selection")
	require.Equal(t, "design://a", c.Image(), "reset keeps the image")
}

func TestController_PinchFirstMoveRecordsDistanceOnly(t *testing.T) {
	c := NewController()
	c.Start(Touch{X: 0, Y: 0})

	c.Move([]Touch{{X: 0, Y: 0}, {X: 3, Y: 4}})

	s := c.State()
	require.Equal(t, 1.0, s.Scale)
	require.InDelta(t, 5.0, s.LastPinchDistance, epsilon)
	require.Equal(t, 2, s.ActivePointers)
}

func TestController_PinchScales(t *testing.T) {
	tests := []struct {
		name      string
		second    Touch
		wantScale float64
	}{
		{name: "doubles distance", second: Touch{X: 6, Y: 8}, wantScale: 2.0},
		{name: "halves distance", second: Touch{X: 1.5, Y: 2}, wantScale: 0.5},
		{name: "clamped above", second: Touch{X: 30, Y: 40}, wantScale: MaxScale},
		{name: "clamped below", second: Touch{X: 0.3, Y: 0.4}, wantScale: MinScale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController()
			c.Start(Touch{X: 0, Y: 0})
			c.Move([]Touch{{X: 0, Y: 0}, {X: 3, Y: 4}})
			c.Move([]Touch{{X: 0, Y: 0}, tt.second})

			require.InDelta(t, tt.wantScale, c.Scale(), epsilon)
		})
	}
}

func TestController_PinchSuppressesDrag(t *testing.T) {
	c := NewController()
	c.Start(Touch{X: 100, Y: 100})
	c.Move([]Touch{{X: 110, Y: 100}})
	require.Equal(t, Vector2{X: 10, Y: 0}, c.Offset())

	c.Move([]Touch{{X: 200, Y: 300}, {X: 240, Y: 330}})
	c.Move([]Touch{{X: 250, Y: 350}, {X: 330, Y: 410}})

	require.Equal(t, Vector2{X: 10, Y: 0}, c.Offset(), "pinch must not translate")
	require.InDelta(t, 2.0, c.Scale(), epsilon)
}

func TestController_LiftingOneFingerDoesNotJump(t *testing.T) {
	c := NewController()
	c.Start(Touch{X: 0, Y: 0})
	c.Move([]Touch{{X: 20, Y: 0}})
	c.Move([]Touch{{X: 500, Y: 500}, {X: 530, Y: 540}})

	c.Move([]Touch{{X: 500, Y: 500}})
	require.Equal(t, Vector2{X: 20, Y: 0}, c.Offset())
	require.Zero(t, c.State().LastPinchDistance)

	c.Move([]Touch{{X: 505, Y: 510}})
	require.Equal(t, Vector2{X: 25, Y: 10}, c.Offset())
}

func TestController_DragIsBaselineRelative(t *testing.T) {
	dx, dy := 37.0, -12.5
	c := NewController()

	c.Start(Touch{X: 50, Y: 50})
	c.Move([]Touch{{X: 50 + dx, Y: 50 + dy}})
	require.Equal(t, Vector2{X: dx, Y: dy}, c.Offset())
	c.End()

	c.Start(Touch{X: 200, Y: 10})
	c.Move([]Touch{{X: 200 + dx, Y: 10 + dy}})
	c.End()

	require.Equal(t, Vector2{X: 2 * dx, Y: 2 * dy}, c.Offset())
}

func TestController_StartWithoutTouchAnchorsOnFirstMove(t *testing.T) {
	c := NewController()
	c.Start()
	c.Move([]Touch{{X: 10, Y: 10}})
	require.Equal(t, Vector2{}, c.Offset())

	c.Move([]Touch{{X: 15, Y: 30}})
	require.Equal(t, Vector2{X: 5, Y: 20}, c.Offset())
}

func TestController_MoveWithoutTouchesIsNoop(t *testing.T) {
	c := NewController()
	c.Start(Touch{X: 1, Y: 1})
	c.Move([]Touch{{X: 4, Y: 5}})
	before := c.State()

	c.Move(nil)
	c.Move([]Touch{})

	require.Equal(t, before, c.State())
}

func TestController_EndResetsPinch(t *testing.T) {
	c := NewController()
	c.Start(Touch{X: 0, Y: 0})
	c.Move([]Touch{{X: 0, Y: 0}, {X: 3, Y: 4}})
	c.BackgroundTap()
	selected := c.Selected()

	c.End()

	s := c.State()
	require.Zero(t, s.LastPinchDistance)
	require.Zero(t, s.ActivePointers)
	require.Equal(t, selected, s.Selected)
}

func TestController_RestartWithoutEndForgetsPinch(t *testing.T) {
	c := NewController()
	c.Start(Touch{X: 0, Y: 0}, Touch{X: 3, Y: 4})
	c.Move([]Touch{{X: 0, Y: 0}, {X: 3, Y: 4}})
	require.Equal(t, 5.0, c.State().LastPinchDistance)

	// A new gesture begins before the previous one ended.
	c.Start(Touch{X: 0, Y: 0}, Touch{X: 6, Y: 8})
	require.Zero(t, c.State().LastPinchDistance)

	c.Move([]Touch{{X: 0, Y: 0}, {X: 6, Y: 8}})
	s := c.State()
	require.Equal(t, 1.0, s.Scale, "first pinch move of a gesture only records the distance")
	require.Equal(t, 10.0, s.LastPinchDistance)
}

func TestController_BackgroundTap(t *testing.T) {
	c := NewController()
	before := c.State()
	c.BackgroundTap()
	require.Equal(t, before, c.State(), "tap while deselected is a no-op")

	c.Start()
	require.True(t, c.Selected())
	c.End()
	c.BackgroundTap()
	require.False(t, c.Selected())
}

func TestController_LoadNewImageMidGesture(t *testing.T) {
	c := NewController()
	c.LoadNewImage("design://old")
	c.Start(Touch{X: 0, Y: 0})
	c.Move([]Touch{{X: 40, Y: 40}})
	c.Move([]Touch{{X: 0, Y: 0}, {X: 3, Y: 4}})
	c.Move([]Touch{{X: 0, Y: 0}, {X: 6, Y: 8}})
	c.BackgroundTap()

	c.LoadNewImage("design://new")

	s := c.State()
	require.Equal(t, Vector2{}, s.Offset)
	require.Equal(t, 1.0, s.Scale)
	require.True(t, s.Selected)
	require.Zero(t, s.LastPinchDistance)
	require.Equal(t, "design://new", c.Image())

	// A stale move from the discarded gesture re-anchors instead of jumping.
	c.Move([]Touch{{X: 90, Y: 90}})
	require.Equal(t, Vector2{}, c.Offset())
}

func TestController_Clear(t *testing.T) {
	c := NewController()
	c.LoadNewImage("design://a")
	c.IncreaseSize()
	c.Start(Touch{X: 0, Y: 0})
	c.Move([]Touch{{X: 5, Y: 5}})
	c.End()

	c.Clear()

	s := c.State()
	require.Empty(t, c.Image())
	require.False(t, s.Selected)
	require.Equal(t, Vector2{}, s.Offset)
	require.Equal(t, 1.0, s.Scale)
}
