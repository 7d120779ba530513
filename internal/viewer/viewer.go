// Package viewer is the desktop preview window. It shows the composited
// camera feed and turns mouse, touch and keyboard input into overlay
// gestures and controls.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/gesture"
	"github.com/ayusman/inkcam/internal/screen"
	"github.com/ayusman/inkcam/internal/source"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// mousePointer is the pointer ID used for the mouse; touch IDs are
// non-negative.
const mousePointer = -1

// FrameSource provides decoded preview frames. *app.FrameBuffer satisfies it.
type FrameSource interface {
	WantImage(want bool)
	Image() image.Image
}

// Backend is the application surface the window drives. *app.App
// satisfies it.
type Backend interface {
	Screen() *screen.Screen
	Library() *source.Library
	PickImage(ctx context.Context, src source.Source) error
	ToggleFacing() (capture.Facing, error)
	SetARMode(on bool) error
	NewPointerTracker() *gesture.PointerTracker
}

// inputState holds the polled state of inputs for a single frame.
type inputState struct {
	quit     bool
	increase bool
	decrease bool
	reset    bool
	remove   bool
	flip     bool
	toggleAR bool
	open     bool
	pointers []gesture.Pointer
}

// Game implements ebiten.Game for the preview window.
type Game struct {
	backend    Backend
	frames     FrameSource
	tracker    *gesture.PointerTracker
	designPath string

	frame      *ebiten.Image
	frameSrc   image.Image
	deallocate *ebiten.Image
	touchIDs   []ebiten.TouchID
}

// New creates the preview game. designPath is the image file loaded by the
// open key; it may be empty.
func New(b Backend, frames FrameSource, designPath string) *Game {
	frames.WantImage(true)
	return &Game{
		backend:    b,
		frames:     frames,
		tracker:    b.NewPointerTracker(),
		designPath: designPath,
	}
}

// Run opens the window and blocks until it is closed.
func Run(g *Game, title string) error {
	defer g.frames.WantImage(false)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(640, 480)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(g)
}

// pollInput gathers all raw input events for the current frame.
func (g *Game) pollInput() inputState {
	in := inputState{
		quit:     inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape),
		increase: inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadAdd),
		decrease: inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadSubtract),
		reset:    inpututil.IsKeyJustPressed(ebiten.KeyR),
		remove:   inpututil.IsKeyJustPressed(ebiten.KeyDelete) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace),
		flip:     inpututil.IsKeyJustPressed(ebiten.KeyF),
		toggleAR: inpututil.IsKeyJustPressed(ebiten.KeyA),
		open:     inpututil.IsKeyJustPressed(ebiten.KeyO),
	}

	g.touchIDs = ebiten.AppendTouchIDs(g.touchIDs[:0])
	for _, id := range g.touchIDs {
		x, y := ebiten.TouchPosition(id)
		in.pointers = append(in.pointers, gesture.Pointer{ID: int(id), X: float64(x), Y: float64(y)})
	}
	if len(in.pointers) == 0 && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		in.pointers = append(in.pointers, gesture.Pointer{ID: mousePointer, X: float64(x), Y: float64(y)})
	}
	return in
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	if g.deallocate != nil {
		g.deallocate.Deallocate()
		g.deallocate = nil
	}

	in := g.pollInput()
	if in.quit {
		return ebiten.Termination
	}
	g.handleInput(in)

	if img := g.frames.Image(); img != nil && img != g.frameSrc {
		if g.frame != nil {
			g.deallocate = g.frame
		}
		g.frame = ebiten.NewImageFromImage(img)
		g.frameSrc = img
	}
	return nil
}

// handleInput applies one frame of input to the screen.
func (g *Game) handleInput(in inputState) {
	scr := g.backend.Screen()
	if scr.Ready() != nil {
		g.tracker.Cancel()
		return
	}

	g.tracker.Update(in.pointers)

	switch {
	case in.increase:
		report("increase size", scr.Increase())
	case in.decrease:
		report("decrease size", scr.Decrease())
	case in.reset:
		report("reset", scr.Reset())
	case in.remove:
		report("delete", scr.Delete())
	}

	if in.flip {
		_, err := g.backend.ToggleFacing()
		report("flip camera", err)
	}
	if in.toggleAR {
		report("toggle AR mode", g.backend.SetARMode(!scr.ARMode()))
	}
	if in.open {
		src := &source.FileSource{Library: g.backend.Library(), Path: g.designPath}
		report("open design", g.backend.PickImage(context.Background(), src))
	}
}

func report(action string, err error) {
	if err == nil || errors.Is(err, screen.ErrNoOverlay) {
		return
	}
	log.Printf("Failed to %s: %v", action, err)
}

// Draw implements ebiten.Game.
func (g *Game) Draw(dst *ebiten.Image) {
	if g.frame != nil {
		dst.DrawImage(g.frame, &ebiten.DrawImageOptions{})
	}
	ebitenutil.DebugPrint(dst, statusText(g.backend.Screen().Snapshot(), g.designPath != ""))
}

// Layout implements ebiten.Game. The logical screen matches the camera
// frame so pointer positions are frame coordinates.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if g.frame != nil {
		b := g.frame.Bounds()
		return b.Dx(), b.Dy()
	}
	return outsideWidth, outsideHeight
}

// statusText renders the overlay text for a snapshot.
func statusText(snap screen.Snapshot, canOpen bool) string {
	if snap.Permission != screen.PermissionGranted {
		return snap.Message
	}

	var b strings.Builder
	ar := "off"
	if snap.ARMode {
		ar = "on"
	}
	fmt.Fprintf(&b, "Camera: %s  AR: %s", snap.Facing, ar)
	if snap.SkinTone != nil {
		fmt.Fprintf(&b, "  Tone: %s", snap.SkinTone.Hex())
	}
	b.WriteString("\n")

	for _, line := range snap.Instructions {
		b.WriteString(line + "\n")
	}
	if snap.Controls {
		fmt.Fprintf(&b, "Size: %.0f%%  [+] [-] [R]eset [Del]\n", snap.Gesture.Scale*100)
	}
	if snap.Image == "" && canOpen {
		b.WriteString("[O] open design\n")
	}
	b.WriteString("[F] flip camera  [A] AR mode  [Q] quit")
	return b.String()
}
