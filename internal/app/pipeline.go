package app

import (
	"log"
	"time"

	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/gesture"
	"gocv.io/x/gocv"
)

// runPipeline is the render loop:
//  1. Read a frame, mirroring the front camera
//  2. In AR mode, hand the frame to the AR session when the scene changed
//     since the last accepted frame; invalidation forgets that frame
//  3. Composite the overlay
//  4. Publish the frame to the stream and the viewer
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(a.camera.FPS()))
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			frame, err := a.camera.ReadFrame()
			if err != nil {
				if msg := err.Error(); msg != lastErr {
					log.Printf("Error reading frame: %v", err)
					lastErr = msg
				}
				continue
			}
			lastErr = ""

			a.renderFrame(frame)
			frame.Close()
		}
	}
}

// renderFrame processes one camera frame in place.
func (a *App) renderFrame(frame *gocv.Mat) {
	if a.camera.Facing() == capture.FacingFront {
		gocv.Flip(*frame, frame, 1)
	}

	if image, gen, ok := a.screen.NeedsInference(); ok {
		if changed, _ := a.change.Changed(frame); changed && a.session.Submit(frame, image, gen) {
			a.change.Accept(frame)
		}
	}

	snap := a.screen.Snapshot()
	a.drawOverlay(frame, snap.DisplayImage, snap.Image, snap.Gesture)

	if err := a.frames.Publish(frame); err != nil {
		log.Printf("Error publishing frame: %v", err)
	}
}

// drawOverlay composites display, falling back to the unblended original
// when the blended image cannot be drawn. Each failing locator is logged once.
func (a *App) drawOverlay(frame *gocv.Mat, display, original string, st gesture.State) {
	err := a.compositor.Draw(frame, display, st)
	if err == nil {
		a.drawErr = ""
		return
	}
	if a.drawErr != display {
		log.Printf("Error drawing overlay: %v", err)
		a.drawErr = display
	}
	if display != original {
		if err := a.compositor.Draw(frame, original, st); err != nil {
			log.Printf("Error drawing overlay: %v", err)
		}
	}
}
