// Package app wires the camera, overlay screen, AR session and design
// library together and runs the render loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/inkcam/internal/ar"
	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/gesture"
	"github.com/ayusman/inkcam/internal/overlay"
	"github.com/ayusman/inkcam/internal/plugin"
	"github.com/ayusman/inkcam/internal/screen"
	"github.com/ayusman/inkcam/internal/segment"
	"github.com/ayusman/inkcam/internal/source"
	"github.com/ayusman/inkcam/internal/store"
)

// Segmenter names.
const (
	SegmenterSkin      = "skin"
	SegmenterMediaPipe = "mediapipe"
)

// PluginTimeoutMs bounds one blend plugin run.
const PluginTimeoutMs = 5000

// BlendPluginAuto selects the first discovered plugin that can blend.
const BlendPluginAuto = "auto"

// Config holds configuration options for the application.
type Config struct {
	Store *store.Store

	// Camera overrides the device camera built from Devices.
	Camera  capture.Camera
	Devices capture.Devices

	// Segmenter overrides the one selected by SegmenterName.
	Segmenter     segment.Segmenter
	SegmenterName string

	// Blender overrides the one selected by BlendPlugin.
	Blender     segment.Blender
	PluginDir   string
	BlendPlugin string

	ChangeThreshold float64
}

// App is the main application that orchestrates capture, overlay and AR.
type App struct {
	config     Config
	camera     capture.Camera
	change     *capture.ChangeDetector
	screen     *screen.Screen
	session    *ar.Session
	compositor *overlay.Compositor
	library    *source.Library
	settings   *store.SettingsRepository
	pluginMgr  *plugin.Manager
	frames     *FrameBuffer

	// drawErr is the locator that last failed to draw; render loop only.
	drawErr string

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}

	// facingMu keeps the camera and the screen switching together.
	facingMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[chan screen.Snapshot]struct{}
}

// New creates a new App instance with the given configuration. The last
// camera facing and AR mode are restored from the settings store.
func New(config Config) *App {
	settings := config.Store.Settings()

	facing, err := capture.ParseFacing(settings.GetDefault(store.SettingCameraFacing, string(capture.FacingFront)))
	if err != nil {
		facing = capture.FacingFront
	}
	arMode := settings.GetBool(store.SettingARMode, false)

	a := &App{
		config:      config,
		camera:      config.Camera,
		change:      capture.NewChangeDetector(config.ChangeThreshold),
		screen:      screen.New(facing, arMode),
		library:     source.NewLibrary(config.Store),
		settings:    settings,
		pluginMgr:   plugin.NewManager(config.PluginDir),
		frames:      NewFrameBuffer(),
		subscribers: make(map[chan screen.Snapshot]struct{}),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(config.Devices, facing)
	} else if err := a.camera.SetFacing(facing); err != nil {
		log.Printf("Failed to restore camera facing: %v", err)
	}

	a.compositor = overlay.NewCompositor(a.library, overlay.DefaultOpacity)
	a.session = ar.NewSession(a.newSegmenter(), a.newBlender(), a.screen, segment.DefaultOpacity)

	a.screen.OnInvalidate(func() {
		a.session.Invalidate()
		a.change.Reset()
	})
	a.screen.OnChange(a.broadcast)

	return a
}

func (a *App) newSegmenter() segment.Segmenter {
	if a.config.Segmenter != nil {
		return a.config.Segmenter
	}
	if a.config.SegmenterName == SegmenterMediaPipe {
		mp, err := segment.NewMediaPipeSegmenter(segment.DefaultConfig())
		if err == nil {
			log.Println("Using MediaPipe skin segmentation")
			return mp
		}
		log.Printf("MediaPipe not available (%v), using skin colour segmentation", err)
	}
	return segment.NewSkinSegmenter(segment.DefaultConfig())
}

func (a *App) newBlender() segment.Blender {
	if a.config.Blender != nil {
		return a.config.Blender
	}
	if a.config.BlendPlugin == "" {
		return segment.PassthroughBlender{}
	}
	if err := a.pluginMgr.Discover(); err != nil {
		log.Printf("Failed to discover plugins: %v", err)
	}
	name := a.config.BlendPlugin
	if name == BlendPluginAuto {
		candidates := a.pluginMgr.ForAction(plugin.ActionBlend)
		if len(candidates) == 0 {
			log.Printf("No blend plugin found in %s, using passthrough", a.pluginMgr.PluginDir())
			return segment.PassthroughBlender{}
		}
		name = candidates[0].Manifest.Name
	}
	b, err := segment.NewPluginBlender(a.pluginMgr, plugin.NewExecutor(PluginTimeoutMs), name)
	if err != nil {
		log.Printf("Blend plugin unavailable (%v), using passthrough", err)
		return segment.PassthroughBlender{}
	}
	log.Printf("Using blend plugin %s", name)
	return b
}

// Start opens the camera and begins the render loop. A camera that cannot
// be opened is reported as denied permission; the app keeps serving the
// permission message.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		a.screen.SetPermission(screen.PermissionDenied)
		a.broadcast(a.screen.Snapshot())
		return fmt.Errorf("%w: %v", screen.ErrPermissionDenied, err)
	}
	a.screen.SetPermission(screen.PermissionGranted)
	a.broadcast(a.screen.Snapshot())

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	log.Println("Render loop started")
	return nil
}

// Stop halts the render loop and releases resources.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		close(a.stopCh)
		<-a.done
		a.stopCh = nil
	}

	if err := a.session.Close(); err != nil {
		log.Printf("Error closing segmenter: %v", err)
	}
	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.change.Close()
	a.compositor.Close()

	log.Println("Render loop stopped")
}

// Screen returns the screen state.
func (a *App) Screen() *screen.Screen {
	return a.screen
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Library returns the design library.
func (a *App) Library() *source.Library {
	return a.library
}

// Frames returns the buffer of composited frames.
func (a *App) Frames() *FrameBuffer {
	return a.frames
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// PickImage requests an image from src and loads it as the overlay. A
// cancelled request leaves the overlay untouched.
func (a *App) PickImage(ctx context.Context, src source.Source) error {
	if err := a.screen.Ready(); err != nil {
		return err
	}
	res, err := src.RequestImage(ctx)
	if errors.Is(err, source.ErrCancelled) {
		res, err = source.Cancelled, nil
	}
	if err != nil {
		return err
	}
	return a.screen.PickImage(res)
}

// ToggleFacing switches camera and persists the choice. When the camera
// cannot switch, the screen keeps its facing and the error is returned.
func (a *App) ToggleFacing() (capture.Facing, error) {
	a.facingMu.Lock()
	defer a.facingMu.Unlock()

	current := a.screen.Facing()
	if err := a.screen.Ready(); err != nil {
		return current, err
	}
	next := current.Opposite()
	if err := a.camera.SetFacing(next); err != nil {
		return current, fmt.Errorf("switch camera to %s: %w", next, err)
	}

	f, err := a.screen.ToggleFacing()
	if err != nil {
		if err := a.camera.SetFacing(current); err != nil {
			log.Printf("Failed to switch camera back to %s: %v", current, err)
		}
		return f, err
	}
	if err := a.settings.Set(store.SettingCameraFacing, string(f)); err != nil {
		log.Printf("Failed to save camera facing: %v", err)
	}
	return f, nil
}

// SetARMode opens or closes AR mode and persists the choice.
func (a *App) SetARMode(on bool) error {
	if err := a.screen.SetARMode(on); err != nil {
		return err
	}
	if err := a.settings.SetBool(store.SettingARMode, on); err != nil {
		log.Printf("Failed to save AR mode: %v", err)
	}
	return nil
}

// DeleteDesign removes a design from the library, and from the screen if
// it is the current overlay.
func (a *App) DeleteDesign(id string) error {
	if err := a.library.Delete(id); err != nil {
		return err
	}
	uri := source.DesignURI(id)
	a.compositor.Forget(uri)
	if a.screen.Snapshot().Image == uri {
		if err := a.screen.Delete(); err != nil && !errors.Is(err, screen.ErrNoOverlay) {
			log.Printf("Failed to remove deleted design from screen: %v", err)
		}
	}
	return nil
}

// HitTest reports whether a frame position lies on the overlay.
func (a *App) HitTest() gesture.HitFunc {
	return overlay.HitTest(a.frames.Size, func() (gesture.State, bool) {
		snap := a.screen.Snapshot()
		return snap.Gesture, snap.Image != ""
	})
}

// NewPointerTracker returns a tracker that routes one client's pointers to
// the screen.
func (a *App) NewPointerTracker() *gesture.PointerTracker {
	return gesture.NewPointerTracker(a.screen, a.HitTest())
}

// Subscribe returns a channel receiving snapshots after permission, facing
// and AR mode changes, and a function that cancels the subscription.
func (a *App) Subscribe() (<-chan screen.Snapshot, func()) {
	ch := make(chan screen.Snapshot, 1)
	a.subMu.Lock()
	a.subscribers[ch] = struct{}{}
	a.subMu.Unlock()

	return ch, func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
	}
}

// broadcast delivers snap to subscribers, replacing any snapshot they have
// not read yet.
func (a *App) broadcast(snap screen.Snapshot) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
