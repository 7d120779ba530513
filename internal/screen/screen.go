// Package screen holds the state of the camera screen: permission, camera
// facing, AR mode and the overlay with its gesture controller. Every
// mutation is serialized by one mutex, which plays the role of the UI
// event thread for the HTTP, window and tray front ends.
package screen

import (
	"errors"
	"sync"

	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/gesture"
	"github.com/ayusman/inkcam/internal/segment"
	"github.com/ayusman/inkcam/internal/source"
)

// Permission is the camera access state.
type Permission string

const (
	PermissionUnknown Permission = "unknown"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// User-visible messages for the permission states that block the screen.
const (
	MessagePending = "Requesting camera permission..."
	MessageDenied  = "No access to camera. Please enable camera access in your browser or device settings."
)

var (
	// ErrPermissionDenied is returned while camera access is refused.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrPermissionPending is returned until camera access is decided.
	ErrPermissionPending = errors.New("camera permission pending")
	// ErrNoOverlay is returned by overlay operations when no image is loaded.
	ErrNoOverlay = errors.New("no overlay loaded")
)

var instructions = []string{
	"Tap tattoo to edit",
	"Drag to move the tattoo",
	"Pinch to resize the tattoo",
}

// Snapshot is a copy of the screen state for renderers and the JSON API.
type Snapshot struct {
	Permission   Permission        `json:"permission"`
	Message      string            `json:"message,omitempty"`
	Facing       capture.Facing    `json:"facing"`
	ARMode       bool              `json:"ar_mode"`
	Image        string            `json:"image,omitempty"`
	DisplayImage string            `json:"display_image,omitempty"`
	SkinTone     *segment.SkinTone `json:"skin_tone,omitempty"`
	Gesture      gesture.State     `json:"gesture"`
	Controls     bool              `json:"controls"`
	Instructions []string          `json:"instructions,omitempty"`
	Generation   uint64            `json:"generation"`
}

// Screen is the single owner of screen state.
type Screen struct {
	mu           sync.Mutex
	permission   Permission
	facing       capture.Facing
	arMode       bool
	ctrl         *gesture.Controller
	tone         *segment.SkinTone
	blended      string
	gen          uint64
	onInvalidate func()
	onChange     func(Snapshot)
}

// New creates a Screen with undecided permission.
func New(facing capture.Facing, arMode bool) *Screen {
	if facing != capture.FacingBack {
		facing = capture.FacingFront
	}
	return &Screen{
		permission: PermissionUnknown,
		facing:     facing,
		arMode:     arMode,
		ctrl:       gesture.NewController(),
	}
}

// OnInvalidate registers fn to run whenever in-flight inference becomes
// stale. fn runs with the screen lock held and must not call back into it.
func (s *Screen) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = fn
}

// OnChange registers fn to receive a snapshot after facing or AR mode
// changes. fn runs with the screen lock held and must not call back into it.
func (s *Screen) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// SetPermission records the outcome of the camera permission request.
func (s *Screen) SetPermission(p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = p
}

// Permission returns the camera permission state.
func (s *Screen) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// Ready returns nil once camera access is granted, or the permission error
// that blocks the screen.
func (s *Screen) Ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkLocked()
}

func (s *Screen) checkLocked() error {
	switch s.permission {
	case PermissionGranted:
		return nil
	case PermissionDenied:
		return ErrPermissionDenied
	}
	return ErrPermissionPending
}

// invalidateLocked retires the current generation and drops any estimate
// derived from it.
func (s *Screen) invalidateLocked() {
	s.gen++
	s.tone = nil
	s.blended = ""
	if s.onInvalidate != nil {
		s.onInvalidate()
	}
}

func (s *Screen) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.snapshotLocked())
	}
}

// Generation returns the current inference generation.
func (s *Screen) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// PickImage applies the result of an image request. A cancelled pick
// leaves the screen untouched.
func (s *Screen) PickImage(res source.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if res.Cancelled || res.URI == "" {
		return nil
	}
	s.ctrl.LoadNewImage(res.URI)
	s.invalidateLocked()
	return nil
}

// Facing returns the active camera facing.
func (s *Screen) Facing() capture.Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// ToggleFacing switches between the front and back cameras and returns the
// new facing.
func (s *Screen) ToggleFacing() (capture.Facing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return s.facing, err
	}
	s.facing = s.facing.Opposite()
	s.invalidateLocked()
	s.notifyLocked()
	return s.facing, nil
}

// ARMode reports whether AR mode is on.
func (s *Screen) ARMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arMode
}

// SetARMode opens or closes AR mode.
func (s *Screen) SetARMode(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if s.arMode == on {
		return nil
	}
	s.arMode = on
	s.invalidateLocked()
	s.notifyLocked()
	return nil
}

// Delete removes the overlay.
func (s *Screen) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if s.ctrl.Image() == "" {
		return ErrNoOverlay
	}
	s.ctrl.Clear()
	s.invalidateLocked()
	return nil
}

// Reset restores the overlay to its initial position and size.
func (s *Screen) Reset() error {
	return s.withOverlay((*gesture.Controller).ResetTransform)
}

// Increase grows the overlay by one step.
func (s *Screen) Increase() error {
	return s.withOverlay((*gesture.Controller).IncreaseSize)
}

// Decrease shrinks the overlay by one step.
func (s *Screen) Decrease() error {
	return s.withOverlay((*gesture.Controller).DecreaseSize)
}

func (s *Screen) withOverlay(fn func(*gesture.Controller)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if s.ctrl.Image() == "" {
		return ErrNoOverlay
	}
	fn(s.ctrl)
	return nil
}

// gestureReady reports whether pointer events may reach the controller.
func (s *Screen) gestureReady() bool {
	return s.permission == PermissionGranted && s.ctrl.Image() != ""
}

// Start forwards a gesture start to the overlay controller.
func (s *Screen) Start(touches ...gesture.Touch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gestureReady() {
		s.ctrl.Start(touches...)
	}
}

// Move forwards pointer movement to the overlay controller.
func (s *Screen) Move(touches []gesture.Touch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gestureReady() {
		s.ctrl.Move(touches)
	}
}

// End forwards a gesture end to the overlay controller.
func (s *Screen) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gestureReady() {
		s.ctrl.End()
	}
}

// BackgroundTap deselects the overlay.
func (s *Screen) BackgroundTap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gestureReady() {
		s.ctrl.BackgroundTap()
	}
}

// ApplyBlend stores an inference result if gen is still current.
func (s *Screen) ApplyBlend(gen uint64, tone segment.SkinTone, imageURI string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.arMode || s.ctrl.Image() == "" {
		return false
	}
	s.tone = &tone
	s.blended = imageURI
	return true
}

// ApplyBlendFailure falls back to the unblended overlay if gen is still
// current. The last skin tone estimate is kept.
func (s *Screen) ApplyBlendFailure(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.blended = ""
	return true
}

// NeedsInference reports whether AR mode can use an estimate: access is
// granted, AR is on and an overlay is loaded. It returns the overlay and the
// generation to tag the inference with.
func (s *Screen) NeedsInference() (image string, gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permission != PermissionGranted || !s.arMode || s.ctrl.Image() == "" {
		return "", s.gen, false
	}
	return s.ctrl.Image(), s.gen, true
}

// Instructions returns the hint lines shown when an overlay is loaded but
// not selected, or nil.
func (s *Screen) Instructions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instructionsLocked()
}

func (s *Screen) instructionsLocked() []string {
	if s.ctrl.Image() == "" || s.ctrl.Selected() {
		return nil
	}
	out := make([]string, len(instructions))
	copy(out, instructions)
	return out
}

// Snapshot returns a copy of the screen state.
func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Screen) snapshotLocked() Snapshot {
	snap := Snapshot{
		Permission:   s.permission,
		Facing:       s.facing,
		ARMode:       s.arMode,
		Image:        s.ctrl.Image(),
		DisplayImage: s.ctrl.Image(),
		Gesture:      s.ctrl.State(),
		Controls:     s.ctrl.Image() != "" && s.ctrl.Selected(),
		Instructions: s.instructionsLocked(),
		Generation:   s.gen,
	}
	switch s.permission {
	case PermissionUnknown:
		snap.Message = MessagePending
	case PermissionDenied:
		snap.Message = MessageDenied
	}
	if s.arMode && s.blended != "" {
		snap.DisplayImage = s.blended
	}
	if s.tone != nil {
		tone := *s.tone
		snap.SkinTone = &tone
	}
	return snap
}
