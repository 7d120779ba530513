// Package tray provides the system tray menu for inkcam.
package tray

import (
	"sync"

	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/screen"
	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onFlip    func()
	onARMode  func(enabled bool)
	onPreview func()
	onQuit    func()
	state     screen.Snapshot
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuFlip   *systray.MenuItem
	menuAR     *systray.MenuItem
}

// New creates a new Tray instance showing the given initial state.
func New(initial screen.Snapshot) *Tray {
	return &Tray{state: initial}
}

// OnFlip sets the callback called when the flip camera item is clicked.
func (t *Tray) OnFlip(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFlip = fn
}

// OnARMode sets the callback called with the requested AR mode when the
// AR item is clicked.
func (t *Tray) OnARMode(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onARMode = fn
}

// OnPreview sets the callback called when the open preview item is clicked.
func (t *Tray) OnPreview(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPreview = fn
}

// OnQuit sets the callback called when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// Watch applies every snapshot from updates to the menu until the channel
// is closed.
func (t *Tray) Watch(updates <-chan screen.Snapshot) {
	for snap := range updates {
		t.Update(snap)
	}
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("inkcam")
	systray.SetTooltip("inkcam tattoo preview")

	t.mu.Lock()
	state := t.state
	t.menuStatus = systray.AddMenuItem(statusTitle(state), "Camera status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuFlip = systray.AddMenuItem("Flip camera", "Switch between front and back camera")
	t.menuAR = systray.AddMenuItemCheckbox("AR mode", "Blend the tattoo toward your skin tone", state.ARMode)
	t.applyLocked(state)
	t.mu.Unlock()
	systray.AddSeparator()

	menuPreview := systray.AddMenuItem("Open preview...", "Open the preview in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit inkcam")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuFlip.ClickedCh:
				t.handle(func(t *Tray) func() { return t.onFlip })
			case <-t.menuAR.ClickedCh:
				t.handleARMode()
			case <-menuPreview.ClickedCh:
				t.handle(func(t *Tray) func() { return t.onPreview })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handle runs the callback picked under the read lock.
func (t *Tray) handle(pick func(*Tray) func()) {
	t.mu.RLock()
	callback := pick(t)
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleARMode requests the opposite of the last known AR mode. The
// checkbox itself follows the state reported back through Update.
func (t *Tray) handleARMode() {
	t.mu.RLock()
	enabled := !t.state.ARMode
	callback := t.onARMode
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.handle(func(t *Tray) func() { return t.onQuit })
	systray.Quit()
}

// Update shows a new screen state in the menu.
func (t *Tray) Update(snap screen.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = snap
	t.applyLocked(snap)
}

func (t *Tray) applyLocked(snap screen.Snapshot) {
	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(statusTitle(snap))
	if snap.Permission == screen.PermissionGranted {
		t.menuFlip.Enable()
		t.menuAR.Enable()
	} else {
		t.menuFlip.Disable()
		t.menuAR.Disable()
	}
	if snap.ARMode {
		t.menuAR.Check()
	} else {
		t.menuAR.Uncheck()
	}
}

// State returns the last state shown in the menu.
func (t *Tray) State() screen.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// statusTitle returns the text of the status line.
func statusTitle(snap screen.Snapshot) string {
	switch snap.Permission {
	case screen.PermissionGranted:
	case screen.PermissionDenied:
		return "No camera access"
	default:
		return "Waiting for camera..."
	}
	if snap.Facing == capture.FacingBack {
		return "● Back camera"
	}
	return "● Front camera"
}
