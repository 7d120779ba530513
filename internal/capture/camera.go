// Package capture provides the live camera surface using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Facing selects which physical camera feeds the preview.
type Facing string

const (
	// FacingFront is the user-facing camera. Its frames are mirrored.
	FacingFront Facing = "front"
	// FacingBack is the world-facing camera.
	FacingBack Facing = "back"
)

// Opposite returns the other facing.
func (f Facing) Opposite() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// ParseFacing converts a stored or requested value into a Facing.
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case FacingFront, FacingBack:
		return Facing(s), nil
	}
	return "", fmt.Errorf("unknown camera facing %q", s)
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	Facing() Facing
	SetFacing(f Facing) error
}

// Devices maps each facing to an OpenCV device index.
type Devices struct {
	Front int
	Back  int
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	devices Devices
	facing  Facing
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a new Camera for the given devices, starting on the
// requested facing.
func NewCamera(devices Devices, facing Facing) Camera {
	if facing != FacingBack {
		facing = FacingFront
	}
	return &cameraImpl{
		devices: devices,
		facing:  facing,
		fps:     DefaultFPS,
	}
}

func (c *cameraImpl) deviceID() int {
	if c.facing == FacingBack {
		return c.devices.Back
	}
	return c.devices.Front
}

// Open opens the device for the current facing.
// It sets the resolution to 640x480 for performance.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	return c.openLocked()
}

func (c *cameraImpl) openLocked() error {
	capture, err := gocv.OpenVideoCapture(c.deviceID())
	if err != nil {
		return err
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("camera device %d unavailable", c.deviceID())
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

func (c *cameraImpl) closeLocked() error {
	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// Facing returns the current facing.
func (c *cameraImpl) Facing() Facing {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.facing
}

// SetFacing switches to the device for f. An open camera is reopened on the
// new device; a closed camera only records the choice.
func (c *cameraImpl) SetFacing(f Facing) error {
	if _, err := ParseFacing(string(f)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if f == c.facing {
		return nil
	}

	wasRunning := c.running
	if err := c.closeLocked(); err != nil {
		return fmt.Errorf("close %s camera: %w", c.facing, err)
	}

	prev := c.facing
	c.facing = f
	if !wasRunning {
		return nil
	}
	if err := c.openLocked(); err != nil {
		// Go back to the device that was working.
		c.facing = prev
		if reopenErr := c.openLocked(); reopenErr != nil {
			return fmt.Errorf("open %s camera: %w (reopen %s: %v)", f, err, prev, reopenErr)
		}
		return fmt.Errorf("open %s camera: %w", f, err)
	}
	return nil
}
