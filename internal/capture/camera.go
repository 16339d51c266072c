// Package capture reads frames from the camera watching the table.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Resolution requested from local capture devices. Network streams keep
// whatever frame size the camera is configured for.
const (
	DeviceWidth  = 640
	DeviceHeight = 480
)

var (
	// ErrCameraNotOpen is returned by ReadFrame before Open or after Close.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrReadFailed is returned when no frame could be read, which includes
	// the end of a stream.
	ErrReadFailed = errors.New("failed to read frame from camera")
)

// Camera is a source of BGR frames.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes it.
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// VideoCamera reads a local device or a network stream through gocv.
type VideoCamera struct {
	address string

	mu sync.Mutex
	vc *gocv.VideoCapture
}

// NewCamera returns a closed camera for address. An address made of digits
// is a local device index; anything else, such as an MJPEG URL, is opened as
// a stream.
func NewCamera(address string) Camera {
	return &VideoCamera{address: strings.TrimSpace(address)}
}

// Address returns the device index or stream URL.
func (c *VideoCamera) Address() string {
	return c.address
}

// Open connects to the source. Opening an open camera is a no-op.
func (c *VideoCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc != nil {
		return nil
	}

	vc, err := openSource(c.address)
	if err != nil {
		return fmt.Errorf("open camera %q: %w", c.address, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open camera %q: source unavailable", c.address)
	}
	c.vc = vc
	return nil
}

func openSource(address string) (*gocv.VideoCapture, error) {
	index, isDevice := deviceIndex(address)
	if !isDevice {
		return gocv.VideoCaptureFile(address)
	}

	vc, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, err
	}
	vc.Set(gocv.VideoCaptureFrameWidth, DeviceWidth)
	vc.Set(gocv.VideoCaptureFrameHeight, DeviceHeight)
	return vc, nil
}

// deviceIndex reports whether address names a local device.
func deviceIndex(address string) (int, bool) {
	if address == "" || strings.TrimLeft(address, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(address)
	return n, err == nil
}

// Close releases the source. Closing a closed camera is a no-op.
func (c *VideoCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	return err
}

func (c *VideoCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil, ErrCameraNotOpen
	}

	frame := gocv.NewMat()
	if !c.vc.Read(&frame) {
		frame.Close()
		return nil, ErrReadFailed
	}
	if frame.Empty() {
		frame.Close()
		return nil, fmt.Errorf("%w: empty frame", ErrReadFailed)
	}
	return &frame, nil
}

func (c *VideoCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc != nil
}
