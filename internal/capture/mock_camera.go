package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back a fixed list of frames. Without looping it behaves
// like a stream that ended after the last frame.
type MockCamera struct {
	frames []*gocv.Mat
	loop   bool

	mu      sync.Mutex
	openErr error
	readErr error
	next    int
	open    bool
	served  int
	opened  int
}

// NewMockCamera plays frames, which remain owned by the caller.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{frames: frames, loop: loop}
}

// FailOpen makes later calls to Open return err.
func (c *MockCamera) FailOpen(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

// FailRead makes later calls to ReadFrame return err. nil resumes playback.
func (c *MockCamera) FailRead(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
}

// Open rewinds the playback.
func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	c.next = 0
	c.opened++
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	return nil
}

// ReadFrame returns a copy of the next frame.
func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.open:
		return nil, ErrCameraNotOpen
	case c.readErr != nil:
		return nil, c.readErr
	case len(c.frames) == 0:
		return nil, ErrReadFailed
	}

	if c.next == len(c.frames) {
		if !c.loop {
			return nil, ErrReadFailed
		}
		c.next = 0
	}
	frame := c.frames[c.next].Clone()
	c.next++
	c.served++
	return &frame, nil
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Reads returns the number of frames served.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.served
}

// Opens returns the number of successful Open calls.
func (c *MockCamera) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}
