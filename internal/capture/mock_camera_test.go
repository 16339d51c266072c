package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

// solidFrames returns n small frames whose first pixel encodes their index.
func solidFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()

	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(i), 0, 0, 0), 4, 4, gocv.MatTypeCV8UC3)
		frames[i] = &m
		t.Cleanup(func() { m.Close() })
	}
	return frames
}

// order reads n frames and returns the index stamped in each.
func order(t *testing.T, cam Camera, n int) []uint8 {
	t.Helper()

	var got []uint8
	for range n {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() after %v error = %v", got, err)
		}
		got = append(got, f.GetUCharAt(0, 0))
		f.Close()
	}
	return got
}

func TestMockCamera_EndsWithoutLoop(t *testing.T) {
	cam := NewMockCamera(solidFrames(t, 2), false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Fatalf("ReadFrame() before Open error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if got := order(t, cam, 2); got[0] != 0 || got[1] != 1 {
		t.Errorf("frames = %v, want [0 1]", got)
	}
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrReadFailed) {
		t.Errorf("ReadFrame() past the end error = %v, want ErrReadFailed", err)
	}

	// Reopening rewinds.
	cam.Close()
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := order(t, cam, 1); got[0] != 0 {
		t.Errorf("first frame after reopen = %d, want 0", got[0])
	}
	if cam.Reads() != 3 || cam.Opens() != 2 {
		t.Errorf("Reads() = %d, Opens() = %d, want 3 and 2", cam.Reads(), cam.Opens())
	}
}

func TestMockCamera_Loops(t *testing.T) {
	cam := NewMockCamera(solidFrames(t, 2), true)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	got := order(t, cam, 5)
	for i, v := range got {
		if int(v) != i%2 {
			t.Fatalf("frames = %v, want alternating 0 and 1", got)
		}
	}
}

func TestMockCamera_Failures(t *testing.T) {
	noDevice := errors.New("no device")
	dropped := errors.New("stream dropped")

	cam := NewMockCamera(solidFrames(t, 1), true)
	cam.FailOpen(noDevice)
	if err := cam.Open(); !errors.Is(err, noDevice) {
		t.Fatalf("Open() error = %v, want %v", err, noDevice)
	}
	if cam.IsOpen() || cam.Opens() != 0 {
		t.Fatal("camera must stay closed after a failed open")
	}

	cam.FailOpen(nil)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cam.FailRead(dropped)
	if _, err := cam.ReadFrame(); !errors.Is(err, dropped) {
		t.Errorf("ReadFrame() error = %v, want %v", err, dropped)
	}
	cam.FailRead(nil)
	if _, err := cam.ReadFrame(); err != nil {
		t.Errorf("ReadFrame() after recovery error = %v", err)
	}
}

func TestMockCamera_Empty(t *testing.T) {
	cam := NewMockCamera(nil, true)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrReadFailed) {
		t.Errorf("ReadFrame() error = %v, want ErrReadFailed", err)
	}
}
