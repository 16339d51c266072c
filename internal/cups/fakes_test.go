package cups

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/vision"
	"github.com/ayusman/boardsight/internal/zone"
)

// testLayout returns the default three-zone layout.
func testLayout(t *testing.T) zone.Layout {
	t.Helper()

	layout, err := zone.NewLayout([]image.Rectangle{
		image.Rect(100, 215, 200, 315),
		image.Rect(250, 215, 350, 315),
		image.Rect(400, 215, 500, 315),
	})
	if err != nil {
		t.Fatalf("NewLayout() error = %v", err)
	}
	return layout
}

// cupBox returns an 80x80 box centred in zone i of testLayout.
func cupBox(i int) image.Rectangle {
	x := 110 + 150*i
	return image.Rect(x, 225, x+80, 305)
}

var frameBounds = image.Rect(0, 0, 640, 480)

// updateFunc scripts a fake tracker. call counts Update calls since Init.
type updateFunc func(alg Algorithm, seed image.Rectangle, call int) (image.Rectangle, bool)

// staticUpdate keeps reporting the seed box.
func staticUpdate(_ Algorithm, seed image.Rectangle, _ int) (image.Rectangle, bool) {
	return seed, true
}

type fakeTracker struct {
	factory *fakeTrackers
	alg     Algorithm
	seed    image.Rectangle
	calls   int
	closed  bool
}

func (t *fakeTracker) Init(_ gocv.Mat, box image.Rectangle) bool {
	t.seed = box
	t.calls = 0
	return !t.factory.failInit
}

func (t *fakeTracker) Update(_ gocv.Mat) (image.Rectangle, bool) {
	t.calls++
	return t.factory.update(t.alg, t.seed, t.calls)
}

func (t *fakeTracker) Close() error {
	t.closed = true
	return nil
}

// fakeTrackers is a TrackerFactory recording every tracker it creates.
type fakeTrackers struct {
	update   updateFunc
	failInit bool

	mu      sync.Mutex
	created []*fakeTracker
}

func newFakeTrackers(update updateFunc) *fakeTrackers {
	return &fakeTrackers{update: update}
}

func (f *fakeTrackers) NewTracker(alg Algorithm) gocv.Tracker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTracker{factory: f, alg: alg}
	f.created = append(f.created, t)
	return t
}

func (f *fakeTrackers) algorithms() []Algorithm {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Algorithm, len(f.created))
	for i, t := range f.created {
		out[i] = t.alg
	}
	return out
}

// scriptedSegmenter returns the next scripted blob list on each call and
// repeats the last one once the script is exhausted.
type scriptedSegmenter struct {
	mu     sync.Mutex
	frames [][]vision.Blob
	i      int
}

func (s *scriptedSegmenter) Segment(_ gocv.Mat) []vision.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil
	}
	if s.i >= len(s.frames) {
		return s.frames[len(s.frames)-1]
	}
	b := s.frames[s.i]
	s.i++
	return b
}

func blob(color string, box image.Rectangle) vision.Blob {
	return vision.Blob{
		Box:    box,
		Area:   float64(box.Dx() * box.Dy()),
		Aspect: float64(box.Dx()) / float64(box.Dy()),
		Color:  color,
	}
}

// fakeClock is advanced explicitly by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// eventLog is an EventSink collecting every event.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Publish(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

// memRecorder is a Recorder keeping the latest record per run.
type memRecorder struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMemRecorder() *memRecorder {
	return &memRecorder{records: make(map[string]Record)}
}

func (r *memRecorder) RecordStart(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *memRecorder) RecordFinish(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *memRecorder) get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}
