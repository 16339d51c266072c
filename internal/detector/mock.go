package detector

import (
	"slices"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns canned detections so games can be tested without a
// model file.
type MockDetector struct {
	mu         sync.Mutex
	canned     []Detection
	failure    error
	thresholds []float32
	closed     bool
}

// NewMockDetector returns a detector that finds nothing.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections replaces the canned detections.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.mu.Lock()
	m.canned = slices.Clone(dets)
	m.mu.Unlock()
}

// SetError makes Detect fail with err until it is reset to nil.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// Detect filters the canned detections by minConfidence like a real model.
func (m *MockDetector) Detect(_ gocv.Mat, minConfidence float32) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.thresholds = append(m.thresholds, minConfidence)
	if m.failure != nil {
		return nil, m.failure
	}
	kept := slices.DeleteFunc(slices.Clone(m.canned), func(d Detection) bool {
		return d.Confidence < minConfidence
	})
	if len(kept) == 0 {
		return nil, nil
	}
	return kept, nil
}

// Calls returns how often Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.thresholds)
}

// Thresholds returns the minConfidence passed to each Detect call.
func (m *MockDetector) Thresholds() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.thresholds)
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockDetector) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
