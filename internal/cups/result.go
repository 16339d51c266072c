package cups

import (
	"fmt"
	"strings"
	"sync"
)

// NoResult is reported until every zone of a settled run is filled.
const NoResult = "-1"

// ResultStore holds the latest settled zone assignment.
type ResultStore struct {
	mu    sync.RWMutex
	slots []string
}

// NewResultStore creates an empty store with one slot per zone.
func NewResultStore(zones int) *ResultStore {
	return &ResultStore{slots: make([]string, zones)}
}

// Publish replaces the stored result wholesale.
func (r *ResultStore) Publish(slots []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(slots) != len(r.slots) {
		return fmt.Errorf("result has %d slots, want %d", len(slots), len(r.slots))
	}
	copy(r.slots, slots)
	return nil
}

// Query returns the comma-joined colours in zone order, or NoResult when any slot is empty.
func (r *ResultStore) Query() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return joinSlots(r.slots)
}

// Slots returns a copy of the stored slots.
func (r *ResultStore) Slots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.slots))
	copy(out, r.slots)
	return out
}

func joinSlots(slots []string) string {
	if len(slots) == 0 {
		return NoResult
	}
	for _, s := range slots {
		if s == "" {
			return NoResult
		}
	}
	return strings.Join(slots, ",")
}
