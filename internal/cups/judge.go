package cups

import "time"

// DefaultStopTime is how long the required count must hold before a result settles.
const DefaultStopTime = 5 * time.Second

// Judge decides when a tracking run has settled: the valid count must equal
// the required count without interruption for the stop time.
type Judge struct {
	required int
	stopTime time.Duration
	since    time.Time
}

// NewJudge creates a Judge. A non-positive stopTime selects DefaultStopTime.
func NewJudge(required int, stopTime time.Duration) *Judge {
	if stopTime <= 0 {
		stopTime = DefaultStopTime
	}
	return &Judge{required: required, stopTime: stopTime}
}

// Observe records the valid count of a frame seen at now and reports whether the run settled.
func (j *Judge) Observe(now time.Time, valid int) bool {
	if valid != j.required {
		j.since = time.Time{}
		return false
	}
	if j.since.IsZero() {
		j.since = now
	}
	return now.Sub(j.since) >= j.stopTime
}

// Reset drops any streak in progress.
func (j *Judge) Reset() {
	j.since = time.Time{}
}

// Streaking reports whether a qualifying streak is in progress.
func (j *Judge) Streaking() bool {
	return !j.since.IsZero()
}
