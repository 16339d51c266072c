package cups

import (
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// ContribTrackers builds OpenCV contrib trackers: KCF as Primary and CSRT as Fallback.
type ContribTrackers struct{}

// NewTracker implements TrackerFactory.
func (ContribTrackers) NewTracker(alg Algorithm) gocv.Tracker {
	if alg == Fallback {
		return contrib.NewTrackerCSRT()
	}
	return contrib.NewTrackerKCF()
}
