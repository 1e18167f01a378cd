package engine

import (
	"math"
	"time"
)

// Tab health scoring. A tab that keeps failing navigations, has served many
// of them, or has been open a long time is replaced by a fresh one before the
// next navigation.
//
// Scoring rules:
//   - Success: errScore -= 0.5 (min 0)
//   - Failure: errScore += 1.0
//
// Retirement triggers (any one):
//   - errScore >= 3.0
//   - navigations >= 50
//   - age >= 50 minutes
const (
	retireErrScore    = 3.0
	retireNavigations = 50
	retireAge         = 50 * time.Minute
)

type tabHealth struct {
	errScore    float64
	navigations int
	created     time.Time
	now         func() time.Time
}

func newTabHealth(now func() time.Time) *tabHealth {
	if now == nil {
		now = time.Now
	}
	return &tabHealth{created: now(), now: now}
}

func (h *tabHealth) recordSuccess() {
	h.navigations++
	h.errScore = math.Max(0, h.errScore-0.5)
}

func (h *tabHealth) recordFailure() {
	h.navigations++
	h.errScore += 1.0
}

// shouldRetire reports whether the tab should be replaced.
func (h *tabHealth) shouldRetire() bool {
	return h.errScore >= retireErrScore ||
		h.navigations >= retireNavigations ||
		h.now().Sub(h.created) >= retireAge
}
