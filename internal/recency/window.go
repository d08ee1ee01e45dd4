package recency

import "time"

// Window is the range of last-activity instants that Classify maps to a
// bucket. A zero bound is open.
type Window struct {
	NotBefore      time.Time // inclusive lower bound
	Before         time.Time // exclusive upper bound
	IncludeUnknown bool      // rows with no last-activity instant
}

// WindowFor returns the window for b relative to now, such that
//
//	Classify(&t, now) == b  <=>  w.Contains(t)
func WindowFor(b Bucket, now time.Time) Window {
	fresh := now.Add(-freshMaxDays * Day)
	oneToThree := now.Add(-oneToThreeMaxDays * Day)
	fourToSix := now.Add(-fourToSixMaxDays * Day)

	switch b {
	case Fresh:
		return Window{NotBefore: fresh}
	case OneToThreeMonths:
		return Window{NotBefore: oneToThree, Before: fresh}
	case FourToSixMonths:
		return Window{NotBefore: fourToSix, Before: oneToThree}
	default:
		return Window{Before: fourToSix, IncludeUnknown: true}
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return w.IncludeUnknown
	}
	if !w.NotBefore.IsZero() && t.Before(w.NotBefore) {
		return false
	}
	if !w.Before.IsZero() && !t.Before(w.Before) {
		return false
	}
	return true
}
