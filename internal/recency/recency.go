// Package recency classifies how long ago a candidate was last active.
//
// Classification never fails: a missing or unreadable timestamp is reported as
// SixPlusMonths, the stalest bucket. Callers always pass the reference instant
// explicitly.
package recency

import (
	"fmt"
	"strings"
	"time"
)

// Bucket is a coarse recency class, ordered from most to least recent.
type Bucket int

const (
	Fresh Bucket = iota
	OneToThreeMonths
	FourToSixMonths
	SixPlusMonths
)

// Day is the calendar-independent unit used for elapsed time.
const Day = 24 * time.Hour

const (
	freshMaxDays      = 30
	oneToThreeMaxDays = 90
	fourToSixMaxDays  = 180
)

// Buckets lists every bucket in order.
var Buckets = []Bucket{Fresh, OneToThreeMonths, FourToSixMonths, SixPlusMonths}

var labels = map[Bucket]string{
	Fresh:            "Fresh",
	OneToThreeMonths: "1-3 Months",
	FourToSixMonths:  "4-6 Months",
	SixPlusMonths:    "6+ Months",
}

var keys = map[Bucket]string{
	Fresh:            "fresh",
	OneToThreeMonths: "1_3_months",
	FourToSixMonths:  "4_6_months",
	SixPlusMonths:    "6_plus_months",
}

// Classify maps a last-activity instant to its bucket relative to now.
// A nil or zero lastActivity is treated as maximally stale.
func Classify(lastActivity *time.Time, now time.Time) Bucket {
	if lastActivity == nil || lastActivity.IsZero() {
		return SixPlusMonths
	}
	return forDays(ElapsedDays(*lastActivity, now))
}

// ClassifyString parses raw and classifies the result. Unparseable input
// yields SixPlusMonths.
func ClassifyString(raw string, now time.Time) Bucket {
	ts, ok := Parse(raw)
	if !ok {
		return SixPlusMonths
	}
	return Classify(&ts, now)
}

// ElapsedDays returns ceil((now - at) / Day). Partial days count as a full day;
// instants after now produce zero or negative values.
func ElapsedDays(at, now time.Time) int64 {
	elapsed := now.Sub(at)
	days := int64(elapsed / Day)
	// integer division truncates toward zero, which is already ceil for negatives
	if elapsed > 0 && elapsed%Day != 0 {
		days++
	}
	return days
}

func forDays(days int64) Bucket {
	switch {
	case days <= freshMaxDays:
		return Fresh
	case days <= oneToThreeMaxDays:
		return OneToThreeMonths
	case days <= fourToSixMaxDays:
		return FourToSixMonths
	default:
		return SixPlusMonths
	}
}

// String returns the display label.
func (b Bucket) String() string {
	if label, ok := labels[b]; ok {
		return label
	}
	return fmt.Sprintf("Bucket(%d)", int(b))
}

// Key returns the stable identifier used in query strings and metric labels.
func (b Bucket) Key() string {
	return keys[b]
}

// Valid reports whether b is one of the defined buckets.
func (b Bucket) Valid() bool {
	_, ok := labels[b]
	return ok
}

// MarshalText encodes the bucket as its display label.
func (b Bucket) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("recency: invalid bucket %d", int(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText accepts a label or a key.
func (b *Bucket) UnmarshalText(text []byte) error {
	parsed, err := ParseBucket(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBucket resolves a display label or key, case-insensitively.
func ParseBucket(value string) (Bucket, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, b := range Buckets {
		if value == keys[b] || value == strings.ToLower(labels[b]) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("recency: unknown bucket %q", value)
}
