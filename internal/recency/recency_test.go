package recency

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func referenceNow(t *testing.T) time.Time {
	t.Helper()
	now, err := time.Parse(time.RFC3339, "2026-02-07T22:22:49+07:00")
	require.NoError(t, err)
	return now
}

func ptr(t time.Time) *time.Time { return &t }

func TestClassifyMissingTimestampIsStale(t *testing.T) {
	now := referenceNow(t)

	require.Equal(t, SixPlusMonths, Classify(nil, now))
	require.Equal(t, SixPlusMonths, Classify(&time.Time{}, now))
	require.Equal(t, SixPlusMonths, Classify(nil, time.Time{}))
}

func TestClassifyStringUnparseable(t *testing.T) {
	now := referenceNow(t)

	require.Equal(t, SixPlusMonths, ClassifyString("not-a-date", now))
	require.Equal(t, SixPlusMonths, ClassifyString("", now))
	require.Equal(t, SixPlusMonths, ClassifyString("2026-13-45", now))
}

func TestClassifyReferenceCases(t *testing.T) {
	now := referenceNow(t)

	cases := []struct {
		name string
		at   time.Time
		want Bucket
	}{
		{"fifteen days", now.Add(-15 * Day), Fresh},
		{"forty five days", now.Add(-45 * Day), OneToThreeMonths},
		{"one hundred twenty days", now.Add(-120 * Day), FourToSixMonths},
		{"two hundred days", now.Add(-200 * Day), SixPlusMonths},
		{"five days ahead", now.Add(5 * Day), Fresh},
		{"same instant", now, Fresh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(ptr(tc.at), now))
		})
	}
}

func TestClassifyStringSameDayISO(t *testing.T) {
	now := referenceNow(t)

	require.Equal(t, Fresh, ClassifyString("2026-02-07T11:33:13.443Z", now))
}

func TestClassifyBoundariesLandInMoreRecentBucket(t *testing.T) {
	now := referenceNow(t)

	cases := []struct {
		days  int
		exact Bucket
		after Bucket
	}{
		{30, Fresh, OneToThreeMonths},
		{90, OneToThreeMonths, FourToSixMonths},
		{180, FourToSixMonths, SixPlusMonths},
	}
	for _, tc := range cases {
		exact := now.Add(-time.Duration(tc.days) * Day)
		require.Equal(t, tc.exact, Classify(&exact, now), "exactly %d days", tc.days)

		// any partial day beyond the boundary rounds up to the next day
		over := exact.Add(-time.Second)
		require.Equal(t, tc.after, Classify(&over, now), "just over %d days", tc.days)
	}
}

func TestElapsedDaysRoundsUp(t *testing.T) {
	now := referenceNow(t)

	require.EqualValues(t, 0, ElapsedDays(now, now))
	require.EqualValues(t, 1, ElapsedDays(now.Add(-time.Minute), now))
	require.EqualValues(t, 1, ElapsedDays(now.Add(-Day), now))
	require.EqualValues(t, 2, ElapsedDays(now.Add(-Day-time.Nanosecond), now))
	require.EqualValues(t, -1, ElapsedDays(now.Add(36*time.Hour), now))
}

func TestClassifyIsDeterministicAcrossGoroutines(t *testing.T) {
	now := referenceNow(t)
	at := now.Add(-61 * Day)

	var wg sync.WaitGroup
	results := make([]Bucket, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Classify(&at, now)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.Equal(t, OneToThreeMonths, got)
	}
}

func TestParseAcceptsCommonFormats(t *testing.T) {
	inputs := map[string]time.Time{
		"2026-02-07T11:33:13.443Z":        time.Date(2026, 2, 7, 11, 33, 13, 443000000, time.UTC),
		"2026-02-07T22:22:49+07:00":       time.Date(2026, 2, 7, 15, 22, 49, 0, time.UTC),
		"2026-02-07":                      time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		"2026-02-07T08:00:00":             time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC),
		"02/07/2026":                      time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		"Feb 7, 2026":                     time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		"February 7, 2026":                time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		"7 Feb 2026":                      time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		"Sat, 07 Feb 2026 10:00:00 +0000": time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC),
	}
	for raw, want := range inputs {
		got, ok := Parse(raw)
		require.True(t, ok, "expected %q to parse", raw)
		require.True(t, want.Equal(got), "parse %q: got %s want %s", raw, got, want)
	}

	_, ok := Parse("yesterday")
	require.False(t, ok)
}

func TestBucketLabelsAndKeys(t *testing.T) {
	require.Equal(t, "Fresh", Fresh.String())
	require.Equal(t, "1-3 Months", OneToThreeMonths.String())
	require.Equal(t, "4-6 Months", FourToSixMonths.String())
	require.Equal(t, "6+ Months", SixPlusMonths.String())

	for _, b := range Buckets {
		byKey, err := ParseBucket(b.Key())
		require.NoError(t, err)
		require.Equal(t, b, byKey)

		byLabel, err := ParseBucket(b.String())
		require.NoError(t, err)
		require.Equal(t, b, byLabel)
	}

	_, err := ParseBucket("stale")
	require.Error(t, err)
	require.False(t, Bucket(9).Valid())
}

func TestBucketJSONUsesLabel(t *testing.T) {
	payload, err := json.Marshal(map[string]Bucket{"recency": FourToSixMonths})
	require.NoError(t, err)
	require.JSONEq(t, `{"recency":"4-6 Months"}`, string(payload))

	var decoded struct {
		Recency Bucket `json:"recency"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"recency":"6_plus_months"}`), &decoded))
	require.Equal(t, SixPlusMonths, decoded.Recency)
}

func TestWindowMatchesClassify(t *testing.T) {
	now := referenceNow(t)

	offsets := []time.Duration{
		-400 * Day, -181 * Day, -180 * Day, -180*Day + time.Second,
		-120 * Day, -90*Day - time.Second, -90 * Day, -45 * Day,
		-30*Day - time.Second, -30 * Day, -time.Hour, 0, 10 * Day,
	}
	for _, offset := range offsets {
		at := now.Add(offset)
		got := Classify(&at, now)
		for _, b := range Buckets {
			require.Equal(t, b == got, WindowFor(b, now).Contains(at), "offset %s bucket %s", offset, b)
		}
	}

	require.True(t, WindowFor(SixPlusMonths, now).Contains(time.Time{}))
	require.False(t, WindowFor(Fresh, now).Contains(time.Time{}))
}
