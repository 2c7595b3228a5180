package domain

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestFormattedDelta(t *testing.T) {
	tests := []struct {
		name     string
		delta    *int
		expected string
	}{
		{"first snapshot", nil, "="},
		{"unchanged", intPtr(0), "="},
		{"improved", intPtr(2), "+2"},
		{"dropped", intPtr(-1), "-1"},
		{"big jump", intPtr(15), "+15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &RankingEntry{Delta: tt.delta}
			if got := entry.FormattedDelta(); got != tt.expected {
				t.Errorf("FormattedDelta() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestImproved(t *testing.T) {
	if (&RankingEntry{Delta: nil}).Improved() {
		t.Error("first snapshot must not count as improved")
	}
	if (&RankingEntry{Delta: intPtr(-2)}).Improved() {
		t.Error("negative delta must not count as improved")
	}
	if !(&RankingEntry{Delta: intPtr(3)}).Improved() {
		t.Error("positive delta must count as improved")
	}
}

func TestReferenceDate(t *testing.T) {
	// Wednesday 2026-08-26 15:04:05 UTC
	at := time.Date(2026, time.August, 26, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		period   RankingPeriod
		expected time.Time
	}{
		{RankingPeriodDaily, time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)},
		{RankingPeriodWeekly, time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)},
		{RankingPeriodMonthly, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)},
		{RankingPeriodYearly, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			if got := tt.period.ReferenceDate(at); !got.Equal(tt.expected) {
				t.Errorf("ReferenceDate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReferenceDateWeeklyOnSunday(t *testing.T) {
	// Sunday belongs to the week starting the previous Monday
	sunday := time.Date(2026, time.August, 30, 10, 0, 0, 0, time.UTC)
	want := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	if got := RankingPeriodWeekly.ReferenceDate(sunday); !got.Equal(want) {
		t.Errorf("ReferenceDate(sunday) = %v, want %v", got, want)
	}
}

func TestValidRankingPeriod(t *testing.T) {
	for _, p := range RankingPeriods() {
		if !ValidRankingPeriod(p) {
			t.Errorf("ValidRankingPeriod(%q) = false, want true", p)
		}
	}
	if ValidRankingPeriod("quarterly") {
		t.Error("ValidRankingPeriod(quarterly) = true, want false")
	}
}
