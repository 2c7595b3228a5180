package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RankingPeriod represents the time window a ranking snapshot covers
type RankingPeriod string

const (
	RankingPeriodDaily   RankingPeriod = "daily"
	RankingPeriodWeekly  RankingPeriod = "weekly"
	RankingPeriodMonthly RankingPeriod = "monthly"
	RankingPeriodYearly  RankingPeriod = "yearly"
	RankingPeriodAllTime RankingPeriod = "alltime"
)

// RankingPeriods enumerates every declared ranking period
func RankingPeriods() []RankingPeriod {
	return []RankingPeriod{
		RankingPeriodDaily,
		RankingPeriodWeekly,
		RankingPeriodMonthly,
		RankingPeriodYearly,
		RankingPeriodAllTime,
	}
}

// ValidRankingPeriod reports whether period is one of the declared variants
func ValidRankingPeriod(period RankingPeriod) bool {
	for _, p := range RankingPeriods() {
		if p == period {
			return true
		}
	}
	return false
}

// ReferenceDate normalizes t to the period instance it falls in:
// daily snapshots reference the day, weekly the Monday of the week,
// monthly the first of the month and yearly January 1st. Alltime
// snapshots reference the day they cover, so cumulative standings can
// be snapshotted once per day and still chain deltas.
func (p RankingPeriod) ReferenceDate(t time.Time) time.Time {
	t = t.UTC()
	switch p {
	case RankingPeriodDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case RankingPeriodWeekly:
		weekday := t.Weekday()
		if weekday == time.Sunday {
			weekday = 7
		}
		start := t.AddDate(0, 0, -int(weekday)+int(time.Monday))
		return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	case RankingPeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case RankingPeriodYearly:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// RankingEntry is an immutable, period-scoped record of a user's
// computed position and point total. Created only by the ranking
// calculator; recomputations produce new snapshots, never edits.
//
// Delta is the signed position change versus the immediately preceding
// snapshot for the same user and period: positive means the user moved
// toward position 1. Nil when no prior snapshot exists.
type RankingEntry struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Period        RankingPeriod `json:"period"`
	ReferenceDate time.Time     `json:"reference_date"`
	Position      int           `json:"position"`
	Points        int           `json:"points"`
	Delta         *int          `json:"delta,omitempty"`
	ComputedAt    time.Time     `json:"computed_at"`
}

// NewRankingEntry creates a snapshot entry with a generated identity
func NewRankingEntry(userID string, period RankingPeriod, referenceDate time.Time, position, points int, delta *int) *RankingEntry {
	return &RankingEntry{
		ID:            uuid.New().String(),
		UserID:        userID,
		Period:        period,
		ReferenceDate: referenceDate,
		Position:      position,
		Points:        points,
		Delta:         delta,
		ComputedAt:    time.Now().UTC(),
	}
}

// FormattedDelta renders the position change for display: "+2", "-1",
// or "=" for unchanged or first-ever snapshots.
func (r *RankingEntry) FormattedDelta() string {
	if r.Delta == nil || *r.Delta == 0 {
		return "="
	}
	if *r.Delta > 0 {
		return fmt.Sprintf("+%d", *r.Delta)
	}
	return fmt.Sprintf("%d", *r.Delta)
}

// Improved reports whether the user moved up since the previous snapshot
func (r *RankingEntry) Improved() bool {
	return r.Delta != nil && *r.Delta > 0
}
