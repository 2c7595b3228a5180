package domain

import "fmt"

// pointValues is the single source of truth for point economics. Adding
// a new engagement kind without extending this table makes PointsFor
// fail loudly on first use; TestPointsForCoversAllKinds catches the
// omission earlier.
var pointValues = map[EngagementKind]int{
	EngagementKindPost:    50,
	EngagementKindAnswer:  30,
	EngagementKindLike:    10,
	EngagementKindComment: 20,
	EngagementKindShare:   15,
}

// PointsFor returns the point value for an engagement kind. Unknown
// kinds return a descriptive error rather than a silent zero.
func PointsFor(kind EngagementKind) (int, error) {
	points, ok := pointValues[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEngagementKind, kind)
	}
	return points, nil
}

// EngagementKinds enumerates every declared engagement kind
func EngagementKinds() []EngagementKind {
	return []EngagementKind{
		EngagementKindPost,
		EngagementKindAnswer,
		EngagementKindLike,
		EngagementKindComment,
		EngagementKindShare,
	}
}

// ValidEngagementKind reports whether kind is one of the declared variants
func ValidEngagementKind(kind EngagementKind) bool {
	_, ok := pointValues[kind]
	return ok
}
