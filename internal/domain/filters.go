package domain

import "time"

// NumericRange is an inclusive numeric interval. Nil bounds are open.
type NumericRange struct {
	Min *float64
	Max *float64
}

// Filters is a conjunctive (AND) predicate set over chunk metadata. Equality
// fields map directly to backend predicates; PublishedAfter/PublishedBefore
// become inclusive bounds on the publishedAt field; StartTime becomes
// inclusive bounds on startTime. Extra keys pass through as raw equality
// filters on the backend field of the same name.
type Filters struct {
	VideoID         string
	PlaylistID      string
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
	StartTime       *NumericRange
	Extra           map[string]string
}

// IsZero reports whether no filter condition is set.
func (f Filters) IsZero() bool {
	return f.VideoID == "" &&
		f.PlaylistID == "" &&
		f.PublishedAfter == nil &&
		f.PublishedBefore == nil &&
		f.StartTime == nil &&
		len(f.Extra) == 0
}
