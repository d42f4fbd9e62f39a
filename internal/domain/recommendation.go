package domain

import "time"

// Recommendation is one scored (user, activity) pairing produced by the
// scoring collaborator. Rows are append-only snapshots; new batches never
// mutate prior ones.
type Recommendation struct {
	ID            string
	UserID        string
	ActivityID    string
	MatchScore    int
	Reason        string
	RecommendedAt time.Time
	Clicked       bool
	Applied       bool
}

// ScoredActivity is a single entry from the scoring collaborator's response.
type ScoredActivity struct {
	ActivityID string
	MatchScore int
	Reason     string
}
