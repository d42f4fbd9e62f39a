package domain

import "time"

// ParticipationStatus tracks a user's registration lifecycle for one activity.
type ParticipationStatus string

const (
	ParticipationStatusRegistered ParticipationStatus = "registered"
	ParticipationStatusCompleted  ParticipationStatus = "completed"
	ParticipationStatusCancelled  ParticipationStatus = "cancelled"
)

// Participation links a user to an activity. At most one registered row may
// exist per (user, activity) pair; re-registration after cancellation creates
// a fresh row.
type Participation struct {
	ID           string
	UserID       string
	ActivityID   string
	Status       ParticipationStatus
	RegisteredAt time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	HoursEarned  *float64
	PointsEarned *int
	Review       *string
	Rating       *int
}

// ParticipationSummary aggregates a user's participation history for the dashboard.
type ParticipationSummary struct {
	Registered  int
	Completed   int
	Cancelled   int
	TotalHours  float64
	TotalPoints int
	LastAt      *time.Time
}

// Cursor models the keyset pagination token for participation listings.
type Cursor struct {
	RegisteredAt time.Time
	ID           string
}
