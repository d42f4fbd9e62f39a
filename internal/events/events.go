// Package events defines the payloads published to Kafka through the outbox.
package events

import "time"

// ParticipationRegistered is emitted when a seat is reserved.
type ParticipationRegistered struct {
	ParticipationID string    `json:"participation_id"`
	UserID          string    `json:"user_id"`
	ActivityID      string    `json:"activity_id"`
	RegisteredAt    time.Time `json:"registered_at"`
}

// ParticipationCancelled is emitted when a registration is cancelled and its
// seat released.
type ParticipationCancelled struct {
	ParticipationID string    `json:"participation_id"`
	UserID          string    `json:"user_id"`
	ActivityID      string    `json:"activity_id"`
	CancelledAt     time.Time `json:"cancelled_at"`
}

// ParticipationCompleted is emitted when a participation is finalized and
// rewards are credited.
type ParticipationCompleted struct {
	ParticipationID string    `json:"participation_id"`
	UserID          string    `json:"user_id"`
	ActivityID      string    `json:"activity_id"`
	HoursEarned     float64   `json:"hours_earned"`
	PointsEarned    int       `json:"points_earned"`
	TotalHours      float64   `json:"total_hours"`
	Grade           string    `json:"grade"`
	CompletedAt     time.Time `json:"completed_at"`
}

// RecommendationGenerated is emitted once per persisted recommendation batch.
type RecommendationGenerated struct {
	UserID        string    `json:"user_id"`
	ActivityIDs   []string  `json:"activity_ids"`
	BatchSize     int       `json:"batch_size"`
	RecommendedAt time.Time `json:"recommended_at"`
}

// CompletionConfirmed is the inbound confirmation from activity organizers
// that a participant attended. The consumer turns it into a completion.
type CompletionConfirmed struct {
	ParticipationID string  `json:"participation_id"`
	HoursEarned     float64 `json:"hours_earned"`
	PointsEarned    int     `json:"points_earned"`
}
