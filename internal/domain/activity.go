package domain

import "time"

// Category classifies a forest-welfare activity.
type Category string

const (
	CategoryHealing   Category = "healing"
	CategoryEducation Category = "education"
	CategoryVolunteer Category = "volunteer"
)

// ActivityStatus tracks the lifecycle of an activity.
type ActivityStatus string

const (
	ActivityStatusOpen      ActivityStatus = "open"
	ActivityStatusClosed    ActivityStatus = "closed"
	ActivityStatusCompleted ActivityStatus = "completed"
)

// Activity is a scheduled, capacity-limited forest-welfare event stored in PostgreSQL.
// current_participants is mutated exclusively through the registration and
// cancellation transactions; it must stay within [0, MaxParticipants].
type Activity struct {
	ID                  string
	Title               string
	Description         string
	Category            Category
	LocationSido        string
	LocationSigungu     string
	LocationDetail      string
	Date                time.Time
	StartTime           string
	EndTime             string
	Difficulty          string
	MaxParticipants     int
	CurrentParticipants int
	PointsReward        int
	HoursReward         float64
	Status              ActivityStatus
	CreatedAt           time.Time
}

// SeatsLeft returns the number of open seats.
func (a Activity) SeatsLeft() int {
	left := a.MaxParticipants - a.CurrentParticipants
	if left < 0 {
		return 0
	}
	return left
}
