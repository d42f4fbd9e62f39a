package domain

import "time"

// Grade is the progression tier derived from cumulative participation hours.
type Grade string

const (
	GradeSprout       Grade = "sprout"
	GradeTree         Grade = "tree"
	GradeForestKeeper Grade = "forest_keeper"
)

// GradeTable holds the hour thresholds separating grades. The zero value is
// not useful; use DefaultGradeTable unless a deployment overrides it.
type GradeTable struct {
	// TreeMinHours is the inclusive lower bound of the tree grade.
	TreeMinHours float64
	// ForestKeeperMinHours is the inclusive lower bound of the forest_keeper grade.
	ForestKeeperMinHours float64
}

// DefaultGradeTable maps hours to grades as sprout [0,10), tree [10,30),
// forest_keeper [30,inf).
var DefaultGradeTable = GradeTable{
	TreeMinHours:         10,
	ForestKeeperMinHours: 30,
}

// Evaluate maps a cumulative hour total to a grade. Total and monotonic:
// every non-negative input yields exactly one grade, and more hours never
// yield a lower tier.
func (t GradeTable) Evaluate(totalHours float64) Grade {
	switch {
	case totalHours >= t.ForestKeeperMinHours:
		return GradeForestKeeper
	case totalHours >= t.TreeMinHours:
		return GradeTree
	default:
		return GradeSprout
	}
}

// EvaluateGrade evaluates against DefaultGradeTable.
func EvaluateGrade(totalHours float64) Grade {
	return DefaultGradeTable.Evaluate(totalHours)
}

// UserProfile carries the matching attributes sent to the scoring collaborator
// plus the cumulative reward projection. CurrentGrade is a cached projection
// of TotalHours; the completion transaction is the only writer of both.
type UserProfile struct {
	ID                     string
	Nickname               string
	AgeGroup               string
	RegionSido             string
	RegionSigungu          string
	Interests              []string
	AvailableTimes         []string
	ParticipationFrequency string
	ExperienceLevel        string
	TotalPoints            int
	TotalHours             float64
	CurrentGrade           Grade
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Complete reports whether onboarding produced a usable profile.
func (p UserProfile) Complete() bool {
	return p.Nickname != ""
}
