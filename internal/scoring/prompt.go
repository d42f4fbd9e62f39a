package scoring

import (
	"fmt"
	"strings"

	"github.com/yonghwan1106/forest-welfare/internal/domain"
)

// Prompt bounds: the request must stay comfortably inside the model's
// context window no matter how many activities are open.
const (
	maxPromptActivities = 40
	maxDescriptionRunes = 160
	maxRecommendedCount = 5
)

// BuildPrompt renders the profile and open-activity snapshot into the scoring
// instruction. At most maxPromptActivities are included and descriptions are
// truncated, so prompt size stays bounded.
func BuildPrompt(profile domain.UserProfile, open []domain.Activity) string {
	if len(open) > maxPromptActivities {
		open = open[:maxPromptActivities]
	}

	var b strings.Builder
	b.WriteString("You rank forest-welfare activities for a volunteer platform.\n\n")
	b.WriteString("User profile:\n")
	fmt.Fprintf(&b, "- nickname: %s\n", profile.Nickname)
	fmt.Fprintf(&b, "- age group: %s\n", profile.AgeGroup)
	fmt.Fprintf(&b, "- region: %s %s\n", profile.RegionSido, profile.RegionSigungu)
	fmt.Fprintf(&b, "- interests: %s\n", strings.Join(profile.Interests, ", "))
	fmt.Fprintf(&b, "- available times: %s\n", strings.Join(profile.AvailableTimes, ", "))
	fmt.Fprintf(&b, "- participation frequency: %s\n", profile.ParticipationFrequency)
	fmt.Fprintf(&b, "- experience level: %s\n", profile.ExperienceLevel)
	fmt.Fprintf(&b, "- current grade: %s\n\n", profile.CurrentGrade)

	b.WriteString("Open activities:\n")
	for _, a := range open {
		fmt.Fprintf(&b, "- id: %s | title: %s | category: %s | region: %s %s | date: %s %s-%s | difficulty: %s | seats left: %d | description: %s\n",
			a.ID, a.Title, a.Category, a.LocationSido, a.LocationSigungu,
			a.Date.Format("2006-01-02"), a.StartTime, a.EndTime,
			a.Difficulty, a.SeatsLeft(), truncate(a.Description, maxDescriptionRunes))
	}

	fmt.Fprintf(&b, "\nPick the %d best matches for this user. Respond with JSON only, no prose, in exactly this shape:\n", maxRecommendedCount)
	b.WriteString(`{"recommendations":[{"activity_id":"...","match_score":85,"reason":"one short sentence"}]}`)
	b.WriteString("\nmatch_score is an integer from 0 to 100. activity_id must be one of the ids above.")
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
