package scoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yonghwan1106/forest-welfare/internal/domain"
)

type scoredPayload struct {
	Recommendations []scoredEntry `json:"recommendations"`
}

type scoredEntry struct {
	ActivityID string `json:"activity_id"`
	MatchScore int    `json:"match_score"`
	Reason     string `json:"reason"`
}

// ParseScoredActivities extracts the JSON object embedded in the model reply
// and validates every entry. Models wrap JSON in prose or code fences often
// enough that we take the span from the first '{' to the last '}' instead of
// decoding the raw text.
func ParseScoredActivities(text string) ([]domain.ScoredActivity, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", domain.ErrInvalidScoringResponse)
	}

	var payload scoredPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidScoringResponse, err)
	}
	if len(payload.Recommendations) == 0 {
		return nil, fmt.Errorf("%w: empty recommendation list", domain.ErrInvalidScoringResponse)
	}

	scored := make([]domain.ScoredActivity, 0, len(payload.Recommendations))
	for i, entry := range payload.Recommendations {
		if strings.TrimSpace(entry.ActivityID) == "" {
			return nil, fmt.Errorf("%w: entry %d missing activity_id", domain.ErrInvalidScoringResponse, i)
		}
		if entry.MatchScore < 0 || entry.MatchScore > 100 {
			return nil, fmt.Errorf("%w: entry %d match_score %d out of range", domain.ErrInvalidScoringResponse, i, entry.MatchScore)
		}
		if strings.TrimSpace(entry.Reason) == "" {
			return nil, fmt.Errorf("%w: entry %d missing reason", domain.ErrInvalidScoringResponse, i)
		}
		scored = append(scored, domain.ScoredActivity{
			ActivityID: entry.ActivityID,
			MatchScore: entry.MatchScore,
			Reason:     entry.Reason,
		})
	}
	return scored, nil
}
