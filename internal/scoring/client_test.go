package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yonghwan1106/forest-welfare/internal/domain"
)

func testProfile() domain.UserProfile {
	return domain.UserProfile{
		ID:             "user-1",
		Nickname:       "soop",
		AgeGroup:       "30s",
		RegionSido:     "Gangwon",
		RegionSigungu:  "Chuncheon",
		Interests:      []string{"healing", "volunteer"},
		AvailableTimes: []string{"weekend_morning"},
		CurrentGrade:   domain.GradeSprout,
	}
}

func testActivities() []domain.Activity {
	return []domain.Activity{
		{ID: "act-1", Title: "Forest meditation", Category: domain.CategoryHealing, MaxParticipants: 10, Date: time.Now().Add(48 * time.Hour)},
		{ID: "act-2", Title: "Trail cleanup", Category: domain.CategoryVolunteer, MaxParticipants: 20, Date: time.Now().Add(72 * time.Hour)},
	}
}

func TestScoreActivities(t *testing.T) {
	var gotAuth, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "act-1") {
			t.Errorf("prompt missing activity snapshot: %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": `{"recommendations":[{"activity_id":"act-2","match_score":88,"reason":"weekend volunteer work nearby"}]}`},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 5*time.Second)
	scored, err := client.ScoreActivities(context.Background(), testProfile(), testActivities())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 1 || scored[0].ActivityID != "act-2" || scored[0].MatchScore != 88 {
		t.Fatalf("unexpected result: %+v", scored)
	}
	if gotAuth != "test-key" {
		t.Fatalf("expected api key header, got %q", gotAuth)
	}
	if gotVersion == "" {
		t.Fatal("expected anthropic-version header")
	}
}

func TestScoreActivitiesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 5*time.Second)
	if _, err := client.ScoreActivities(context.Background(), testProfile(), testActivities()); !errors.Is(err, domain.ErrRecommendationFailed) {
		t.Fatalf("expected recommendation failure, got %v", err)
	}
}

func TestScoreActivitiesMalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "I recommend the forest meditation session."}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 5*time.Second)
	if _, err := client.ScoreActivities(context.Background(), testProfile(), testActivities()); !errors.Is(err, domain.ErrRecommendationFailed) {
		t.Fatalf("expected recommendation failure, got %v", err)
	}
}

func TestScoreActivitiesTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, "test-key", "test-model", 50*time.Millisecond)
	start := time.Now()
	_, err := client.ScoreActivities(context.Background(), testProfile(), testActivities())
	if !errors.Is(err, domain.ErrRecommendationFailed) {
		t.Fatalf("expected recommendation failure, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, call took %s", elapsed)
	}
}
