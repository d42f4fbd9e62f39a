package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeRepo mimics the store's transactional semantics in memory: seat claims
// are atomic and a duplicate registration never consumes a seat.
type fakeRepo struct {
	mu sync.Mutex

	activities map[string]*Activity
	registered map[string]map[string]bool // userID -> activityID -> active
	profiles   map[string]*UserProfile
	recs       []Recommendation

	lastTopN      int
	lastNotBefore time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		activities: make(map[string]*Activity),
		registered: make(map[string]map[string]bool),
		profiles:   make(map[string]*UserProfile),
	}
}

func (f *fakeRepo) addActivity(a Activity) {
	f.activities[a.ID] = &a
}

func (f *fakeRepo) GetActivity(_ context.Context, id string) (*Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[id]
	if !ok {
		return nil, nil
	}
	dup := *a
	return &dup, nil
}

func (f *fakeRepo) ListOpenActivities(context.Context) ([]Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Activity
	for _, a := range f.activities {
		if a.Status == ActivityStatusOpen {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) RegisterParticipation(_ context.Context, p Participation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.activities[p.ActivityID]
	if !ok {
		return ErrActivityNotFound
	}
	if a.Status != ActivityStatusOpen {
		return ErrActivityClosed
	}
	if a.CurrentParticipants >= a.MaxParticipants {
		return ErrActivityFull
	}
	if f.registered[p.UserID][p.ActivityID] {
		return ErrAlreadyRegistered
	}

	a.CurrentParticipants++
	if f.registered[p.UserID] == nil {
		f.registered[p.UserID] = make(map[string]bool)
	}
	f.registered[p.UserID][p.ActivityID] = true
	return nil
}

func (f *fakeRepo) CancelParticipation(context.Context, string, string, time.Time) (*Participation, error) {
	return nil, ErrParticipationNotFound
}

func (f *fakeRepo) CompleteParticipation(context.Context, string, float64, int, GradeTable, time.Time) (*Participation, *UserProfile, error) {
	return nil, nil, ErrParticipationNotFound
}

func (f *fakeRepo) GetParticipation(context.Context, string) (*Participation, error) {
	return nil, nil
}

func (f *fakeRepo) ListParticipations(context.Context, string, *Cursor, int) ([]Participation, *Cursor, error) {
	return nil, nil, nil
}

func (f *fakeRepo) SummarizeParticipations(context.Context, string) (ParticipationSummary, error) {
	return ParticipationSummary{}, nil
}

func (f *fakeRepo) SubmitReview(context.Context, string, string, int, string) (*Participation, error) {
	return nil, ErrParticipationNotFound
}

func (f *fakeRepo) GetProfile(_ context.Context, userID string) (*UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	dup := *p
	return &dup, nil
}

func (f *fakeRepo) UpsertProfile(_ context.Context, profile UserProfile) (*UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.ID] = &profile
	return &profile, nil
}

func (f *fakeRepo) InsertRecommendations(_ context.Context, batch []Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, batch...)
	return nil
}

func (f *fakeRepo) TopRecommendations(_ context.Context, userID string, n int, notBefore time.Time) ([]Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTopN = n
	f.lastNotBefore = notBefore

	var out []Recommendation
	for _, r := range f.recs {
		if r.UserID == userID && !r.RecommendedAt.Before(notBefore) {
			out = append(out, r)
		}
	}
	// score desc, recency desc
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].MatchScore > out[i].MatchScore ||
				(out[j].MatchScore == out[i].MatchScore && out[j].RecommendedAt.After(out[i].RecommendedAt)) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeRepo) SetRecommendationEngagement(context.Context, string, bool, bool) error {
	return nil
}

type scorerFunc func(context.Context, UserProfile, []Activity) ([]ScoredActivity, error)

func (fn scorerFunc) ScoreActivities(ctx context.Context, p UserProfile, open []Activity) ([]ScoredActivity, error) {
	return fn(ctx, p, open)
}

func openActivity(id string, max, current int) Activity {
	return Activity{
		ID:                  id,
		Title:               "Forest walk " + id,
		Category:            CategoryHealing,
		Date:                time.Now().Add(72 * time.Hour),
		MaxParticipants:     max,
		CurrentParticipants: current,
		Status:              ActivityStatusOpen,
	}
}

func noScorer(t *testing.T) ActivityScorer {
	return scorerFunc(func(context.Context, UserProfile, []Activity) ([]ScoredActivity, error) {
		t.Fatal("scorer should not be called")
		return nil, nil
	})
}

func TestRegisterConcurrentSeatsNeverOvercommitted(t *testing.T) {
	repo := newFakeRepo()
	repo.addActivity(openActivity("act-1", 3, 0))
	svc := NewService(repo, noScorer(t))

	const callers = 10
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(context.Background(), fmt.Sprintf("user-%d", i), "act-1")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, full int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrActivityFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if ok != 3 || full != 7 {
		t.Fatalf("expected exactly 3 registrations and 7 rejections, got %d/%d", ok, full)
	}
	if got := repo.activities["act-1"].CurrentParticipants; got != 3 {
		t.Fatalf("counter overcommitted: %d", got)
	}
}

func TestRegisterDuplicateDoesNotConsumeSeat(t *testing.T) {
	repo := newFakeRepo()
	repo.addActivity(openActivity("act-1", 5, 0))
	svc := NewService(repo, noScorer(t))

	if _, err := svc.Register(context.Background(), "user-1", "act-1"); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), "user-1", "act-1"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if got := repo.activities["act-1"].CurrentParticipants; got != 1 {
		t.Fatalf("duplicate registration changed the counter: %d", got)
	}
}

func TestRegisterClosedAndMissing(t *testing.T) {
	repo := newFakeRepo()
	closed := openActivity("act-closed", 5, 0)
	closed.Status = ActivityStatusClosed
	repo.addActivity(closed)
	svc := NewService(repo, noScorer(t))

	if _, err := svc.Register(context.Background(), "user-1", "act-closed"); !errors.Is(err, ErrActivityClosed) {
		t.Fatalf("expected ErrActivityClosed, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "user-1", "nope"); !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("expected ErrActivityNotFound, got %v", err)
	}
}

func TestGenerateRecommendationsEmptySnapshotSkipsScorer(t *testing.T) {
	repo := newFakeRepo()
	repo.profiles["user-1"] = &UserProfile{ID: "user-1", Nickname: "soop"}
	svc := NewService(repo, noScorer(t))

	batch, err := svc.GenerateRecommendations(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty batch, got %d", len(batch))
	}
}

func TestGenerateRecommendationsRejectsUnknownActivity(t *testing.T) {
	repo := newFakeRepo()
	repo.profiles["user-1"] = &UserProfile{ID: "user-1", Nickname: "soop"}
	repo.addActivity(openActivity("act-1", 5, 0))

	scorer := scorerFunc(func(context.Context, UserProfile, []Activity) ([]ScoredActivity, error) {
		return []ScoredActivity{{ActivityID: "hallucinated", MatchScore: 99, Reason: "looks great"}}, nil
	})
	svc := NewService(repo, scorer)

	_, err := svc.GenerateRecommendations(context.Background(), "user-1")
	if !errors.Is(err, ErrRecommendationFailed) {
		t.Fatalf("expected recommendation failure, got %v", err)
	}
	if len(repo.recs) != 0 {
		t.Fatalf("nothing should be persisted, got %d rows", len(repo.recs))
	}
}

func TestGenerateRecommendationsWrapsScorerErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.profiles["user-1"] = &UserProfile{ID: "user-1", Nickname: "soop"}
	repo.addActivity(openActivity("act-1", 5, 0))

	scorer := scorerFunc(func(context.Context, UserProfile, []Activity) ([]ScoredActivity, error) {
		return nil, errors.New("connection refused")
	})
	svc := NewService(repo, scorer)

	_, err := svc.GenerateRecommendations(context.Background(), "user-1")
	if !errors.Is(err, ErrRecommendationFailed) {
		t.Fatalf("expected error to wrap ErrRecommendationFailed, got %v", err)
	}
}

func TestGenerateRecommendationsRequiresProfile(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, noScorer(t))

	if _, err := svc.GenerateRecommendations(context.Background(), "user-1"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	repo.profiles["user-2"] = &UserProfile{ID: "user-2"}
	if _, err := svc.GenerateRecommendations(context.Background(), "user-2"); !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("expected ErrProfileIncomplete, got %v", err)
	}
}

func TestTopRecommendationsOrderingAndTTL(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	repo.profiles["user-1"] = &UserProfile{ID: "user-1", Nickname: "soop"}
	repo.addActivity(openActivity("act-1", 5, 0))
	repo.addActivity(openActivity("act-2", 5, 0))
	repo.addActivity(openActivity("act-3", 5, 0))

	repo.recs = []Recommendation{
		{ID: "r-old", UserID: "user-1", ActivityID: "act-1", MatchScore: 99, RecommendedAt: now.Add(-30 * 24 * time.Hour)},
		{ID: "r-1", UserID: "user-1", ActivityID: "act-1", MatchScore: 80, RecommendedAt: now.Add(-time.Hour)},
		{ID: "r-2", UserID: "user-1", ActivityID: "act-2", MatchScore: 92, RecommendedAt: now.Add(-2 * time.Hour)},
		{ID: "r-3", UserID: "user-1", ActivityID: "act-3", MatchScore: 80, RecommendedAt: now.Add(-time.Minute)},
	}

	svc := NewService(repo, noScorer(t),
		WithRecommendationTTL(7*24*time.Hour),
		WithClock(func() time.Time { return now }),
	)

	recs, err := svc.TopRecommendations(context.Background(), "user-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	if recs[0].ID != "r-2" {
		t.Fatalf("expected highest score first, got %s", recs[0].ID)
	}
	if recs[1].ID != "r-3" || recs[2].ID != "r-1" {
		t.Fatalf("expected score ties broken by recency, got %s, %s", recs[1].ID, recs[2].ID)
	}
	wantCutoff := now.Add(-7 * 24 * time.Hour)
	if !repo.lastNotBefore.Equal(wantCutoff) {
		t.Fatalf("expected TTL cutoff %v, got %v", wantCutoff, repo.lastNotBefore)
	}
}

func TestGenerateThenTopRoundTrip(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	repo.profiles["user-1"] = &UserProfile{ID: "user-1", Nickname: "soop", Interests: []string{"healing"}}
	repo.addActivity(openActivity("act-1", 5, 0))
	repo.addActivity(openActivity("act-2", 5, 0))

	scorer := scorerFunc(func(_ context.Context, _ UserProfile, open []Activity) ([]ScoredActivity, error) {
		if len(open) != 2 {
			t.Fatalf("expected 2 open activities in snapshot, got %d", len(open))
		}
		return []ScoredActivity{
			{ActivityID: "act-2", MatchScore: 95, Reason: "matches interests"},
			{ActivityID: "act-1", MatchScore: 70, Reason: "nearby"},
		}, nil
	})
	svc := NewService(repo, scorer, WithClock(func() time.Time { return now }))

	batch, err := svc.GenerateRecommendations(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(batch))
	}

	recs, err := svc.TopRecommendations(context.Background(), "user-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[0].ActivityID != "act-2" || recs[1].ActivityID != "act-1" {
		t.Fatalf("unexpected round-trip result: %+v", recs)
	}
}

type fakeCache struct {
	entries     map[string][]Recommendation
	invalidated int
}

func (c *fakeCache) Get(_ context.Context, userID string, n int) ([]Recommendation, bool, error) {
	recs, ok := c.entries[userID]
	if !ok || len(recs) < n {
		return nil, false, nil
	}
	return recs[:n], true, nil
}

func (c *fakeCache) Set(_ context.Context, userID string, recs []Recommendation) error {
	c.entries[userID] = recs
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID string) error {
	c.invalidated++
	delete(c.entries, userID)
	return nil
}

func TestGenerateRecommendationsInvalidatesCache(t *testing.T) {
	repo := newFakeRepo()
	repo.profiles["user-1"] = &UserProfile{ID: "user-1", Nickname: "soop"}
	repo.addActivity(openActivity("act-1", 5, 0))

	cache := &fakeCache{entries: map[string][]Recommendation{
		"user-1": {{ID: "stale", UserID: "user-1", ActivityID: "act-1", MatchScore: 10}},
	}}

	scorer := scorerFunc(func(context.Context, UserProfile, []Activity) ([]ScoredActivity, error) {
		return []ScoredActivity{{ActivityID: "act-1", MatchScore: 90, Reason: "fresh"}}, nil
	})
	svc := NewService(repo, scorer, WithRecommendationCache(cache))

	if _, err := svc.GenerateRecommendations(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.invalidated != 1 {
		t.Fatalf("expected one cache invalidation, got %d", cache.invalidated)
	}

	recs, err := svc.TopRecommendations(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].Reason != "fresh" {
		t.Fatalf("expected fresh recommendation after invalidation, got %+v", recs)
	}
}

func TestCompleteRejectsNegativeRewards(t *testing.T) {
	svc := NewService(newFakeRepo(), noScorer(t))

	if _, _, err := svc.Complete(context.Background(), "p-1", -1, 0); err == nil {
		t.Fatal("expected error for negative hours")
	}
	if _, _, err := svc.Complete(context.Background(), "p-1", 1, -5); err == nil {
		t.Fatal("expected error for negative points")
	}
}
