// Package domain defines the business logic of the participation and
// recommendation engine.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository captures the persistence operations the engine needs. The
// registration, cancellation, and completion methods each run as a single
// transaction; capacity is enforced with a conditional update on the activity
// row, never with a read-then-write round trip.
type Repository interface {
	GetActivity(ctx context.Context, activityID string) (*Activity, error)
	ListOpenActivities(ctx context.Context) ([]Activity, error)

	RegisterParticipation(ctx context.Context, p Participation) error
	CancelParticipation(ctx context.Context, userID, participationID string, now time.Time) (*Participation, error)
	CompleteParticipation(ctx context.Context, participationID string, hoursEarned float64, pointsEarned int, grades GradeTable, now time.Time) (*Participation, *UserProfile, error)
	GetParticipation(ctx context.Context, participationID string) (*Participation, error)
	ListParticipations(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Participation, *Cursor, error)
	SummarizeParticipations(ctx context.Context, userID string) (ParticipationSummary, error)
	SubmitReview(ctx context.Context, userID, participationID string, rating int, review string) (*Participation, error)

	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	UpsertProfile(ctx context.Context, profile UserProfile) (*UserProfile, error)

	InsertRecommendations(ctx context.Context, batch []Recommendation) error
	TopRecommendations(ctx context.Context, userID string, n int, notBefore time.Time) ([]Recommendation, error)
	SetRecommendationEngagement(ctx context.Context, recommendationID string, clicked, applied bool) error
}

// ActivityScorer is the external scoring collaborator boundary. Implementations
// must bound the call with a timeout and return errors that satisfy
// errors.Is(err, ErrRecommendationFailed).
type ActivityScorer interface {
	ScoreActivities(ctx context.Context, profile UserProfile, open []Activity) ([]ScoredActivity, error)
}

// RecommendationCache is an optional read-through cache for the top-N
// recommendation path. Failures are soft; the store stays authoritative.
type RecommendationCache interface {
	Get(ctx context.Context, userID string, n int) ([]Recommendation, bool, error)
	Set(ctx context.Context, userID string, recs []Recommendation) error
	Invalidate(ctx context.Context, userID string) error
}

// Service orchestrates capacity management, recommendation generation, and
// grade evaluation over the shared durable store.
type Service struct {
	repo   Repository
	scorer ActivityScorer
	cache  RecommendationCache
	grades GradeTable

	recommendationTTL time.Duration
	now               func() time.Time
	logger            *log.Logger
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithGradeTable overrides the default grade thresholds.
func WithGradeTable(table GradeTable) Option {
	return func(s *Service) { s.grades = table }
}

// WithRecommendationCache attaches a read cache for TopRecommendations.
func WithRecommendationCache(cache RecommendationCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithRecommendationTTL bounds how old a persisted recommendation may be
// before the read path stops returning it.
func WithRecommendationTTL(ttl time.Duration) Option {
	return func(s *Service) { s.recommendationTTL = ttl }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs a Service.
func NewService(repo Repository, scorer ActivityScorer, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		scorer:            scorer,
		grades:            DefaultGradeTable,
		recommendationTTL: 7 * 24 * time.Hour,
		now:               func() time.Time { return time.Now().UTC() },
		logger:            log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grades returns the grade thresholds in effect.
func (s *Service) Grades() GradeTable {
	return s.grades
}

// Register reserves one seat for the user in the activity. The repository
// performs the participation insert and the conditional counter increment in
// one transaction, so when N callers race for K remaining seats exactly K
// succeed and the rest receive ErrActivityFull.
func (s *Service) Register(ctx context.Context, userID, activityID string) (*Participation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	if strings.TrimSpace(activityID) == "" {
		return nil, ErrActivityNotFound
	}

	p := Participation{
		ID:           uuid.NewString(),
		UserID:       userID,
		ActivityID:   activityID,
		Status:       ParticipationStatusRegistered,
		RegisteredAt: s.now(),
	}
	if err := s.repo.RegisterParticipation(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Cancel releases the seat held by a registered participation. Only the
// owning user may cancel; cancellation on or after the activity date is
// rejected with ErrTooLateToCancel.
func (s *Service) Cancel(ctx context.Context, userID, participationID string) (*Participation, error) {
	if strings.TrimSpace(participationID) == "" {
		return nil, ErrParticipationNotFound
	}
	return s.repo.CancelParticipation(ctx, userID, participationID, s.now())
}

// Complete finalizes a registered participation, credits the earned hours and
// points, and re-evaluates the user's grade, all in one transaction. This is
// the only writer of total_hours, so current_grade cannot drift from the
// grade table. Driven by the completion-confirmation collaborator, never by
// the participant.
func (s *Service) Complete(ctx context.Context, participationID string, hoursEarned float64, pointsEarned int) (*Participation, *UserProfile, error) {
	if hoursEarned < 0 {
		return nil, nil, errors.New("hours earned must be non-negative")
	}
	if pointsEarned < 0 {
		return nil, nil, errors.New("points earned must be non-negative")
	}
	return s.repo.CompleteParticipation(ctx, participationID, hoursEarned, pointsEarned, s.grades, s.now())
}

// GetActivity fetches one activity by ID.
func (s *Service) GetActivity(ctx context.Context, activityID string) (*Activity, error) {
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListOpenActivities returns the open snapshot ordered by date ascending.
func (s *Service) ListOpenActivities(ctx context.Context) ([]Activity, error) {
	return s.repo.ListOpenActivities(ctx)
}

// ListParticipations returns the user's history with keyset pagination.
func (s *Service) ListParticipations(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Participation, *Cursor, error) {
	return s.repo.ListParticipations(ctx, userID, cursor, limit)
}

// ParticipationSummary aggregates the user's history for the dashboard.
func (s *Service) ParticipationSummary(ctx context.Context, userID string) (ParticipationSummary, error) {
	return s.repo.SummarizeParticipations(ctx, userID)
}

// SubmitReview records a rating and optional review on the caller's own
// completed participation.
func (s *Service) SubmitReview(ctx context.Context, userID, participationID string, rating int, review string) (*Participation, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	return s.repo.SubmitReview(ctx, userID, participationID, rating, strings.TrimSpace(review))
}

// GetProfile fetches the user's profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// UpsertProfile writes the onboarding attributes. Reward totals and grade are
// never taken from the caller: a new profile starts at zero hours and sprout,
// an existing profile keeps its stored totals.
func (s *Service) UpsertProfile(ctx context.Context, profile UserProfile) (*UserProfile, error) {
	if strings.TrimSpace(profile.ID) == "" {
		return nil, errors.New("profile id is required")
	}
	profile.Nickname = strings.TrimSpace(profile.Nickname)
	if profile.Nickname == "" {
		return nil, ErrProfileNicknameRequired
	}
	profile.UpdatedAt = s.now()
	return s.repo.UpsertProfile(ctx, profile)
}

// GenerateRecommendations loads the profile and the open-activity snapshot,
// asks the scoring collaborator for a ranked batch, validates it, and
// persists it append-only. The collaborator call carries its own timeout and
// is never retried here; on any failure nothing is persisted.
func (s *Service) GenerateRecommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	if !profile.Complete() {
		return nil, ErrProfileIncomplete
	}

	open, err := s.repo.ListOpenActivities(ctx)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return []Recommendation{}, nil
	}

	scored, err := s.scorer.ScoreActivities(ctx, *profile, open)
	if err != nil {
		if !errors.Is(err, ErrRecommendationFailed) {
			err = fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
		}
		return nil, err
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("%w: empty recommendation list", ErrInvalidScoringResponse)
	}

	openIDs := make(map[string]struct{}, len(open))
	for _, a := range open {
		openIDs[a.ID] = struct{}{}
	}

	now := s.now()
	batch := make([]Recommendation, 0, len(scored))
	for _, entry := range scored {
		if _, ok := openIDs[entry.ActivityID]; !ok {
			return nil, fmt.Errorf("%w: unknown activity %q", ErrInvalidScoringResponse, entry.ActivityID)
		}
		batch = append(batch, Recommendation{
			ID:            uuid.NewString(),
			UserID:        userID,
			ActivityID:    entry.ActivityID,
			MatchScore:    entry.MatchScore,
			Reason:        entry.Reason,
			RecommendedAt: now,
		})
	}

	if err := s.repo.InsertRecommendations(ctx, batch); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Printf("recommendation cache invalidate failed user=%s: %v", userID, err)
		}
	}

	return batch, nil
}

// TopRecommendations returns the user's n best unexpired recommendations,
// highest match score first, ties broken by most recent batch. Rows whose
// activity has since closed or disappeared are filtered at read time.
func (s *Service) TopRecommendations(ctx context.Context, userID string, n int) ([]Recommendation, error) {
	if n <= 0 {
		return []Recommendation{}, nil
	}

	if s.cache != nil {
		recs, ok, err := s.cache.Get(ctx, userID, n)
		if err != nil {
			s.logger.Printf("recommendation cache read failed user=%s: %v", userID, err)
		} else if ok {
			return recs, nil
		}
	}

	notBefore := s.now().Add(-s.recommendationTTL)
	recs, err := s.repo.TopRecommendations(ctx, userID, n, notBefore)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(recs) > 0 {
		if err := s.cache.Set(ctx, userID, recs); err != nil {
			s.logger.Printf("recommendation cache write failed user=%s: %v", userID, err)
		}
	}
	return recs, nil
}

// MarkRecommendationClicked flags the recommendation as clicked.
func (s *Service) MarkRecommendationClicked(ctx context.Context, recommendationID string) error {
	return s.repo.SetRecommendationEngagement(ctx, recommendationID, true, false)
}

// MarkRecommendationApplied flags the recommendation as clicked and acted upon.
func (s *Service) MarkRecommendationApplied(ctx context.Context, recommendationID string) error {
	return s.repo.SetRecommendationEngagement(ctx, recommendationID, true, true)
}
