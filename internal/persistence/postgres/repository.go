// Package postgres provides the PostgreSQL persistence layer for the engine.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yonghwan1106/forest-welfare/internal/domain"
	"github.com/yonghwan1106/forest-welfare/internal/events"
	"github.com/yonghwan1106/forest-welfare/internal/observability"
)

const pgUniqueViolation = "23505"

// Repository provides Postgres-backed persistence for activities,
// participations, profiles, recommendations, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, title, description, category, location_sido, location_sigungu, location_detail,
        date, start_time, end_time, difficulty, max_participants, current_participants, points_reward, hours_reward, status, created_at`

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &a.LocationSido, &a.LocationSigungu, &a.LocationDetail,
		&a.Date, &a.StartTime, &a.EndTime, &a.Difficulty, &a.MaxParticipants, &a.CurrentParticipants,
		&a.PointsReward, &a.HoursReward, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActivity retrieves an activity by ID. Returns (nil, nil) when absent.
func (r *Repository) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE activity_id=$1`

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, activityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// ListOpenActivities returns activities still accepting registrations, soonest first.
func (r *Repository) ListOpenActivities(ctx context.Context) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities
        WHERE status='open' AND date >= CURRENT_DATE
        ORDER BY date ASC, activity_id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *activity)
	}
	return results, rows.Err()
}

// RegisterParticipation reserves a seat and records the participation in one
// transaction. The seat counter is claimed with a conditional update, so two
// callers can never overcommit the last seat; a duplicate registration trips
// the partial unique index and rolls the increment back.
func (r *Repository) RegisterParticipation(ctx context.Context, p domain.Participation) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const claimSeat = `UPDATE activities
        SET current_participants = current_participants + 1
        WHERE activity_id=$1 AND status='open' AND current_participants < max_participants`

	tag, err := tx.Exec(ctx, claimSeat, p.ActivityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.diagnoseClaimFailure(ctx, tx, p.ActivityID)
	}

	const insertParticipation = `INSERT INTO participations (participation_id, user_id, activity_id, status, registered_at)
        VALUES ($1,$2,$3,$4,$5)`

	if _, err = tx.Exec(ctx, insertParticipation, p.ID, p.UserID, p.ActivityID, p.Status, p.RegisteredAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrAlreadyRegistered
		}
		return err
	}

	if err = insertOutbox(ctx, tx, "participation.registered", p.ID, p.UserID, events.ParticipationRegistered{
		ParticipationID: p.ID,
		UserID:          p.UserID,
		ActivityID:      p.ActivityID,
		RegisteredAt:    p.RegisteredAt,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordParticipationPersisted(p.RegisteredAt)
	return nil
}

// diagnoseClaimFailure runs inside the registration transaction to report why
// the conditional update matched nothing.
func (r *Repository) diagnoseClaimFailure(ctx context.Context, tx pgx.Tx, activityID string) error {
	var status domain.ActivityStatus
	var current, max int
	err := tx.QueryRow(ctx, `SELECT status, current_participants, max_participants FROM activities WHERE activity_id=$1`, activityID).
		Scan(&status, &current, &max)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return err
	}
	if status != domain.ActivityStatusOpen {
		return domain.ErrActivityClosed
	}
	if current >= max {
		return domain.ErrActivityFull
	}
	return fmt.Errorf("seat claim failed for open activity %s", activityID)
}

// CancelParticipation releases the seat held by a registered participation.
// Rows owned by another user are reported as not found.
func (r *Repository) CancelParticipation(ctx context.Context, userID, participationID string, now time.Time) (*domain.Participation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const lockRow = `SELECT p.participation_id, p.user_id, p.activity_id, p.status, p.registered_at, a.date
        FROM participations p
        JOIN activities a ON a.activity_id = p.activity_id
        WHERE p.participation_id=$1 AND p.user_id=$2
        FOR UPDATE OF p`

	var p domain.Participation
	var activityDate time.Time
	err = tx.QueryRow(ctx, lockRow, participationID, userID).
		Scan(&p.ID, &p.UserID, &p.ActivityID, &p.Status, &p.RegisteredAt, &activityDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrParticipationNotFound
		}
		return nil, err
	}
	if p.Status != domain.ParticipationStatusRegistered {
		return nil, domain.ErrParticipationNotRegistered
	}
	if !now.Before(activityDate) {
		return nil, domain.ErrTooLateToCancel
	}

	if _, err = tx.Exec(ctx, `UPDATE participations SET status='cancelled', cancelled_at=$2 WHERE participation_id=$1`, participationID, now); err != nil {
		return nil, err
	}

	// The counter can already be zero if the activity row was reset out of
	// band; GREATEST keeps the invariant instead of going negative.
	if _, err = tx.Exec(ctx, `UPDATE activities SET current_participants = GREATEST(current_participants - 1, 0) WHERE activity_id=$1`, p.ActivityID); err != nil {
		return nil, err
	}

	if err = insertOutbox(ctx, tx, "participation.cancelled", p.ID, p.UserID, events.ParticipationCancelled{
		ParticipationID: p.ID,
		UserID:          p.UserID,
		ActivityID:      p.ActivityID,
		CancelledAt:     now,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	p.Status = domain.ParticipationStatusCancelled
	p.CancelledAt = &now
	observability.RecordParticipationPersisted(now)
	return &p, nil
}

// CompleteParticipation finalizes a registered participation, credits the
// rewards to the profile, and recomputes the grade, all in one transaction.
func (r *Repository) CompleteParticipation(ctx context.Context, participationID string, hoursEarned float64, pointsEarned int, grades domain.GradeTable, now time.Time) (*domain.Participation, *domain.UserProfile, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	const lockRow = `SELECT participation_id, user_id, activity_id, status, registered_at
        FROM participations WHERE participation_id=$1 FOR UPDATE`

	var p domain.Participation
	err = tx.QueryRow(ctx, lockRow, participationID).
		Scan(&p.ID, &p.UserID, &p.ActivityID, &p.Status, &p.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrParticipationNotFound
		}
		return nil, nil, err
	}
	if p.Status != domain.ParticipationStatusRegistered {
		return nil, nil, domain.ErrParticipationNotRegistered
	}

	const completeRow = `UPDATE participations
        SET status='completed', completed_at=$2, hours_earned=$3, points_earned=$4
        WHERE participation_id=$1`
	if _, err = tx.Exec(ctx, completeRow, participationID, now, hoursEarned, pointsEarned); err != nil {
		return nil, nil, err
	}

	const creditProfile = `UPDATE user_profiles
        SET total_hours = total_hours + $2, total_points = total_points + $3, updated_at = $4
        WHERE user_id=$1
        RETURNING ` + profileColumns

	profile, err := scanProfile(tx.QueryRow(ctx, creditProfile, p.UserID, hoursEarned, pointsEarned, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrProfileNotFound
		}
		return nil, nil, err
	}

	grade := grades.Evaluate(profile.TotalHours)
	if grade != profile.CurrentGrade {
		if _, err = tx.Exec(ctx, `UPDATE user_profiles SET current_grade=$2 WHERE user_id=$1`, p.UserID, grade); err != nil {
			return nil, nil, err
		}
		profile.CurrentGrade = grade
	}

	if err = insertOutbox(ctx, tx, "participation.completed", p.ID, p.UserID, events.ParticipationCompleted{
		ParticipationID: p.ID,
		UserID:          p.UserID,
		ActivityID:      p.ActivityID,
		HoursEarned:     hoursEarned,
		PointsEarned:    pointsEarned,
		TotalHours:      profile.TotalHours,
		Grade:           string(profile.CurrentGrade),
		CompletedAt:     now,
	}); err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	p.Status = domain.ParticipationStatusCompleted
	p.CompletedAt = &now
	p.HoursEarned = &hoursEarned
	p.PointsEarned = &pointsEarned
	observability.RecordParticipationPersisted(now)
	return &p, profile, nil
}

const participationColumns = `participation_id, user_id, activity_id, status, registered_at, completed_at, cancelled_at, hours_earned, points_earned, review, rating`

func scanParticipation(row pgx.Row) (*domain.Participation, error) {
	var p domain.Participation
	err := row.Scan(&p.ID, &p.UserID, &p.ActivityID, &p.Status, &p.RegisteredAt,
		&p.CompletedAt, &p.CancelledAt, &p.HoursEarned, &p.PointsEarned, &p.Review, &p.Rating)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipation retrieves a participation by ID. Returns (nil, nil) when absent.
func (r *Repository) GetParticipation(ctx context.Context, participationID string) (*domain.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE participation_id=$1`

	p, err := scanParticipation(r.pool.QueryRow(ctx, query, participationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ListParticipations returns the user's history newest first with keyset pagination.
func (r *Repository) ListParticipations(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Participation, *domain.Cursor, error) {
	args := []interface{}{userID, limit}
	query := `SELECT ` + participationColumns + ` FROM participations WHERE user_id=$1`

	if cursor != nil {
		query += ` AND (registered_at, participation_id) < ($3, $4)`
		args = append(args, cursor.RegisteredAt, cursor.ID)
	}

	query += ` ORDER BY registered_at DESC, participation_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Participation, 0, limit)
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{RegisteredAt: last.RegisteredAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// SummarizeParticipations aggregates the user's history.
func (r *Repository) SummarizeParticipations(ctx context.Context, userID string) (domain.ParticipationSummary, error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status='registered'),
        COUNT(*) FILTER (WHERE status='completed'),
        COUNT(*) FILTER (WHERE status='cancelled'),
        COALESCE(SUM(hours_earned) FILTER (WHERE status='completed'), 0),
        COALESCE(SUM(points_earned) FILTER (WHERE status='completed'), 0),
        MAX(registered_at)
        FROM participations WHERE user_id=$1`

	var summary domain.ParticipationSummary
	err := r.pool.QueryRow(ctx, query, userID).
		Scan(&summary.Registered, &summary.Completed, &summary.Cancelled, &summary.TotalHours, &summary.TotalPoints, &summary.LastAt)
	if err != nil {
		return domain.ParticipationSummary{}, err
	}
	return summary, nil
}

// SubmitReview stores a rating and review on the user's completed participation.
func (r *Repository) SubmitReview(ctx context.Context, userID, participationID string, rating int, review string) (*domain.Participation, error) {
	const query = `UPDATE participations SET rating=$3, review=NULLIF($4, '')
        WHERE participation_id=$1 AND user_id=$2 AND status='completed'
        RETURNING ` + participationColumns

	p, err := scanParticipation(r.pool.QueryRow(ctx, query, participationID, userID, rating, review))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	existing, err := r.GetParticipation(ctx, participationID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.UserID != userID {
		return nil, domain.ErrParticipationNotFound
	}
	return nil, domain.ErrParticipationNotCompleted
}

const profileColumns = `user_id, nickname, age_group, region_sido, region_sigungu, interests, available_times,
        participation_frequency, experience_level, total_points, total_hours, current_grade, created_at, updated_at`

func scanProfile(row pgx.Row) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := row.Scan(&p.ID, &p.Nickname, &p.AgeGroup, &p.RegionSido, &p.RegionSigungu, &p.Interests, &p.AvailableTimes,
		&p.ParticipationFrequency, &p.ExperienceLevel, &p.TotalPoints, &p.TotalHours, &p.CurrentGrade, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile retrieves a user profile. Returns (nil, nil) when absent.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id=$1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

// UpsertProfile writes the onboarding attributes. Reward totals and grade are
// owned by the completion transaction and never taken from the input: new
// rows start at zero hours and sprout, existing rows keep their stored values.
func (r *Repository) UpsertProfile(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	const query = `INSERT INTO user_profiles
        (user_id, nickname, age_group, region_sido, region_sigungu, interests, available_times,
         participation_frequency, experience_level, total_points, total_hours, current_grade, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,0,$10,$11,$11)
        ON CONFLICT (user_id) DO UPDATE SET
            nickname = EXCLUDED.nickname,
            age_group = EXCLUDED.age_group,
            region_sido = EXCLUDED.region_sido,
            region_sigungu = EXCLUDED.region_sigungu,
            interests = EXCLUDED.interests,
            available_times = EXCLUDED.available_times,
            participation_frequency = EXCLUDED.participation_frequency,
            experience_level = EXCLUDED.experience_level,
            updated_at = EXCLUDED.updated_at
        RETURNING ` + profileColumns

	return scanProfile(r.pool.QueryRow(ctx, query,
		profile.ID,
		profile.Nickname,
		profile.AgeGroup,
		profile.RegionSido,
		profile.RegionSigungu,
		profile.Interests,
		profile.AvailableTimes,
		profile.ParticipationFrequency,
		profile.ExperienceLevel,
		domain.GradeSprout,
		profile.UpdatedAt,
	))
}

// InsertRecommendations persists one scored batch append-only and records a
// single outbox event for it.
func (r *Repository) InsertRecommendations(ctx context.Context, batch []domain.Recommendation) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO recommendations
        (recommendation_id, user_id, activity_id, match_score, reason, recommended_at, clicked, applied)
        VALUES ($1,$2,$3,$4,$5,$6,false,false)`

	activityIDs := make([]string, 0, len(batch))
	for _, rec := range batch {
		if _, err = tx.Exec(ctx, insert, rec.ID, rec.UserID, rec.ActivityID, rec.MatchScore, rec.Reason, rec.RecommendedAt); err != nil {
			return err
		}
		activityIDs = append(activityIDs, rec.ActivityID)
	}

	first := batch[0]
	aggregateID := fmt.Sprintf("%s:%d", first.UserID, first.RecommendedAt.UnixNano())
	if err = insertOutbox(ctx, tx, "recommendation.generated", aggregateID, first.UserID, events.RecommendationGenerated{
		UserID:        first.UserID,
		ActivityIDs:   activityIDs,
		BatchSize:     len(batch),
		RecommendedAt: first.RecommendedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TopRecommendations returns the user's best unexpired recommendations whose
// activity is still open, highest score first, ties broken by recency.
func (r *Repository) TopRecommendations(ctx context.Context, userID string, n int, notBefore time.Time) ([]domain.Recommendation, error) {
	const query = `SELECT r.recommendation_id, r.user_id, r.activity_id, r.match_score, r.reason, r.recommended_at, r.clicked, r.applied
        FROM recommendations r
        JOIN activities a ON a.activity_id = r.activity_id AND a.status='open'
        WHERE r.user_id=$1 AND r.recommended_at >= $2
        ORDER BY r.match_score DESC, r.recommended_at DESC, r.recommendation_id DESC
        LIMIT $3`

	rows, err := r.pool.Query(ctx, query, userID, notBefore, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Recommendation, 0, n)
	for rows.Next() {
		var rec domain.Recommendation
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ActivityID, &rec.MatchScore, &rec.Reason, &rec.RecommendedAt, &rec.Clicked, &rec.Applied); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// SetRecommendationEngagement flips the click/apply flags. Flags only ever go
// from false to true.
func (r *Repository) SetRecommendationEngagement(ctx context.Context, recommendationID string, clicked, applied bool) error {
	const query = `UPDATE recommendations
        SET clicked = clicked OR $2, applied = applied OR $3
        WHERE recommendation_id=$1`

	tag, err := r.pool.Exec(ctx, query, recommendationID, clicked, applied)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecommendationNotFound
	}
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, userID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		userID,
		body,
		dedupeKey,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"participation.registered": {
		AggregateType: "participation",
		Topic:         "participation_events",
		SchemaSubject: "participation_events-value",
	},
	"participation.cancelled": {
		AggregateType: "participation",
		Topic:         "participation_events",
		SchemaSubject: "participation_events-value",
	},
	"participation.completed": {
		AggregateType: "participation",
		Topic:         "participation_events",
		SchemaSubject: "participation_events-value",
	},
	"recommendation.generated": {
		AggregateType: "recommendation",
		Topic:         "recommendation_events",
		SchemaSubject: "recommendation_events-value",
	},
}
