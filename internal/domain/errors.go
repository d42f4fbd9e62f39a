package domain

import (
	"errors"
	"fmt"
)

// Capacity errors: expected, user-facing, recoverable by trying elsewhere.
var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityClosed is returned when registering against a non-open activity.
	ErrActivityClosed = errors.New("activity is not open for registration")
	// ErrActivityFull is returned when all seats are taken.
	ErrActivityFull = errors.New("activity is full")
	// ErrAlreadyRegistered is returned when the user already holds an active
	// registration for the activity. The counter is untouched, so callers may
	// treat it as an idempotent no-op.
	ErrAlreadyRegistered = errors.New("already registered for this activity")
	// ErrTooLateToCancel rejects cancellation after the activity date has passed.
	ErrTooLateToCancel = errors.New("activity date has passed, too late to cancel")
)

// Data errors: caller misuse, surfaced verbatim.
var (
	// ErrParticipationNotFound is returned when a participation cannot be located.
	ErrParticipationNotFound = errors.New("participation not found")
	// ErrParticipationNotRegistered is returned when a state transition requires
	// a registered participation. Completing twice hits this, which makes the
	// completion path idempotent against duplicate confirmations.
	ErrParticipationNotRegistered = errors.New("participation is not in registered status")
	// ErrParticipationNotCompleted is returned when reviewing a participation
	// that has not been completed.
	ErrParticipationNotCompleted = errors.New("participation is not completed")
	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrProfileNotFound is returned when no profile exists for the user.
	ErrProfileNotFound = errors.New("user profile not found")
	// ErrProfileIncomplete is returned when onboarding has not finished
	// (missing nickname); recommendations cannot be generated yet.
	ErrProfileIncomplete = errors.New("user profile is incomplete")
	// ErrProfileNicknameRequired rejects profile writes without a nickname.
	ErrProfileNicknameRequired = errors.New("profile nickname is required")
	// ErrRecommendationNotFound is returned when a recommendation row is missing.
	ErrRecommendationNotFound = errors.New("recommendation not found")
)

// Collaborator errors: every scoring failure, whatever the cause, satisfies
// errors.Is(err, ErrRecommendationFailed). Always retryable by the caller;
// never retried inside the engine.
var (
	ErrRecommendationFailed = errors.New("recommendation generation failed")
	// ErrInvalidScoringResponse marks a scoring response that could not be
	// extracted as the expected structure. Nothing is persisted in that case.
	ErrInvalidScoringResponse = fmt.Errorf("invalid scoring response: %w", ErrRecommendationFailed)
)
