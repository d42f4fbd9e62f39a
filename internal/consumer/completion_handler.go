package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/yonghwan1106/forest-welfare/internal/domain"
	"github.com/yonghwan1106/forest-welfare/internal/events"
	"github.com/yonghwan1106/forest-welfare/internal/observability"
)

// EventTypeCompletionConfirmed is the inbound confirmation from organizers.
const EventTypeCompletionConfirmed = "participation.completion_confirmed"

// ParticipationCompleter finalizes a registered participation and credits rewards.
type ParticipationCompleter interface {
	Complete(ctx context.Context, participationID string, hoursEarned float64, pointsEarned int) (*domain.Participation, *domain.UserProfile, error)
}

// CompletionHandler turns organizer confirmations into finalized
// participations with credited rewards.
type CompletionHandler struct {
	service ParticipationCompleter
	logger  *log.Logger
}

// NewCompletionHandler constructs a handler backed by the engine service.
func NewCompletionHandler(service ParticipationCompleter) *CompletionHandler {
	return &CompletionHandler{
		service: service,
		logger:  log.New(log.Writer(), "[completion] ", log.LstdFlags),
	}
}

// Handle completes the referenced participation. Duplicate confirmations and
// references to unknown participations are logged and dropped rather than
// returned as errors, so the partition does not stall on them.
func (h *CompletionHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != EventTypeCompletionConfirmed {
		return nil
	}

	var confirmed events.CompletionConfirmed
	if err := json.Unmarshal(msg.Payload, &confirmed); err != nil {
		return fmt.Errorf("decode completion payload: %w", err)
	}
	if confirmed.ParticipationID == "" {
		return errors.New("completion payload missing participation_id")
	}

	_, profile, err := h.service.Complete(ctx, confirmed.ParticipationID, confirmed.HoursEarned, confirmed.PointsEarned)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrParticipationNotRegistered):
			h.logger.Printf("duplicate completion confirmation participation=%s, skipping", confirmed.ParticipationID)
			observability.RecordCompletion("duplicate")
			return nil
		case errors.Is(err, domain.ErrParticipationNotFound):
			h.logger.Printf("completion confirmation for unknown participation=%s, skipping", confirmed.ParticipationID)
			observability.RecordCompletion("unknown")
			return nil
		default:
			observability.RecordCompletion("error")
			return err
		}
	}

	observability.RecordCompletion("ok")
	h.logger.Printf("completed participation=%s user=%s grade=%s", confirmed.ParticipationID, profile.ID, profile.CurrentGrade)
	return nil
}
