// Package api exposes the HTTP surface of the participation and recommendation engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yonghwan1106/forest-welfare/internal/auth"
	"github.com/yonghwan1106/forest-welfare/internal/domain"
	"github.com/yonghwan1106/forest-welfare/internal/observability"
	"github.com/yonghwan1106/forest-welfare/internal/persistence"
)

const maxTopRecommendations = 3

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activitySubtree)
	mux.HandleFunc("/v1/participations", h.participations)
	mux.HandleFunc("/v1/participations/summary", h.participationSummary)
	mux.HandleFunc("/v1/participations/", h.participationSubtree)
	mux.HandleFunc("/v1/recommendations", h.recommendations)
	mux.HandleFunc("/v1/recommendations/", h.recommendationSubtree)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeParticipationsRead) && !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:read required")
		return
	}

	activities, err := h.service.ListOpenActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items})
}

func (h *Handler) activitySubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getActivity(w, r, id)
	case action == "registrations" && r.Method == http.MethodPost:
		h.register(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeParticipationsRead) && !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:read required")
		return
	}

	activity, err := h.service.GetActivity(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, activityID string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:write required")
		return
	}

	participation, err := h.service.Register(r.Context(), claims.Subject, activityID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrActivityNotFound):
			observability.RecordRegistration("not_found")
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
		case errors.Is(err, domain.ErrActivityClosed):
			observability.RecordRegistration("closed")
			writeError(w, http.StatusConflict, "activity_closed", "activity is not open for registration")
		case errors.Is(err, domain.ErrActivityFull):
			observability.RecordRegistration("full")
			writeError(w, http.StatusConflict, "activity_full", "all seats are taken")
		case errors.Is(err, domain.ErrAlreadyRegistered):
			observability.RecordRegistration("duplicate")
			writeError(w, http.StatusConflict, "already_registered", "already registered for this activity")
		default:
			observability.RecordRegistration("error")
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	observability.RecordRegistration("ok")
	writeJSON(w, http.StatusCreated, toParticipationView(*participation))
}

func (h *Handler) participations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeParticipationsRead) && !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:read required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	items, next, err := h.service.ListParticipations(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	views := make([]ParticipationView, 0, len(items))
	for _, p := range items {
		views = append(views, toParticipationView(p))
	}
	writeJSON(w, http.StatusOK, ListParticipationsResponse{
		Items:      views,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) participationSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeParticipationsRead) && !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:read required")
		return
	}

	summary, err := h.service.ParticipationSummary(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ParticipationSummaryView{
		Registered:  summary.Registered,
		Completed:   summary.Completed,
		Cancelled:   summary.Cancelled,
		TotalHours:  summary.TotalHours,
		TotalPoints: summary.TotalPoints,
		LastAt:      summary.LastAt,
	})
}

func (h *Handler) participationSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/participations/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing participation id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		h.cancel(w, r, id)
	case action == "review" && r.Method == http.MethodPost:
		h.submitReview(w, r, id)
	case action == "completion" && r.Method == http.MethodPost:
		h.complete(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, participationID string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:write required")
		return
	}

	participation, err := h.service.Cancel(r.Context(), claims.Subject, participationID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrParticipationNotFound):
			observability.RecordCancellation("not_found")
			writeError(w, http.StatusNotFound, "not_found", "participation not found")
		case errors.Is(err, domain.ErrParticipationNotRegistered):
			observability.RecordCancellation("not_registered")
			writeError(w, http.StatusConflict, "not_registered", "participation is not in registered status")
		case errors.Is(err, domain.ErrTooLateToCancel):
			observability.RecordCancellation("too_late")
			writeError(w, http.StatusConflict, "too_late_to_cancel", "activity date has passed")
		default:
			observability.RecordCancellation("error")
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	observability.RecordCancellation("ok")
	writeJSON(w, http.StatusOK, toParticipationView(*participation))
}

func (h *Handler) submitReview(w http.ResponseWriter, r *http.Request, participationID string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:write required")
		return
	}

	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	participation, err := h.service.SubmitReview(r.Context(), claims.Subject, participationID, req.Rating, req.Review)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRating):
			writeError(w, http.StatusBadRequest, "validation_failed", "rating must be between 1 and 5")
		case errors.Is(err, domain.ErrParticipationNotFound):
			writeError(w, http.StatusNotFound, "not_found", "participation not found")
		case errors.Is(err, domain.ErrParticipationNotCompleted):
			writeError(w, http.StatusConflict, "not_completed", "participation is not completed")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, toParticipationView(*participation))
}

// complete is the synchronous counterpart of the Kafka confirmation flow,
// used by organizer tooling. It requires the machine scope.
func (h *Handler) complete(w http.ResponseWriter, r *http.Request, participationID string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeCompletionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope completions:write required")
		return
	}

	var req CompleteParticipationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if req.HoursEarned < 0 || req.PointsEarned < 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "rewards must be non-negative")
		return
	}

	participation, profile, err := h.service.Complete(r.Context(), participationID, req.HoursEarned, req.PointsEarned)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrParticipationNotFound):
			observability.RecordCompletion("not_found")
			writeError(w, http.StatusNotFound, "not_found", "participation not found")
		case errors.Is(err, domain.ErrParticipationNotRegistered):
			observability.RecordCompletion("duplicate")
			writeError(w, http.StatusConflict, "not_registered", "participation is not in registered status")
		case errors.Is(err, domain.ErrProfileNotFound):
			observability.RecordCompletion("error")
			writeError(w, http.StatusConflict, "profile_missing", "no profile to credit rewards to")
		default:
			observability.RecordCompletion("error")
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	observability.RecordCompletion("ok")
	writeJSON(w, http.StatusOK, CompleteParticipationResponse{
		Participation: toParticipationView(*participation),
		TotalHours:    profile.TotalHours,
		TotalPoints:   profile.TotalPoints,
		Grade:         string(profile.CurrentGrade),
	})
}

func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.generateRecommendations(w, r)
	case http.MethodGet:
		h.topRecommendations(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) generateRecommendations(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRecommendationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope recommendations:write required")
		return
	}

	batch, err := h.service.GenerateRecommendations(r.Context(), claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProfileNotFound):
			observability.RecordRecommendationBatch("no_profile")
			writeError(w, http.StatusNotFound, "profile_not_found", "complete onboarding before requesting recommendations")
		case errors.Is(err, domain.ErrProfileIncomplete):
			observability.RecordRecommendationBatch("incomplete_profile")
			writeError(w, http.StatusConflict, "onboarding_incomplete", "complete onboarding before requesting recommendations")
		case errors.Is(err, domain.ErrRecommendationFailed):
			observability.RecordRecommendationBatch("failed")
			writeError(w, http.StatusBadGateway, "recommendation_failed", "recommendation generation failed, retry later")
		default:
			observability.RecordRecommendationBatch("error")
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	observability.RecordRecommendationBatch("ok")
	views := make([]RecommendationView, 0, len(batch))
	for _, rec := range batch {
		views = append(views, toRecommendationView(rec))
	}
	writeJSON(w, http.StatusCreated, RecommendationsResponse{Items: views})
}

func (h *Handler) topRecommendations(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRecommendationsRead) && !claims.HasScope(auth.ScopeRecommendationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope recommendations:read required")
		return
	}

	n := maxTopRecommendations
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > maxTopRecommendations {
				parsed = maxTopRecommendations
			}
			n = parsed
		}
	}

	recs, err := h.service.TopRecommendations(r.Context(), claims.Subject, n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	views := make([]RecommendationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toRecommendationView(rec))
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{Items: views})
}

func (h *Handler) recommendationSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/recommendations/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRecommendationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope recommendations:write required")
		return
	}

	var err error
	switch action {
	case "clicked":
		err = h.service.MarkRecommendationClicked(r.Context(), id)
	case "applied":
		err = h.service.MarkRecommendationApplied(r.Context(), id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	if err != nil {
		if errors.Is(err, domain.ErrRecommendationNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "recommendation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getProfile(w, r, claims)
	case http.MethodPut:
		h.upsertProfile(w, r, claims)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if !claims.HasScope(auth.ScopeParticipationsRead) && !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:read required")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) upsertProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if !claims.HasScope(auth.ScopeParticipationsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope participations:write required")
		return
	}

	var req UpsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	profile, err := h.service.UpsertProfile(r.Context(), domain.UserProfile{
		ID:                     claims.Subject,
		Nickname:               req.Nickname,
		AgeGroup:               req.AgeGroup,
		RegionSido:             req.RegionSido,
		RegionSigungu:          req.RegionSigungu,
		Interests:              req.Interests,
		AvailableTimes:         req.AvailableTimes,
		ParticipationFrequency: req.ParticipationFrequency,
		ExperienceLevel:        req.ExperienceLevel,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProfileNicknameRequired) {
			writeError(w, http.StatusBadRequest, "validation_failed", "nickname is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

// ActivityView exposes details about an activity.
type ActivityView struct {
	ActivityID          string    `json:"activity_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Category            string    `json:"category"`
	LocationSido        string    `json:"location_sido"`
	LocationSigungu     string    `json:"location_sigungu"`
	LocationDetail      string    `json:"location_detail,omitempty"`
	Date                string    `json:"date"`
	StartTime           string    `json:"start_time"`
	EndTime             string    `json:"end_time"`
	Difficulty          string    `json:"difficulty"`
	MaxParticipants     int       `json:"max_participants"`
	CurrentParticipants int       `json:"current_participants"`
	SeatsLeft           int       `json:"seats_left"`
	PointsReward        int       `json:"points_reward"`
	HoursReward         float64   `json:"hours_reward"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

// ListActivitiesResponse packages the open-activity list.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// ParticipationView exposes one participation row.
type ParticipationView struct {
	ParticipationID string     `json:"participation_id"`
	UserID          string     `json:"user_id"`
	ActivityID      string     `json:"activity_id"`
	Status          string     `json:"status"`
	RegisteredAt    time.Time  `json:"registered_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	HoursEarned     *float64   `json:"hours_earned,omitempty"`
	PointsEarned    *int       `json:"points_earned,omitempty"`
	Review          *string    `json:"review,omitempty"`
	Rating          *int       `json:"rating,omitempty"`
}

// ListParticipationsResponse packages history results.
type ListParticipationsResponse struct {
	Items      []ParticipationView `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// ParticipationSummaryView aggregates history for the dashboard.
type ParticipationSummaryView struct {
	Registered  int        `json:"registered"`
	Completed   int        `json:"completed"`
	Cancelled   int        `json:"cancelled"`
	TotalHours  float64    `json:"total_hours"`
	TotalPoints int        `json:"total_points"`
	LastAt      *time.Time `json:"last_at,omitempty"`
}

// SubmitReviewRequest is the payload for POST /v1/participations/{id}/review.
type SubmitReviewRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// CompleteParticipationRequest is the payload for POST /v1/participations/{id}/completion.
type CompleteParticipationRequest struct {
	HoursEarned  float64 `json:"hours_earned"`
	PointsEarned int     `json:"points_earned"`
}

// CompleteParticipationResponse returns the finalized row and updated totals.
type CompleteParticipationResponse struct {
	Participation ParticipationView `json:"participation"`
	TotalHours    float64           `json:"total_hours"`
	TotalPoints   int               `json:"total_points"`
	Grade         string            `json:"grade"`
}

// RecommendationView exposes one scored recommendation.
type RecommendationView struct {
	RecommendationID string    `json:"recommendation_id"`
	ActivityID       string    `json:"activity_id"`
	MatchScore       int       `json:"match_score"`
	Reason           string    `json:"reason"`
	RecommendedAt    time.Time `json:"recommended_at"`
	Clicked          bool      `json:"clicked"`
	Applied          bool      `json:"applied"`
}

// RecommendationsResponse packages recommendation results.
type RecommendationsResponse struct {
	Items []RecommendationView `json:"items"`
}

// UpsertProfileRequest is the payload for PUT /v1/profile.
type UpsertProfileRequest struct {
	Nickname               string   `json:"nickname"`
	AgeGroup               string   `json:"age_group"`
	RegionSido             string   `json:"region_sido"`
	RegionSigungu          string   `json:"region_sigungu"`
	Interests              []string `json:"interests"`
	AvailableTimes         []string `json:"available_times"`
	ParticipationFrequency string   `json:"participation_frequency"`
	ExperienceLevel        string   `json:"experience_level"`
}

// ProfileView exposes the profile plus reward projection.
type ProfileView struct {
	UserID                 string    `json:"user_id"`
	Nickname               string    `json:"nickname"`
	AgeGroup               string    `json:"age_group"`
	RegionSido             string    `json:"region_sido"`
	RegionSigungu          string    `json:"region_sigungu"`
	Interests              []string  `json:"interests"`
	AvailableTimes         []string  `json:"available_times"`
	ParticipationFrequency string    `json:"participation_frequency"`
	ExperienceLevel        string    `json:"experience_level"`
	TotalPoints            int       `json:"total_points"`
	TotalHours             float64   `json:"total_hours"`
	CurrentGrade           string    `json:"current_grade"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:          a.ID,
		Title:               a.Title,
		Description:         a.Description,
		Category:            string(a.Category),
		LocationSido:        a.LocationSido,
		LocationSigungu:     a.LocationSigungu,
		LocationDetail:      a.LocationDetail,
		Date:                a.Date.Format("2006-01-02"),
		StartTime:           a.StartTime,
		EndTime:             a.EndTime,
		Difficulty:          a.Difficulty,
		MaxParticipants:     a.MaxParticipants,
		CurrentParticipants: a.CurrentParticipants,
		SeatsLeft:           a.SeatsLeft(),
		PointsReward:        a.PointsReward,
		HoursReward:         a.HoursReward,
		Status:              string(a.Status),
		CreatedAt:           a.CreatedAt,
	}
}

func toParticipationView(p domain.Participation) ParticipationView {
	return ParticipationView{
		ParticipationID: p.ID,
		UserID:          p.UserID,
		ActivityID:      p.ActivityID,
		Status:          string(p.Status),
		RegisteredAt:    p.RegisteredAt,
		CompletedAt:     p.CompletedAt,
		CancelledAt:     p.CancelledAt,
		HoursEarned:     p.HoursEarned,
		PointsEarned:    p.PointsEarned,
		Review:          p.Review,
		Rating:          p.Rating,
	}
}

func toRecommendationView(rec domain.Recommendation) RecommendationView {
	return RecommendationView{
		RecommendationID: rec.ID,
		ActivityID:       rec.ActivityID,
		MatchScore:       rec.MatchScore,
		Reason:           rec.Reason,
		RecommendedAt:    rec.RecommendedAt,
		Clicked:          rec.Clicked,
		Applied:          rec.Applied,
	}
}

func toProfileView(p domain.UserProfile) ProfileView {
	return ProfileView{
		UserID:                 p.ID,
		Nickname:               p.Nickname,
		AgeGroup:               p.AgeGroup,
		RegionSido:             p.RegionSido,
		RegionSigungu:          p.RegionSigungu,
		Interests:              p.Interests,
		AvailableTimes:         p.AvailableTimes,
		ParticipationFrequency: p.ParticipationFrequency,
		ExperienceLevel:        p.ExperienceLevel,
		TotalPoints:            p.TotalPoints,
		TotalHours:             p.TotalHours,
		CurrentGrade:           string(p.CurrentGrade),
		UpdatedAt:              p.UpdatedAt,
	}
}
