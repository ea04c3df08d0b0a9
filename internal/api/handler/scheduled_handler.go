package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/repository"
)

type scheduledRequest struct {
	StaffID               string         `json:"staff_id"`
	TemplateID            string         `json:"template_id"`
	ChannelType           string         `json:"channel_type"`
	EventType             string         `json:"event_type"`
	ScheduledTime         time.Time      `json:"scheduled_time"`
	Context               map[string]any `json:"context"`
	SubscriberQueryType   string         `json:"subscriber_query_type"`
	SubscriberQueryParams map[string]any `json:"subscriber_query_params"`
}

// ScheduledHandler is the admin CRUD surface over ScheduledNotification
// records. Mutations require a verified JWT (wired by the router).
type ScheduledHandler struct {
	store repository.ScheduledStore
}

func NewScheduledHandler(store repository.ScheduledStore) *ScheduledHandler {
	return &ScheduledHandler{store: store}
}

func (h *ScheduledHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	channel := domain.ChannelType(req.ChannelType)
	if !channel.IsValid() {
		mapError(w, domain.ErrInvalidChannel)
		return
	}
	eventType := domain.EventType(req.EventType)
	if !eventType.IsValid() {
		mapError(w, domain.ErrInvalidEventType)
		return
	}

	now := time.Now().UTC()
	s := domain.ScheduledNotification{
		ID:                    uuid.New().String(),
		StaffID:               req.StaffID,
		TemplateID:            req.TemplateID,
		ChannelType:           channel,
		EventType:             eventType,
		ScheduledTime:         req.ScheduledTime.UTC(),
		Context:               req.Context,
		SubscriberQueryType:   req.SubscriberQueryType,
		SubscriberQueryParams: req.SubscriberQueryParams,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := h.store.Create(r.Context(), s); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

func (h *ScheduledHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.store.Get(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (h *ScheduledHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parsePaginationParams(r)
	records, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list scheduled notifications")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":        records,
		"page_number": filter.PageNumber,
		"page_size":   filter.PageSize,
	})
}

func (h *ScheduledHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req scheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sets := map[string]any{"updated_at": time.Now().UTC()}
	if req.TemplateID != "" {
		sets["template_id"] = req.TemplateID
	}
	if req.ChannelType != "" {
		channel := domain.ChannelType(req.ChannelType)
		if !channel.IsValid() {
			mapError(w, domain.ErrInvalidChannel)
			return
		}
		sets["channel_type"] = channel
	}
	if req.EventType != "" {
		eventType := domain.EventType(req.EventType)
		if !eventType.IsValid() {
			mapError(w, domain.ErrInvalidEventType)
			return
		}
		sets["event_type"] = eventType
	}
	if !req.ScheduledTime.IsZero() {
		sets["scheduled_time"] = req.ScheduledTime.UTC()
	}
	if req.Context != nil {
		sets["context"] = req.Context
	}

	s, err := h.store.Update(r.Context(), id, sets)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (h *ScheduledHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.store.Delete(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	if !ok {
		mapError(w, domain.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
