package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/repository"
)

type periodicRequest struct {
	StaffID               string         `json:"staff_id"`
	TemplateID            string         `json:"template_id"`
	ChannelType           string         `json:"channel_type"`
	EventType             string         `json:"event_type"`
	Context               map[string]any `json:"context"`
	SubscriberQueryType   string         `json:"subscriber_query_type"`
	SubscriberQueryParams map[string]any `json:"subscriber_query_params"`
	CronSchedule          string         `json:"cron_schedule"`
	StopDate              *time.Time     `json:"stop_date"`
}

// PeriodicHandler is the admin CRUD surface over PeriodicNotification
// records. Mutations require a verified JWT (wired by the router).
type PeriodicHandler struct {
	store repository.PeriodicStore
}

func NewPeriodicHandler(store repository.PeriodicStore) *PeriodicHandler {
	return &PeriodicHandler{store: store}
}

func (h *PeriodicHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req periodicRequest
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

	schedule, err := cron.ParseStandard(req.CronSchedule)
	if err != nil {
		mapError(w, domain.ErrInvalidCronSchedule)
		return
	}

	now := time.Now().UTC()
	nextRun := schedule.Next(now)
	if req.StopDate != nil && nextRun.After(*req.StopDate) {
		mapError(w, domain.ErrInvalidDateRange)
		return
	}

	p := domain.PeriodicNotification{
		ID:                    uuid.New().String(),
		StaffID:               req.StaffID,
		TemplateID:            req.TemplateID,
		ChannelType:           channel,
		EventType:             eventType,
		Context:               req.Context,
		SubscriberQueryType:   req.SubscriberQueryType,
		SubscriberQueryParams: req.SubscriberQueryParams,
		CronSchedule:          req.CronSchedule,
		NextRunTime:           nextRun,
		IsActive:              true,
		StopDate:              req.StopDate,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := h.store.Create(r.Context(), p); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *PeriodicHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *PeriodicHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parsePaginationParams(r)
	records, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list periodic notifications")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":        records,
		"page_number": filter.PageNumber,
		"page_size":   filter.PageSize,
	})
}

func (h *PeriodicHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req periodicRequest
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
	if req.Context != nil {
		sets["context"] = req.Context
	}
	if req.CronSchedule != "" {
		if _, err := cron.ParseStandard(req.CronSchedule); err != nil {
			mapError(w, domain.ErrInvalidCronSchedule)
			return
		}
		sets["cron_schedule"] = req.CronSchedule
	}
	if req.StopDate != nil {
		sets["stop_date"] = req.StopDate.UTC()
	}

	p, err := h.store.Update(r.Context(), id, sets)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *PeriodicHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
