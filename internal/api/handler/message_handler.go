package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/pipeline/internal/api/middleware"
	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/priority"
	"github.com/notifyhub/pipeline/internal/queue"
	"github.com/notifyhub/pipeline/internal/repository"
)

// sendMessageRequest is the immediate-send payload shape.
type sendMessageRequest struct {
	TemplateID  string         `json:"template_id"`
	Subscribers []string       `json:"subscribers"`
	ChannelType string         `json:"channel_type"`
	EventType   string         `json:"event_type"`
	Context     map[string]any `json:"context"`
}

// MessageHandler is the Ingress endpoint for immediate sends: validate,
// fetch the template, build a WorkUnit, route and publish.
type MessageHandler struct {
	templates repository.TemplateStore
	broker    queue.Broker
	logger    *zap.Logger
}

func NewMessageHandler(templates repository.TemplateStore, broker queue.Broker, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{templates: templates, broker: broker, logger: logger}
}

// SendMessage handles POST /messages/send-message/
//
// @Summary     Send an immediate notification
// @Tags        messages
// @Accept      json
// @Produce     json
// @Param       body  body      sendMessageRequest  true  "Send request"
// @Success     201   {object}  map[string]any
// @Failure     422   {object}  map[string]string
// @Failure     404   {object}  map[string]string
// @Router      /messages/send-message/ [post]
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
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

	if _, err := h.templates.Get(r.Context(), req.TemplateID); err != nil {
		mapError(w, err)
		return
	}

	unit := domain.WorkUnit{
		TemplateID:  req.TemplateID,
		Context:     req.Context,
		Subscribers: req.Subscribers,
		EventType:   eventType,
		ChannelType: channel,
		MessageType: domain.MessageImmediate,
	}
	body, err := json.Marshal(unit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode work unit")
		return
	}

	queueName, msgPriority := priority.Route(eventType)
	requestID := apimw.GetCorrelationID(r.Context())

	if err := h.broker.Publish(r.Context(), queueName, body, msgPriority, requestID); err != nil {
		h.logger.Error("publish failed", zap.String("request_id", requestID), zap.Error(err))
		mapError(w, domain.ErrQueueFull)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"status":       "queued",
		"message":      "notification queued for delivery",
		"queue":        string(queueName),
		"priority":     msgPriority,
		"x_request_id": requestID,
	})
}
