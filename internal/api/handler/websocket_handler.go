package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/pipeline/internal/api/middleware"
	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/priority"
	"github.com/notifyhub/pipeline/internal/queue"
	"github.com/notifyhub/pipeline/internal/repository"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The handshake itself is JWT-gated by RequireJWTCookie; no additional
	// origin check is imposed here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsStatusFrame struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Queue    string `json:"queue,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// WebsocketHandler serves the bidirectional immediate-send socket: each
// inbound JSON frame is a sendMessageRequest, each outbound frame a status
// acknowledgement.
type WebsocketHandler struct {
	templates repository.TemplateStore
	broker    queue.Broker
	logger    *zap.Logger
}

func NewWebsocketHandler(templates repository.TemplateStore, broker queue.Broker, logger *zap.Logger) *WebsocketHandler {
	return &WebsocketHandler{templates: templates, broker: broker, logger: logger}
}

// Sockets handles GET /sockets/ — a liveness/info endpoint describing the
// websocket upgrade path.
func (h *WebsocketHandler) Sockets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"ws_endpoint": "/sockets/ws/send-message"})
}

// SendMessageWS handles WS /sockets/ws/send-message
func (h *WebsocketHandler) SendMessageWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var req sendMessageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		frame := h.dispatch(r, req)
		if err := conn.WriteJSON(frame); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *WebsocketHandler) dispatch(r *http.Request, req sendMessageRequest) wsStatusFrame {
	channel := domain.ChannelType(req.ChannelType)
	if !channel.IsValid() {
		return wsStatusFrame{Status: "error", Message: domain.ErrInvalidChannel.Error()}
	}
	eventType := domain.EventType(req.EventType)
	if !eventType.IsValid() {
		return wsStatusFrame{Status: "error", Message: domain.ErrInvalidEventType.Error()}
	}

	if _, err := h.templates.Get(r.Context(), req.TemplateID); err != nil {
		return wsStatusFrame{Status: "error", Message: "template not found"}
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
		return wsStatusFrame{Status: "error", Message: "failed to encode work unit"}
	}

	queueName, msgPriority := priority.Route(eventType)
	if err := h.broker.Publish(r.Context(), queueName, body, msgPriority, apimw.GetCorrelationID(r.Context())); err != nil {
		return wsStatusFrame{Status: "error", Message: domain.ErrQueueFull.Error()}
	}

	return wsStatusFrame{Status: "queued", Queue: string(queueName), Priority: msgPriority}
}
