package socket

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat-server/auth"
	"chat-server/runtime"
	"chat-server/services"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to WebSocket sessions and drives the
// per-connection lifecycle: Connecting -> Authenticated -> Subscribed,
// or straight to Closed when the credential check fails.
type Handler struct {
	log            *slog.Logger
	service        services.IChatService
	registry       *runtime.Registry
	sendBufferSize int
	maxFrameSize   int64
	upgrader       websocket.Upgrader
}

func NewHandler(log *slog.Logger, service services.IChatService,
	registry *runtime.Registry, sendBufferSize int, maxFrameSize int64) *Handler {
	return &Handler{
		log:            log,
		service:        service,
		registry:       registry,
		sendBufferSize: sendBufferSize,
		maxFrameSize:   maxFrameSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from a separately served frontend.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(h.maxFrameSize)

	// Token travels in the query string, the handshake happens before any
	// frame is exchanged.
	userID, err := auth.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		h.reject(conn, "invalid or missing token")
		return
	}

	client := NewClient(conn, userID, h.service, h.registry, h.log, h.sendBufferSize)
	if err := client.subscribe(); err != nil {
		h.log.Error("subscription snapshot failed", "user_id", userID, "error", err)
		h.reject(conn, "internal server error")
		return
	}

	go client.writePump()
	client.readPump()
}

// reject surfaces an auth or setup failure to the client and closes the
// transport: Connecting -> Closed.
func (h *Handler) reject(conn *websocket.Conn, msg string) {
	frame, _ := json.Marshal(EventFrame{Event: "error", Data: map[string]string{"msg": msg}})
	_ = conn.WriteMessage(websocket.TextMessage, frame)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg))
	_ = conn.Close()
}
