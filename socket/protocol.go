// Package socket implements the WebSocket transport: JSON request/ack
// frames from the client, server-push event frames back, and binary frames
// for avatar uploads.
package socket

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"chat-server/domain"
	"chat-server/errors"
)

// Actions accepted over the socket.
const (
	ActionCreate   = "chat:create"
	ActionJoin     = "chat:join"
	ActionLeave    = "chat:leave"
	ActionPost     = "chat:post"
	ActionDelete   = "chat:delete"
	ActionMessages = "chat:messages"
)

// Request is a client frame. Seq is echoed back in the acknowledgement so
// the client can match responses to requests.
type Request struct {
	Seq     int64           `json:"seq"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response acknowledges one request. Errors carries field-keyed validation
// messages; Msg carries a single domain or internal message.
type Response struct {
	Seq     int64             `json:"seq"`
	Success bool              `json:"success"`
	Msg     string            `json:"msg,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Data    any               `json:"data,omitempty"`
}

// EventFrame is a server-push frame delivered outside request/response.
type EventFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type AvatarMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type CreatePayload struct {
	Caption string      `json:"caption"`
	Avatar  *AvatarMeta `json:"avatar,omitempty"`
}

type RoomPayload struct {
	ID string `json:"id"`
}

type PostPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type MessagesPayload struct {
	ID        string  `json:"id"`
	Direction *string `json:"direction,omitempty"`
	Anchor    *string `json:"anchor,omitempty"`
	Limit     *int    `json:"limit,omitempty"`
}

type roomData struct {
	Chat domain.Room `json:"chat"`
}

type messageData struct {
	Message domain.Message `json:"message"`
}

type messagesData struct {
	Messages []domain.Message `json:"messages"`
}

// errorResponse maps the error taxonomy to a response frame. Validation
// and domain errors pass through untouched and unlogged; anything else is
// logged with detail and reported generically.
func errorResponse(log *slog.Logger, seq int64, err error) Response {
	if v, ok := errors.AsValidation(err); ok {
		return Response{Seq: seq, Success: false, Errors: v.Fields}
	}
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return Response{Seq: seq, Success: false, Msg: "chat not found"}
	case stderrors.Is(err, errors.ErrCannotRemoveCreator):
		return Response{Seq: seq, Success: false, Msg: "creator cannot leave chat"}
	case stderrors.Is(err, errors.ErrInvalidDirection):
		return Response{Seq: seq, Success: false, Msg: "direction must be lower or greater"}
	default:
		log.Error("operation failed", "error", err)
		return Response{Seq: seq, Success: false, Msg: "internal server error"}
	}
}
