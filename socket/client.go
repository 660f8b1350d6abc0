package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-server/domain"
	"chat-server/domain/event"
	"chat-server/errors"
	"chat-server/runtime"
	"chat-server/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one live WebSocket connection. It is also the connection's
// delivery sink: the router enqueues events into send, and the write pump
// drains that channel in order, which is what FIFO-per-connection means
// on the wire.
type Client struct {
	id       domain.ConnID
	userID   string
	state    domain.SessionState
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	service  services.IChatService
	registry *runtime.Registry
	log      *slog.Logger

	// pendingCreate holds a chat:create request waiting for its avatar
	// bytes, which arrive as the next binary frame.
	pendingCreate *pendingCreate
}

type pendingCreate struct {
	seq     int64
	caption string
	avatar  AvatarMeta
}

func NewClient(conn *websocket.Conn, userID string, service services.IChatService,
	registry *runtime.Registry, log *slog.Logger, sendBufferSize int) *Client {
	return &Client{
		id:       domain.ConnID(uuid.NewString()),
		userID:   userID,
		state:    domain.Authenticated,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		service:  service,
		registry: registry,
		log:      log,
	}
}

// Consume implements contract.EventSink. It never blocks past ctx: a full
// send buffer means this connection drops the event, delivery elsewhere
// is unaffected.
func (c *Client) Consume(ctx context.Context, e event.DomainEvent) error {
	frame, err := json.Marshal(EventFrame{Event: e.Name(), Data: e})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return fmt.Errorf("conn %s closed", c.id)
	case <-ctx.Done():
		return ctx.Err()
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("%w: conn %s", errors.ErrDeliveryBufferFull, c.id)
	}
}

// subscribe runs the snapshot fetch and pushes the subscribed frame; the
// session is considered Subscribed only once both succeed.
func (c *Client) subscribe() error {
	c.registry.Register(c.id, c.userID, c)
	snapshot, err := c.service.Subscribe(c.id, c.userID)
	if err != nil {
		c.registry.Deregister(c.id)
		return err
	}
	c.state = domain.Subscribed
	return c.Consume(context.Background(), snapshot)
}

func (c *Client) readPump() {
	defer func() {
		c.registry.Deregister(c.id)
		c.state = domain.Closed
		close(c.done)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("unexpected close", "conn_id", c.id, "error", err)
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.handleRequest(data)
		case websocket.BinaryMessage:
			c.handleUpload(data)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleRequest(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.log.Debug("malformed frame", "conn_id", c.id, "error", err)
		return
	}

	switch req.Action {
	case ActionCreate:
		c.handleCreate(req)
	case ActionJoin:
		c.handleJoin(req)
	case ActionLeave:
		c.handleLeave(req)
	case ActionPost:
		c.handlePost(req)
	case ActionDelete:
		c.handleDelete(req)
	case ActionMessages:
		c.handleMessages(req)
	default:
		c.respond(Response{Seq: req.Seq, Success: false, Msg: "unknown action"})
	}
}

// handleCreate creates the room immediately when no avatar is announced;
// otherwise it parks the request until the avatar bytes arrive on the
// binary channel.
func (c *Client) handleCreate(req Request) {
	var payload CreatePayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.respond(Response{Seq: req.Seq, Success: false, Msg: "malformed payload"})
		return
	}

	if payload.Avatar != nil {
		c.pendingCreate = &pendingCreate{
			seq:     req.Seq,
			caption: payload.Caption,
			avatar:  *payload.Avatar,
		}
		return
	}

	room, err := c.service.Create(c.id, c.userID, payload.Caption, "", nil)
	if err != nil {
		c.respond(errorResponse(c.log, req.Seq, err))
		return
	}
	c.respond(Response{Seq: req.Seq, Success: true, Data: roomData{Chat: room}})
}

// handleUpload completes a parked chat:create with the received avatar
// bytes. A binary frame with nothing pending is dropped.
func (c *Client) handleUpload(data []byte) {
	pending := c.pendingCreate
	c.pendingCreate = nil
	if pending == nil {
		c.log.Debug("unexpected binary frame", "conn_id", c.id)
		return
	}

	room, err := c.service.Create(c.id, c.userID, pending.caption,
		pending.avatar.Name, bytes.NewReader(data))
	if err != nil {
		c.respond(errorResponse(c.log, pending.seq, err))
		return
	}
	c.respond(Response{Seq: pending.seq, Success: true, Data: roomData{Chat: room}})
}

func (c *Client) handleJoin(req Request) {
	var payload RoomPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.respond(Response{Seq: req.Seq, Success: false, Msg: "malformed payload"})
		return
	}
	room, err := c.service.Join(c.id, c.userID, domain.RoomID(payload.ID))
	if err != nil {
		c.respond(errorResponse(c.log, req.Seq, err))
		return
	}
	c.respond(Response{Seq: req.Seq, Success: true, Data: roomData{Chat: room}})
}

func (c *Client) handleLeave(req Request) {
	var payload RoomPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.respond(Response{Seq: req.Seq, Success: false, Msg: "malformed payload"})
		return
	}
	if err := c.service.Leave(c.id, c.userID, domain.RoomID(payload.ID)); err != nil {
		c.respond(errorResponse(c.log, req.Seq, err))
		return
	}
	c.respond(Response{Seq: req.Seq, Success: true})
}

func (c *Client) handlePost(req Request) {
	var payload PostPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.respond(Response{Seq: req.Seq, Success: false, Msg: "malformed payload"})
		return
	}
	message, err := c.service.Post(c.id, c.userID, domain.RoomID(payload.ID), payload.Text)
	if err != nil {
		c.respond(errorResponse(c.log, req.Seq, err))
		return
	}
	c.respond(Response{Seq: req.Seq, Success: true, Data: messageData{Message: message}})
}

func (c *Client) handleDelete(req Request) {
	var payload RoomPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.respond(Response{Seq: req.Seq, Success: false, Msg: "malformed payload"})
		return
	}
	if err := c.service.Delete(c.id, c.userID, domain.RoomID(payload.ID)); err != nil {
		c.respond(errorResponse(c.log, req.Seq, err))
		return
	}
	c.respond(Response{Seq: req.Seq, Success: true})
}

func (c *Client) handleMessages(req Request) {
	var payload MessagesPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.respond(Response{Seq: req.Seq, Success: false, Msg: "malformed payload"})
		return
	}
	messages, err := c.service.Messages(domain.RoomID(payload.ID),
		payload.Direction, payload.Anchor, payload.Limit)
	if err != nil {
		c.respond(errorResponse(c.log, req.Seq, err))
		return
	}
	c.respond(Response{Seq: req.Seq, Success: true, Data: messagesData{Messages: messages}})
}

func (c *Client) respond(resp Response) {
	frame, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("marshal response failed", "error", err)
		return
	}
	select {
	case c.send <- frame:
	default:
		c.log.Warn("send buffer full, dropping response", "conn_id", c.id)
	}
}
