// Package runtime tracks live sessions and routes domain events to the
// connections that should observe them. It holds no durable state: room
// membership here only mirrors the store for delivery purposes.
package runtime

import (
	"sync"

	"chat-server/contract"
	"chat-server/domain"
)

type connSet map[domain.ConnID]struct{}

// session is the live binding between one transport connection, its
// authenticated user, and the rooms it currently receives events for.
type session struct {
	userID string
	sink   contract.EventSink
	rooms  map[domain.RoomID]struct{}
}

type Registry struct {
	mu        sync.RWMutex
	sessions  map[domain.ConnID]*session
	roomConns map[domain.RoomID]connSet
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[domain.ConnID]*session),
		roomConns: make(map[domain.RoomID]connSet),
	}
}

// Register binds an authenticated connection to its delivery sink.
func (r *Registry) Register(connID domain.ConnID, userID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = &session{
		userID: userID,
		sink:   sink,
		rooms:  make(map[domain.RoomID]struct{}),
	}
}

// Deregister removes a closed connection from the session directory and
// from every room's delivery set. Durable membership is untouched.
func (r *Registry) Deregister(connID domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[connID]
	if !ok {
		return
	}
	for roomID := range sess.rooms {
		r.detach(roomID, connID)
	}
	delete(r.sessions, connID)
}

// JoinRoom adds the connection to a room's delivery set.
func (r *Registry) JoinRoom(connID domain.ConnID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[connID]
	if !ok {
		return
	}
	sess.rooms[roomID] = struct{}{}
	if _, ok := r.roomConns[roomID]; !ok {
		r.roomConns[roomID] = make(connSet)
	}
	r.roomConns[roomID][connID] = struct{}{}
}

// LeaveRoom removes the connection from a room's delivery set.
func (r *Registry) LeaveRoom(connID domain.ConnID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[connID]; ok {
		delete(sess.rooms, roomID)
	}
	r.detach(roomID, connID)
}

// DropRoom detaches every connection from a deleted room.
func (r *Registry) DropRoom(roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID := range r.roomConns[roomID] {
		if sess, ok := r.sessions[connID]; ok {
			delete(sess.rooms, roomID)
		}
	}
	delete(r.roomConns, roomID)
}

// SinksForRoom resolves the delivery sinks of every connection subscribed
// to a room, excluding the originating one.
func (r *Registry) SinksForRoom(roomID domain.RoomID, except domain.ConnID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns, ok := r.roomConns[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connID := range conns {
		if connID == except {
			continue
		}
		if sess, exists := r.sessions[connID]; exists {
			sinks = append(sinks, sess.sink)
		}
	}
	return sinks
}

// Sinks resolves every registered connection except the originating one.
func (r *Registry) Sinks(except domain.ConnID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sinks []contract.EventSink
	for connID, sess := range r.sessions {
		if connID == except {
			continue
		}
		sinks = append(sinks, sess.sink)
	}
	return sinks
}

// Count reports the number of live sessions. Used by telemetry.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// detach expects r.mu to be held.
func (r *Registry) detach(roomID domain.RoomID, connID domain.ConnID) {
	if conns, ok := r.roomConns[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.roomConns, roomID)
		}
	}
}
