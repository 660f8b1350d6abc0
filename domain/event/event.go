// Package event defines the domain events pushed to connected clients.
// Event names are the wire-level identifiers the original protocol exposes.
package event

import "chat-server/domain"

type DomainEvent interface {
	Name() string
}

// Subscribed is the initial snapshot sent once a session is registered:
// rooms the user belongs to (with their recent messages) and rooms the
// user could join.
type Subscribed struct {
	Opened    []domain.Room `json:"opened"`
	Available []domain.Room `json:"available"`
}

func (Subscribed) Name() string { return "subscribed" }

type RoomCreated struct {
	Room domain.Room `json:"chat"`
}

func (RoomCreated) Name() string { return "room:created" }

type RoomDeleted struct {
	RoomID domain.RoomID `json:"id"`
}

func (RoomDeleted) Name() string { return "room:deleted" }

type UserJoined struct {
	User   domain.User   `json:"user"`
	RoomID domain.RoomID `json:"roomId"`
}

func (UserJoined) Name() string { return "user:joined" }

type UserLeft struct {
	User   domain.User   `json:"user"`
	RoomID domain.RoomID `json:"roomId"`
}

func (UserLeft) Name() string { return "user:left" }

type MessagePosted struct {
	RoomID  domain.RoomID  `json:"roomId"`
	Message domain.Message `json:"message"`
}

func (MessagePosted) Name() string { return "message:posted" }
