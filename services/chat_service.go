package services

import (
	stderrors "errors"
	"io"
	"log/slog"
	"unicode/utf8"

	"chat-server/domain"
	"chat-server/domain/event"
	"chat-server/errors"
	"chat-server/repositories"
	"chat-server/runtime"
	"chat-server/storage"

	"github.com/samber/lo"
)

type IChatService interface {
	Subscribe(connID domain.ConnID, userID string) (event.Subscribed, error)
	Create(connID domain.ConnID, userID, caption, avatarName string, avatar io.Reader) (domain.Room, error)
	Join(connID domain.ConnID, userID string, roomID domain.RoomID) (domain.Room, error)
	Leave(connID domain.ConnID, userID string, roomID domain.RoomID) error
	Post(connID domain.ConnID, userID string, roomID domain.RoomID, text string) (domain.Message, error)
	Delete(connID domain.ConnID, userID string, roomID domain.RoomID) error
	Messages(roomID domain.RoomID, direction, anchor *string, limit *int) ([]domain.Message, error)
	ListOpened(userID string) ([]domain.Room, error)
	ListAvailable(userID string) ([]domain.Room, error)
}

// ChatService orchestrates the room registry, message log, presence
// registry, and broadcast router into the client-facing operations.
//
// Every operation is an ordered pipeline of fallible steps: validate, read
// current state from the store, mutate, resolve identities, broadcast. A
// failure short-circuits the remaining steps and leaves already-committed
// steps intact. Nothing is cached between operations: membership and
// ownership are always re-read at mutation time.
type ChatService struct {
	log            *slog.Logger
	rooms          repositories.IRoomRepository
	messages       repositories.IMessageLog
	users          repositories.IUserRepository
	avatars        storage.IFileStorage
	registry       *runtime.Registry
	router         *runtime.Router
	messagesToLoad int
}

func NewChatService(log *slog.Logger, rooms repositories.IRoomRepository,
	messages repositories.IMessageLog, users repositories.IUserRepository,
	avatars storage.IFileStorage, registry *runtime.Registry,
	router *runtime.Router, messagesToLoad int) *ChatService {
	return &ChatService{
		log:            log,
		rooms:          rooms,
		messages:       messages,
		users:          users,
		avatars:        avatars,
		registry:       registry,
		router:         router,
		messagesToLoad: messagesToLoad,
	}
}

// Subscribe builds the initial snapshot for a freshly authenticated
// connection and registers it into every opened room's delivery set.
// Opened rooms carry their most recent messages; available rooms carry
// only summary fields.
func (s *ChatService) Subscribe(connID domain.ConnID, userID string) (event.Subscribed, error) {
	openedRecords, err := s.rooms.ListByMembership(userID, true)
	if err != nil {
		return event.Subscribed{}, err
	}
	availableRecords, err := s.rooms.ListByMembership(userID, false)
	if err != nil {
		return event.Subscribed{}, err
	}

	resolved := newResolver(s.users)
	opened := make([]domain.Room, 0, len(openedRecords))
	for _, record := range openedRecords {
		room, err := s.toRoom(record, resolved)
		if err != nil {
			return event.Subscribed{}, err
		}
		room.Messages, err = s.recentMessages(record.ID, resolved)
		if err != nil {
			return event.Subscribed{}, err
		}
		opened = append(opened, room)
	}

	available := make([]domain.Room, 0, len(availableRecords))
	for _, record := range availableRecords {
		room, err := s.toRoom(record, resolved)
		if err != nil {
			return event.Subscribed{}, err
		}
		available = append(available, room.Summary())
	}

	for _, room := range opened {
		s.registry.JoinRoom(connID, room.ID)
	}
	return event.Subscribed{Opened: opened, Available: available}, nil
}

// Create validates caption and avatar independently so the caller gets one
// message per offending field, stores the avatar, persists the room with
// the creator as sole member, and announces it to every other connection.
func (s *ChatService) Create(connID domain.ConnID, userID, caption, avatarName string, avatar io.Reader) (domain.Room, error) {
	fields := &errors.ValidationError{}
	if msg := captionError(caption); msg != "" {
		fields.Add("caption", msg)
	}

	var avatarRef string
	if avatar != nil {
		ref, err := s.avatars.Store(avatar, avatarName)
		if v, ok := errors.AsValidation(err); ok {
			fields.Add("avatar", v.Fields["avatar"])
		} else if err != nil {
			return domain.Room{}, err
		} else {
			avatarRef = ref
		}
	}

	if !fields.Empty() {
		// A stored avatar must not leak when another field failed.
		if avatarRef != "" {
			if err := s.avatars.Remove(avatarRef); err != nil {
				s.log.Warn("avatar cleanup failed", "ref", avatarRef, "error", err)
			}
		}
		return domain.Room{}, fields
	}

	record, err := s.rooms.Create(caption, userID, avatarRef)
	if err != nil {
		return domain.Room{}, err
	}

	room, err := s.toRoom(record, newResolver(s.users))
	if err != nil {
		return domain.Room{}, err
	}

	s.router.Submit(event.RoomCreated{Room: room.Summary()}, runtime.GlobalScope(connID))
	return room, nil
}

// Join adds the user to the room's member set (idempotent), returns the
// room with its recent history, subscribes the connection for delivery,
// and notifies the connections already subscribed to that room.
func (s *ChatService) Join(connID domain.ConnID, userID string, roomID domain.RoomID) (domain.Room, error) {
	if err := s.rooms.AddMember(string(roomID), userID); err != nil {
		return domain.Room{}, err
	}
	record, err := s.rooms.Get(string(roomID))
	if err != nil {
		return domain.Room{}, err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return domain.Room{}, err
	}

	resolved := newResolver(s.users)
	room, err := s.toRoom(record, resolved)
	if err != nil {
		return domain.Room{}, err
	}
	room.Messages, err = s.recentMessages(record.ID, resolved)
	if err != nil {
		return domain.Room{}, err
	}

	s.registry.JoinRoom(connID, roomID)
	s.router.Submit(event.UserJoined{User: toUser(user), RoomID: roomID},
		runtime.RoomScope(roomID, connID))
	return room, nil
}

// Leave removes the user from the member set, which fails with
// ErrCannotRemoveCreator when the requester created the room. The
// departing user's identity is fetched explicitly before broadcasting.
func (s *ChatService) Leave(connID domain.ConnID, userID string, roomID domain.RoomID) error {
	if err := s.rooms.RemoveMember(string(roomID), userID); err != nil {
		return err
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}

	s.registry.LeaveRoom(connID, roomID)
	s.router.Submit(event.UserLeft{User: toUser(user), RoomID: roomID},
		runtime.RoomScope(roomID, connID))
	return nil
}

// Post appends the message and broadcasts it to the room's subscribers,
// excluding the sender's own connection: the sender already receives the
// stored message through the direct response. Sender identity is resolved
// after the write so it reflects the current profile.
func (s *ChatService) Post(connID domain.ConnID, userID string, roomID domain.RoomID, text string) (domain.Message, error) {
	if _, err := s.rooms.Get(string(roomID)); err != nil {
		return domain.Message{}, err
	}
	record, err := s.messages.Append(string(roomID), userID, text)
	if err != nil {
		return domain.Message{}, err
	}

	sender, err := s.users.GetByID(userID)
	if err != nil {
		return domain.Message{}, err
	}
	message := toMessage(record, toUser(sender))

	s.router.Submit(event.MessagePosted{RoomID: roomID, Message: message},
		runtime.RoomScope(roomID, connID))
	return message, nil
}

// Delete removes a room owned by the requester together with its messages
// and avatar, then announces the deletion to every other connection.
func (s *ChatService) Delete(connID domain.ConnID, userID string, roomID domain.RoomID) error {
	record, err := s.rooms.Delete(string(roomID), userID)
	if err != nil {
		return err
	}
	if err := s.messages.Purge(string(roomID)); err != nil {
		return err
	}
	if err := s.avatars.Remove(record.Avatar); err != nil {
		s.log.Warn("avatar release failed", "ref", record.Avatar, "error", err)
	}

	s.registry.DropRoom(roomID)
	s.router.Submit(event.RoomDeleted{RoomID: roomID}, runtime.GlobalScope(connID))
	return nil
}

// Messages serves the anchored pagination modes over a room's log.
func (s *ChatService) Messages(roomID domain.RoomID, direction, anchor *string, limit *int) ([]domain.Message, error) {
	if _, err := s.rooms.Get(string(roomID)); err != nil {
		return nil, err
	}
	records, err := s.messages.Range(string(roomID), direction, anchor, limit)
	if err != nil {
		return nil, err
	}
	return s.resolveMessages(records, newResolver(s.users))
}

func (s *ChatService) ListOpened(userID string) ([]domain.Room, error) {
	return s.list(userID, true)
}

func (s *ChatService) ListAvailable(userID string) ([]domain.Room, error) {
	return s.list(userID, false)
}

func (s *ChatService) list(userID string, member bool) ([]domain.Room, error) {
	records, err := s.rooms.ListByMembership(userID, member)
	if err != nil {
		return nil, err
	}
	resolved := newResolver(s.users)
	rooms := make([]domain.Room, 0, len(records))
	for _, record := range records {
		room, err := s.toRoom(record, resolved)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room.Summary())
	}
	return rooms, nil
}

func (s *ChatService) recentMessages(roomID string, resolved *resolver) ([]domain.Message, error) {
	records, err := s.messages.Range(roomID, nil, nil, lo.ToPtr(s.messagesToLoad))
	if err != nil {
		return nil, err
	}
	return s.resolveMessages(records, resolved)
}

func (s *ChatService) resolveMessages(records []repositories.DiskMessage, resolved *resolver) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(records))
	for _, record := range records {
		sender, err := resolved.user(record.Sender)
		if err != nil {
			return nil, err
		}
		messages = append(messages, toMessage(record, sender))
	}
	return messages, nil
}

func (s *ChatService) toRoom(record repositories.DiskRoom, resolved *resolver) (domain.Room, error) {
	creator, err := resolved.user(record.Creator)
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{
		ID:      domain.RoomID(record.ID),
		Caption: record.Caption,
		Creator: creator,
		Avatar:  record.Avatar,
		Members: record.Members,
	}, nil
}

// resolver deduplicates identity lookups within a single operation. It is
// request-scoped on purpose: no identity is cached across operations.
type resolver struct {
	users repositories.IUserRepository
	seen  map[string]domain.User
}

func newResolver(users repositories.IUserRepository) *resolver {
	return &resolver{users: users, seen: make(map[string]domain.User)}
}

func (r *resolver) user(userID string) (domain.User, error) {
	if user, ok := r.seen[userID]; ok {
		return user, nil
	}
	record, err := r.users.GetByID(userID)
	if stderrors.Is(err, errors.ErrNotFound) {
		// A deleted account still appears as the sender of old messages.
		record = repositories.User{ID: userID}
	} else if err != nil {
		return domain.User{}, err
	}
	user := toUser(record)
	r.seen[userID] = user
	return user, nil
}

func toUser(record repositories.User) domain.User {
	return domain.User{
		ID:     record.ID,
		Name:   record.Name,
		Handle: record.Handle,
		Avatar: record.Avatar,
	}
}

func toMessage(record repositories.DiskMessage, sender domain.User) domain.Message {
	return domain.Message{
		ID:        record.ID,
		Sender:    sender,
		Content:   record.Content,
		CreatedAt: record.At,
	}
}

func captionError(caption string) string {
	if caption == "" {
		return "this field is required"
	}
	if n := utf8.RuneCountInString(caption); n < 3 || n > 40 {
		return "3 to 40 characters is required"
	}
	return ""
}
