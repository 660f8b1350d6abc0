package runtime

import (
	"context"
	"testing"

	"chat-server/domain"
	"chat-server/domain/event"

	"github.com/stretchr/testify/require"
)

// stubSink satisfies contract.EventSink without recording anything.
type stubSink struct{ id string }

func (s *stubSink) Consume(context.Context, event.DomainEvent) error { return nil }

func Test_SinksForRoom_Excludes_Origin(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("room-1")

	a, b := &stubSink{"a"}, &stubSink{"b"}
	registry.Register("conn-a", "user-a", a)
	registry.Register("conn-b", "user-b", b)
	registry.JoinRoom("conn-a", roomID)
	registry.JoinRoom("conn-b", roomID)

	sinks := registry.SinksForRoom(roomID, "conn-a")
	req.Len(sinks, 1)
	req.Same(b, sinks[0])

	// A connection outside the room resolves nothing for it.
	req.Empty(registry.SinksForRoom("room-2", "conn-a"))
}

func Test_Sinks_Covers_Every_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("conn-a", "user-a", &stubSink{"a"})
	registry.Register("conn-b", "user-b", &stubSink{"b"})
	registry.Register("conn-c", "user-c", &stubSink{"c"})

	req.Len(registry.Sinks("conn-a"), 2)
	req.Len(registry.Sinks(""), 3)
	req.Equal(3, registry.Count())
}

func Test_LeaveRoom_Detaches_Delivery(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("room-1")

	registry.Register("conn-a", "user-a", &stubSink{"a"})
	registry.JoinRoom("conn-a", roomID)
	registry.LeaveRoom("conn-a", roomID)

	req.Empty(registry.SinksForRoom(roomID, ""))
	// The session itself survives a room leave.
	req.Equal(1, registry.Count())
}

func Test_Deregister_Removes_Session_From_All_Rooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("conn-a", "user-a", &stubSink{"a"})
	registry.JoinRoom("conn-a", "room-1")
	registry.JoinRoom("conn-a", "room-2")

	registry.Deregister("conn-a")

	req.Empty(registry.SinksForRoom("room-1", ""))
	req.Empty(registry.SinksForRoom("room-2", ""))
	req.Zero(registry.Count())

	// Deregistering twice is harmless.
	registry.Deregister("conn-a")
}

func Test_DropRoom_Detaches_Everyone(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("doomed")

	registry.Register("conn-a", "user-a", &stubSink{"a"})
	registry.Register("conn-b", "user-b", &stubSink{"b"})
	registry.JoinRoom("conn-a", roomID)
	registry.JoinRoom("conn-b", roomID)

	registry.DropRoom(roomID)

	req.Empty(registry.SinksForRoom(roomID, ""))
	// Sessions themselves stay registered.
	req.Equal(2, registry.Count())
}

func Test_JoinRoom_Unknown_Connection_Is_Ignored(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.JoinRoom("ghost", "room-1")
	req.Empty(registry.SinksForRoom("room-1", ""))
}
