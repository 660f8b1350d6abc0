package runtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chat-server/contract"
	"chat-server/domain"
	"chat-server/domain/event"
	"chat-server/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_Router_Fanout_Room_Scope(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromString("debug")
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registryMock := mocks.NewMockIRegistry(ctrl)
	sink1 := mocks.NewMockEventSink(ctrl)
	sink2 := mocks.NewMockEventSink(ctrl)

	roomID := domain.RoomID("room-1")
	origin := domain.ConnID("conn-origin")
	posted := event.MessagePosted{RoomID: roomID}

	registryMock.EXPECT().
		SinksForRoom(roomID, origin).
		Return([]contract.EventSink{sink1, sink2})

	delivered := make(chan struct{}, 2)
	sink1.EXPECT().Consume(gomock.Any(), posted).
		DoAndReturn(func(context.Context, event.DomainEvent) error {
			delivered <- struct{}{}
			return nil
		})
	sink2.EXPECT().Consume(gomock.Any(), posted).
		DoAndReturn(func(context.Context, event.DomainEvent) error {
			delivered <- struct{}{}
			return nil
		})

	router := NewRouter(log, registryMock, 8, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()

	router.Submit(posted, RoomScope(roomID, origin))

	for i := 0; i < 2; i++ {
		select {
		case <-delivered:
		case <-time.After(time.Second):
			req.Fail("event was not fanned out in time")
		}
	}
}

func Test_Router_Global_Scope_Uses_All_Sinks(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromString("debug")
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registryMock := mocks.NewMockIRegistry(ctrl)
	sink := mocks.NewMockEventSink(ctrl)

	origin := domain.ConnID("conn-origin")
	created := event.RoomCreated{}

	registryMock.EXPECT().
		Sinks(origin).
		Return([]contract.EventSink{sink})

	delivered := make(chan struct{}, 1)
	sink.EXPECT().Consume(gomock.Any(), created).
		DoAndReturn(func(context.Context, event.DomainEvent) error {
			delivered <- struct{}{}
			return nil
		})

	router := NewRouter(log, registryMock, 8, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()

	router.Submit(created, GlobalScope(origin))

	select {
	case <-delivered:
	case <-time.After(time.Second):
		req.Fail("event was not fanned out in time")
	}
}

func Test_Router_One_Failing_Sink_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromString("debug")
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registryMock := mocks.NewMockIRegistry(ctrl)
	failing := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)

	roomID := domain.RoomID("room-1")
	posted := event.MessagePosted{RoomID: roomID}

	registryMock.EXPECT().
		SinksForRoom(roomID, domain.ConnID("")).
		Return([]contract.EventSink{failing, healthy})

	failing.EXPECT().Consume(gomock.Any(), posted).
		Return(fmt.Errorf("connection gone"))

	delivered := make(chan struct{}, 1)
	healthy.EXPECT().Consume(gomock.Any(), posted).
		DoAndReturn(func(context.Context, event.DomainEvent) error {
			delivered <- struct{}{}
			return nil
		})

	router := NewRouter(log, registryMock, 8, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()

	router.Submit(posted, RoomScope(roomID, ""))

	select {
	case <-delivered:
	case <-time.After(time.Second):
		req.Fail("healthy sink should still receive the event")
	}
}

func Test_Router_Preserves_Submission_Order_Per_Sink(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromString("debug")
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registryMock := mocks.NewMockIRegistry(ctrl)
	sink := mocks.NewMockEventSink(ctrl)
	roomID := domain.RoomID("room-1")

	registryMock.EXPECT().
		SinksForRoom(roomID, domain.ConnID("")).
		Return([]contract.EventSink{sink}).
		Times(3)

	received := make(chan event.DomainEvent, 3)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			received <- e
			return nil
		}).
		Times(3)

	router := NewRouter(log, registryMock, 8, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()

	events := []event.DomainEvent{
		event.UserJoined{RoomID: roomID},
		event.MessagePosted{RoomID: roomID},
		event.UserLeft{RoomID: roomID},
	}
	for _, e := range events {
		router.Submit(e, RoomScope(roomID, ""))
	}

	for _, expected := range events {
		select {
		case got := <-received:
			req.Equal(expected, got)
		case <-time.After(time.Second):
			req.Fail("missing event")
		}
	}
}
