package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-server/contract"
	"chat-server/domain"
	"chat-server/domain/event"
)

// Scope names the set of connections an event is delivered to. A zero
// RoomID targets every registered connection. Origin is always excluded:
// the originating connection already has the result via its direct
// response.
type Scope struct {
	RoomID domain.RoomID
	Origin domain.ConnID
}

func RoomScope(roomID domain.RoomID, origin domain.ConnID) Scope {
	return Scope{RoomID: roomID, Origin: origin}
}

func GlobalScope(origin domain.ConnID) Scope {
	return Scope{Origin: origin}
}

type Submission struct {
	Event event.DomainEvent
	Scope Scope
}

// Router fans domain events out to the connections a scope resolves to.
//
// Delivery is best-effort and fire-and-forget: a failed send to one sink
// neither aborts delivery to the others nor propagates to the operation
// that triggered the broadcast. A single goroutine drains the submission
// queue, which is what gives each connection FIFO delivery relative to
// submission order. No ordering is promised across connections.
type Router struct {
	log         *slog.Logger
	registry    contract.IRegistry
	submissions chan Submission
	sinkTimeout time.Duration
}

func NewRouter(log *slog.Logger, registry contract.IRegistry,
	bufferSize int, sinkTimeout time.Duration) *Router {
	return &Router{
		log:         log,
		registry:    registry,
		submissions: make(chan Submission, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

// Submit enqueues an event for fan-out. It never blocks the caller: when
// the queue is full the event is dropped and logged, the triggering
// operation has already committed to durable state.
func (r *Router) Submit(e event.DomainEvent, scope Scope) {
	select {
	case r.submissions <- Submission{Event: e, Scope: scope}:
	default:
		r.log.Warn("submission queue full, dropping event", "event", e.Name())
	}
}

// Run drains the submission queue until the context is canceled.
// Router is a contract.Worker and runs under the supervisor.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Context done, stopping router")
			return nil
		case sub := <-r.submissions:
			r.fanout(ctx, sub)
		}
	}
}

func (r *Router) fanout(ctx context.Context, sub Submission) {
	var sinks []contract.EventSink
	if sub.Scope.RoomID != "" {
		sinks = r.registry.SinksForRoom(sub.Scope.RoomID, sub.Scope.Origin)
	} else {
		sinks = r.registry.Sinks(sub.Scope.Origin)
	}

	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
		if err := sink.Consume(sinkCtx, sub.Event); err != nil {
			r.log.Debug("event delivery failed",
				"event", sub.Event.Name(), "error", err)
		}
		cancel()
	}
}
