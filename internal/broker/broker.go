// Package broker is the in-memory publish/subscribe router for room events.
//
// One Broker serves the whole process. Each live transport attachment owns a
// Connection; a Connection holds at most one Subscription at a time, and
// subscribing again atomically replaces the previous room membership.
// Publish fans an event out to every subscription registered in the room at
// the time of the call — connections that subscribe later must seed
// themselves from the REST snapshot, there is no retroactive delivery.
//
// Delivery contract: per-subscription delivery preserves publish order; a
// slow consumer's queue fills and overflow is dropped (best-effort
// at-most-once) so one stuck connection never stalls the rest of the room.
package broker

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrConnectionClosed is returned by Subscribe and Unsubscribe after the
// connection has been torn down.
var ErrConnectionClosed = errors.New("broker: connection closed")

// queueSize bounds each subscription's delivery buffer. Sized so a client
// stalled for a moment under normal chat traffic loses nothing, while a
// truly wedged one caps its memory footprint.
const queueSize = 64

// Broker routes events to room subscribers. Safe for concurrent use by many
// connection goroutines. Room subscriber sets are guarded per room so
// unrelated rooms never contend; the top-level map lock is held only long
// enough to find or create a room entry.
type Broker struct {
	logger *zap.Logger

	mu    sync.Mutex
	rooms map[uuid.UUID]*room
}

type room struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Connection represents one transport attachment. It exists so the broker
// can enforce the one-subscription-per-connection invariant and reject
// operations after teardown.
type Connection struct {
	id uuid.UUID

	mu     sync.Mutex
	closed bool
	sub    *Subscription
}

// ID identifies the connection in logs.
func (c *Connection) ID() uuid.UUID { return c.id }

// Subscription is a connection's membership in one room. Events arrive on
// its channel in publish order; the channel closes when the subscription is
// replaced, unsubscribed, or the connection closes.
type Subscription struct {
	conn   *Connection
	roomID uuid.UUID
	events chan Event

	closeOnce sync.Once
}

// Events is the delivery queue. Receive-only; closed on teardown.
func (s *Subscription) Events() <-chan Event { return s.events }

// RoomID reports which room this subscription is bound to.
func (s *Subscription) RoomID() uuid.UUID { return s.roomID }

func New(logger *zap.Logger) *Broker {
	return &Broker{
		logger: logger,
		rooms:  make(map[uuid.UUID]*room),
	}
}

// NewConnection allocates a connection handle for one transport attachment.
func (b *Broker) NewConnection() *Connection {
	return &Connection{id: uuid.New()}
}

// Subscribe registers the connection under roomID, lazily allocating the
// room's routing state. If the connection already holds a subscription —
// same room or another — that subscription is torn down first, so a
// connection is never a member of two rooms.
func (b *Broker) Subscribe(conn *Connection, roomID uuid.UUID) (*Subscription, error) {
	sub := &Subscription{
		conn:   conn,
		roomID: roomID,
		events: make(chan Event, queueSize),
	}

	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	prev := conn.sub
	conn.sub = sub
	conn.mu.Unlock()

	if prev != nil {
		b.detach(prev)
	}

	n := b.attach(sub)

	// Between publishing conn.sub above and the room insert, a concurrent
	// CloseConnection (or a newer Subscribe on the same connection) may
	// have already detached sub — before it was in the set, so the
	// removal missed and the insert just registered a dead subscription
	// that no teardown path will ever see again. Re-check and undo.
	conn.mu.Lock()
	closed := conn.closed
	replaced := conn.sub != sub
	conn.mu.Unlock()
	if closed || replaced {
		b.detach(sub)
		if closed {
			return nil, ErrConnectionClosed
		}
		// Replaced: the newer subscription owns the connection now; the
		// caller gets its subscription back with the channel closed,
		// exactly as if the replacement had happened a moment later.
		return sub, nil
	}

	b.logger.Debug("subscribed",
		zap.String("conn_id", conn.id.String()),
		zap.String("room_id", roomID.String()),
		zap.Int("room_subscribers", n),
	)
	return sub, nil
}

// attach inserts the subscription into its room's set, lazily allocating
// the room. Lock order is broker map, then room; detach and Publish follow
// the same order.
func (b *Broker) attach(sub *Subscription) int {
	b.mu.Lock()
	r, ok := b.rooms[sub.roomID]
	if !ok {
		r = &room{subs: make(map[*Subscription]struct{})}
		b.rooms[sub.roomID] = r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b.mu.Unlock()

	r.subs[sub] = struct{}{}
	return len(r.subs)
}

// Unsubscribe removes the subscription from its room. Calling it on an
// already-removed subscription is a no-op; calling it through a closed
// connection reports ErrConnectionClosed.
func (b *Broker) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}
	conn := sub.conn

	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return ErrConnectionClosed
	}
	if conn.sub == sub {
		conn.sub = nil
	}
	conn.mu.Unlock()

	b.detach(sub)
	return nil
}

// CloseConnection tears down the connection and whatever subscription it
// holds. Idempotent — transport layers call it from multiple cleanup paths.
func (b *Broker) CloseConnection(conn *Connection) {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return
	}
	conn.closed = true
	prev := conn.sub
	conn.sub = nil
	conn.mu.Unlock()

	if prev != nil {
		b.detach(prev)
	}
	b.logger.Debug("connection closed", zap.String("conn_id", conn.id.String()))
}

// Publish delivers ev to every subscription currently in roomID. A room
// with no subscribers is a no-op, not an error. Each send is non-blocking:
// a full queue drops the event for that subscriber only.
func (b *Broker) Publish(roomID uuid.UUID, ev Event) {
	b.mu.Lock()
	r, ok := b.rooms[roomID]
	if !ok {
		b.mu.Unlock()
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b.mu.Unlock()

	for sub := range r.subs {
		select {
		case sub.events <- ev:
		default:
			// Queue full: this consumer is wedged. Dropping here keeps
			// delivery to the rest of the room moving; the consumer's own
			// transport keepalive will eventually reap it.
			b.logger.Warn("subscriber queue full, dropping event",
				zap.String("conn_id", sub.conn.id.String()),
				zap.String("room_id", roomID.String()),
				zap.String("event_type", string(ev.Type)),
				zap.Int64("message_id", ev.MessageID),
			)
		}
	}
}

// detach removes the subscription from its room's set, closes its delivery
// channel, and reclaims the room entry if it became empty. The channel is
// closed only after the subscription is out of the set, so no publisher can
// race a send against the close.
func (b *Broker) detach(sub *Subscription) {
	empty := func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		r, ok := b.rooms[sub.roomID]
		if !ok {
			return false
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, sub)
		if len(r.subs) == 0 {
			delete(b.rooms, sub.roomID)
			return true
		}
		return false
	}()

	sub.closeOnce.Do(func() { close(sub.events) })

	if empty {
		b.logger.Debug("room empty, routing state reclaimed",
			zap.String("room_id", sub.roomID.String()))
	}
}
