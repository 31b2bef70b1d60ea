// Package session bridges one websocket connection to the broker.
//
// A session subscribes its connection to the room requested at handshake,
// then pumps broker events to the socket in the order they were delivered —
// no reordering, no batching, no dropping beyond the broker's own queue
// bound. The client may send join frames to switch rooms; switching
// resubscribes, which implicitly tears down the previous room membership.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/roomcast/internal/broker"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong before the peer is considered gone.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are tiny control messages (join), so keep the limit low.
	maxMessageSize = 512
)

// inboundFrame is the only client-to-server shape on the live channel.
type inboundFrame struct {
	Type   string    `json:"type"`
	RoomID uuid.UUID `json:"room_id"`
}

// Session owns one websocket attachment for its whole lifetime.
type Session struct {
	ws     *websocket.Conn
	broker *broker.Broker
	conn   *broker.Connection
	logger *zap.Logger

	// subCh hands replacement subscriptions from the read pump (which
	// processes join frames) to the write pump. Capacity one: an
	// intermediate subscription that was already replaced again is stale
	// and safe to discard.
	subCh chan *broker.Subscription

	closeOnce sync.Once
	done      chan struct{}
}

// New attaches ws to the broker and subscribes it to roomID. The returned
// session is not running yet; call Run (it blocks until teardown).
func New(ws *websocket.Conn, b *broker.Broker, roomID uuid.UUID, logger *zap.Logger) (*Session, error) {
	conn := b.NewConnection()
	sub, err := b.Subscribe(conn, roomID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ws:     ws,
		broker: b,
		conn:   conn,
		logger: logger.With(zap.String("conn_id", conn.ID().String())),
		subCh:  make(chan *broker.Subscription, 1),
		done:   make(chan struct{}),
	}
	s.subCh <- sub
	return s, nil
}

// Run pumps events until the peer disconnects or the socket fails, then
// cleans up. Safe to call exactly once.
func (s *Session) Run() {
	go s.writePump()
	s.readPump()
}

// close tears everything down exactly once: broker connection first (so the
// write pump's event channel closes), then the socket, then done.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.broker.CloseConnection(s.conn)
		close(s.done)
		_ = s.ws.Close()
		s.logger.Debug("session closed")
	})
}

// readPump consumes inbound frames: join requests switch rooms, read errors
// mean the peer is gone. Also services pong deadlines.
func (s *Session) readPump() {
	defer s.close()

	s.ws.SetReadLimit(maxMessageSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("invalid inbound frame", zap.Error(err))
			continue
		}

		switch frame.Type {
		case "join":
			sub, err := s.broker.Subscribe(s.conn, frame.RoomID)
			if err != nil {
				// Connection already closed under us; bail out.
				s.logger.Warn("join failed", zap.Error(err))
				return
			}
			s.handoff(sub)
			s.logger.Debug("switched room", zap.String("room_id", frame.RoomID.String()))
		default:
			s.logger.Warn("unknown frame type", zap.String("type", frame.Type))
		}
	}
}

// handoff delivers a replacement subscription to the write pump, discarding
// any stale one still sitting in the channel.
func (s *Session) handoff(sub *broker.Subscription) {
	for {
		select {
		case s.subCh <- sub:
			return
		default:
			select {
			case <-s.subCh:
			default:
			}
		}
	}
}

// writePump forwards broker events to the socket and keeps the connection
// alive with pings. It tracks the current subscription locally; when the
// subscription's channel closes (room switch or teardown) it waits for the
// replacement or for done.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	var sub *broker.Subscription

	for {
		if sub == nil {
			select {
			case sub = <-s.subCh:
			case <-s.done:
				return
			}
			continue
		}

		select {
		case ev, ok := <-sub.Events():
			if !ok {
				// Replaced or torn down; pick up the successor if any.
				sub = nil
				continue
			}
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteJSON(ev); err != nil {
				s.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		case replacement := <-s.subCh:
			sub = replacement
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
