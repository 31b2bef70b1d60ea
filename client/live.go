package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// liveQueueSize bounds events buffered between the socket reader and the
// consumer. Matches the server-side per-subscription queue.
const liveQueueSize = 64

// LiveConn is one live-channel websocket. Events arrive on Events() in the
// order the server published them; the channel closes when the connection
// drops or Close is called.
type LiveConn struct {
	ws     *websocket.Conn
	events chan Event
	logger *zap.Logger

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// Live opens the live channel for a room. The subscription is active as
// soon as this returns; events published after that point will be
// delivered. No token is required.
func (c *Client) Live(ctx context.Context, roomID uuid.UUID) (*LiveConn, error) {
	wsURL, err := liveURL(c.cfg.BaseURL, roomID)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, apiError(resp.StatusCode, resp.Status)
		}
		return nil, fmt.Errorf("%w: dial live channel: %v", ErrNetwork, err)
	}

	l := &LiveConn{
		ws:           ws,
		events:       make(chan Event, liveQueueSize),
		logger:       c.logger,
		writeTimeout: c.cfg.WriteTimeout,
		done:         make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

func liveURL(baseURL string, roomID uuid.UUID) (string, error) {
	var scheme string
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		scheme = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		scheme = "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return "", fmt.Errorf("unsupported base URL scheme: %s", baseURL)
	}
	return scheme + "/api/v1/chat_rooms/" + roomID.String() + "/live", nil
}

// Events returns the inbound event stream. Closed on disconnect.
func (l *LiveConn) Events() <-chan Event {
	return l.events
}

// Join switches this connection to another room. The server atomically
// replaces the old subscription, so events from the previous room stop and
// events from the new one start with no overlap.
func (l *LiveConn) Join(roomID uuid.UUID) error {
	frame := struct {
		Type   string    `json:"type"`
		RoomID uuid.UUID `json:"room_id"`
	}{Type: "join", RoomID: roomID}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal join frame: %w", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.ws.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	if err := l.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send join frame: %w", err)
	}
	return nil
}

// Close tears the connection down. Idempotent; the event channel closes
// shortly after as the read loop exits.
func (l *LiveConn) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.writeMu.Lock()
		_ = l.ws.SetWriteDeadline(time.Now().Add(l.writeTimeout))
		_ = l.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.writeMu.Unlock()
		_ = l.ws.Close()
	})
	return nil
}

// readLoop decodes server frames into events until the socket fails. The
// server pings periodically; gorilla's default ping handler answers from
// inside ReadMessage, so no extra goroutine is needed for keepalive.
func (l *LiveConn) readLoop() {
	defer close(l.events)
	defer l.Close()

	for {
		var ev Event
		if err := l.ws.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.logger.Warn("live channel read error", zap.Error(err))
			}
			return
		}
		// Delivery blocks on purpose: the server already bounds its own
		// queue and drops when a consumer stalls, so the SDK side
		// preserves everything it actually received. Close still releases
		// a parked send so an undrained consumer cannot leak this loop.
		select {
		case l.events <- ev:
		case <-l.done:
			return
		}
	}
}
