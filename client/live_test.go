package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubServer fakes just enough of the server for session tests: one live
// websocket per dial and a snapshot endpoint whose response can be held
// back to force events to arrive first.
type stubServer struct {
	t      *testing.T
	roomID uuid.UUID

	mu       sync.Mutex
	snapshot []Message
	conns    []*websocket.Conn

	// snapshotGate, when non-nil, blocks the snapshot response until closed.
	snapshotGate chan struct{}

	srv *httptest.Server
}

func newStubServer(t *testing.T, roomID uuid.UUID) *stubServer {
	t.Helper()
	s := &stubServer{t: t, roomID: roomID}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	prefix := "/api/v1/chat_rooms/" + roomID.String()

	mux.HandleFunc(prefix+"/live", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		s.mu.Lock()
		s.conns = append(s.conns, ws)
		s.mu.Unlock()
	})
	mux.HandleFunc(prefix+"/messages", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		gate := s.snapshotGate
		s.mu.Unlock()
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		s.mu.Lock()
		data, err := json.Marshal(s.snapshot)
		s.mu.Unlock()
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stubServer) client(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = s.srv.URL
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

// push sends an event over every open live connection, waiting briefly for
// the first dial to register if needed.
func (s *stubServer) push(ev Event) {
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		if len(s.conns) > 0 {
			for _, ws := range s.conns {
				require.NoError(s.t, ws.WriteJSON(ev))
			}
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		if time.Now().After(deadline) {
			s.t.Error("no live connection to push to")
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitFor(t *testing.T, s *RoomSession, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-s.Changed():
		case <-s.Done():
			if cond() {
				return
			}
			t.Fatal("session ended before condition held")
		case <-deadline:
			t.Fatal("condition never held")
		}
	}
}

func TestOpenRoomReachesLiveWithSnapshot(t *testing.T) {
	roomID := uuid.New()
	stub := newStubServer(t, roomID)
	base := time.Now().UTC().Truncate(time.Second)
	stub.mu.Lock()
	stub.snapshot = []Message{testMsgIn(roomID, 1, base, "hello")}
	stub.mu.Unlock()

	sess, err := stub.client(t).OpenRoom(context.Background(), roomID)
	require.NoError(t, err)
	defer sess.Close()

	waitFor(t, sess, func() bool { return sess.View().State() == ViewLive })
	assert.Equal(t, []int64{1}, ids(sess.View().Messages()))
}

func TestOpenRoomBuffersEventsUntilSnapshot(t *testing.T) {
	roomID := uuid.New()
	stub := newStubServer(t, roomID)
	base := time.Now().UTC().Truncate(time.Second)

	gate := make(chan struct{})
	stub.mu.Lock()
	stub.snapshotGate = gate
	stub.snapshot = []Message{testMsgIn(roomID, 1, base, "in snapshot")}
	stub.mu.Unlock()

	sess, err := stub.client(t).OpenRoom(context.Background(), roomID)
	require.NoError(t, err)
	defer sess.Close()

	// Events arrive while the snapshot is still in flight: a duplicate of
	// a snapshot message and a genuinely new one.
	m1 := testMsgIn(roomID, 1, base, "in snapshot")
	m2 := testMsgIn(roomID, 2, base.Add(time.Second), "streamed only")
	stub.push(Event{Type: EventCreated, RoomID: roomID, MessageID: 1, Message: &m1})
	stub.push(Event{Type: EventCreated, RoomID: roomID, MessageID: 2, Message: &m2})

	require.Equal(t, ViewLoading, sess.View().State())
	close(gate)

	waitFor(t, sess, func() bool { return sess.View().State() == ViewLive })
	waitFor(t, sess, func() bool { return len(sess.View().Messages()) == 2 })
	assert.Equal(t, []int64{1, 2}, ids(sess.View().Messages()))
}

func TestLiveEventsUpdateViewAfterSnapshot(t *testing.T) {
	roomID := uuid.New()
	stub := newStubServer(t, roomID)
	base := time.Now().UTC().Truncate(time.Second)
	stub.mu.Lock()
	stub.snapshot = []Message{testMsgIn(roomID, 1, base, "original")}
	stub.mu.Unlock()

	sess, err := stub.client(t).OpenRoom(context.Background(), roomID)
	require.NoError(t, err)
	defer sess.Close()
	waitFor(t, sess, func() bool { return sess.View().State() == ViewLive })

	edited := testMsgIn(roomID, 1, base, "edited")
	stub.push(Event{Type: EventUpdated, RoomID: roomID, MessageID: 1, Message: &edited})
	waitFor(t, sess, func() bool {
		msgs := sess.View().Messages()
		return len(msgs) == 1 && msgs[0].Content == "edited"
	})

	stub.push(Event{Type: EventDeleted, RoomID: roomID, MessageID: 1})
	waitFor(t, sess, func() bool { return len(sess.View().Messages()) == 0 })
}

func TestCloseWhileSnapshotInFlight(t *testing.T) {
	roomID := uuid.New()
	stub := newStubServer(t, roomID)

	gate := make(chan struct{})
	stub.mu.Lock()
	stub.snapshotGate = gate
	stub.snapshot = []Message{testMsgIn(roomID, 1, time.Now(), "late")}
	stub.mu.Unlock()

	sess, err := stub.client(t).OpenRoom(context.Background(), roomID)
	require.NoError(t, err)

	sess.Close()
	close(gate)

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never finished closing")
	}
	assert.Equal(t, ViewClosed, sess.View().State())
	assert.Empty(t, sess.View().Messages(), "a late snapshot must not resurrect a closed view")
}

func TestCloseReleasesUndrainedReader(t *testing.T) {
	roomID := uuid.New()
	stub := newStubServer(t, roomID)

	live, err := stub.client(t).Live(context.Background(), roomID)
	require.NoError(t, err)

	// Fill the delivery buffer plus one, so the read loop ends up parked on
	// the channel send with nobody receiving.
	base := time.Now().UTC().Truncate(time.Second)
	for i := int64(1); i <= int64(liveQueueSize)+1; i++ {
		m := testMsgIn(roomID, i, base.Add(time.Duration(i)*time.Second), "m")
		stub.push(Event{Type: EventCreated, RoomID: roomID, MessageID: i, Message: &m})
	}
	require.Eventually(t, func() bool { return len(live.events) == liveQueueSize },
		2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond) // let the loop park on the overflow send

	require.NoError(t, live.Close())

	// Closing must release the parked loop on its own: the stream ends
	// after at most the buffered events, without the consumer having
	// drained anything first. A send that was parked when Close ran is
	// dropped, not delivered.
	deadline := time.After(2 * time.Second)
	received := 0
	for {
		select {
		case _, ok := <-live.Events():
			if !ok {
				assert.LessOrEqual(t, received, liveQueueSize,
					"events parked behind a full buffer are dropped on close")
				return
			}
			received++
		case <-deadline:
			t.Fatal("event stream never closed after Close")
		}
	}
}

func TestLiveURLSchemes(t *testing.T) {
	roomID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	url, err := liveURL("http://example.com:8080", roomID)
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com:8080/api/v1/chat_rooms/"+roomID.String()+"/live", url)

	url, err = liveURL("https://example.com", roomID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "wss://"))

	_, err = liveURL("ftp://example.com", roomID)
	assert.Error(t, err)
}

func testMsgIn(roomID uuid.UUID, id int64, at time.Time, content string) Message {
	return Message{
		ID:          id,
		ChatRoomID:  roomID,
		SenderEmail: "alice@example.com",
		SenderName:  "Alice",
		Content:     content,
		CreatedAt:   at,
	}
}
