package client

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ViewState is the lifecycle of a room view.
type ViewState int

const (
	// ViewLoading means the live channel is attached but the snapshot has
	// not landed yet; incoming events are buffered, not applied.
	ViewLoading ViewState = iota

	// ViewLive means the snapshot is in and buffered events have been
	// replayed; new events apply immediately.
	ViewLive

	// ViewClosed is terminal; all input is dropped.
	ViewClosed
)

func (s ViewState) String() string {
	switch s {
	case ViewLoading:
		return "loading"
	case ViewLive:
		return "live"
	case ViewClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RoomView reconciles a REST snapshot with the live event stream into one
// ordered message list.
//
// The ordering problem it solves: the snapshot and the stream race. An
// event can describe a message the snapshot already contains (created), a
// message the snapshot missed (created after the query ran), or a message
// the snapshot contains but the stream has since changed (updated/deleted).
// Buffering events until the snapshot lands and then replaying them with
// idempotent rules makes every interleaving converge to the same list:
//
//   - created: already present by ID, ignore; otherwise insert in order.
//   - updated: present, replace the record; absent, insert in order (the
//     update raced past the create, and it carries the full record).
//   - deleted: present, remove; absent, no-op.
//
// Messages are ordered by (created_at, id) ascending; both fields are
// immutable, so an in-place replace never moves a message.
//
// All methods are safe for concurrent use.
type RoomView struct {
	mu       sync.Mutex
	state    ViewState
	messages []Message
	pending  []Event
}

// NewRoomView returns a view in ViewLoading.
func NewRoomView() *RoomView {
	return &RoomView{state: ViewLoading}
}

// State returns the current lifecycle state.
func (v *RoomView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Messages returns a copy of the current ordered list.
func (v *RoomView) Messages() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Apply feeds one live event into the view. While loading it is buffered;
// while live it reconciles immediately; after close it is dropped.
// The return value reports whether the visible list may have changed.
func (v *RoomView) Apply(ev Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case ViewLoading:
		v.pending = append(v.pending, ev)
		return false
	case ViewLive:
		return v.reconcile(ev)
	default:
		return false
	}
}

// ApplySnapshot seeds the view with the REST snapshot and replays every
// buffered event, moving the view to ViewLive. Only the first snapshot in
// ViewLoading counts; later or post-close snapshots are ignored, so a
// fetch that completes after Close cannot resurrect the view.
func (v *RoomView) ApplySnapshot(messages []Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != ViewLoading {
		return
	}

	v.messages = make([]Message, len(messages))
	copy(v.messages, messages)
	sort.SliceStable(v.messages, func(i, j int) bool {
		return v.messages[i].before(v.messages[j])
	})

	for _, ev := range v.pending {
		v.reconcile(ev)
	}
	v.pending = nil
	v.state = ViewLive
}

// Close moves the view to its terminal state and drops any buffer.
func (v *RoomView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = ViewClosed
	v.pending = nil
}

// reconcile applies one event to the list. Caller holds v.mu.
func (v *RoomView) reconcile(ev Event) bool {
	switch ev.Type {
	case EventCreated:
		if ev.Message == nil {
			return false
		}
		if v.indexOf(ev.Message.ID) >= 0 {
			// Snapshot already included it, or the stream re-delivered.
			return false
		}
		v.insert(*ev.Message)
		return true

	case EventUpdated:
		if ev.Message == nil {
			return false
		}
		if i := v.indexOf(ev.Message.ID); i >= 0 {
			v.messages[i] = *ev.Message
			return true
		}
		// Update raced past the create; the event carries the full record,
		// so treat it as the insert.
		v.insert(*ev.Message)
		return true

	case EventDeleted:
		if i := v.indexOf(ev.MessageID); i >= 0 {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
			return true
		}
		return false

	default:
		return false
	}
}

func (v *RoomView) indexOf(id int64) int {
	for i := range v.messages {
		if v.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// insert places msg at its (created_at, id) position.
func (v *RoomView) insert(msg Message) {
	i := sort.Search(len(v.messages), func(i int) bool {
		return msg.before(v.messages[i])
	})
	v.messages = append(v.messages, Message{})
	copy(v.messages[i+1:], v.messages[i:])
	v.messages[i] = msg
}

// RoomSession ties a RoomView to a running connection: it opens the live
// channel, fetches the snapshot, pumps events into the view, and signals
// changes. Create one with Client.OpenRoom.
type RoomSession struct {
	RoomID uuid.UUID

	view   *RoomView
	live   *LiveConn
	logger *zap.Logger

	// changed is a coalesced notification: at most one signal is pending
	// at a time, so a slow UI sees "something changed", not a backlog.
	changed chan struct{}

	cancelSnapshot context.CancelFunc
	closeOnce      sync.Once
	done           chan struct{}
}

// OpenRoom attaches to a room. The live channel is dialed first and the
// snapshot fetched after, which guarantees no event can fall into the gap
// between the two: anything published after the dial is either in the
// snapshot or in the buffer the view replays.
func (c *Client) OpenRoom(ctx context.Context, roomID uuid.UUID) (*RoomSession, error) {
	live, err := c.Live(ctx, roomID)
	if err != nil {
		return nil, err
	}

	snapCtx, cancel := context.WithCancel(context.Background())
	s := &RoomSession{
		RoomID:         roomID,
		view:           NewRoomView(),
		live:           live,
		logger:         c.logger,
		changed:        make(chan struct{}, 1),
		cancelSnapshot: cancel,
		done:           make(chan struct{}),
	}

	go s.pump()
	go s.fetchSnapshot(snapCtx, c)

	return s, nil
}

// View exposes the reconciled message list.
func (s *RoomSession) View() *RoomView {
	return s.view
}

// Changed signals (coalesced) whenever the visible list may have changed,
// including the transition to live. The channel is never closed; select
// against Done for teardown.
func (s *RoomSession) Changed() <-chan struct{} {
	return s.changed
}

// Done is closed when the session has fully shut down, either by Close or
// because the live channel dropped.
func (s *RoomSession) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down: the snapshot fetch is cancelled, the live
// channel closed, and the view moved to its terminal state. Idempotent.
func (s *RoomSession) Close() {
	s.closeOnce.Do(func() {
		s.cancelSnapshot()
		s.view.Close()
		_ = s.live.Close()
		close(s.done)
	})
}

func (s *RoomSession) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// pump moves live events into the view until the stream ends.
func (s *RoomSession) pump() {
	for ev := range s.live.Events() {
		if ev.RoomID != s.RoomID {
			continue
		}
		if s.view.Apply(ev) {
			s.notify()
		}
	}
	// Stream gone; a view without a live feed is stale, not live.
	s.Close()
}

func (s *RoomSession) fetchSnapshot(ctx context.Context, c *Client) {
	messages, err := c.GetMessages(ctx, s.RoomID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("snapshot fetch failed", zap.Error(err))
		s.Close()
		return
	}
	s.view.ApplySnapshot(messages)
	s.notify()
}
