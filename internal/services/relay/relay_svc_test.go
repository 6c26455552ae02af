package relay

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomrelay/internal/lifecycle"
	"roomrelay/internal/rooms"
	"roomrelay/internal/sessions"
)

type inbox struct {
	mu     sync.Mutex
	byConn map[string][]Notification
}

func newInbox() *inbox { return &inbox{byConn: make(map[string][]Notification)} }

func (b *inbox) Send(connID string, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byConn[connID] = append(b.byConn[connID], n)
}

func (b *inbox) of(connID string) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notification(nil), b.byConn[connID]...)
}

func (b *inbox) events(connID string) []string {
	var out []string
	for _, n := range b.of(connID) {
		out = append(out, n.Event)
	}
	return out
}

func (b *inbox) last(connID string) Notification {
	list := b.of(connID)
	if len(list) == 0 {
		return Notification{}
	}
	return list[len(list)-1]
}

// first returns the earliest notification of the given event sent to connID.
func (b *inbox) first(connID, event string) (Notification, bool) {
	for _, n := range b.of(connID) {
		if n.Event == event {
			return n, true
		}
	}
	return Notification{}, false
}

func (b *inbox) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byConn = make(map[string][]Notification)
}

type eventLog struct {
	mu     sync.Mutex
	events []lifecycle.Event
}

func (l *eventLog) Record(evt lifecycle.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc   IRelayService
	out   *inbox
	log   *eventLog
	store *rooms.Store
	reg   *sessions.Registry
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		out:   newInbox(),
		log:   &eventLog{},
		store: rooms.NewStore(),
		reg:   sessions.NewRegistry(),
	}
	f.svc = NewRelayService(f.store, f.reg, f.out, f.log, opts)
	t.Cleanup(func() { _ = f.svc.Shutdown(context.Background()) })
	return f
}

var ctx = context.Background()

func TestRelay_ChatScenario(t *testing.T) {
	f := newFixture(t, Options{CloseGrace: 50 * time.Millisecond, EmptyGrace: time.Second})

	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	created := f.out.last("a")
	assert.Equal(t, EventRoomCreated, created.Event)
	assert.Equal(t, RoomCreatedBody{RoomCode: "abc12", Username: "alice", IsCreator: true, UserCount: 1, IsCustom: true}, created.Body)

	require.NoError(t, f.svc.JoinRoom(ctx, "b", "abc12", "bob"))
	joined := f.out.last("a")
	assert.Equal(t, EventUserJoined, joined.Event)
	assert.Equal(t, "bob", joined.Body.(PresenceBody).Username)
	assert.Equal(t, 2, joined.Body.(PresenceBody).UserCount)

	bob := f.out.of("b")
	require.Len(t, bob, 2)
	assert.Equal(t, EventMessageHistory, bob[0].Event)
	assert.Empty(t, bob[0].Body.(MessageHistoryBody).Messages)
	assert.Equal(t, EventRoomJoined, bob[1].Event)
	assert.Equal(t, RoomJoinedBody{RoomCode: "abc12", Username: "bob", UserCount: 2, IsCustom: true}, bob[1].Body)

	f.out.reset()
	require.NoError(t, f.svc.SendMessage(ctx, "a", "hi"))
	for _, conn := range []string{"a", "b"} {
		n := f.out.last(conn)
		require.Equal(t, EventNewMessage, n.Event, conn)
		msg := n.Body.(rooms.Message)
		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, "hi", msg.Content)
		assert.Equal(t, rooms.MessageTypeUser, msg.Type)
		assert.NotEmpty(t, msg.ID)
	}

	f.out.reset()
	closedAt := time.Now()
	require.NoError(t, f.svc.CloseRoom(ctx, "a"))
	for _, conn := range []string{"a", "b"} {
		n := f.out.last(conn)
		require.Equal(t, EventRoomClosed, n.Event)
		assert.Equal(t, "alice", n.Body.(RoomClosedBody).ClosedBy)
	}

	// closed but not yet destroyed: joins are refused as closed
	assert.ErrorIs(t, f.svc.JoinRoom(ctx, "c", "abc12", "carol"), rooms.ErrRoomClosed)

	require.Eventually(t, func() bool {
		return f.out.last("b").Event == EventForceDisconnect
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(closedAt), 50*time.Millisecond)
	assert.Equal(t, EventForceDisconnect, f.out.last("a").Event)

	require.Eventually(t, func() bool {
		_, ok := f.svc.Room("abc12")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, f.svc.JoinRoom(ctx, "d", "abc12", "dave"), rooms.ErrRoomNotFound)

	// evicted connections are anonymous again
	_, ok := f.reg.Get("a")
	assert.False(t, ok)
	_, ok = f.reg.Get("b")
	assert.False(t, ok)

	assert.Equal(t, []string{lifecycle.RoomCreated, lifecycle.RoomClosed, lifecycle.RoomDestroyed}, f.log.types())
}

func TestRelay_CreateRoomValidation(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name string
		code string
		err  error
	}{
		{"too short", "a", rooms.ErrInvalidRoomCode},
		{"empty", "", rooms.ErrInvalidRoomCode},
		{"too long", "abcdefghijklmnopqrstu", rooms.ErrInvalidRoomCode},
		{"ok", "abc12", nil},
		{"duplicate", "abc12", rooms.ErrRoomAlreadyExists},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.CreateRoom(ctx, "conn-"+strconv.Itoa(i), "alice", tt.code)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRelay_CreateRandomRoom(t *testing.T) {
	f := newFixture(t, Options{})

	require.NoError(t, f.svc.CreateRandomRoom(ctx, "a", "alice"))
	n := f.out.last("a")
	require.Equal(t, EventRoomCreated, n.Event)
	body := n.Body.(RoomCreatedBody)
	assert.Len(t, body.RoomCode, 4)
	assert.False(t, body.IsCustom)
	assert.True(t, body.IsCreator)
	assert.Equal(t, 1, body.UserCount)

	code, err := strconv.Atoi(body.RoomCode)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, code, 1000)
	assert.LessOrEqual(t, code, 9999)
}

func TestRelay_AlreadyInRoom(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	require.NoError(t, f.svc.CreateRoom(ctx, "b", "bob", "other"))

	assert.ErrorIs(t, f.svc.CreateRoom(ctx, "a", "alice", "third"), rooms.ErrAlreadyInRoom)
	assert.ErrorIs(t, f.svc.CreateRandomRoom(ctx, "a", "alice"), rooms.ErrAlreadyInRoom)
	assert.ErrorIs(t, f.svc.JoinRoom(ctx, "a", "other", "alice"), rooms.ErrAlreadyInRoom)
}

func TestRelay_JoinErrors(t *testing.T) {
	f := newFixture(t, Options{CloseGrace: time.Minute})

	assert.ErrorIs(t, f.svc.JoinRoom(ctx, "x", "nope", "bob"), rooms.ErrRoomNotFound)

	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	require.NoError(t, f.svc.CloseRoom(ctx, "a"))
	assert.ErrorIs(t, f.svc.JoinRoom(ctx, "x", "abc12", "bob"), rooms.ErrRoomClosed)

	// a failed join leaves no session behind
	_, ok := f.reg.Get("x")
	assert.False(t, ok)
}

func TestRelay_UserCountTracksLiveMembers(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.svc.CreateRoom(ctx, "c0", "alice", "abc12"))

	for i := 1; i <= 5; i++ {
		conn := "c" + strconv.Itoa(i)
		require.NoError(t, f.svc.JoinRoom(ctx, conn, "abc12", "user"+strconv.Itoa(i)))
		n := f.out.last(conn)
		require.Equal(t, EventRoomJoined, n.Event)
		assert.Equal(t, i+1, n.Body.(RoomJoinedBody).UserCount)
	}

	f.svc.Disconnect(ctx, "c3")
	require.NoError(t, f.svc.JoinRoom(ctx, "c6", "abc12", "user6"))
	assert.Equal(t, 6, f.out.last("c6").Body.(RoomJoinedBody).UserCount)

	left := f.out.of("c1")
	var sawLeft bool
	for _, n := range left {
		if n.Event == EventUserLeft {
			sawLeft = true
			assert.Equal(t, "user3", n.Body.(PresenceBody).Username)
			assert.Equal(t, 5, n.Body.(PresenceBody).UserCount)
		}
	}
	assert.True(t, sawLeft)
}

func TestRelay_ConcurrentJoinsSeeDistinctCounts(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.svc.CreateRoom(ctx, "c0", "alice", "abc12"))

	const n = 50
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.svc.JoinRoom(ctx, "c"+strconv.Itoa(i), "abc12", "u"))
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 1; i <= n; i++ {
		joined, ok := f.out.first("c"+strconv.Itoa(i), EventRoomJoined)
		require.True(t, ok)
		count := joined.Body.(RoomJoinedBody).UserCount
		assert.False(t, seen[count], "count %d reported twice", count)
		seen[count] = true
	}
	sum, ok := f.svc.Room("abc12")
	require.True(t, ok)
	assert.Equal(t, n+1, sum.UserCount)
}

func TestRelay_MessageAfterCloseIsDropped(t *testing.T) {
	f := newFixture(t, Options{CloseGrace: time.Minute})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	require.NoError(t, f.svc.JoinRoom(ctx, "b", "abc12", "bob"))
	require.NoError(t, f.svc.CloseRoom(ctx, "a"))
	f.out.reset()

	require.NoError(t, f.svc.SendMessage(ctx, "b", "too late"))
	assert.Empty(t, f.out.of("a"))
	assert.Empty(t, f.out.of("b"))

	sum, ok := f.svc.Room("abc12")
	require.True(t, ok)
	assert.Zero(t, sum.MessageCount)
}

func TestRelay_SendWithoutSessionIsDropped(t *testing.T) {
	f := newFixture(t, Options{})
	assert.NoError(t, f.svc.SendMessage(ctx, "ghost", "hello"))
	assert.Empty(t, f.out.of("ghost"))
}

func TestRelay_CloseByNonCreatorHasNoEffect(t *testing.T) {
	f := newFixture(t, Options{CloseGrace: 10 * time.Millisecond})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	require.NoError(t, f.svc.JoinRoom(ctx, "b", "abc12", "bob"))
	f.out.reset()

	assert.NoError(t, f.svc.CloseRoom(ctx, "b"))
	time.Sleep(40 * time.Millisecond)

	assert.Empty(t, f.out.of("a"))
	assert.Empty(t, f.out.of("b"))
	sum, ok := f.svc.Room("abc12")
	require.True(t, ok)
	assert.Equal(t, "open", sum.Status)
}

func TestRelay_SecondCloseIsIgnored(t *testing.T) {
	f := newFixture(t, Options{CloseGrace: time.Minute})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	require.NoError(t, f.svc.CloseRoom(ctx, "a"))
	require.NoError(t, f.svc.CloseRoom(ctx, "a"))

	var closed int
	for _, e := range f.out.events("a") {
		if e == EventRoomClosed {
			closed++
		}
	}
	assert.Equal(t, 1, closed)
}

func TestRelay_CreatorLeavingKeepsRoomOpen(t *testing.T) {
	f := newFixture(t, Options{EmptyGrace: 20 * time.Millisecond})
	require.NoError(t, f.svc.CreateRandomRoom(ctx, "a", "alice"))
	code := f.out.last("a").Body.(RoomCreatedBody).RoomCode
	require.NoError(t, f.svc.JoinRoom(ctx, "b", code, "bob"))

	f.svc.Disconnect(ctx, "a")
	assert.Equal(t, EventUserLeft, f.out.last("b").Event)

	time.Sleep(50 * time.Millisecond)
	sum, ok := f.svc.Room(code)
	require.True(t, ok)
	assert.Equal(t, "open", sum.Status)

	require.NoError(t, f.svc.SendMessage(ctx, "b", "still here"))
	assert.Equal(t, EventNewMessage, f.out.last("b").Event)
}

func TestRelay_EmptyRoomDestroyedAfterGrace(t *testing.T) {
	f := newFixture(t, Options{EmptyGrace: 60 * time.Millisecond})
	require.NoError(t, f.svc.CreateRandomRoom(ctx, "a", "alice"))
	code := f.out.last("a").Body.(RoomCreatedBody).RoomCode

	f.svc.Disconnect(ctx, "a")
	sum, ok := f.svc.Room(code)
	require.True(t, ok, "room survives the grace window")
	assert.Equal(t, "closing", sum.Status)

	require.Eventually(t, func() bool {
		_, ok := f.svc.Room(code)
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, f.log.types(), lifecycle.RoomDestroyed)
}

func TestRelay_RejoinDuringEmptyGraceKeepsRoom(t *testing.T) {
	f := newFixture(t, Options{EmptyGrace: 150 * time.Millisecond})
	require.NoError(t, f.svc.CreateRandomRoom(ctx, "a", "alice"))
	code := f.out.last("a").Body.(RoomCreatedBody).RoomCode
	require.NoError(t, f.svc.SendMessage(ctx, "a", "before reload"))

	f.svc.Disconnect(ctx, "a")
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, f.svc.JoinRoom(ctx, "a2", code, "alice"))
	hist := f.out.of("a2")[0]
	require.Equal(t, EventMessageHistory, hist.Event)
	require.Len(t, hist.Body.(MessageHistoryBody).Messages, 1)

	time.Sleep(150 * time.Millisecond)
	sum, ok := f.svc.Room(code)
	require.True(t, ok)
	assert.Equal(t, "open", sum.Status)
	assert.Equal(t, 1, sum.UserCount)
}

func TestRelay_DisconnectFromClosingRoomKeepsCloseTimer(t *testing.T) {
	f := newFixture(t, Options{CloseGrace: 40 * time.Millisecond, EmptyGrace: time.Minute})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	require.NoError(t, f.svc.CloseRoom(ctx, "a"))
	f.svc.Disconnect(ctx, "a")

	require.Eventually(t, func() bool {
		_, ok := f.svc.Room("abc12")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestRelay_HistoryRoundTrip(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	require.NoError(t, f.svc.JoinRoom(ctx, "b", "abc12", "bob"))

	var sent []string
	for i := 0; i < 20; i++ {
		conn, content := "a", "from alice "+strconv.Itoa(i)
		if i%3 == 0 {
			conn, content = "b", "from bob "+strconv.Itoa(i)
		}
		require.NoError(t, f.svc.SendMessage(ctx, conn, content))
		sent = append(sent, content)
	}
	require.NoError(t, f.svc.SendMessage(ctx, "a", ""))

	require.NoError(t, f.svc.JoinRoom(ctx, "c", "abc12", "carol"))
	hist := f.out.of("c")[0].Body.(MessageHistoryBody).Messages
	require.Len(t, hist, len(sent))
	for i, m := range hist {
		assert.Equal(t, sent[i], m.Content)
		if i > 0 {
			prev, _ := strconv.ParseInt(hist[i-1].ID, 10, 64)
			cur, _ := strconv.ParseInt(m.ID, 10, 64)
			assert.Greater(t, cur, prev)
		}
	}
}

func TestRelay_StaleTimerDoesNotDestroyRecreatedRoom(t *testing.T) {
	f := newFixture(t, Options{CloseGrace: 20 * time.Millisecond, EmptyGrace: 20 * time.Millisecond})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	require.NoError(t, f.svc.CloseRoom(ctx, "a"))
	require.Eventually(t, func() bool {
		_, ok := f.svc.Room("abc12")
		return !ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.svc.CreateRoom(ctx, "b", "bob", "abc12"))
	time.Sleep(60 * time.Millisecond)

	sum, ok := f.svc.Room("abc12")
	require.True(t, ok)
	assert.Equal(t, 1, sum.UserCount)
}

func TestRelay_EarlierEmptyWindowCannotEvict(t *testing.T) {
	f := newFixture(t, Options{EmptyGrace: time.Minute})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	room, ok := f.store.Get("abc12")
	require.True(t, ok)

	f.svc.Disconnect(ctx, "a")
	require.NoError(t, f.svc.JoinRoom(ctx, "a2", "abc12", "alice"))
	f.svc.Disconnect(ctx, "a2")

	// the first window's timer firing late, after the second window opened
	svc := f.svc.(*relayService)
	svc.evict(room, 1)

	sum, ok := f.svc.Room("abc12")
	require.True(t, ok, "room outlives a superseded eviction window")
	assert.Equal(t, "closing", sum.Status)
	assert.NotContains(t, f.log.types(), lifecycle.RoomDestroyed)

	svc.evict(room, 2)
	_, ok = f.svc.Room("abc12")
	assert.False(t, ok)
}

func TestRelay_DisconnectOfStrangerSendsNothing(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.svc.CreateRoom(ctx, "b", "bob", "abc12"))
	f.out.reset()

	// a session still naming abc12 whose connection never sat in this room
	f.reg.Put(sessions.Session{ConnectionID: "x", Username: "ghost", RoomCode: "abc12"})
	f.svc.Disconnect(ctx, "x")

	assert.Empty(t, f.out.of("b"))
	sum, ok := f.svc.Room("abc12")
	require.True(t, ok)
	assert.Equal(t, 1, sum.UserCount)
	assert.Equal(t, "open", sum.Status)
}

func TestRelay_JoinFollowsRecreatedRoom(t *testing.T) {
	f := newFixture(t, Options{})
	old, err := f.store.Create("abc12", "c0", true)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.svc.JoinRoom(ctx, "b", "abc12", "bob") }()
	time.Sleep(20 * time.Millisecond)

	// old is still locked: retire it and put a fresh room under the code
	f.store.Destroy(old)
	fresh, err := f.store.Create("abc12", "c1", true)
	require.NoError(t, err)
	fresh.Unlock()
	old.Unlock()

	require.NoError(t, <-done)
	assert.True(t, func() bool {
		fresh.Lock()
		defer fresh.Unlock()
		return fresh.HasMember("b")
	}())
	sess, ok := f.reg.Get("b")
	require.True(t, ok)
	assert.Equal(t, "abc12", sess.RoomCode)
}

func TestRelay_ShutdownStopsTimers(t *testing.T) {
	f := newFixture(t, Options{EmptyGrace: 20 * time.Millisecond})
	require.NoError(t, f.svc.CreateRoom(ctx, "a", "alice", "abc12"))
	f.svc.Disconnect(ctx, "a")

	require.NoError(t, f.svc.Shutdown(ctx))
	time.Sleep(50 * time.Millisecond)

	_, ok := f.svc.Room("abc12")
	assert.True(t, ok)
}
