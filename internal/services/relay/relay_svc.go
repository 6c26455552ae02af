package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"roomrelay/internal/lifecycle"
	"roomrelay/internal/rooms"
	"roomrelay/internal/sessions"
)

const (
	DefaultCloseGrace = 5 * time.Second
	DefaultEmptyGrace = 30 * time.Second
)

// IRelayService is the per-connection protocol state machine. Methods that
// return an error want it reported to the calling connection; events that
// cannot be meaningfully answered are dropped and return nil.
type IRelayService interface {
	CreateRoom(ctx context.Context, connID, username, roomCode string) error
	CreateRandomRoom(ctx context.Context, connID, username string) error
	JoinRoom(ctx context.Context, connID, roomCode, username string) error
	SendMessage(ctx context.Context, connID, content string) error
	CloseRoom(ctx context.Context, connID string) error
	Disconnect(ctx context.Context, connID string)

	Rooms() []rooms.Summary
	Room(code string) (rooms.Summary, bool)
	Shutdown(ctx context.Context) error
}

// EventRecorder receives room lifecycle transitions.
type EventRecorder interface {
	Record(evt lifecycle.Event)
}

type Options struct {
	CloseGrace time.Duration
	EmptyGrace time.Duration
}

type relayService struct {
	store    *rooms.Store
	registry *sessions.Registry
	out      Broadcaster
	recorder EventRecorder
	timers   *scheduler
	ids      *rooms.MessageIDs
	opts     Options
	now      func() time.Time
}

var _ IRelayService = (*relayService)(nil)

type nopRecorder struct{}

func (nopRecorder) Record(lifecycle.Event) {}

func NewRelayService(store *rooms.Store, registry *sessions.Registry, out Broadcaster, rec EventRecorder, opts Options) IRelayService {
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = DefaultCloseGrace
	}
	if opts.EmptyGrace <= 0 {
		opts.EmptyGrace = DefaultEmptyGrace
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &relayService{
		store:    store,
		registry: registry,
		out:      out,
		recorder: rec,
		timers:   newScheduler(),
		ids:      rooms.NewMessageIDs(),
		opts:     opts,
		now:      time.Now,
	}
}

func (s *relayService) CreateRoom(_ context.Context, connID, username, roomCode string) error {
	if _, ok := s.registry.Get(connID); ok {
		return s.reject(connID, rooms.ErrAlreadyInRoom)
	}
	if !rooms.ValidCode(roomCode) {
		return s.reject(connID, rooms.ErrInvalidRoomCode)
	}
	room, err := s.store.Create(roomCode, connID, true)
	if err != nil {
		return s.reject(connID, err)
	}
	defer room.Unlock()

	s.seatCreator(room, connID, username)
	return nil
}

func (s *relayService) CreateRandomRoom(_ context.Context, connID, username string) error {
	if _, ok := s.registry.Get(connID); ok {
		return s.reject(connID, rooms.ErrAlreadyInRoom)
	}
	room, err := s.store.CreateRandom(connID)
	if err != nil {
		zap.L().Error("relay.random_code_exhausted", zap.Int("rooms", s.store.Len()))
		return s.reject(connID, err)
	}
	defer room.Unlock()

	s.seatCreator(room, connID, username)
	return nil
}

// seatCreator runs with room locked.
func (s *relayService) seatCreator(room *rooms.Room, connID, username string) {
	count, _ := room.AddMember(connID, username, s.now())
	s.registry.Put(sessions.Session{
		ConnectionID: connID,
		Username:     username,
		RoomCode:     room.Code(),
		IsCreator:    true,
	})

	kind := "random"
	if room.IsCustom() {
		kind = "custom"
	}
	metricRoomsCreated.WithLabelValues(kind).Inc()
	metricRoomsActive.Inc()
	metricSessionsActive.Inc()

	s.toConn(connID, Notification{Event: EventRoomCreated, Body: RoomCreatedBody{
		RoomCode:  room.Code(),
		Username:  username,
		IsCreator: true,
		UserCount: count,
		IsCustom:  room.IsCustom(),
	}})
	s.record(room, lifecycle.RoomCreated, "")

	zap.L().Info("relay.room_created",
		zap.String("room", room.Code()),
		zap.String("username", username),
		zap.Bool("custom", room.IsCustom()),
	)
}

func (s *relayService) JoinRoom(_ context.Context, connID, roomCode, username string) error {
	if _, ok := s.registry.Get(connID); ok {
		return s.reject(connID, rooms.ErrAlreadyInRoom)
	}
	// A second lookup covers a room destroyed and recreated under the same
	// code while this join waited on the old instance's lock.
	for attempt := 0; attempt < 2; attempt++ {
		room, ok := s.store.Get(roomCode)
		if !ok {
			break
		}
		room.Lock()
		if room.Destroyed() {
			room.Unlock()
			continue
		}
		err := s.joinLocked(room, connID, username)
		room.Unlock()
		return err
	}
	return s.reject(connID, rooms.ErrRoomNotFound)
}

func (s *relayService) joinLocked(room *rooms.Room, connID, username string) error {
	roomCode := room.Code()
	wasPending := room.EvictionPending()
	count, err := room.AddMember(connID, username, s.now())
	if err != nil {
		return s.reject(connID, err)
	}
	if wasPending {
		s.timers.cancel(roomCode)
		zap.L().Info("relay.eviction_cancelled", zap.String("room", roomCode))
	}

	s.registry.Put(sessions.Session{
		ConnectionID: connID,
		Username:     username,
		RoomCode:     roomCode,
	})
	metricSessionsActive.Inc()

	s.toOthers(room.Members(), connID, Notification{Event: EventUserJoined, Body: PresenceBody{
		Username:  username,
		Timestamp: s.now(),
		UserCount: count,
	}})
	s.toConn(connID, Notification{Event: EventMessageHistory, Body: MessageHistoryBody{
		Messages: room.HistorySnapshot(),
	}})
	s.toConn(connID, Notification{Event: EventRoomJoined, Body: RoomJoinedBody{
		RoomCode:  roomCode,
		Username:  username,
		UserCount: count,
		IsCustom:  room.IsCustom(),
	}})

	zap.L().Info("relay.room_joined",
		zap.String("room", roomCode),
		zap.String("username", username),
		zap.Int("users", count),
	)
	return nil
}

func (s *relayService) SendMessage(_ context.Context, connID, content string) error {
	if content == "" {
		return s.drop(connID, "empty_message")
	}
	sess, ok := s.registry.Get(connID)
	if !ok {
		return s.drop(connID, "no_session")
	}
	room, ok := s.store.Get(sess.RoomCode)
	if !ok {
		return s.drop(connID, "room_gone")
	}

	room.Lock()
	defer room.Unlock()

	if room.Destroyed() || !room.HasMember(connID) {
		return s.drop(connID, "room_gone")
	}
	msg := rooms.Message{
		ID:        s.ids.Next(),
		Username:  sess.Username,
		Content:   content,
		Timestamp: s.now().UTC(),
		Type:      rooms.MessageTypeUser,
	}
	if err := room.AppendMessage(msg); err != nil {
		return s.drop(connID, "room_closed")
	}
	metricMessages.Inc()

	s.toAll(room.Members(), Notification{Event: EventNewMessage, Body: msg})
	return nil
}

func (s *relayService) CloseRoom(_ context.Context, connID string) error {
	sess, ok := s.registry.Get(connID)
	if !ok {
		return s.drop(connID, "no_session")
	}
	if !sess.IsCreator {
		zap.L().Debug("relay.close_denied",
			zap.String("conn", connID),
			zap.String("room", sess.RoomCode),
			zap.Error(rooms.ErrUnauthorized),
		)
		metricRejections.WithLabelValues(rejectionReason(rooms.ErrUnauthorized)).Inc()
		return nil
	}
	room, ok := s.store.Get(sess.RoomCode)
	if !ok {
		return s.drop(connID, "room_gone")
	}

	room.Lock()
	defer room.Unlock()

	if room.Destroyed() || !room.Close() {
		return s.drop(connID, "already_closed")
	}

	s.toAll(room.Members(), Notification{Event: EventRoomClosed, Body: RoomClosedBody{
		ClosedBy:  sess.Username,
		Timestamp: s.now(),
	}})
	s.record(room, lifecycle.RoomClosed, lifecycle.ReasonClosedByCreator)

	s.timers.schedule(room.Code(), s.opts.CloseGrace, func() {
		s.expireClosed(room)
	})

	zap.L().Info("relay.room_closed",
		zap.String("room", room.Code()),
		zap.String("closed_by", sess.Username),
	)
	return nil
}

func (s *relayService) Disconnect(_ context.Context, connID string) {
	sess, ok := s.registry.Remove(connID)
	if !ok {
		return
	}
	metricSessionsActive.Dec()

	room, ok := s.store.Get(sess.RoomCode)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	// the session may point at a code since reused by another room
	if room.Destroyed() || !room.HasMember(connID) {
		return
	}
	count := room.RemoveMember(connID)
	if count > 0 {
		s.toAll(room.Members(), Notification{Event: EventUserLeft, Body: PresenceBody{
			Username:  sess.Username,
			Timestamp: s.now(),
			UserCount: count,
		}})
		return
	}
	if room.Closed() {
		// the close timer is already on its way
		return
	}

	gen := room.MarkEvictionPending()
	s.timers.schedule(room.Code(), s.opts.EmptyGrace, func() {
		s.evict(room, gen)
	})
	zap.L().Info("relay.room_empty",
		zap.String("room", room.Code()),
		zap.Duration("grace", s.opts.EmptyGrace),
	)
}

// expireClosed runs from the close-room timer.
func (s *relayService) expireClosed(room *rooms.Room) {
	room.Lock()
	defer room.Unlock()

	if room.Destroyed() {
		return
	}
	s.destroyLocked(room, lifecycle.ReasonClosedByCreator)
}

// evict runs from an empty-room timer. Only the timer of the current
// eviction window may destroy the room; a rejoin in between, or a later
// window, turns it into a no-op.
func (s *relayService) evict(room *rooms.Room, gen uint64) {
	room.Lock()
	defer room.Unlock()

	if room.Destroyed() || !room.EvictionDue(gen) {
		return
	}
	s.destroyLocked(room, lifecycle.ReasonEmpty)
}

// destroyLocked runs with room locked.
func (s *relayService) destroyLocked(room *rooms.Room, reason string) {
	members := room.Members()
	if reason == lifecycle.ReasonClosedByCreator {
		s.toAll(members, Notification{Event: EventForceDisconnect, Body: ForceDisconnectBody{}})
	}
	if s.store.Destroy(room) {
		metricRoomsActive.Dec()
	}
	for _, m := range members {
		if s.registry.RemoveIfIn(m.ConnectionID, room.Code()) {
			metricSessionsActive.Dec()
		}
	}
	metricRoomsDestroyed.WithLabelValues(reason).Inc()
	s.record(room, lifecycle.RoomDestroyed, reason)

	zap.L().Info("relay.room_destroyed",
		zap.String("room", room.Code()),
		zap.String("reason", reason),
		zap.Int("evicted", len(members)),
	)
}

func (s *relayService) Rooms() []rooms.Summary { return s.store.Summaries() }

func (s *relayService) Room(code string) (rooms.Summary, bool) { return s.store.SummaryOf(code) }

// Shutdown cancels every pending grace timer. Rooms stay in memory until
// the process exits.
func (s *relayService) Shutdown(_ context.Context) error {
	s.timers.stopAll()
	return nil
}

// record runs with room locked.
func (s *relayService) record(room *rooms.Room, typ, reason string) {
	s.recorder.Record(lifecycle.Event{
		Type:         typ,
		RoomCode:     room.Code(),
		IsCustom:     room.IsCustom(),
		CreatedAt:    room.CreatedAt(),
		At:           s.now(),
		Reason:       reason,
		MemberCount:  room.MemberCount(),
		MessageCount: room.MessageCount(),
	})
}

func (s *relayService) reject(connID string, err error) error {
	metricRejections.WithLabelValues(rejectionReason(err)).Inc()
	zap.L().Debug("relay.rejected", zap.String("conn", connID), zap.Error(err))
	return err
}

func (s *relayService) drop(connID, why string) error {
	metricRejections.WithLabelValues(why).Inc()
	zap.L().Debug("relay.dropped", zap.String("conn", connID), zap.String("why", why))
	return nil
}
