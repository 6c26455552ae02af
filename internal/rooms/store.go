package rooms

import (
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	MinCodeLen = 2
	MaxCodeLen = 20

	randomCodeMin   = 1000
	randomCodeMax   = 9999
	randomCodeDraws = 64
)

// Store maps room codes to rooms. Only existence checks and
// insert/delete run under the store lock; room state is guarded by each
// room's own lock.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	now   func() time.Time
	intn  func(n int) int
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
		now:   time.Now,
		intn:  rand.IntN,
	}
}

// ValidCode reports whether code has an acceptable length for a custom room.
func ValidCode(code string) bool {
	n := len([]rune(code))
	return n >= MinCodeLen && n <= MaxCodeLen
}

// Create registers a room under code. The room is returned locked so the
// caller can seat the creator before anyone else can reach it; the caller
// must Unlock it.
func (s *Store) Create(code, creatorConnID string, isCustom bool) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[code]; ok {
		return nil, ErrRoomAlreadyExists
	}
	return s.insertLocked(code, creatorConnID, isCustom), nil
}

// CreateRandom is Create under a free 4-digit code for a non-custom room.
func (s *Store) CreateRandom(creatorConnID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.freeCodeLocked()
	if !ok {
		return nil, ErrRoomSpaceExhausted
	}
	return s.insertLocked(code, creatorConnID, false), nil
}

func (s *Store) insertLocked(code, creatorConnID string, isCustom bool) *Room {
	r := newRoom(code, creatorConnID, isCustom, s.now())
	r.Lock()
	s.rooms[code] = r
	return r
}

func (s *Store) freeCodeLocked() (string, bool) {
	span := randomCodeMax - randomCodeMin + 1
	for i := 0; i < randomCodeDraws; i++ {
		code := strconv.Itoa(randomCodeMin + s.intn(span))
		if _, taken := s.rooms[code]; !taken {
			return code, true
		}
	}
	// Crowded space: fall back to a scan so exhaustion is detected exactly.
	for n := randomCodeMin; n <= randomCodeMax; n++ {
		code := strconv.Itoa(n)
		if _, taken := s.rooms[code]; !taken {
			return code, true
		}
	}
	return "", false
}

func (s *Store) Get(code string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	return r, ok
}

// Delete removes code unconditionally. Deleting an absent code is a no-op.
func (s *Store) Delete(code string) {
	s.mu.Lock()
	if r, ok := s.rooms[code]; ok {
		delete(s.rooms, code)
		s.mu.Unlock()
		r.Lock()
		r.markDestroyed()
		r.Unlock()
		return
	}
	s.mu.Unlock()
}

// Destroy removes r from the store if the code still points at r and marks
// it destroyed. The caller must hold r's lock. It reports whether r was the
// live entry.
func (s *Store) Destroy(r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.markDestroyed()
	if cur, ok := s.rooms[r.code]; ok && cur == r {
		delete(s.rooms, r.code)
		return true
	}
	return false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// List returns the live rooms ordered by code.
func (s *Store) List() []*Room {
	s.mu.RLock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}
