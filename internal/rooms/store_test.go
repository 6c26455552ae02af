package rooms

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"", false},
		{"a", false},
		{"ab", true},
		{"abc12", true},
		{"12345678901234567890", true},
		{"123456789012345678901", false},
		{"ñé", true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCode(tt.code))
		})
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	s := NewStore()

	r, err := s.Create("abc12", "c1", true)
	require.NoError(t, err)
	r.Unlock()
	assert.True(t, r.IsCustom())
	assert.Equal(t, "c1", r.CreatorConnectionID())

	_, err = s.Create("abc12", "c2", true)
	assert.ErrorIs(t, err, ErrRoomAlreadyExists)
}

func TestStore_CreateConcurrentSameCode(t *testing.T) {
	s := NewStore()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r, err := s.Create("race", strconv.Itoa(i), true); err == nil {
				r.Unlock()
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestStore_CreateRandom(t *testing.T) {
	s := NewStore()
	s.intn = func(int) int { return 0 }

	r1, err := s.CreateRandom("c1")
	require.NoError(t, err)
	r1.Unlock()
	assert.Equal(t, "1000", r1.Code())
	assert.False(t, r1.IsCustom())

	// every draw collides, the scan finds the next free code
	r2, err := s.CreateRandom("c2")
	require.NoError(t, err)
	r2.Unlock()
	assert.Equal(t, "1001", r2.Code())
}

func TestStore_CreateRandomSkipsCustomNumericCodes(t *testing.T) {
	s := NewStore()
	s.intn = func(int) int { return 234 }

	custom, err := s.Create("1234", "c1", true)
	require.NoError(t, err)
	custom.Unlock()

	r, err := s.CreateRandom("c2")
	require.NoError(t, err)
	r.Unlock()
	assert.NotEqual(t, "1234", r.Code())
}

func TestStore_CreateRandomExhausted(t *testing.T) {
	s := NewStore()
	for n := randomCodeMin; n <= randomCodeMax; n++ {
		r, err := s.Create(strconv.Itoa(n), "c", false)
		require.NoError(t, err)
		r.Unlock()
	}

	_, err := s.CreateRandom("c")
	assert.ErrorIs(t, err, ErrRoomSpaceExhausted)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	s := NewStore()
	r, err := s.Create("abc12", "c1", true)
	require.NoError(t, err)
	r.Unlock()

	s.Delete("abc12")
	s.Delete("abc12")
	s.Delete("never-existed")

	_, ok := s.Get("abc12")
	assert.False(t, ok)
	r.Lock()
	assert.True(t, r.Destroyed())
	r.Unlock()
}

func TestStore_DestroyIgnoresReplacedRoom(t *testing.T) {
	s := NewStore()
	old, err := s.Create("abc12", "c1", true)
	require.NoError(t, err)
	old.Unlock()

	s.Delete("abc12")
	fresh, err := s.Create("abc12", "c2", true)
	require.NoError(t, err)
	fresh.Unlock()

	old.Lock()
	assert.False(t, s.Destroy(old))
	old.Unlock()

	got, ok := s.Get("abc12")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestStore_Summaries(t *testing.T) {
	s := NewStore()
	r, err := s.Create("zeta", "c1", true)
	require.NoError(t, err)
	_, err = r.AddMember("c1", "alice", r.CreatedAt())
	r.Unlock()
	require.NoError(t, err)
	other, err := s.Create("alpha", "c2", true)
	require.NoError(t, err)
	other.Unlock()

	list := s.Summaries()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].RoomCode)
	assert.Equal(t, "zeta", list[1].RoomCode)
	assert.Equal(t, 1, list[1].UserCount)
	assert.Equal(t, "open", list[1].Status)

	_, ok := s.SummaryOf("missing")
	assert.False(t, ok)
}
