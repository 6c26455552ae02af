package sessions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PutGetRemove(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Session{ConnectionID: "c1", Username: "alice", RoomCode: "abc12", IsCreator: true})

	s, ok := reg.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", s.Username)
	assert.True(t, s.IsCreator)
	assert.Equal(t, 1, reg.Len())

	removed, ok := reg.Remove("c1")
	require.True(t, ok)
	assert.Equal(t, "abc12", removed.RoomCode)

	_, ok = reg.Remove("c1")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}

func TestRegistry_RemoveIfIn(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Session{ConnectionID: "c1", Username: "alice", RoomCode: "new-room"})

	assert.False(t, reg.RemoveIfIn("c1", "old-room"))
	_, ok := reg.Get("c1")
	assert.True(t, ok)

	assert.True(t, reg.RemoveIfIn("c1", "new-room"))
	_, ok = reg.Get("c1")
	assert.False(t, ok)
}
