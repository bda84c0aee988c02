package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJanitor_EmptySpec(t *testing.T) {
	j, err := NewJanitor("", NewMemoryStore(0, silentLog()), silentLog())
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestNewJanitor_BadSpec(t *testing.T) {
	_, err := NewJanitor("whenever", NewMemoryStore(0, silentLog()), silentLog())
	assert.Error(t, err)
}

func TestJanitor_RunSweeps(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	require.NoError(t, s.SetToken(ctx, "tok", "u", "s1", TokenOptions{ExpiresIn: time.Second}))
	clock.Advance(time.Minute)

	j, err := NewJanitor("@every 1h", s, silentLog())
	require.NoError(t, err)

	var got int
	j.OnSweep = func(n int) { got = n }
	j.run()

	assert.Equal(t, 1, got)
	assert.Equal(t, 0, s.Len(ctx))
}

func TestJanitor_StartStop(t *testing.T) {
	j, err := NewJanitor("@every 1h", NewMemoryStore(0, silentLog()), silentLog())
	require.NoError(t, err)
	j.Start()
	j.Stop()
}
