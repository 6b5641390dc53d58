package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, f *fixture) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRegistry(rdb, f.deps(), 30*time.Minute), mr
}

func TestRegistry_BindRequiresAuthentication(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	reg, mr := newTestRegistry(t, f)

	c := reg.Create()
	_, err := c.Authenticate(ctx, "nobody@example.com", "wrong")
	require.Error(t, err)

	assert.ErrorIs(t, reg.Bind(ctx, c), ErrNotAuthenticated)
	assert.Zero(t, reg.Len())
	assert.Empty(t, mr.Keys())

	_, err = reg.Get(ctx, c.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_BindAndGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	reg, mr := newTestRegistry(t, f)

	c := reg.Create()
	_, err := c.Register(ctx, "Ada", "ada@example.com", "secret1", "secret1")
	require.NoError(t, err)
	require.NoError(t, reg.Bind(ctx, c))

	got, err := reg.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.Same(t, c, got)

	uid, err := mr.Get("session:" + c.ID().String())
	require.NoError(t, err)
	assert.Equal(t, "uid-ada@example.com", uid)
	assert.Equal(t, 30*time.Minute, mr.TTL("session:"+c.ID().String()))
}

func TestRegistry_ExpiredLeaseEndsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	reg, mr := newTestRegistry(t, f)

	c := reg.Create()
	_, err := c.Register(ctx, "Ada", "ada@example.com", "secret1", "secret1")
	require.NoError(t, err)
	require.NoError(t, reg.Bind(ctx, c))

	mr.FastForward(31 * time.Minute)

	_, err = reg.Get(ctx, c.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, reg.Len())
}

func TestRegistry_End(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	reg, mr := newTestRegistry(t, f)

	c := reg.Create()
	_, err := c.Register(ctx, "Ada", "ada@example.com", "secret1", "secret1")
	require.NoError(t, err)
	require.NoError(t, reg.Bind(ctx, c))

	require.NoError(t, reg.End(ctx, c.ID()))
	assert.False(t, mr.Exists("session:"+c.ID().String()))

	_, err = reg.Get(ctx, c.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, reg.End(ctx, uuid.New()))
}

func TestRegistry_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	reg, mr := newTestRegistry(t, f)

	var ids []uuid.UUID
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		c := reg.Create()
		_, err := c.Register(ctx, "User", email, "pw1234", "pw1234")
		require.NoError(t, err)
		require.NoError(t, reg.Bind(ctx, c))
		ids = append(ids, c.ID())
	}

	mr.Del("session:" + ids[1].String())

	n, err := reg.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, reg.Len())

	mr.FastForward(time.Hour)
	n, err = reg.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, reg.Len())
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	f := newFixture()
	reg, _ := newTestRegistry(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
