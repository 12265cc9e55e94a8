package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("reindex", func(ctx context.Context, args ...any) (any, error) {
		return "done", nil
	}))

	fn, ok := r.Get("reindex")
	require.True(t, ok)
	result, err := fn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", result)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicatesAndNil(t *testing.T) {
	r := NewRegistry()

	fn := func(ctx context.Context, args ...any) (any, error) { return nil, nil }
	require.NoError(t, r.Register("reindex", fn))
	assert.Error(t, r.Register("reindex", fn))
	assert.Error(t, r.Register("broken", nil))
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	fn := func(ctx context.Context, args ...any) (any, error) { return nil, nil }

	require.NoError(t, r.Register("zeta", fn))
	require.NoError(t, r.Register("alpha", fn))
	require.NoError(t, r.Register("mid", fn))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	assert.Equal(t, []string{"noop", "sleep"}, r.Names())

	// Registering twice collides on the names.
	assert.Error(t, RegisterBuiltins(r))
}

func TestBuiltinSleep(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	sleep, ok := r.Get("sleep")
	require.True(t, ok)

	result, err := sleep(context.Background(), "10ms")
	require.NoError(t, err)
	assert.Equal(t, "slept 10ms", result)

	_, err = sleep(context.Background(), 42)
	assert.Error(t, err)

	_, err = sleep(context.Background(), "not-a-duration")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sleep(ctx, "1h")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuiltinSleep_DefaultDuration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	sleep, ok := r.Get("sleep")
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// No argument means a one-second default, which the context cuts short.
	_, err := sleep(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
