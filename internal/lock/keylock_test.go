package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	m := NewManager(t.TempDir())

	h, err := m.Acquire(context.Background(), "key-a")
	require.NoError(t, err)
	require.NotNil(t, h)
	h.Release()
}

func TestAcquireBlocksConcurrentHoldersOfSameKey(t *testing.T) {
	m := NewManager(t.TempDir())

	h1, err := m.Acquire(context.Background(), "key-a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(ctx, "key-a")
	require.Error(t, err)

	h1.Release()
}

func TestAcquireDoesNotBlockAcrossDifferentKeys(t *testing.T) {
	m := NewManager(t.TempDir())

	h1, err := m.Acquire(context.Background(), "key-a")
	require.NoError(t, err)
	defer h1.Release()

	h2, err := m.Acquire(context.Background(), "key-b")
	require.NoError(t, err)
	h2.Release()
}

func TestReleaseIsIdempotentAndNilSafe(t *testing.T) {
	m := NewManager(t.TempDir())
	h, err := m.Acquire(context.Background(), "key-a")
	require.NoError(t, err)

	h.Release()
	h.Release()

	var nilHandle *Handle
	nilHandle.Release()
}
