// Package lock implements a keyed cross-process advisory lock: one OS
// file lock per configured signing key, held for the entire lifetime
// of a Sign or SignBatch call.
package lock

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/ralt/signserver/internal/models"
)

// pollInterval is how often TryLockContext retries while another
// holder has the lock.
const pollInterval = 50 * time.Millisecond

// Manager hands out per-key locks rooted under dir.
type Manager struct {
	dir string
}

// NewManager returns a Manager rooted at the configured locks
// directory. dir must already exist.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Handle is a held lock. Release is idempotent and safe to call from
// a deferred cleanup on every exit path.
type Handle struct {
	fl *flock.Flock
}

// Acquire blocks until the exclusive lock on keyid is held or ctx is
// canceled. Acquisition is a suspension point: it may block
// indefinitely while another process (or another in-process caller)
// holds the same key's lock.
func (m *Manager) Acquire(ctx context.Context, keyid string) (*Handle, error) {
	path := filepath.Join(m.dir, keyid)
	fl := flock.New(path)

	locked, err := fl.TryLockContext(ctx, pollInterval)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.Canceled(err)
		}
		return nil, models.SigningFailed(err, "failed to acquire lock for key %s", keyid)
	}
	if !locked {
		return nil, models.Canceled(ctx.Err())
	}
	return &Handle{fl: fl}, nil
}

// Release drops the lock. Calling Release more than once, or on a nil
// Handle, is a no-op.
func (h *Handle) Release() {
	if h == nil || h.fl == nil {
		return
	}
	_ = h.fl.Unlock()
}
