package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"
)

// BuildLock guarantees at most one index build per fingerprint key.
// Within the process, singleflight collapses concurrent builders; across
// processes, a file lock in the lock directory does the same. Concurrent
// runs either wait or reuse the result once the winner lands it.
type BuildLock struct {
	dir   string
	group singleflight.Group
}

// NewBuildLock creates a lock rooted at dir.
func NewBuildLock(dir string) *BuildLock {
	return &BuildLock{dir: dir}
}

// WithLock runs fn while holding the per-key lock. Duplicate in-flight
// callers for the same key share the winner's error instead of running fn
// again.
func (l *BuildLock) WithLock(ctx context.Context, key string, fn func() error) error {
	_, err, _ := l.group.Do(key, func() (any, error) {
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}

		fl := flock.New(filepath.Join(l.dir, key+".lock"))
		locked, err := fl.TryLockContext(ctx, 250*time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("acquire build lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("build lock for %s not acquired", key)
		}
		defer fl.Unlock()

		return nil, fn()
	})
	return err
}
