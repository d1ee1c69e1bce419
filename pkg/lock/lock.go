// Package lock provides the two advisory file locks reposync uses to
// keep concurrent processes from corrupting on-disk state: a
// process-wide metadata lock shared by readers and held exclusively by
// writers, and a per-repository build lock held while a cache rebuild
// is in progress.
package lock

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	repoerrors "github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/fsutil"
)

// pollInterval is how often a blocked Lock/RLock retries while waiting
// for ctx to either succeed or be cancelled.
const pollInterval = 50 * time.Millisecond

// MetadataLock guards the whole cache root. Readers (anything that
// reads RepoInfo/ServiceInfo off disk) take RLock; writers (anything
// that adds, removes, or re-lays-out a registry entry) take Lock.
type MetadataLock struct {
	f *flock.Flock
}

// NewMetadataLock returns a lock rooted at cacheRoot. The lock file
// itself lives alongside the registries so a single reposync cache
// root is self-contained.
func NewMetadataLock(cacheRoot string) *MetadataLock {
	return &MetadataLock{f: flock.New(filepath.Join(cacheRoot, ".metadata.lock"))}
}

// Lock acquires the exclusive lock, blocking until ctx is done.
func (m *MetadataLock) Lock(ctx context.Context) (*Guard, error) {
	ok, err := tryUntil(ctx, m.f.TryLockContext)
	if err != nil {
		return nil, repoerrors.Wrap(repoerrors.KindLockContention, "lock.MetadataLock.Lock", err)
	}
	if !ok {
		return nil, repoerrors.New(repoerrors.KindCancelled, "lock.MetadataLock.Lock", "context done before lock acquired")
	}
	return newGuard(m.f.Unlock), nil
}

// RLock acquires the shared lock, blocking until ctx is done.
func (m *MetadataLock) RLock(ctx context.Context) (*Guard, error) {
	ok, err := tryUntil(ctx, m.f.TryRLockContext)
	if err != nil {
		return nil, repoerrors.Wrap(repoerrors.KindLockContention, "lock.MetadataLock.RLock", err)
	}
	if !ok {
		return nil, repoerrors.New(repoerrors.KindCancelled, "lock.MetadataLock.RLock", "context done before lock acquired")
	}
	return newGuard(m.f.Unlock), nil
}

// BuildLock guards a single repository's cache directory while it is
// being rebuilt, so two coordinators never race to write the same
// solver cache.
type BuildLock struct {
	f *flock.Flock
}

// NewBuildLock returns a lock for the given repository's build
// directory under solvDir.
func NewBuildLock(solvDir, alias string) *BuildLock {
	return &BuildLock{f: flock.New(filepath.Join(solvDir, alias, ".build"))}
}

// Lock acquires the build lock, blocking until ctx is done. The
// repository's build directory is created first if it does not exist.
func (b *BuildLock) Lock(ctx context.Context) (*Guard, error) {
	if err := fsutil.EnsureSecureDir(filepath.Dir(b.f.Path())); err != nil {
		return nil, repoerrors.Wrap(repoerrors.KindIoFailed, "lock.BuildLock.Lock", err)
	}
	ok, err := tryUntil(ctx, b.f.TryLockContext)
	if err != nil {
		return nil, repoerrors.Wrap(repoerrors.KindLockContention, "lock.BuildLock.Lock", err)
	}
	if !ok {
		return nil, repoerrors.New(repoerrors.KindCancelled, "lock.BuildLock.Lock", "context done before lock acquired")
	}
	return newGuard(b.f.Unlock), nil
}

// tryUntil adapts flock's context-aware retry to also respect our own
// poll interval, matching the style flock itself uses internally.
func tryUntil(ctx context.Context, tryCtx func(context.Context, time.Duration) (bool, error)) (bool, error) {
	return tryCtx(ctx, pollInterval)
}

// Guard releases an acquired lock exactly once through Release, whether
// Release is called explicitly, in a defer, or both: acquire, defer
// guard.Release(), and nothing else to remember.
type Guard struct {
	release func() error
	done    bool
}

func newGuard(release func() error) *Guard {
	return &Guard{release: release}
}

// Release unlocks, if it has not already been released. Safe to call
// multiple times or via defer after an earlier explicit call.
func (g *Guard) Release() error {
	if g.done {
		return nil
	}
	g.done = true
	return g.release()
}
