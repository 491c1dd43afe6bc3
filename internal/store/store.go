// Package store implements Jin's object store (spec §4.A): a bare
// content-addressed repository holding blobs, trees, commits, and
// references under a private namespace.
//
// The store is built directly on go-git's plumbing layer
// (github.com/go-git/go-git/v5) rather than shelling out to a VCS binary:
// go-git's storer.ReferenceStorer already exposes compare-and-swap
// reference updates (CheckAndSetReference), which is exactly the
// primitive spec §3's "Reference writes are compare-and-swap" invariant
// and spec §4.C's transactional committer need. The host VCS boundary
// (internal/hostvcs) is a separate, narrower thing: it shells out to the
// *host's* git/jj binary the way internal/vcs does in the teacher, to
// query origin/tracked-state and edit the ignore file. Jin's own object
// store never shells out.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/gofrs/flock"

	"github.com/dabstractor/jin/internal/jinerr"
)

// Store is the bare content-addressed object store. One Store wraps one
// on-disk location (spec §6: default under a user-home dotted directory,
// overridable via JIN_DIR).
type Store struct {
	path        string
	storer      *filesystem.Storage
	lock        *flock.Flock
	lockTimeout time.Duration
}

// Open opens (creating if necessary) the bare object store at path.
// lockTimeout bounds how long write operations wait to acquire the
// process-local advisory writer lock (spec §5).
func Open(path string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, jinerr.Wrap(fmt.Errorf("creating object store directory: %w", err))
	}

	fs := osfs.New(path)
	storer := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())

	lockPath := filepath.Join(path, "jin.lock")
	fl := flock.New(lockPath)

	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}

	return &Store{path: path, storer: storer, lock: fl, lockTimeout: lockTimeout}, nil
}

// Path returns the on-disk location of the object store.
func (s *Store) Path() string { return s.path }

// Storer exposes the underlying go-git storage.Storer so internal/syncboundary
// can hand it directly to git.NewRemote: fetch/push need no separate
// checkout or *git.Repository, only a storer.Storer to read from and write
// into, and this one already is one (spec §4.L).
func (s *Store) Storer() storage.Storer { return s.storer }

// WithWriteLock acquires the process-local advisory writer lock before
// running fn and releases it afterward, regardless of outcome. Every
// ref-mutating operation in this package and in internal/txn goes through
// this (spec §5: "Writers must hold a process-local advisory file lock
// acquired before any set_ref call and released before exit").
func (s *Store) WithWriteLock(fn func() error) error {
	deadline := time.Now().Add(s.lockTimeout)
	const pollInterval = 25 * time.Millisecond

	for {
		locked, err := s.lock.TryLock()
		if err != nil {
			return jinerr.Lockedf("object-store", err)
		}
		if locked {
			break
		}
		if time.Now().After(deadline) {
			return jinerr.Lockedf("object-store", fmt.Errorf("timed out after %s", s.lockTimeout))
		}
		time.Sleep(pollInterval)
	}
	defer s.lock.Unlock()

	return fn()
}
