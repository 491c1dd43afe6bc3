// Package txn implements the transactional multi-ref committer (spec
// §4.C): advancing N layer refs atomically, via a staging-ref namespace
// and compare-and-swap, so a commit touching several layers is never
// observed half-applied.
package txn

import (
	"strconv"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/store"
)

const stagingPrefix = "refs/jin/staging/"

// prepared is the per-layer intermediate state of an in-flight
// transaction: a commit object has been written, but no live ref has
// been touched yet.
type prepared struct {
	refPath    string
	oldHash    plumbing.Hash
	hadOld     bool
	newHash    plumbing.Hash
	stagingRef string
}

// PendingCommit is one (layer, tree, message) triple to commit as part of
// a transaction (spec §4.C).
type PendingCommit struct {
	Layer    layer.Instance
	Tree     plumbing.Hash
	Message  string
	Manifest store.Manifest
}

// Result is the outcome for one layer ref in a successful transaction.
type Result struct {
	Layer      layer.Instance
	RefPath    string
	OldHash    plumbing.Hash // zero if the layer had no prior commit
	NewHash    plumbing.Hash
	HadOldHash bool
}

// Committer performs atomic multi-ref commits against a Store.
type Committer struct {
	store *store.Store
}

func New(s *store.Store) *Committer {
	return &Committer{store: s}
}

// Commit advances every layer ref named in pending to a new commit, all
// at once or not at all (spec §4.C, §8 "atomicity" invariant).
//
// If pending is empty, Commit returns a Validation error (spec §4.C
// failure modes: "empty commit with no staged changes").
func (c *Committer) Commit(pending []PendingCommit, sig store.Signature) ([]Result, error) {
	if len(pending) == 0 {
		return nil, jinerr.Validationf("commit has no staged changes")
	}

	txnID := uuid.NewString()

	preps := make([]prepared, 0, len(pending))

	for i, p := range pending {
		refPath, err := layer.RefPath(p.Layer)
		if err != nil {
			return nil, jinerr.Validationf("invalid layer for commit: %v", err)
		}

		oldHash, err := c.store.Resolve(refPath)
		hadOld := true
		if err != nil {
			if je, ok := jinerr.As(err); ok && je.Kind == jinerr.NotFound {
				hadOld = false
			} else {
				return nil, err
			}
		}

		var parents []plumbing.Hash
		if hadOld {
			parents = []plumbing.Hash{oldHash}
		}

		newHash, err := c.store.Commit(p.Tree, parents, sig, p.Message, p.Manifest)
		if err != nil {
			return nil, err
		}

		preps = append(preps, prepared{
			refPath:    refPath,
			oldHash:    oldHash,
			hadOld:     hadOld,
			newHash:    newHash,
			stagingRef: stagingRefName(txnID, i),
		})
	}

	var results []Result

	err := c.store.WithWriteLock(func() error {
		// Stage every proposed update under the recovery namespace before
		// touching any live layer ref (spec §4.C step 3).
		for _, p := range preps {
			if err := c.store.SetRef(p.stagingRef, p.newHash, nil); err != nil {
				cleanupStaging(c.store, preps)
				return jinerr.Conflictf(p.refPath, "failed to stage transaction %s", txnID)
			}
		}

		// Re-validate every oldHash now that the write lock is held:
		// oldHash was read via Resolve before the lock was acquired, so a
		// concurrent writer could have advanced a ref in between. Checking
		// every precondition up front, before touching any live ref, means
		// a stale read aborts the whole transaction rather than being
		// discovered partway through the CAS loop below (spec §8 scenario
		// 3: a failure leaves exactly zero advanced refs).
		for _, p := range preps {
			current, err := c.store.Resolve(p.refPath)
			hasCurrent := true
			if err != nil {
				if je, ok := jinerr.As(err); ok && je.Kind == jinerr.NotFound {
					hasCurrent = false
				} else {
					cleanupStaging(c.store, preps)
					return err
				}
			}
			if hasCurrent != p.hadOld || (hasCurrent && current != p.oldHash) {
				cleanupStaging(c.store, preps)
				return jinerr.Conflictf(p.refPath, "concurrent update to %s since transaction began", p.refPath)
			}
		}

		// CAS every target ref. Every precondition was just re-checked
		// under the write lock, so a failure here should not happen in
		// practice; if one still does (e.g. a lower-level I/O error), roll
		// back every ref already advanced in this loop so no ref is left
		// observably advanced.
		advanced := make([]prepared, 0, len(preps))
		for _, p := range preps {
			var prevPtr *plumbing.Hash
			if p.hadOld {
				h := p.oldHash
				prevPtr = &h
			}
			if err := c.store.SetRef(p.refPath, p.newHash, prevPtr); err != nil {
				rollback(c.store, advanced)
				cleanupStaging(c.store, preps)
				return jinerr.Conflictf(p.refPath, "concurrent update to %s during commit", p.refPath)
			}
			advanced = append(advanced, p)
		}

		cleanupStaging(c.store, preps)

		for i, p := range preps {
			results = append(results, Result{
				Layer:      pending[i].Layer,
				RefPath:    p.refPath,
				OldHash:    p.oldHash,
				NewHash:    p.newHash,
				HadOldHash: p.hadOld,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// rollback reverts every already-advanced ref in advanced back to its
// prior state, most-recent first, used when a later ref's CAS fails
// mid-transaction so no ref is left observably advanced (spec §8
// scenario 3). Best-effort: it runs while still holding the write lock,
// so a failure here would indicate the same underlying fault that broke
// the forward CAS.
func rollback(s *store.Store, advanced []prepared) {
	for i := len(advanced) - 1; i >= 0; i-- {
		p := advanced[i]
		newHash := p.newHash
		if p.hadOld {
			_ = s.SetRef(p.refPath, p.oldHash, &newHash)
		} else {
			_ = s.DeleteRef(p.refPath)
		}
	}
}

func stagingRefName(txnID string, index int) string {
	return stagingPrefix + txnID + "/" + strconv.Itoa(index)
}

func cleanupStaging(s *store.Store, preps []prepared) {
	for _, p := range preps {
		_ = s.DeleteRef(p.stagingRef)
	}
}

// RecoverOrphanStaging enumerates refs/jin/staging/* and deletes any
// older than maxAge, per spec §4.C recovery / §4.J item 1. Staging refs
// carry no timestamp of their own, so age is approximated by the
// referenced commit's committer time.
func (c *Committer) RecoverOrphanStaging(maxAge time.Duration, now time.Time) ([]string, error) {
	refs, err := c.store.ListRefs(stagingPrefix + "*")
	if err != nil {
		return nil, err
	}
	// Staging refs are one level deeper (refs/jin/staging/<txn>/<n>), so
	// list by transaction prefix as well.
	nested, err := c.store.ListRefs(stagingPrefix + "**")
	if err != nil {
		return nil, err
	}
	all := append(refs, nested...)

	seen := make(map[string]bool)
	var removed []string
	for _, r := range all {
		if seen[r.RefPath] {
			continue
		}
		seen[r.RefPath] = true

		info, err := c.store.ReadCommit(r.Hash)
		if err != nil {
			// Dangling or unreadable: treat as orphaned.
			_ = c.store.DeleteRef(r.RefPath)
			removed = append(removed, r.RefPath)
			continue
		}
		if now.Sub(info.Committer.When) > maxAge {
			_ = c.store.DeleteRef(r.RefPath)
			removed = append(removed, r.RefPath)
		}
	}
	return removed, nil
}
