package store

import (
	"context"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/changeset"
)

// ApplyChangeset applies an already-verified, already-authorised changeset
// inside a single transaction, so a peer's whole sync batch commits or
// rolls back together. Envelope signature verification and membership
// authorisation happen one layer up, in the sync orchestrator, before this
// is ever called.
//
// If any change in the batch trips a foreign-key constraint (common when a
// parent row's insert and a child row's insert arrive out of dependency
// order within the same batch), the transaction is rolled back and
// retried once with FK checks deferred to commit time.
func (s *Store) ApplyChangeset(ctx context.Context, cs changeset.Changeset) (*changeset.ConflictTracker, error) {
	tracker, err := s.applyChangesetTx(ctx, cs, false)
	if err != nil {
		return nil, err
	}
	if tracker.HadConstraintConflict {
		tracker, err = s.applyChangesetTx(ctx, cs, true)
		if err != nil {
			return nil, err
		}
	}
	return tracker, nil
}

func (s *Store) applyChangesetTx(ctx context.Context, cs changeset.Changeset, deferConstraints bool) (*changeset.ConflictTracker, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, bverr.Wrap(bverr.Database, "begin apply transaction", err)
	}
	defer tx.Rollback(ctx)

	if deferConstraints {
		if _, err := tx.Exec(ctx, `SET CONSTRAINTS ALL DEFERRED`); err != nil {
			return nil, bverr.Wrap(bverr.Database, "defer constraints", err)
		}
	}

	rs := &txRowStore{tx: tx}
	tracker, err := changeset.Apply(ctx, rs, cs)
	if err != nil {
		return nil, err
	}

	if !tracker.HadConstraintConflict || deferConstraints {
		if err := tx.Commit(ctx); err != nil {
			return nil, bverr.Wrap(bverr.Database, "commit apply transaction", err)
		}
	}
	return tracker, nil
}
