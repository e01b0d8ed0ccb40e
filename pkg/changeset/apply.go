package changeset

import (
	"context"
	"log/slog"

	"github.com/bandvault/core/pkg/bverr"
)

// deviceLocalColumns names columns that must survive a Data-conflict
// replace on the given table, because they hold state meaningful only to
// this device. The files table's encryption_nonce is the sole case named
// by spec — a row that wins the incoming side of a conflict would
// otherwise overwrite the nonce this device used to write the blob,
// making it locally undecryptable.
var deviceLocalColumns = map[string][]string{
	"files": {"encryption_nonce"},
}

// RowStore is the narrow interface the changeset applier needs from the
// metadata database. pkg/store.Store implements it; keeping the interface
// here (rather than importing pkg/store) keeps conflict policy testable
// without a live Postgres connection.
type RowStore interface {
	// CurrentUpdatedAt returns the row's _updated_at value and whether the
	// row exists at all.
	CurrentUpdatedAt(ctx context.Context, table, rowID string) (updatedAt string, found bool, err error)
	// CurrentColumns returns the row's current column values, used to
	// preserve device-local columns across a Data-conflict replace.
	CurrentColumns(ctx context.Context, table, rowID string, columns []string) (map[string]any, error)
	// ApplyInsert inserts a brand new row.
	ApplyInsert(ctx context.Context, table string, columns map[string]any) error
	// ApplyReplace overwrites an existing row's columns (used both for a
	// plain Update and for an Insert that lost to an existing row's PK, per
	// the Conflict case, which resolves the same way as Data).
	ApplyReplace(ctx context.Context, table, rowID string, columns map[string]any) error
	// ApplyDelete removes a row. Deleting an already-absent row is not an error.
	ApplyDelete(ctx context.Context, table, rowID string) error
}

// ConflictTracker accumulates information about conflicts encountered
// during Apply, mirroring the original's ConflictTracker.
type ConflictTracker struct {
	// HadConstraintConflict is set when a Constraint/ForeignKey conflict
	// was omitted; the caller should retry the whole apply once with
	// deferred FK checks disabled.
	HadConstraintConflict bool
	// ReleaseFileRestoreIDs names files-table row ids that won a Data
	// conflict and had their device-local columns carried over from the
	// local row into the replacement before it was written.
	ReleaseFileRestoreIDs []string
}

// Apply replays cs against rs, resolving conflicts per spec §4.7:
//   - Data (same row, both sides updated): strictly newer _updated_at wins.
//   - NotFound (incoming UPDATE targets a locally-deleted row): omit.
//   - Conflict (incoming INSERT collides with an existing PK): same as Data.
//   - Constraint/ForeignKey: omit, flag HadConstraintConflict for FK retry.
//
// Apply itself does not start a transaction; the caller (pkg/store) wraps
// it so the whole changeset applies atomically.
func Apply(ctx context.Context, rs RowStore, cs Changeset) (*ConflictTracker, error) {
	tracker := &ConflictTracker{}

	for _, ch := range cs.Changes {
		if err := applyOne(ctx, rs, ch, tracker); err != nil {
			if bverr.Is(err, bverr.Database) {
				tracker.HadConstraintConflict = true
				continue
			}
			return tracker, err
		}
	}
	return tracker, nil
}

func applyOne(ctx context.Context, rs RowStore, ch Change, tracker *ConflictTracker) error {
	existingUpdatedAt, found, err := rs.CurrentUpdatedAt(ctx, ch.Table, ch.RowID)
	if err != nil {
		return err
	}

	switch ch.Op {
	case OpDelete:
		return rs.ApplyDelete(ctx, ch.Table, ch.RowID)

	case OpInsert:
		if !found {
			return rs.ApplyInsert(ctx, ch.Table, ch.Columns)
		}
		// Conflict: incoming INSERT collides with an existing primary key.
		// Resolved identically to a Data conflict.
		return resolveDataConflict(ctx, rs, ch, existingUpdatedAt, tracker)

	case OpUpdate:
		if !found {
			// NotFound: incoming UPDATE targets a row deleted locally.
			// Delete wins over concurrent update; omit.
			return nil
		}
		return resolveDataConflict(ctx, rs, ch, existingUpdatedAt, tracker)

	default:
		return bverr.New(bverr.Database, "unknown changeset op "+string(ch.Op))
	}
}

func resolveDataConflict(ctx context.Context, rs RowStore, ch Change, existingUpdatedAt string, tracker *ConflictTracker) error {
	incomingUpdatedAt, ok := ch.Columns["_updated_at"].(string)
	if !ok || incomingUpdatedAt == "" || existingUpdatedAt == "" {
		slog.Warn("changeset conflict missing _updated_at, keeping local row", "table", ch.Table, "row_id", ch.RowID)
		return nil
	}
	if incomingUpdatedAt <= existingUpdatedAt {
		// Equal or older loses; local row is kept.
		return nil
	}

	if cols, ok := deviceLocalColumns[ch.Table]; ok {
		preserved, err := rs.CurrentColumns(ctx, ch.Table, ch.RowID, cols)
		if err == nil {
			for _, c := range cols {
				if v, present := preserved[c]; present {
					ch.Columns[c] = v
				}
			}
		}
		tracker.ReleaseFileRestoreIDs = append(tracker.ReleaseFileRestoreIDs, ch.RowID)
	}

	return rs.ApplyReplace(ctx, ch.Table, ch.RowID, ch.Columns)
}
