package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/changeset"
)

// CaptureSession brackets a unit of local work (an import, a manual edit)
// and, on Close, turns everything the triggers logged during that window
// into an outgoing Changeset. Only one capture session may be open at a
// time: opening a second one before the first closes would let the two
// windows' change-log ranges overlap and double-count rows.
type CaptureSession struct {
	store     *Store
	watermark int64
}

var captureMu sync.Mutex

// BeginCapture opens a capture session, recording the current change log
// high-water mark. It blocks until any other in-flight capture session in
// this process has closed; the lock is package-level, shared by every Store.
func (s *Store) BeginCapture(ctx context.Context) (*CaptureSession, error) {
	captureMu.Lock()
	var watermark int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM _bandvault_change_log`).Scan(&watermark)
	if err != nil {
		captureMu.Unlock()
		return nil, bverr.Wrap(bverr.Database, "read change log watermark", err)
	}
	return &CaptureSession{store: s, watermark: watermark}, nil
}

// Close reads every change-log row appended since the session began and
// folds it into a Changeset, keeping only the latest row per (table, id)
// pair so a row updated twice within the session is emitted once.
func (cs *CaptureSession) Close(ctx context.Context) (*changeset.Changeset, error) {
	defer captureMu.Unlock()

	rows, err := cs.store.pool.Query(ctx, `
		SELECT table_name, op, row_id, row_data
		FROM _bandvault_change_log
		WHERE id > $1
		ORDER BY id ASC
	`, cs.watermark)
	if err != nil {
		return nil, bverr.Wrap(bverr.Database, "read change log", err)
	}
	defer rows.Close()

	order := []string{}
	byKey := map[string]changeset.Change{}

	for rows.Next() {
		var table, op, rowID string
		var rowData []byte
		if err := rows.Scan(&table, &op, &rowID, &rowData); err != nil {
			return nil, bverr.Wrap(bverr.Database, "scan change log row", err)
		}

		key := table + "\x00" + rowID
		change := changeset.Change{Table: table, RowID: rowID}

		switch op {
		case "delete":
			change.Op = changeset.OpDelete
		case "insert":
			change.Op = changeset.OpInsert
		default:
			change.Op = changeset.OpUpdate
		}

		if rowData != nil {
			var cols map[string]any
			if err := json.Unmarshal(rowData, &cols); err != nil {
				return nil, fmt.Errorf("unmarshal change log row_data: %w", err)
			}
			change.Columns = cols
			if ua, ok := cols["_updated_at"].(string); ok {
				change.UpdatedAt = ua
			}
		}

		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = change
	}
	if err := rows.Err(); err != nil {
		return nil, bverr.Wrap(bverr.Database, "iterate change log", err)
	}

	cs2 := changeset.Changeset{Changes: make([]changeset.Change, 0, len(order))}
	for _, key := range order {
		cs2.Changes = append(cs2.Changes, byKey[key])
	}
	return &cs2, nil
}
