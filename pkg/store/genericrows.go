package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bandvault/core/pkg/bverr"
)

// syncedTables allowlists the tables a changeset may touch, resolved by
// name rather than trusting caller-supplied identifiers. Every entry here
// has a capture trigger in schema.sql.
var syncedTables = map[string]bool{
	"libraries":        true,
	"storage_profiles": true,
	"artists":          true,
	"albums":           true,
	"album_artists":    true,
	"releases":         true,
	"tracks":           true,
	"files":            true,
	"images":           true,
	"release_storage":  true,
	"import_jobs":      true,
}

// compositeKeyTables names, in order, the key columns for tables whose
// primary key isn't a single "id" column. Their capture trigger
// (schema.sql's bandvault_capture_album_artists) encodes row_id as those
// columns joined by compositeKeyDelim; rowKeyColumns/rowKeyValues split it
// back apart so the generic applier can build a WHERE clause over them.
var compositeKeyTables = map[string][]string{
	"album_artists": {"album_id", "artist_id"},
}

// compositeKeyDelim is the ASCII unit separator, chosen because it never
// appears in a uuid or any other key value this schema generates.
const compositeKeyDelim = "\x1f"

func rowKeyColumns(table string) []string {
	if cols, ok := compositeKeyTables[table]; ok {
		return cols
	}
	return []string{"id"}
}

func rowKeyValues(table, rowID string) []string {
	if _, ok := compositeKeyTables[table]; ok {
		return strings.Split(rowID, compositeKeyDelim)
	}
	return []string{rowID}
}

// rowKeyWhere builds a "col1 = $n AND col2 = $n+1 ..." clause identifying
// one row of table by rowID, with placeholders starting at startArg.
func rowKeyWhere(table, rowID string, startArg int) (clause string, args []any) {
	cols := rowKeyColumns(table)
	vals := rowKeyValues(table, rowID)
	parts := make([]string, len(cols))
	args = make([]any, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = $%d", quoteIdent(c), startArg+i)
		if i < len(vals) {
			args[i] = vals[i]
		}
	}
	return strings.Join(parts, " AND "), args
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func checkSyncedTable(table string) {
	if !syncedTables[table] {
		panic(fmt.Sprintf("store: table %q is not a synced table", table))
	}
}

// pgExecutor is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// same SQL-building code run either standalone or inside an apply
// transaction.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func currentUpdatedAt(ctx context.Context, exec pgExecutor, table, rowID string) (string, bool, error) {
	checkSyncedTable(table)
	where, args := rowKeyWhere(table, rowID, 1)
	q := fmt.Sprintf(`SELECT _updated_at FROM %s WHERE %s`, quoteIdent(table), where)
	var updatedAt string
	err := exec.QueryRow(ctx, q, args...).Scan(&updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, bverr.Wrap(bverr.Database, fmt.Sprintf("read %s._updated_at", table), err)
	}
	return updatedAt, true, nil
}

func currentColumns(ctx context.Context, exec pgExecutor, table, rowID string, columns []string) (map[string]any, error) {
	checkSyncedTable(table)
	if len(columns) == 0 {
		return map[string]any{}, nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	where, args := rowKeyWhere(table, rowID, 1)
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, strings.Join(quoted, ", "), quoteIdent(table), where)
	dest := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	err := exec.QueryRow(ctx, q, args...).Scan(ptrs...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return map[string]any{}, nil
		}
		return nil, bverr.Wrap(bverr.Database, fmt.Sprintf("read %s columns", table), err)
	}
	out := make(map[string]any, len(columns))
	for i, c := range columns {
		out[c] = dest[i]
	}
	return out, nil
}

func applyInsert(ctx context.Context, exec pgExecutor, table string, columns map[string]any) error {
	checkSyncedTable(table)
	names, values := sortedColumns(columns)

	quotedNames := make([]string, len(names))
	placeholders := make([]string, len(names))
	for i, n := range names {
		quotedNames[i] = quoteIdent(n)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(table), strings.Join(quotedNames, ", "), strings.Join(placeholders, ", "))
	if _, err := exec.Exec(ctx, q, values...); err != nil {
		return bverr.Wrap(bverr.Database, fmt.Sprintf("insert into %s", table), err)
	}
	return nil
}

func applyReplace(ctx context.Context, exec pgExecutor, table, rowID string, columns map[string]any) error {
	checkSyncedTable(table)
	names, values := sortedColumns(columns)
	keyCols := rowKeyColumns(table)
	isKeyCol := make(map[string]bool, len(keyCols))
	for _, c := range keyCols {
		isKeyCol[c] = true
	}

	var sets []string
	args := make([]any, 0, len(names)+len(keyCols))
	n := 1
	for i, name := range names {
		if isKeyCol[name] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(name), n))
		args = append(args, values[i])
		n++
	}
	where, whereArgs := rowKeyWhere(table, rowID, n)
	args = append(args, whereArgs...)
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE %s`, quoteIdent(table), strings.Join(sets, ", "), where)
	if _, err := exec.Exec(ctx, q, args...); err != nil {
		return bverr.Wrap(bverr.Database, fmt.Sprintf("update %s", table), err)
	}
	return nil
}

func applyDelete(ctx context.Context, exec pgExecutor, table, rowID string) error {
	checkSyncedTable(table)
	where, args := rowKeyWhere(table, rowID, 1)
	q := fmt.Sprintf(`DELETE FROM %s WHERE %s`, quoteIdent(table), where)
	if _, err := exec.Exec(ctx, q, args...); err != nil {
		return bverr.Wrap(bverr.Database, fmt.Sprintf("delete from %s", table), err)
	}
	return nil
}

func sortedColumns(columns map[string]any) (names []string, values []any) {
	names = make([]string, 0, len(columns))
	for n := range columns {
		names = append(names, n)
	}
	sort.Strings(names)
	values = make([]any, len(names))
	for i, n := range names {
		values[i] = columns[n]
	}
	return names, values
}

// CurrentUpdatedAt implements changeset.RowStore using the pool directly
// (outside any apply transaction — used by plain reads).
func (s *Store) CurrentUpdatedAt(ctx context.Context, table, rowID string) (string, bool, error) {
	return currentUpdatedAt(ctx, s.pool, table, rowID)
}

// CurrentColumns implements changeset.RowStore.
func (s *Store) CurrentColumns(ctx context.Context, table, rowID string, columns []string) (map[string]any, error) {
	return currentColumns(ctx, s.pool, table, rowID, columns)
}

// ApplyInsert implements changeset.RowStore.
func (s *Store) ApplyInsert(ctx context.Context, table string, columns map[string]any) error {
	return applyInsert(ctx, s.pool, table, columns)
}

// ApplyReplace implements changeset.RowStore.
func (s *Store) ApplyReplace(ctx context.Context, table, rowID string, columns map[string]any) error {
	return applyReplace(ctx, s.pool, table, rowID, columns)
}

// ApplyDelete implements changeset.RowStore.
func (s *Store) ApplyDelete(ctx context.Context, table, rowID string) error {
	return applyDelete(ctx, s.pool, table, rowID)
}

// txRowStore implements changeset.RowStore scoped to a single pgx
// transaction, used by ApplyChangeset so a whole incoming changeset commits
// or rolls back atomically.
type txRowStore struct {
	tx pgx.Tx
}

func (t *txRowStore) CurrentUpdatedAt(ctx context.Context, table, rowID string) (string, bool, error) {
	return currentUpdatedAt(ctx, t.tx, table, rowID)
}

func (t *txRowStore) CurrentColumns(ctx context.Context, table, rowID string, columns []string) (map[string]any, error) {
	return currentColumns(ctx, t.tx, table, rowID, columns)
}

func (t *txRowStore) ApplyInsert(ctx context.Context, table string, columns map[string]any) error {
	return applyInsert(ctx, t.tx, table, columns)
}

func (t *txRowStore) ApplyReplace(ctx context.Context, table, rowID string, columns map[string]any) error {
	return applyReplace(ctx, t.tx, table, rowID, columns)
}

func (t *txRowStore) ApplyDelete(ctx context.Context, table, rowID string) error {
	return applyDelete(ctx, t.tx, table, rowID)
}
