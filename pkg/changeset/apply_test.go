package changeset

import (
	"context"
	"testing"
)

type fakeRow struct {
	columns map[string]any
}

type fakeStore struct {
	tables map[string]map[string]fakeRow
	fkFail map[string]bool // table -> next insert fails with a constraint error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tables: map[string]map[string]fakeRow{}, fkFail: map[string]bool{}}
}

func (f *fakeStore) CurrentUpdatedAt(ctx context.Context, table, rowID string) (string, bool, error) {
	rows, ok := f.tables[table]
	if !ok {
		return "", false, nil
	}
	row, ok := rows[rowID]
	if !ok {
		return "", false, nil
	}
	ua, _ := row.columns["_updated_at"].(string)
	return ua, true, nil
}

func (f *fakeStore) CurrentColumns(ctx context.Context, table, rowID string, columns []string) (map[string]any, error) {
	out := map[string]any{}
	rows, ok := f.tables[table]
	if !ok {
		return out, nil
	}
	row, ok := rows[rowID]
	if !ok {
		return out, nil
	}
	for _, c := range columns {
		if v, ok := row.columns[c]; ok {
			out[c] = v
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyInsert(ctx context.Context, table string, columns map[string]any) error {
	if f.fkFail[table] {
		delete(f.fkFail, table)
		return fakeConstraintError{}
	}
	if f.tables[table] == nil {
		f.tables[table] = map[string]fakeRow{}
	}
	id := columns["id"].(string)
	f.tables[table][id] = fakeRow{columns: cloneMap(columns)}
	return nil
}

func (f *fakeStore) ApplyReplace(ctx context.Context, table, rowID string, columns map[string]any) error {
	if f.tables[table] == nil {
		f.tables[table] = map[string]fakeRow{}
	}
	f.tables[table][rowID] = fakeRow{columns: cloneMap(columns)}
	return nil
}

func (f *fakeStore) ApplyDelete(ctx context.Context, table, rowID string) error {
	if f.tables[table] != nil {
		delete(f.tables[table], rowID)
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type fakeConstraintError struct{}

func (fakeConstraintError) Error() string { return "constraint violation" }

func TestApplyInsertNewRow(t *testing.T) {
	fs := newFakeStore()
	cs := Changeset{Changes: []Change{
		{Table: "albums", Op: OpInsert, RowID: "a1", Columns: map[string]any{"id": "a1", "title": "Foo", "_updated_at": "0000000000001-00000-dev-a"}},
	}}
	tr, err := Apply(context.Background(), fs, cs)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if tr.HadConstraintConflict {
		t.Fatal("unexpected constraint conflict")
	}
	if fs.tables["albums"]["a1"].columns["title"] != "Foo" {
		t.Fatal("row not inserted")
	}
}

func TestApplyDataConflictNewerWins(t *testing.T) {
	fs := newFakeStore()
	fs.tables["albums"] = map[string]fakeRow{
		"a1": {columns: map[string]any{"id": "a1", "title": "Old", "_updated_at": "0000000000001-00000-dev-a"}},
	}
	cs := Changeset{Changes: []Change{
		{Table: "albums", Op: OpUpdate, RowID: "a1", Columns: map[string]any{"id": "a1", "title": "New", "_updated_at": "0000000000002-00000-dev-b"}},
	}}
	if _, err := Apply(context.Background(), fs, cs); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if fs.tables["albums"]["a1"].columns["title"] != "New" {
		t.Fatal("newer update should have replaced the row")
	}
}

func TestApplyDataConflictOlderLoses(t *testing.T) {
	fs := newFakeStore()
	fs.tables["albums"] = map[string]fakeRow{
		"a1": {columns: map[string]any{"id": "a1", "title": "Local", "_updated_at": "0000000000005-00000-dev-a"}},
	}
	cs := Changeset{Changes: []Change{
		{Table: "albums", Op: OpUpdate, RowID: "a1", Columns: map[string]any{"id": "a1", "title": "Remote", "_updated_at": "0000000000002-00000-dev-b"}},
	}}
	if _, err := Apply(context.Background(), fs, cs); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if fs.tables["albums"]["a1"].columns["title"] != "Local" {
		t.Fatal("older update should have lost to the local row")
	}
}

func TestApplyUpdateOnDeletedRowIsOmitted(t *testing.T) {
	fs := newFakeStore()
	cs := Changeset{Changes: []Change{
		{Table: "albums", Op: OpUpdate, RowID: "gone", Columns: map[string]any{"id": "gone", "title": "X", "_updated_at": "0000000000001-00000-dev-a"}},
	}}
	if _, err := Apply(context.Background(), fs, cs); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := fs.tables["albums"]["gone"]; ok {
		t.Fatal("update on a locally-deleted row should not resurrect it")
	}
}

func TestApplyPreservesDeviceLocalEncryptionNonce(t *testing.T) {
	fs := newFakeStore()
	fs.tables["files"] = map[string]fakeRow{
		"f1": {columns: map[string]any{
			"id": "f1", "encryption_nonce": "local-nonce", "_updated_at": "0000000000001-00000-dev-a",
		}},
	}
	cs := Changeset{Changes: []Change{
		{Table: "files", Op: OpUpdate, RowID: "f1", Columns: map[string]any{
			"id": "f1", "original_filename": "renamed.flac", "encryption_nonce": "remote-nonce", "_updated_at": "0000000000002-00000-dev-b",
		}},
	}}
	tr, err := Apply(context.Background(), fs, cs)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(tr.ReleaseFileRestoreIDs) != 1 || tr.ReleaseFileRestoreIDs[0] != "f1" {
		t.Fatalf("ReleaseFileRestoreIDs = %v, want [f1]", tr.ReleaseFileRestoreIDs)
	}
	got := fs.tables["files"]["f1"].columns
	if got["encryption_nonce"] != "local-nonce" {
		t.Fatalf("encryption_nonce = %v, want local-nonce preserved", got["encryption_nonce"])
	}
	if got["original_filename"] != "renamed.flac" {
		t.Fatal("non-device-local column should still take the incoming value")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	fs := newFakeStore()
	cs := Changeset{Changes: []Change{
		{Table: "albums", Op: OpInsert, RowID: "a1", Columns: map[string]any{"id": "a1", "title": "Foo", "_updated_at": "0000000000001-00000-dev-a"}},
	}}
	if _, err := Apply(context.Background(), fs, cs); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	snapshot := cloneMap(fs.tables["albums"]["a1"].columns)

	cs2 := Changeset{Changes: []Change{
		{Table: "albums", Op: OpInsert, RowID: "a1", Columns: map[string]any{"id": "a1", "title": "Foo", "_updated_at": "0000000000001-00000-dev-a"}},
	}}
	if _, err := Apply(context.Background(), fs, cs2); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	after := fs.tables["albums"]["a1"].columns
	if len(after) != len(snapshot) || after["title"] != snapshot["title"] {
		t.Fatal("re-applying the same changeset should be a no-op")
	}
}
