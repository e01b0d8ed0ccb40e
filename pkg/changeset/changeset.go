// Package changeset implements C7: the opaque binary changeset format
// produced by a metadata-database capture session, and the last-writer-wins
// conflict resolution policy used when applying a changeset captured on
// another device.
package changeset

import "encoding/json"

// Op identifies the kind of row mutation a Change records.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one captured row mutation. Columns carries the full row state
// for Insert/Update (including _updated_at); it is nil for Delete.
type Change struct {
	Table     string         `json:"table"`
	Op        Op             `json:"op"`
	RowID     string         `json:"row_id"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	Columns   map[string]any `json:"columns,omitempty"`
}

// Changeset is an ordered list of row mutations captured within one
// capture session. The wire encoding is an implementation choice per
// spec — JSON is used here since the envelope already treats the
// changeset as an opaque byte string.
type Changeset struct {
	Changes []Change `json:"changes"`
}

// Empty reports whether the changeset carries no changes; a capture
// session that produced no writes returns an empty (non-nil) changeset.
func (c Changeset) Empty() bool { return len(c.Changes) == 0 }

// Encode serialises a Changeset to its wire bytes.
func Encode(cs Changeset) ([]byte, error) {
	return json.Marshal(cs)
}

// Decode parses wire bytes back into a Changeset.
func Decode(b []byte) (Changeset, error) {
	var cs Changeset
	if err := json.Unmarshal(b, &cs); err != nil {
		return Changeset{}, err
	}
	return cs, nil
}
