// Package envelope is C6: the changeset envelope. It packs a changeset's
// bytes together with JSON metadata describing who produced it and under
// what schema version, optionally signed with the author's Ed25519 key.
package envelope

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/keys"
)

// Metadata is the JSON-encoded half of a packed envelope.
type Metadata struct {
	DeviceID       string  `json:"device_id"`
	Seq            uint64  `json:"seq"`
	SchemaVersion  uint32  `json:"schema_version"`
	Message        string  `json:"message"`
	Timestamp      string  `json:"timestamp"` // HLC string
	ChangesetSize  int     `json:"changeset_size"`
	AuthorPubkey   *string `json:"author_pubkey,omitempty"` // hex
	Signature      *string `json:"signature,omitempty"`     // hex, detached over changeset bytes
}

// Envelope is a Metadata header paired with the changeset bytes it describes.
type Envelope struct {
	Metadata  Metadata
	Changeset []byte
}

// Sign sets AuthorPubkey and Signature on env.Metadata to a detached Ed25519
// signature over the changeset bytes.
func Sign(env *Envelope, id *keys.Identity) {
	sig := keys.Sign(id, env.Changeset)
	pk := hex.EncodeToString(id.PublicKey)
	sigHex := hex.EncodeToString(sig)
	env.Metadata.AuthorPubkey = &pk
	env.Metadata.Signature = &sigHex
}

// VerifySignature checks the envelope's signature, if present.
//
//   - No signature present: returns true. Unsigned envelopes are accepted
//     here; membership authorisation (a separate, higher-level check) is
//     what actually gates whether an unsigned envelope's changeset may be
//     applied.
//   - Exactly one of AuthorPubkey/Signature set: half-signed, invalid.
//   - Both set: valid only if the hex decodes and the signature verifies
//     over env.Changeset under the given public key.
func VerifySignature(env Envelope) bool {
	if env.Metadata.AuthorPubkey == nil && env.Metadata.Signature == nil {
		return true
	}
	if env.Metadata.AuthorPubkey == nil || env.Metadata.Signature == nil {
		return false
	}

	pkBytes, err := hex.DecodeString(*env.Metadata.AuthorPubkey)
	if err != nil || len(pkBytes) != keys.SignPublicKeyBytes {
		return false
	}
	sigBytes, err := hex.DecodeString(*env.Metadata.Signature)
	if err != nil || len(sigBytes) != keys.SignBytes {
		return false
	}

	return keys.Verify(ed25519.PublicKey(pkBytes), env.Changeset, sigBytes)
}

// Pack serialises env into the wire format: utf8_json_bytes || 0x00 || changeset_bytes.
func Pack(env Envelope) ([]byte, error) {
	meta := env.Metadata
	meta.ChangesetSize = len(env.Changeset)
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope metadata: %w", err)
	}
	buf := make([]byte, 0, len(jsonBytes)+1+len(env.Changeset))
	buf = append(buf, jsonBytes...)
	buf = append(buf, 0)
	buf = append(buf, env.Changeset...)
	return buf, nil
}

// Unpack splits the wire format back into metadata and changeset bytes.
//
// Splitting on the first NUL byte is safe: the metadata half is valid JSON,
// and JSON cannot contain a raw 0x00 byte -- any NUL inside a JSON string
// must be escaped as a unicode escape sequence -- so the first 0x00 in the
// blob is always the separator, never part of the metadata.
func Unpack(data []byte) (Envelope, error) {
	sep := bytes.IndexByte(data, 0)
	if sep < 0 {
		return Envelope{}, bverr.New(bverr.Decrypt, "envelope: no separator byte found")
	}
	var meta Metadata
	if err := json.Unmarshal(data[:sep], &meta); err != nil {
		return Envelope{}, bverr.Wrap(bverr.Decrypt, "envelope: invalid metadata JSON", err)
	}
	return Envelope{Metadata: meta, Changeset: data[sep+1:]}, nil
}
