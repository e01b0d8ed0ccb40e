// Package attestation is C11: signed statements linking curated release
// identifiers (MusicBrainz release IDs) to BitTorrent infohashes and a
// deterministic content fingerprint, independently verifiable without
// external context.
package attestation

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/keys"
)

// Attestation links a MusicBrainz release ID to a torrent infohash and a
// content hash over the release's file hashes.
type Attestation struct {
	MBID         string `json:"mbid"`
	Infohash     string `json:"infohash"`
	ContentHash  string `json:"content_hash"`
	Format       string `json:"format"`
	AuthorPubkey string `json:"author_pubkey"`
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
}

// canonicalFields mirrors the struct fields, alphabetically sorted by key
// and excluding signature, so the signed bytes never drift out of step
// with the struct's JSON tags.
type canonicalFields struct {
	AuthorPubkey string `json:"author_pubkey"`
	ContentHash  string `json:"content_hash"`
	Format       string `json:"format"`
	Infohash     string `json:"infohash"`
	MBID         string `json:"mbid"`
	Timestamp    string `json:"timestamp"`
}

// CanonicalBytes returns the deterministic serialization of every signed
// field except Signature. Go's encoding/json marshals struct fields in
// declaration order, so canonicalFields lists them alphabetically to match.
func CanonicalBytes(a Attestation) []byte {
	c := canonicalFields{
		AuthorPubkey: a.AuthorPubkey,
		ContentHash:  a.ContentHash,
		Format:       a.Format,
		Infohash:     a.Infohash,
		MBID:         a.MBID,
		Timestamp:    a.Timestamp,
	}
	b, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("attestation: canonical serialization cannot fail: %v", err))
	}
	return b
}

// Create builds and signs a new attestation.
func Create(mbid, infohash, contentHash, format string, id *keys.Identity, timestamp string) Attestation {
	a := Attestation{
		MBID:         mbid,
		Infohash:     infohash,
		ContentHash:  contentHash,
		Format:       format,
		AuthorPubkey: hex.EncodeToString(id.PublicKey),
		Timestamp:    timestamp,
	}
	sig := keys.Sign(id, CanonicalBytes(a))
	a.Signature = hex.EncodeToString(sig)
	return a
}

// Verify checks an attestation's signature over its canonical bytes.
func Verify(a Attestation) error {
	pkBytes, err := hex.DecodeString(a.AuthorPubkey)
	if err != nil || len(pkBytes) != keys.SignPublicKeyBytes {
		return bverr.New(bverr.InvalidPubkey, "attestation: invalid author_pubkey")
	}
	sigBytes, err := hex.DecodeString(a.Signature)
	if err != nil || len(sigBytes) != keys.SignBytes {
		return bverr.New(bverr.InvalidSignature, "attestation: invalid signature")
	}

	if !keys.Verify(ed25519.PublicKey(pkBytes), CanonicalBytes(a), sigBytes) {
		return bverr.New(bverr.SignatureVerificationFailed, "attestation: signature does not verify")
	}
	return nil
}

// ComputeContentHash fingerprints a release's files: it decodes each
// hex-encoded SHA-256 file hash to raw bytes, concatenates them in the
// given order, and hashes the result. Callers must sort fileHashes first
// if they want a fingerprint independent of enumeration order.
func ComputeContentHash(fileHashes []string) (string, error) {
	h := sha256.New()
	for _, hexHash := range fileHashes {
		raw, err := hex.DecodeString(hexHash)
		if err != nil {
			return "", fmt.Errorf("attestation: file hash %q is not valid hex: %w", hexHash, err)
		}
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
