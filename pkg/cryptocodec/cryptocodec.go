// Package cryptocodec implements the chunked XChaCha20-Poly1305 encryption
// codec used for every blob written into a cloud-home backend, with support
// for decrypting an arbitrary plaintext byte range without touching the
// rest of the blob.
package cryptocodec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bandvault/core/pkg/bverr"
)

const (
	// KeySize is the symmetric key length in bytes.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the base nonce length in bytes (XChaCha20 extended nonce).
	NonceSize = chacha20poly1305.NonceSizeX
	// TagSize is the Poly1305 authentication tag length per chunk.
	TagSize = chacha20poly1305.Overhead
	// ChunkSize is the plaintext chunk size, 64 KiB.
	ChunkSize = 64 * 1024
	// EncryptedChunkSize is one ciphertext chunk including its tag.
	EncryptedChunkSize = ChunkSize + TagSize
	// MinCiphertextSize is the smallest possible encrypted blob: base nonce
	// plus a single auth tag over empty plaintext.
	MinCiphertextSize = NonceSize + TagSize

	releaseKeyInfo = "bae-release-key"
)

// Encrypt chunks plaintext into ChunkSize pieces, encrypts each with a
// fresh random base nonce XORed by the chunk index, and returns
// base_nonce || c0 || c1 || ... . An empty plaintext yields exactly
// MinCiphertextSize bytes.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, bverr.Wrap(bverr.KeyManagement, "init aead", err)
	}

	baseNonce := make([]byte, NonceSize)
	if _, err := rand.Read(baseNonce); err != nil {
		return nil, bverr.Wrap(bverr.Storage, "generate nonce", err)
	}

	numChunks := numChunks(len(plaintext))
	out := make([]byte, 0, NonceSize+len(plaintext)+numChunks*TagSize)
	out = append(out, baseNonce...)

	for i := 0; i < numChunks; i++ {
		lo, hi := chunkBounds(len(plaintext), i)
		nonce := chunkNonce(baseNonce, uint64(i))
		out = aead.Seal(out, nonce, plaintext[lo:hi], nil)
	}
	return out, nil
}

// Decrypt authenticates and decrypts a full ciphertext blob produced by Encrypt.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < MinCiphertextSize {
		return nil, bverr.New(bverr.Truncated, fmt.Sprintf("ciphertext is %d bytes, want at least %d", len(ciphertext), MinCiphertextSize))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, bverr.Wrap(bverr.KeyManagement, "init aead", err)
	}

	baseNonce := ciphertext[:NonceSize]
	body := ciphertext[NonceSize:]

	var out []byte
	idx := uint64(0)
	for len(body) > 0 {
		n := EncryptedChunkSize
		if n > len(body) {
			n = len(body)
		}
		if n < TagSize {
			return nil, bverr.New(bverr.Truncated, "final chunk shorter than the auth tag")
		}
		nonce := chunkNonce(baseNonce, idx)
		plain, err := aead.Open(out, nonce, body[:n], nil)
		if err != nil {
			return nil, bverr.Wrap(bverr.Decrypt, fmt.Sprintf("chunk %d", idx), err)
		}
		out = plain
		body = body[n:]
		idx++
	}
	return out, nil
}

// EncryptedRangeForPlaintext returns the [0, endExclusive) byte range of the
// ciphertext blob that must be fetched from the backing store to decrypt
// plaintext range [lo, hi). The range always starts at 0 so it includes the
// base nonce, letting a caller do the range fetch and the decrypt with a
// single blob slice via DecryptRange.
func EncryptedRangeForPlaintext(lo, hi int64) (start, endExclusive int64) {
	iHi := (hi - 1) / ChunkSize
	return 0, int64(NonceSize) + (iHi+1)*int64(EncryptedChunkSize)
}

// DecryptRange decrypts the plaintext range [lo, hi) out of blobPrefix, the
// byte range returned by EncryptedRangeForPlaintext (i.e. base nonce
// followed by chunks 0..=i_hi). Chunks before i_lo are skipped without being
// opened, since each chunk's nonce is independent of the others.
func DecryptRange(key, blobPrefix []byte, lo, hi int64) ([]byte, error) {
	if len(blobPrefix) < NonceSize {
		return nil, bverr.New(bverr.Truncated, "blob prefix shorter than the base nonce")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, bverr.Wrap(bverr.KeyManagement, "init aead", err)
	}

	baseNonce := blobPrefix[:NonceSize]
	body := blobPrefix[NonceSize:]

	iLo := lo / ChunkSize
	iHi := (hi - 1) / ChunkSize

	var out []byte
	for idx := iLo; idx <= iHi; idx++ {
		off := idx * int64(EncryptedChunkSize)
		if off >= int64(len(body)) {
			return nil, bverr.New(bverr.Truncated, fmt.Sprintf("blob prefix missing chunk %d", idx))
		}
		end := off + int64(EncryptedChunkSize)
		if end > int64(len(body)) {
			end = int64(len(body))
		}
		if end-off < TagSize {
			return nil, bverr.New(bverr.Truncated, "final chunk shorter than the auth tag")
		}
		nonce := chunkNonce(baseNonce, uint64(idx))
		plain, err := aead.Open(nil, nonce, body[off:end], nil)
		if err != nil {
			return nil, bverr.Wrap(bverr.Decrypt, fmt.Sprintf("chunk %d", idx), err)
		}
		out = append(out, plain...)
	}

	sliceLo := lo - iLo*ChunkSize
	sliceHi := hi - iLo*ChunkSize
	if sliceLo < 0 || sliceHi > int64(len(out)) || sliceLo > sliceHi {
		return nil, bverr.New(bverr.Decrypt, "decoded range does not cover the requested slice")
	}
	return out[sliceLo:sliceHi], nil
}

// DeriveReleaseSubkey derives the per-release subkey used for Files with
// EncryptionScheme == Derived, so a release's key can later be handed out
// without exposing the library master key.
func DeriveReleaseSubkey(masterKey []byte, releaseID string) ([]byte, error) {
	r := hkdf.New(sha256.New, masterKey, []byte(releaseID), []byte(releaseKeyInfo))
	sub := make([]byte, KeySize)
	if _, err := io.ReadFull(r, sub); err != nil {
		return nil, bverr.Wrap(bverr.KeyManagement, "derive release subkey", err)
	}
	return sub, nil
}

func numChunks(plaintextLen int) int {
	if plaintextLen == 0 {
		return 1
	}
	return (plaintextLen + ChunkSize - 1) / ChunkSize
}

func chunkBounds(plaintextLen, index int) (lo, hi int) {
	lo = index * ChunkSize
	hi = lo + ChunkSize
	if hi > plaintextLen {
		hi = plaintextLen
	}
	return lo, hi
}

// chunkNonce XORs the low 8 bytes of baseNonce with the little-endian chunk
// index, per spec: nonce_i = base_nonce XOR le_u64(i).
func chunkNonce(baseNonce []byte, index uint64) []byte {
	nonce := make([]byte, len(baseNonce))
	copy(nonce, baseNonce)
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	for i := 0; i < 8; i++ {
		nonce[i] ^= idx[i]
	}
	return nonce
}
