// Package filestore is C4: file storage. Given a logical
// (release_id, original_filename, bytes), it assigns a fresh file ID,
// computes the content-addressed shard path, optionally encrypts with C2,
// writes to a C3 backend in progress-reporting batches, and inserts the
// resulting File row into C5.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/cloudhome"
	"github.com/bandvault/core/pkg/cryptocodec"
	"github.com/bandvault/core/pkg/store"
)

// batchSize is the write granularity used for progress reporting; it does
// not change what's written, only how often ProgressFunc fires.
const batchSize = 1 << 20 // 1 MiB

// ProgressFunc is called with (bytesWritten, totalBytes) in non-decreasing
// bytesWritten order. totalBytes is always the plaintext length: when
// encryption changes the written length, progress is scaled back to the
// plaintext scale so callers see a monotone 0..N regardless of scheme.
type ProgressFunc func(bytesWritten, totalBytes int)

// StorageProfile carries just the fields filestore needs from
// store.StorageProfile to decide whether and how to encrypt.
type StorageProfile struct {
	Encrypted bool
	// UseDerivedKey selects the per-release HKDF subkey (C2's Derived
	// scheme) instead of the library master key. Unused when Encrypted is
	// false.
	UseDerivedKey bool
}

// FileInserter is the one store.Store method Store needs. Depending on the
// interface rather than *store.Store directly keeps this package testable
// without a live Postgres connection.
type FileInserter interface {
	InsertFile(ctx context.Context, f store.File) error
}

// StoragePath computes the two-level shard-tree path for a file ID:
// storage/<id[0:2]>/<id[2:4]>/<id>.
func StoragePath(fileID string) string {
	if len(fileID) < 4 {
		return path.Join("storage", fileID)
	}
	return path.Join("storage", fileID[0:2], fileID[2:4], fileID)
}

// Store writes file bytes via C4's pipeline and returns the inserted File
// row's id. On IO/cloud failure the partially-written blob is left in
// place; no File row is inserted, so the orphan stays invisible to the
// rest of the system.
func Store(
	ctx context.Context,
	backend cloudhome.Backend,
	db FileInserter,
	libraryKey []byte,
	releaseID, originalFilename string,
	data []byte,
	profile StorageProfile,
	createdAt, updatedAt string,
	onProgress ProgressFunc,
) (string, error) {
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	fileID := uuid.NewString()
	totalBytes := len(data)
	onProgress(0, totalBytes)

	scheme := store.EncryptionScheme("")
	var toStore []byte
	var nonceHex *string

	if profile.Encrypted {
		encKey := libraryKey
		scheme = store.EncryptionMaster
		if profile.UseDerivedKey {
			subkey, err := cryptocodec.DeriveReleaseSubkey(libraryKey, releaseID)
			if err != nil {
				return "", err
			}
			encKey = subkey
			scheme = store.EncryptionDerived
		}

		ciphertext, err := cryptocodec.Encrypt(encKey, data)
		if err != nil {
			return "", err
		}
		toStore = ciphertext
		if len(ciphertext) >= cryptocodec.NonceSize {
			nonce := fmt.Sprintf("%x", ciphertext[:cryptocodec.NonceSize])
			nonceHex = &nonce
		}
	} else {
		toStore = data
	}

	if err := writeInBatches(ctx, backend, StoragePath(fileID), toStore, totalBytes, onProgress); err != nil {
		return "", err
	}

	file := store.File{
		ID:               fileID,
		ReleaseID:        releaseID,
		OriginalFilename: originalFilename,
		FileSize:         int64(totalBytes),
		ContentType:      contentTypeFromFilename(originalFilename),
		EncryptionNonce:  nonceHex,
		EncryptionScheme: scheme,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
	if file.EncryptionScheme == "" {
		file.EncryptionScheme = store.EncryptionMaster
	}

	if err := db.InsertFile(ctx, file); err != nil {
		return "", bverr.Wrap(bverr.Database, "insert file row after successful write", err)
	}
	return fileID, nil
}

// progressReader wraps an in-memory reader, capping each Read at batchSize
// bytes so the underlying backend's Write sees the data in ~1 MiB pieces,
// and reports (bytes_written, total) scaled back to the plaintext length
// after each piece.
type progressReader struct {
	r              *bytes.Reader
	written        int
	writtenLen     int // length of the (possibly ciphertext) data being read
	plaintextTotal int
	onProgress     ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	if len(buf) > batchSize {
		buf = buf[:batchSize]
	}
	n, err := p.r.Read(buf)
	if n > 0 {
		p.written += n
		progressBytes := p.written
		if p.writtenLen != p.plaintextTotal && p.writtenLen > 0 {
			progressBytes = p.written * p.plaintextTotal / p.writtenLen
		}
		if progressBytes > p.plaintextTotal {
			progressBytes = p.plaintextTotal
		}
		p.onProgress(progressBytes, p.plaintextTotal)
	}
	return n, err
}

func writeInBatches(ctx context.Context, backend cloudhome.Backend, key string, data []byte, plaintextTotal int, onProgress ProgressFunc) error {
	r := &progressReader{r: bytes.NewReader(data), writtenLen: len(data), plaintextTotal: plaintextTotal, onProgress: onProgress}
	if err := backend.Write(ctx, key, r, int64(len(data))); err != nil {
		return bverr.Wrap(bverr.Storage, "write file blob", err)
	}
	if len(data) == 0 {
		onProgress(plaintextTotal, plaintextTotal)
	}
	return nil
}

func contentTypeFromFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
