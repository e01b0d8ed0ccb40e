// Package cloudhome provides the blob namespace abstraction (C3): a
// key/value object store over local FS, S3-compatible, or iCloud-style
// platform-synced directory backends.
package cloudhome

import (
	"context"
	"io"
)

// JoinInfo is returned by GrantAccess for backends that can mint
// out-of-band access credentials for a new member.
type JoinInfo struct {
	MemberID string
	Info     string
}

// Backend is the interface all cloud-home backends implement. Keys are
// POSIX-style paths with "/" separators regardless of the host platform.
type Backend interface {
	// Write stores a new object, overwriting any existing value at key.
	Write(ctx context.Context, key string, r io.Reader, size int64) error
	// Read returns the full contents of key.
	Read(ctx context.Context, key string) (io.ReadCloser, error)
	// ReadRange returns [start, endExclusive) bytes of key.
	ReadRange(ctx context.Context, key string, start, endExclusive int64) (io.ReadCloser, error)
	// List returns keys with the given prefix, sorted lexicographically.
	// Listing a non-existent prefix returns an empty slice, not an error.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key names a regular object (not a directory/prefix).
	Exists(ctx context.Context, key string) (bool, error)
	// GrantAccess issues access for memberID, for backends that support
	// out-of-band sharing. Backends relying on external sync (platform-synced
	// directories) return bverr.Storage("managed externally").
	GrantAccess(ctx context.Context, memberID string) (JoinInfo, error)
	// RevokeAccess revokes a previously granted access.
	RevokeAccess(ctx context.Context, memberID string) error
}
