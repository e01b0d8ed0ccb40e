// Package bucket is C8: the sync bucket client. It layers the logical key
// schema for heads, changesets, images, and share artefacts on top of a
// pkg/cloudhome.Backend, applying library-key encryption to changesets and
// images. Heads and share artefacts are written as given.
package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/cloudhome"
	"github.com/bandvault/core/pkg/cryptocodec"
)

// Head is the small, unencrypted pointer a device publishes after every
// successful push, so peers can cheaply discover how far ahead it is
// without fetching any changeset bytes.
type Head struct {
	DeviceID  string `json:"device_id"`
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
}

// Client is C8, keyed by logical paths under a cloudhome.Backend.
type Client struct {
	backend    cloudhome.Backend
	libraryKey []byte
}

// New returns a Client. libraryKey encrypts changesets and images at rest;
// heads are written and read in the clear.
func New(backend cloudhome.Backend, libraryKey []byte) *Client {
	return &Client{backend: backend, libraryKey: libraryKey}
}

func headKey(deviceID string) string {
	return fmt.Sprintf("heads/%s", deviceID)
}

func changesetKey(deviceID string, seq uint64) string {
	return fmt.Sprintf("changes/%s/%020d.env", deviceID, seq)
}

func imageKey(imageID string) string {
	return fmt.Sprintf("images/%s", imageID)
}

func shareMetaKey(shareID string) string {
	return fmt.Sprintf("shares/%s/meta.enc", shareID)
}

func shareManifestKey(shareID string) string {
	return fmt.Sprintf("shares/%s/manifest.json", shareID)
}

func shareFileKey(shareID, path string) string {
	return fmt.Sprintf("shares/%s/file/%s", shareID, path)
}

func (c *Client) readAll(ctx context.Context, key string) ([]byte, error) {
	r, err := c.backend.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (c *Client) writeAll(ctx context.Context, key string, data []byte) error {
	return c.backend.Write(ctx, key, bytes.NewReader(data), int64(len(data)))
}

// ListHeads returns every device's published head.
func (c *Client) ListHeads(ctx context.Context) ([]Head, error) {
	keys, err := c.backend.List(ctx, "heads/")
	if err != nil {
		return nil, err
	}
	heads := make([]Head, 0, len(keys))
	for _, key := range keys {
		data, err := c.readAll(ctx, key)
		if err != nil {
			if bverr.Is(err, bverr.NotFound) {
				continue // raced with a concurrent write; skip this head this cycle
			}
			return nil, err
		}
		var h Head
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("bucket: unmarshal head %q: %w", key, err)
		}
		heads = append(heads, h)
	}
	return heads, nil
}

// PutHead publishes this device's head, in the clear.
func (c *Client) PutHead(ctx context.Context, head Head) error {
	data, err := json.Marshal(head)
	if err != nil {
		return fmt.Errorf("bucket: marshal head: %w", err)
	}
	return c.writeAll(ctx, headKey(head.DeviceID), data)
}

// GetChangeset fetches and decrypts the packed envelope bytes for one
// device's sequence number.
func (c *Client) GetChangeset(ctx context.Context, deviceID string, seq uint64) ([]byte, error) {
	ciphertext, err := c.readAll(ctx, changesetKey(deviceID, seq))
	if err != nil {
		return nil, err
	}
	return cryptocodec.Decrypt(c.libraryKey, ciphertext)
}

// PutChangeset encrypts and writes a packed envelope's bytes.
func (c *Client) PutChangeset(ctx context.Context, deviceID string, seq uint64, envBytes []byte) error {
	ciphertext, err := cryptocodec.Encrypt(c.libraryKey, envBytes)
	if err != nil {
		return err
	}
	return c.writeAll(ctx, changesetKey(deviceID, seq), ciphertext)
}

// UploadImage encrypts and writes image bytes referenced by a changeset's
// Image rows.
func (c *Client) UploadImage(ctx context.Context, imageID string, data []byte) error {
	ciphertext, err := cryptocodec.Encrypt(c.libraryKey, data)
	if err != nil {
		return err
	}
	return c.writeAll(ctx, imageKey(imageID), ciphertext)
}

// DownloadImage fetches and decrypts image bytes.
func (c *Client) DownloadImage(ctx context.Context, imageID string) ([]byte, error) {
	ciphertext, err := c.readAll(ctx, imageKey(imageID))
	if err != nil {
		return nil, err
	}
	return cryptocodec.Decrypt(c.libraryKey, ciphertext)
}

// PutShareMeta, PutShareManifest, and PutShareFile write share artefacts.
// The bucket's key schema for shares is in scope even though the HTTP
// layer that serves them is not (see spec Non-goals); these exist so a
// future share layer has somewhere to write without a bucket migration.

// PutShareMeta writes a share's encrypted metadata blob.
func (c *Client) PutShareMeta(ctx context.Context, shareID string, encMeta []byte) error {
	return c.writeAll(ctx, shareMetaKey(shareID), encMeta)
}

// PutShareManifest writes a share's plaintext manifest (file listing).
func (c *Client) PutShareManifest(ctx context.Context, shareID string, manifest []byte) error {
	return c.writeAll(ctx, shareManifestKey(shareID), manifest)
}

// PutShareFile writes one file belonging to a share, keyed by its relative path.
func (c *Client) PutShareFile(ctx context.Context, shareID, path string, data []byte) error {
	return c.writeAll(ctx, shareFileKey(shareID, path), data)
}
