// Package syncengine is C10: the sync orchestrator. It drives one full
// sync cycle -- close the local capture session, upload any images the
// outgoing changeset references, sign and push the changeset envelope,
// then pull and apply every peer's new envelopes -- tying together
// pkg/store, pkg/bucket, pkg/envelope, and pkg/membership.
package syncengine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/bucket"
	"github.com/bandvault/core/pkg/changeset"
	"github.com/bandvault/core/pkg/cloudhome"
	"github.com/bandvault/core/pkg/envelope"
	"github.com/bandvault/core/pkg/keys"
	"github.com/bandvault/core/pkg/membership"
	"github.com/bandvault/core/pkg/store"
)

// SchemaVersion is the changeset schema this build produces and
// understands. A peer's envelope with a higher version is skipped, not
// rejected, so an old device can keep syncing everything it does
// understand while waiting to be upgraded.
const SchemaVersion uint32 = 1

// SyncStore is the slice of *store.Store that one sync cycle needs: local
// and peer sequence bookkeeping plus applying an incoming changeset. It is
// narrow for the same reason pkg/filestore.FileInserter and
// pkg/changeset.RowStore are: so pull's multi-peer error handling can be
// exercised against a fake in a test, without a live Postgres connection.
type SyncStore interface {
	GetLocalSeq(ctx context.Context, deviceID string) (uint64, error)
	SetLocalSeq(ctx context.Context, deviceID string, seq uint64) error
	GetSyncCursor(ctx context.Context, deviceID string) (uint64, error)
	SetSyncCursor(ctx context.Context, deviceID string, seq uint64) error
	ApplyChangeset(ctx context.Context, cs changeset.Changeset) (*changeset.ConflictTracker, error)
}

// Engine holds the collaborators one sync cycle needs. It owns none of
// their lifetimes; the caller constructs and retains them.
type Engine struct {
	DeviceID   string
	Store      SyncStore
	Bucket     *bucket.Client
	Backend    cloudhome.Backend
	Identity   *keys.Identity
	Membership *membership.Chain
	Logger     *slog.Logger
}

// New returns an Engine. A nil logger falls back to slog.Default(). st
// is typically a *store.Store; it only needs to satisfy SyncStore.
func New(deviceID string, st SyncStore, bk *bucket.Client, backend cloudhome.Backend, id *keys.Identity, chain *membership.Chain, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		DeviceID:   deviceID,
		Store:      st,
		Bucket:     bk,
		Backend:    backend,
		Identity:   id,
		Membership: chain,
		Logger:     logger,
	}
}

// PullResult summarises one pull pass across all peer devices.
type PullResult struct {
	ChangesetsApplied int
	DevicesPulled     int
	SkippedSchema     int
}

// Result is everything a caller needs after one sync cycle.
type Result struct {
	Pushed bool
	Pull   PullResult
}

// Run performs one full sync cycle: close cap, push local changes (if
// any), then pull and apply every peer's new changes. The caller is
// responsible for opening a fresh capture session afterward; Run does not
// do this itself so the caller controls exactly when the next capture
// window begins.
func (e *Engine) Run(ctx context.Context, cap *store.CaptureSession, message string, timestamp string) (*Result, error) {
	outgoing, err := cap.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: close capture session: %w", err)
	}

	pushed := false
	if !outgoing.Empty() {
		if err := e.uploadReferencedImages(ctx, *outgoing); err != nil {
			return nil, err
		}
		if err := e.push(ctx, *outgoing, message, timestamp); err != nil {
			return nil, err
		}
		pushed = true
	}

	pull, err := e.pull(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{Pushed: pushed, Pull: *pull}, nil
}

func (e *Engine) uploadReferencedImages(ctx context.Context, cs changeset.Changeset) error {
	for _, ch := range cs.Changes {
		if ch.Table != "images" || ch.Op == changeset.OpDelete {
			continue
		}
		imageID, _ := ch.Columns["id"].(string)
		if imageID == "" {
			continue
		}
		data, err := e.readLocalBlob(ctx, filestorePath(imageID))
		if err != nil {
			if bverr.Is(err, bverr.NotFound) {
				e.Logger.Warn("image file not found locally, skipping upload", "image_id", imageID)
				continue
			}
			return fmt.Errorf("syncengine: read local image %s: %w", imageID, err)
		}
		if err := e.Bucket.UploadImage(ctx, imageID, data); err != nil {
			return fmt.Errorf("syncengine: upload image %s: %w", imageID, err)
		}
		e.Logger.Info("uploaded image", "image_id", imageID)
	}
	return nil
}

func (e *Engine) readLocalBlob(ctx context.Context, key string) ([]byte, error) {
	r, err := e.Backend.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// filestorePath mirrors pkg/filestore.StoragePath's shard formula for an
// image ID, since images are written through the same content-addressed
// backend key space as files.
func filestorePath(id string) string {
	if len(id) < 4 {
		return "storage/" + id
	}
	return "storage/" + id[0:2] + "/" + id[2:4] + "/" + id
}

func (e *Engine) push(ctx context.Context, cs changeset.Changeset, message, timestamp string) error {
	csBytes, err := changeset.Encode(cs)
	if err != nil {
		return fmt.Errorf("syncengine: encode outgoing changeset: %w", err)
	}

	localSeq, err := e.Store.GetLocalSeq(ctx, e.DeviceID)
	if err != nil {
		return fmt.Errorf("syncengine: read local seq: %w", err)
	}
	nextSeq := localSeq + 1

	env := envelope.Envelope{
		Metadata: envelope.Metadata{
			DeviceID:      e.DeviceID,
			Seq:           nextSeq,
			SchemaVersion: SchemaVersion,
			Message:       message,
			Timestamp:     timestamp,
			ChangesetSize: len(csBytes),
		},
		Changeset: csBytes,
	}
	envelope.Sign(&env, e.Identity)

	packed, err := envelope.Pack(env)
	if err != nil {
		return fmt.Errorf("syncengine: pack envelope: %w", err)
	}

	if err := e.Bucket.PutChangeset(ctx, e.DeviceID, nextSeq, packed); err != nil {
		return fmt.Errorf("syncengine: upload changeset: %w", err)
	}
	if err := e.Bucket.PutHead(ctx, bucket.Head{DeviceID: e.DeviceID, Seq: nextSeq, Timestamp: timestamp}); err != nil {
		return fmt.Errorf("syncengine: publish head: %w", err)
	}
	if err := e.Store.SetLocalSeq(ctx, e.DeviceID, nextSeq); err != nil {
		return fmt.Errorf("syncengine: persist local seq: %w", err)
	}

	e.Logger.Info("pushed changeset", "seq", nextSeq, "changes", len(cs.Changes))
	return nil
}

func (e *Engine) pull(ctx context.Context) (*PullResult, error) {
	heads, err := e.Bucket.ListHeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: list heads: %w", err)
	}

	result := &PullResult{}

	for _, head := range heads {
		if head.DeviceID == e.DeviceID {
			continue
		}

		cursor, err := e.Store.GetSyncCursor(ctx, head.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("syncengine: read sync cursor for %s: %w", head.DeviceID, err)
		}
		if head.Seq <= cursor {
			continue
		}

		e.Logger.Info("pulling changesets", "device_id", head.DeviceID, "local_seq", cursor, "remote_seq", head.Seq)
		pulledAny := false

		for seq := cursor + 1; seq <= head.Seq; seq++ {
			decrypted, err := e.Bucket.GetChangeset(ctx, head.DeviceID, seq)
			if err != nil {
				e.Logger.Warn("failed to fetch changeset, stopping pull for this device",
					"device_id", head.DeviceID, "seq", seq, "err", err)
				break
			}

			applied, skippedSchema, err := e.pullOne(ctx, head.DeviceID, seq, decrypted)
			if err != nil {
				// A bad envelope or a failed apply from one peer must not
				// block syncing with the rest: stop pulling this device for
				// the cycle, leaving its cursor at the last successfully
				// applied seq so the same envelope is retried next cycle,
				// and move on to the next device.
				e.Logger.Warn("failed to apply changeset, stopping pull for this device",
					"device_id", head.DeviceID, "seq", seq, "err", err)
				break
			}
			if skippedSchema {
				result.SkippedSchema++
			} else if applied {
				result.ChangesetsApplied++
			}
			pulledAny = true
			if err := e.Store.SetSyncCursor(ctx, head.DeviceID, seq); err != nil {
				return nil, fmt.Errorf("syncengine: persist sync cursor for %s: %w", head.DeviceID, err)
			}
		}

		if pulledAny {
			result.DevicesPulled++
		}
	}

	return result, nil
}

// pullOne verifies and applies one already-fetched peer envelope. Its
// second return reports whether the envelope was skipped for being from a
// newer schema version than this build understands; that case still
// advances the cursor (see pull's caller) so a future pull doesn't keep
// refetching a changeset this build can never apply.
func (e *Engine) pullOne(ctx context.Context, deviceID string, seq uint64, decrypted []byte) (applied bool, skippedSchema bool, err error) {
	env, err := envelope.Unpack(decrypted)
	if err != nil {
		return false, false, fmt.Errorf("unpack envelope: %w", err)
	}

	if env.Metadata.SchemaVersion > SchemaVersion {
		e.Logger.Warn("skipping changeset with newer schema version",
			"device_id", deviceID, "seq", seq, "remote_version", env.Metadata.SchemaVersion, "local_version", SchemaVersion)
		return false, true, nil
	}

	if !envelope.VerifySignature(env) {
		return false, false, bverr.New(bverr.SignatureVerificationFailed, "envelope signature invalid")
	}
	// Per spec, an unsigned envelope is accepted for backward compatibility
	// but always fails membership authorisation: there is no author_pubkey
	// to check against the chain, so it can never be applied.
	if env.Metadata.AuthorPubkey == nil {
		return false, false, bverr.New(bverr.MembershipViolation, "envelope is unsigned; author cannot be authorised")
	}
	if e.Membership != nil {
		if !e.Membership.IsAuthorized(*env.Metadata.AuthorPubkey, env.Metadata.Timestamp) {
			return false, false, bverr.New(bverr.MembershipViolation, "envelope author is not an authorised member")
		}
	}

	if len(env.Changeset) == 0 {
		return false, false, nil
	}

	cs, err := changeset.Decode(env.Changeset)
	if err != nil {
		return false, false, fmt.Errorf("decode changeset: %w", err)
	}

	if _, err := e.Store.ApplyChangeset(ctx, cs); err != nil {
		return false, false, fmt.Errorf("apply changeset: %w", err)
	}

	return true, false, nil
}
