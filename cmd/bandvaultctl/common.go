package main

import (
	"context"
	"fmt"

	"github.com/bandvault/core/pkg/bucket"
	"github.com/bandvault/core/pkg/cloudhome"
	"github.com/bandvault/core/pkg/hlc"
	"github.com/bandvault/core/pkg/keys"
	"github.com/bandvault/core/pkg/membership"
	"github.com/bandvault/core/pkg/store"
	"github.com/bandvault/core/pkg/syncengine"
)

// openBackend constructs the cloud-home backend named by --store-backend.
func openBackend(ctx context.Context) (cloudhome.Backend, error) {
	switch flagBackend {
	case "local":
		return cloudhome.NewLocalFS(flagStoreRoot)
	case "platform":
		return cloudhome.NewPlatformSynced(flagStoreRoot)
	case "s3":
		return cloudhome.NewS3(ctx, cloudhome.S3Config{
			Endpoint:  flagS3Endpoint,
			AccessKey: flagS3AccessKey,
			SecretKey: flagS3SecretKey,
			Bucket:    flagBucket,
			Region:    flagS3Region,
			UseSSL:    flagS3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", flagBackend)
	}
}

// openStore connects to Postgres and applies the schema migration.
func openStore(ctx context.Context) (*store.Store, error) {
	db, err := store.Connect(ctx, flagDB)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// secretService returns a keys.Service backed by the --identity-file.
func secretService() *keys.Service {
	return keys.NewService(keys.NewFileStore(flagIdentityFile))
}

// loadIdentity loads (generating on first use) this device's identity,
// deriving a device ID from --device-id or a random one on first run.
func loadIdentity(ctx context.Context) (*keys.Identity, error) {
	svc := secretService()
	deviceID := flagDeviceID
	if deviceID == "" {
		deviceID = newDeviceID()
	}
	return svc.LoadOrGenerateIdentity(ctx, deviceID)
}

// loadLibraryKey loads the library's symmetric key from the secret file.
// Callers should run `device init --generate-library-key` first if this is
// the founding device.
func loadLibraryKey(ctx context.Context) ([]byte, error) {
	return secretService().LoadLibraryKey(ctx)
}

// saveLibraryKey persists a freshly generated library key via the raw
// FileStore, since keys.Service only exposes the read side of the key.
func saveLibraryKey(ctx context.Context, key []byte) error {
	return keys.NewFileStore(flagIdentityFile).SaveLibraryKey(ctx, key)
}

// runWithSync brackets work in a capture session and, on success, drives
// one full sync cycle (push the resulting changeset, pull every peer's
// new ones) before returning. It is the CLI-process equivalent of the
// "capture -> push -> pull -> reopen" cycle the orchestrator protocol
// describes: each invocation of this binary is one cycle, and the next
// invocation opens the following one.
func runWithSync(ctx context.Context, message string, work func(ctx context.Context, db *store.Store) error) (*syncengine.Result, error) {
	db, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	backend, err := openBackend(ctx)
	if err != nil {
		return nil, err
	}
	id, err := loadIdentity(ctx)
	if err != nil {
		return nil, err
	}
	libKey, err := loadLibraryKey(ctx)
	if err != nil {
		return nil, err
	}
	chain, err := membership.LoadChain(flagMembershipFile)
	if err != nil {
		return nil, err
	}

	cap, err := db.BeginCapture(ctx)
	if err != nil {
		return nil, err
	}

	if err := work(ctx, db); err != nil {
		if _, closeErr := cap.Close(ctx); closeErr != nil {
			return nil, fmt.Errorf("%w (capture session also failed to close: %v)", err, closeErr)
		}
		return nil, err
	}

	bk := bucket.New(backend, libKey)
	clock := hlc.New(id.DeviceID)
	engine := syncengine.New(id.DeviceID, db, bk, backend, id, chain, nil)
	return engine.Run(ctx, cap, message, clock.Now())
}
