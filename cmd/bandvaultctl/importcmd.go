package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bandvault/core/pkg/filestore"
	"github.com/bandvault/core/pkg/store"
)

var flagImportReleaseID string

// importCmd ingests every regular file under a directory into a release's
// storage, one File row per file. It exercises only the storage-ingest
// contract: read bytes, hand them to filestore.Store, record the resulting
// row. Tag parsing, cover-art fetching, and metadata enrichment belong to an
// import pipeline layered on top of this core, not to this command.
var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Ingest every file under a directory into a release's storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if flagImportReleaseID == "" {
			return fmt.Errorf("--release-id is required")
		}

		paths, err := walkFiles(dir)
		if err != nil {
			return err
		}
		fmt.Printf("found %d file(s) under %s\n", len(paths), dir)

		_, err = runWithSync(cmd.Context(), fmt.Sprintf("import %d file(s) into release %s", len(paths), flagImportReleaseID), func(ctx context.Context, db *store.Store) error {
			return importFiles(ctx, db, paths)
		})
		return err
	},
}

func walkFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return paths, nil
}

func importFiles(ctx context.Context, db *store.Store, paths []string) error {
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	libKey, err := loadLibraryKey(ctx)
	if err != nil {
		return err
	}
	profile, err := db.GetDefaultStorageProfile(ctx)
	if err != nil {
		return fmt.Errorf("load default storage profile: %w", err)
	}
	fsProfile := filestore.StorageProfile{Encrypted: profile.Encrypted, UseDerivedKey: profile.Encrypted}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flagWorkers)

	for _, p := range paths {
		p := p
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			now := stamp(gctx)
			fileID, err := filestore.Store(gctx, backend, db, libKey, flagImportReleaseID, filepath.Base(p), data, fsProfile, now, now, nil)
			if err != nil {
				return fmt.Errorf("store %s: %w", p, err)
			}
			fmt.Printf("%s -> file %s\n", p, fileID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return db.InsertReleaseStorage(ctx, store.ReleaseStorage{
		ReleaseID:        flagImportReleaseID,
		StorageProfileID: profile.ID,
		UpdatedAt:        stamp(ctx),
	})
}

func init() {
	importCmd.Flags().StringVar(&flagImportReleaseID, "release-id", "", "Release to ingest files into (required)")
}
