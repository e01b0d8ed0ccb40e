package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bandvault/core/pkg/hlc"
	"github.com/bandvault/core/pkg/store"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage libraries",
}

var libraryCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		id := uuid.NewString()
		_, err := runWithSync(cmd.Context(), fmt.Sprintf("create library %q", name), func(ctx context.Context, db *store.Store) error {
			now := stamp(ctx)
			if err := db.InsertLibrary(ctx, store.Library{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}); err != nil {
				return fmt.Errorf("insert library: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var artistCmd = &cobra.Command{
	Use:   "artist",
	Short: "Manage artists",
}

var artistCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new artist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		id := uuid.NewString()
		_, err := runWithSync(cmd.Context(), fmt.Sprintf("create artist %q", name), func(ctx context.Context, db *store.Store) error {
			now := stamp(ctx)
			if err := db.InsertArtist(ctx, store.Artist{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}); err != nil {
				return fmt.Errorf("insert artist: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var albumCmd = &cobra.Command{
	Use:   "album",
	Short: "Manage albums",
}

var flagAlbumArtistID string

var albumCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new album, optionally crediting an artist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := args[0]
		id := uuid.NewString()
		_, err := runWithSync(cmd.Context(), fmt.Sprintf("create album %q", title), func(ctx context.Context, db *store.Store) error {
			now := stamp(ctx)
			if err := db.InsertAlbum(ctx, store.Album{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}); err != nil {
				return fmt.Errorf("insert album: %w", err)
			}
			if flagAlbumArtistID != "" {
				if err := db.InsertAlbumArtist(ctx, store.AlbumArtist{
					AlbumID: id, ArtistID: flagAlbumArtistID, Position: 0, UpdatedAt: now,
				}); err != nil {
					return fmt.Errorf("credit artist: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Manage releases",
}

var flagReleaseFormat string

var releaseCreateCmd = &cobra.Command{
	Use:   "create <album-id> <name>",
	Short: "Create a new release under an album",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		albumID, name := args[0], args[1]
		id := uuid.NewString()
		_, err := runWithSync(cmd.Context(), fmt.Sprintf("create release %q", name), func(ctx context.Context, db *store.Store) error {
			now := stamp(ctx)
			var format *string
			if flagReleaseFormat != "" {
				format = &flagReleaseFormat
			}
			if err := db.InsertRelease(ctx, store.Release{
				ID:             id,
				AlbumID:        albumID,
				ReleaseName:    &name,
				Format:         format,
				ImportStatus:   store.ImportComplete,
				ManagedLocally: true,
				CreatedAt:      now,
				UpdatedAt:      now,
			}); err != nil {
				return fmt.Errorf("insert release: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var storageProfileCmd = &cobra.Command{
	Use:   "storage-profile",
	Short: "Manage storage profiles",
}

var (
	flagProfileLocation  string
	flagProfileEncrypted bool
	flagProfileDefault   bool
)

var storageProfileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a storage profile describing where a release's files live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		id := uuid.NewString()
		_, err := runWithSync(cmd.Context(), fmt.Sprintf("create storage profile %q", name), func(ctx context.Context, db *store.Store) error {
			now := stamp(ctx)
			p := store.StorageProfile{
				ID:        id,
				Name:      name,
				Location:  flagProfileLocation,
				Encrypted: flagProfileEncrypted,
				IsDefault: flagProfileDefault,
				UpdatedAt: now,
			}
			if flagProfileLocation == "cloud" {
				bucket, accessKey, secretKey, endpoint := flagBucket, flagS3AccessKey, flagS3SecretKey, flagS3Endpoint
				p.CloudBucket, p.CloudAccessKey, p.CloudSecretKey, p.CloudEndpoint = &bucket, &accessKey, &secretKey, &endpoint
			}
			if err := db.InsertStorageProfile(ctx, p); err != nil {
				return fmt.Errorf("insert storage profile: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

// stamp returns the current HLC timestamp for the device driving ctx. Each
// command stamps its own writes; there is no long-lived clock to keep
// monotonic across invocations beyond what the HLC wall-clock already gives.
func stamp(ctx context.Context) string {
	id, err := loadIdentity(ctx)
	if err != nil {
		return hlc.New("unknown").Now()
	}
	return hlc.New(id.DeviceID).Now()
}

func init() {
	albumCreateCmd.Flags().StringVar(&flagAlbumArtistID, "artist-id", "", "Credit this artist on the new album")
	releaseCreateCmd.Flags().StringVar(&flagReleaseFormat, "format", "", "Release format (e.g. FLAC, CD, vinyl)")
	storageProfileCreateCmd.Flags().StringVar(&flagProfileLocation, "location", "local", "Storage location: local | cloud")
	storageProfileCreateCmd.Flags().BoolVar(&flagProfileEncrypted, "encrypted", true, "Encrypt files written under this profile")
	storageProfileCreateCmd.Flags().BoolVar(&flagProfileDefault, "default", false, "Make this the default storage profile")

	libraryCmd.AddCommand(libraryCreateCmd)
	artistCmd.AddCommand(artistCreateCmd)
	albumCmd.AddCommand(albumCreateCmd)
	releaseCmd.AddCommand(releaseCreateCmd)
	storageProfileCmd.AddCommand(storageProfileCreateCmd)
}
