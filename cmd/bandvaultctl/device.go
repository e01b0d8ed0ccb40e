package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bandvault/core/pkg/keys"
)

var flagGenerateLibraryKey bool

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage this device's identity and library key",
}

var deviceInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate (or load) this device's Ed25519 identity, optionally founding a new library key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := loadIdentity(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("device_id: %s\n", id.DeviceID)
		fmt.Printf("public_key: %s\n", hex.EncodeToString(id.PublicKey))

		if flagGenerateLibraryKey {
			if _, err := loadLibraryKey(ctx); err == nil {
				return fmt.Errorf("a library key already exists at %s; refusing to overwrite", flagIdentityFile)
			}
			key := make([]byte, keys.LibraryKeyBytes)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generate library key: %w", err)
			}
			if err := saveLibraryKey(ctx, key); err != nil {
				return err
			}
			fmt.Printf("library_key_fingerprint: %s\n", keys.ComputeKeyFingerprint(key))
		}
		return nil
	},
}

var deviceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print this device's identity and library key fingerprint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := loadIdentity(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("device_id: %s\n", id.DeviceID)
		fmt.Printf("public_key: %s\n", hex.EncodeToString(id.PublicKey))
		if key, err := loadLibraryKey(ctx); err == nil {
			fmt.Printf("library_key_fingerprint: %s\n", keys.ComputeKeyFingerprint(key))
		}
		return nil
	},
}

func init() {
	deviceInitCmd.Flags().BoolVar(&flagGenerateLibraryKey, "generate-library-key", false, "Generate a fresh library key (only for the founding device)")
	deviceCmd.AddCommand(deviceInitCmd, deviceShowCmd)
}

// newDeviceID returns a fresh random device identifier.
func newDeviceID() string {
	return uuid.NewString()
}
