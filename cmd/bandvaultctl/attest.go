package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bandvault/core/pkg/attestation"
	"github.com/bandvault/core/pkg/hlc"
)

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Create and verify attestations linking a release to a torrent infohash",
}

var (
	flagAttestMBID      string
	flagAttestInfohash  string
	flagAttestFormat    string
	flagAttestReleaseID string
)

var attestCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Sign a new attestation for a release's current files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if flagAttestMBID == "" || flagAttestInfohash == "" || flagAttestReleaseID == "" {
			return fmt.Errorf("--mbid, --infohash, and --release-id are all required")
		}
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		files, err := db.ListFilesByRelease(ctx, flagAttestReleaseID)
		if err != nil {
			return fmt.Errorf("list release files: %w", err)
		}
		var hashes []string
		for _, f := range files {
			if f.SHA256 != nil {
				hashes = append(hashes, *f.SHA256)
			}
		}
		sort.Strings(hashes)
		contentHash, err := attestation.ComputeContentHash(hashes)
		if err != nil {
			return err
		}

		id, err := loadIdentity(ctx)
		if err != nil {
			return err
		}
		a := attestation.Create(flagAttestMBID, flagAttestInfohash, contentHash, flagAttestFormat, id, hlc.New(id.DeviceID).Now())
		out, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var attestVerifyCmd = &cobra.Command{
	Use:   "verify <attestation-file>",
	Short: "Verify an attestation's signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read attestation file: %w", err)
		}
		var a attestation.Attestation
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("parse attestation file: %w", err)
		}
		if err := attestation.Verify(a); err != nil {
			return err
		}
		fmt.Println("signature valid")
		return nil
	},
}

func init() {
	attestCreateCmd.Flags().StringVar(&flagAttestMBID, "mbid", "", "MusicBrainz release ID")
	attestCreateCmd.Flags().StringVar(&flagAttestInfohash, "infohash", "", "BitTorrent infohash")
	attestCreateCmd.Flags().StringVar(&flagAttestFormat, "format", "FLAC", "Audio format of the attested release")
	attestCreateCmd.Flags().StringVar(&flagAttestReleaseID, "release-id", "", "Release whose files back this attestation")

	attestCmd.AddCommand(attestCreateCmd, attestVerifyCmd)
}
