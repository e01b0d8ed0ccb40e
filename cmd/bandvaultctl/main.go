// Command bandvaultctl is the reference CLI driving one device's half of
// the bandvault core: identity bootstrap, file ingest, sync cycles,
// membership administration, and attestations. The desktop UI this core
// normally sits behind is out of scope; this binary exercises the same
// package surface that UI would call into.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/bandvault/core/pkg/config"
)

var (
	flagDeviceID       string
	flagIdentityFile   string
	flagMembershipFile string
	flagDB             string
	flagBackend        string
	flagStoreRoot      string
	flagBucket         string
	flagS3Endpoint     string
	flagS3AccessKey    string
	flagS3SecretKey    string
	flagS3Region       string
	flagS3UseSSL       bool
	flagWorkers        int
)

var rootCmd = &cobra.Command{
	Use:           "bandvaultctl",
	Short:         "Administer a bandvault device: identity, ingest, sync, membership, attestations",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDeviceID, "device-id", config.Env("BANDVAULT_DEVICE_ID", ""), "This device's identifier (generated on first `device init` if empty)")
	pf.StringVar(&flagIdentityFile, "identity-file", config.Env("BANDVAULT_IDENTITY_FILE", "./data/identity.json"), "Path to the local secret file holding this device's identity and library key")
	pf.StringVar(&flagMembershipFile, "membership-file", config.Env("BANDVAULT_MEMBERSHIP_FILE", "./data/membership.json"), "Path to the local membership chain file")
	pf.StringVar(&flagDB, "db", config.DSN(), "Postgres DSN for the metadata database")
	pf.StringVar(&flagBackend, "store-backend", config.Env("STORE_BACKEND", "local"), "Cloud-home backend: local | s3 | platform")
	pf.StringVar(&flagStoreRoot, "store-root", config.LibraryRoot("./data/cloud-home"), "Root path for the local or platform-synced backend")
	pf.StringVar(&flagBucket, "store-bucket", config.Env("STORE_BUCKET", "bandvault"), "S3 bucket name")
	pf.StringVar(&flagS3Endpoint, "s3-endpoint", config.Env("S3_ENDPOINT", "http://localhost:9000"), "S3 endpoint")
	pf.StringVar(&flagS3AccessKey, "s3-access-key", config.Env("S3_ACCESS_KEY", "bandvault"), "S3 access key")
	pf.StringVar(&flagS3SecretKey, "s3-secret-key", config.Env("S3_SECRET_KEY", "bandvaultsecret"), "S3 secret key")
	pf.StringVar(&flagS3Region, "s3-region", config.Env("S3_REGION", ""), "S3 region")
	pf.BoolVar(&flagS3UseSSL, "s3-use-ssl", false, "Use TLS when talking to the S3 endpoint")
	pf.IntVar(&flagWorkers, "workers", runtime.NumCPU(), "Number of parallel workers for ingest")

	rootCmd.AddCommand(deviceCmd, libraryCmd, artistCmd, albumCmd, releaseCmd, storageProfileCmd,
		importCmd, syncCmd, membershipCmd, attestCmd, discoverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
