package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bandvault/core/pkg/discovery"
)

var (
	flagDiscoverTimeout   time.Duration
	flagDiscoverPort      int
	flagDiscoverLibraryID string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find or advertise bandvault peers on the local network via mDNS",
}

var discoverBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "List bandvault peers answering on the local network",
	RunE: func(_ *cobra.Command, _ []string) error {
		peers, err := discovery.Browse(flagDiscoverTimeout)
		if err != nil {
			return err
		}
		if len(peers) == 0 {
			fmt.Println("no peers found")
			return nil
		}
		for _, p := range peers {
			fmt.Printf("%s\t%s\t%s:%d\n", p.DeviceID, p.LibraryID, p.Host, p.Port)
		}
		return nil
	},
}

var discoverAdvertiseCmd = &cobra.Command{
	Use:   "advertise",
	Short: "Advertise this device as a bandvault peer until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := loadIdentity(ctx)
		if err != nil {
			return err
		}
		libraryID := flagDiscoverLibraryID
		if libraryID == "" {
			libraryID = "unknown"
		}
		srv, err := discovery.Advertise(flagDiscoverPort, id.DeviceID, libraryID)
		if err != nil {
			return err
		}
		defer srv.Shutdown()

		fmt.Printf("advertising device %s for library %s on port %d; press ctrl-c to stop\n", id.DeviceID, libraryID, flagDiscoverPort)
		<-ctx.Done()
		return nil
	},
}

func init() {
	discoverBrowseCmd.Flags().DurationVar(&flagDiscoverTimeout, "timeout", 3*time.Second, "How long to listen for mDNS responses")
	discoverAdvertiseCmd.Flags().IntVar(&flagDiscoverPort, "port", 0, "Port to advertise (0 lets the OS choose)")
	discoverAdvertiseCmd.Flags().StringVar(&flagDiscoverLibraryID, "library-id", "", "Library identifier to advertise")

	discoverCmd.AddCommand(discoverBrowseCmd, discoverAdvertiseCmd)
}
