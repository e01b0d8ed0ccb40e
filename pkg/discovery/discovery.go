// Package discovery advertises and browses for peer devices sharing a
// library on the local network via mDNS, so two devices on the same LAN
// can find each other without any prior address configuration.
package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// serviceName is the mDNS service type bandvault devices advertise under.
const serviceName = "_bandvault._tcp"

// Server wraps an mDNS responder advertising this device's presence.
type Server struct {
	server *mdns.Server
}

// Advertise begins advertising this device as a bandvault peer for
// libraryID, reachable on port. TXT records carry the device and library
// identifiers peers use to decide whether to connect.
func Advertise(port int, deviceID, libraryID string) (*Server, error) {
	hostName, err := os.Hostname()
	if err != nil {
		hostName = "bandvault-device"
	}

	service, err := mdns.NewMDNSService(
		deviceID,
		serviceName,
		"",
		"",
		port,
		nil,
		[]string{"device_id=" + deviceID, "library_id=" + libraryID, "host=" + hostName},
	)
	if err != nil {
		return nil, fmt.Errorf("discovery: mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("discovery: mdns server: %w", err)
	}

	slog.Info("mdns advertising", "device_id", deviceID, "library_id", libraryID, "service", serviceName, "port", port)
	return &Server{server: server}, nil
}

// Shutdown stops the mDNS responder.
func (s *Server) Shutdown() {
	if s.server != nil {
		s.server.Shutdown()
		slog.Info("mdns stopped")
	}
}

// Peer is one device discovered on the local network.
type Peer struct {
	DeviceID  string
	LibraryID string
	Host      string
	Port      int
}

// Browse queries the local network for bandvault peers for up to timeout,
// returning every distinct device that answered.
func Browse(timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var peers []Peer
	done := make(chan struct{})

	go func() {
		seen := map[string]bool{}
		for e := range entries {
			p := peerFromEntry(e)
			if seen[p.DeviceID] {
				continue
			}
			seen[p.DeviceID] = true
			peers = append(peers, p)
		}
		close(done)
	}()

	params := mdns.DefaultParams(serviceName)
	params.Entries = entries
	params.Timeout = timeout

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("discovery: mdns query: %w", err)
	}
	return peers, nil
}

func peerFromEntry(e *mdns.ServiceEntry) Peer {
	p := Peer{Host: e.Host, Port: e.Port}
	for _, field := range e.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "device_id":
			p.DeviceID = value
		case "library_id":
			p.LibraryID = value
		}
	}
	return p
}
