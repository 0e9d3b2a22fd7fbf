// ABOUTME: mDNS advertisement and browsing for cable taps
// ABOUTME: Taps announce _vac-tap._tcp with the cable name in a TXT record
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/Resonate-Protocol/vac-go/internal/protocol"
	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service taps advertise
const ServiceType = "_vac-tap._tcp"

const browseWindow = 3 * time.Second

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Cable       string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	taps   chan *TapInfo
}

// TapInfo describes a discovered tap
type TapInfo struct {
	Name  string
	Host  string
	Port  int
	Cable string
	Path  string
}

// Addr returns host:port for dialing
func (t *TapInfo) Addr() string {
	return net.JoinHostPort(t.Host, fmt.Sprint(t.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		taps:   make(chan *TapInfo, 10),
	}
}

// txtRecords returns the TXT fields advertised for a tap
func (m *Manager) txtRecords() []string {
	txt := []string{"path=" + protocol.Path}
	if m.config.Cable != "" {
		txt = append(txt, "cable="+m.config.Cable)
	}
	return txt
}

// Advertise announces the tap until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("[mdns] advertising %s on port %d (cable %s)", m.config.ServiceName, m.config.Port, m.config.Cable)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for taps until Stop is called
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				tap := tapFromEntry(entry)
				if tap == nil {
					continue
				}
				if m.config.Cable != "" && tap.Cable != m.config.Cable {
					continue
				}

				log.Printf("[mdns] discovered tap %s (cable %s) at %s", tap.Name, tap.Cable, tap.Addr())

				select {
				case m.taps <- tap:
				case <-m.ctx.Done():
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Timeout = browseWindow
		params.Entries = entries
		params.DisableIPv6 = true

		if err := mdns.Query(params); err != nil {
			log.Printf("[mdns] query failed: %v", err)
		}
		close(entries)
		<-done
	}
}

// Taps returns the channel of discovered taps
func (m *Manager) Taps() <-chan *TapInfo {
	return m.taps
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

func tapFromEntry(entry *mdns.ServiceEntry) *TapInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}
	tap := &TapInfo{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: protocol.Path,
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "cable":
			tap.Cable = value
		case "path":
			tap.Path = value
		}
	}
	return tap
}

// getLocalIPs returns non-loopback IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
