package ptpip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// ServiceType is the DNS-SD service cameras advertise for PTP-IP.
const ServiceType = "_ptp._tcp"

// CameraInfo describes a camera found on the network.
type CameraInfo struct {
	Name string
	Host string
	Port int
	Text map[string]string
}

// Addr returns host:port.
func (c CameraInfo) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DiscoveryOptions configures camera discovery.
type DiscoveryOptions struct {
	Timeout time.Duration // default 5s
	Domain  string        // default "local."
}

// FindCameras browses for PTP-IP cameras until the timeout expires or ctx
// is cancelled and returns every camera that answered.
func FindCameras(ctx context.Context, opts DiscoveryOptions) ([]CameraInfo, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Domain == "" {
		opts.Domain = "local."
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, opts.Domain, entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}
	slog.Debug("browsing for cameras", "service", ServiceType, "timeout", opts.Timeout)

	var found []CameraInfo
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return found, nil
		case e, ok := <-entries:
			if !ok {
				return found, nil
			}
			info, ok := cameraFromEntry(e)
			if !ok || seen[info.Addr()] {
				continue
			}
			seen[info.Addr()] = true
			slog.Info("found camera", "name", info.Name, "addr", info.Addr())
			found = append(found, info)
		}
	}
}

func cameraFromEntry(e *zeroconf.ServiceEntry) (CameraInfo, bool) {
	if e == nil {
		return CameraInfo{}, false
	}
	info := CameraInfo{
		Name: e.Instance,
		Port: e.Port,
		Text: parseTXT(e.Text),
	}
	if info.Port == 0 {
		info.Port = ptp.DefaultPort
	}
	switch {
	case len(e.AddrIPv4) > 0:
		info.Host = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		info.Host = e.AddrIPv6[0].String()
	default:
		info.Host = strings.TrimSuffix(e.HostName, ".")
	}
	return info, info.Host != ""
}

// parseTXT splits key=value TXT records. Keys are lower-cased.
func parseTXT(records []string) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		if k != "" {
			m[strings.ToLower(k)] = v
		}
	}
	return m
}
