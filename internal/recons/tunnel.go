package recons

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrTunnelNotAllowed is returned for backend overrides outside the policy.
var ErrTunnelNotAllowed = errors.New("recons: tunnel url not allowed")

// TunnelPolicy lists the hosts a per-session backend override may target.
// An entry starting with "." matches any subdomain of it. An empty policy
// allows no override.
type TunnelPolicy struct {
	AllowedHosts []string
}

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Check validates raw as an override target.
func (p TunnelPolicy) Check(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTunnelNotAllowed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrTunnelNotAllowed, u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("%w: credentials in url", ErrTunnelNotAllowed)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrTunnelNotAllowed)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", ErrTunnelNotAllowed, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if !publicAddr(addr) {
			return fmt.Errorf("%w: %s is not a public address", ErrTunnelNotAllowed, host)
		}
	}
	if !p.allows(host) {
		return fmt.Errorf("%w: %s is not an allowed host", ErrTunnelNotAllowed, host)
	}
	return nil
}

func (p TunnelPolicy) allows(host string) bool {
	for _, entry := range p.AllowedHosts {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "."):
			if strings.HasSuffix(host, entry) {
				return true
			}
		case host == entry:
			return true
		}
	}
	return false
}

func publicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsInterfaceLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified() &&
		!sharedAddressSpace.Contains(addr)
}

// dialPublicOnly refuses connections to non-public addresses after DNS
// resolution, so an allowed name pointing at an internal host is still
// rejected.
func dialPublicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTunnelNotAllowed, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !publicAddr(addr) {
		return fmt.Errorf("%w: %s is not a public address", ErrTunnelNotAllowed, host)
	}
	return nil
}

func newTunnelClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second, Control: dialPublicOnly}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
