package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnsafeEndpoint = errors.New("unsafe endpoint")

// EndpointPolicy decides which model endpoints a process may talk to.
type EndpointPolicy struct {
	// AllowHTTP permits plain http, https is always accepted.
	AllowHTTP bool
	// AllowLocal permits localhost names and loopback, private or link-local
	// addresses, e.g. a model served on the same machine.
	AllowLocal bool
}

// CheckEndpoint rejects endpoints outside policy. Hostnames are not
// resolved, only literal addresses are checked against the network rules.
func CheckEndpoint(raw string, policy EndpointPolicy) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(ErrUnsafeEndpoint, "%q does not parse: %v", raw, err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !policy.AllowHTTP {
			return errors.Wrapf(ErrUnsafeEndpoint, "%s uses plain http", raw)
		}
	default:
		return errors.Wrapf(ErrUnsafeEndpoint, "%s: scheme %q not supported", raw, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.Wrapf(ErrUnsafeEndpoint, "%s has no host", raw)
	}
	if policy.AllowLocal {
		return nil
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return errors.Wrapf(ErrUnsafeEndpoint, "%s points to a local name", raw)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// a hostname
		return nil
	}
	if addr.Zone() != "" {
		return errors.Wrapf(ErrUnsafeEndpoint, "%s uses a zoned address", raw)
	}
	addr = addr.Unmap()
	switch {
	case addr.IsUnspecified(), addr.IsMulticast():
		return errors.Wrapf(ErrUnsafeEndpoint, "%s: address %s cannot be dialed", raw, addr)
	case addr.IsLoopback(), addr.IsPrivate(), addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return errors.Wrapf(ErrUnsafeEndpoint, "%s points to a local network", raw)
	}
	return nil
}
