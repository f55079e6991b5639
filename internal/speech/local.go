package speech

import (
	"net"
	"strings"
)

// IsLocalEndpoint reports whether a gRPC target stays on this machine:
// unix sockets, localhost, or loopback addresses.
func IsLocalEndpoint(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return false
	}
	lower := strings.ToLower(endpoint)
	if strings.HasPrefix(lower, "unix:") || strings.HasPrefix(lower, "unix-abstract:") {
		return true
	}
	if strings.HasPrefix(lower, "passthrough:///") {
		endpoint = endpoint[len("passthrough:///"):]
	} else if strings.HasPrefix(lower, "dns:///") {
		endpoint = endpoint[len("dns:///"):]
	}

	host := endpoint
	if h, _, err := net.SplitHostPort(endpoint); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
