// Package hostutil turns bare host names into base URLs.
package hostutil

import "strings"

// Normalize converts a host to a base URL without a trailing slash.
// Loopback hosts get http://, other bare hosts https://, and values that
// already carry a scheme are kept. An empty host stays empty.
func Normalize(host string) string {
	host = strings.TrimSuffix(host, "/")
	switch {
	case host == "":
		return ""
	case strings.HasPrefix(host, "http://"), strings.HasPrefix(host, "https://"):
		return host
	case IsLocalhost(host):
		return "http://" + host
	default:
		return "https://" + host
	}
}

// IsLocalhost reports whether host (optionally with a port) is localhost,
// a *.localhost name, 127.0.0.1 or [::1].
func IsLocalhost(host string) bool {
	name := host
	if strings.HasPrefix(name, "[") {
		if end := strings.Index(name, "]"); end >= 0 {
			name = name[:end+1]
		}
	} else if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[:i]
	}

	switch {
	case name == "localhost", strings.HasSuffix(name, ".localhost"):
		return true
	case name == "127.0.0.1", name == "[::1]":
		return true
	default:
		return false
	}
}

// Join resolves path against the base URL for host. Absolute URLs in path are
// returned unchanged.
func Join(host, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Normalize(host) + path
}
