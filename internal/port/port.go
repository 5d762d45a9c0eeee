// Package port probes local TCP ports for the status API and the backend.
package port

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"syscall"
	"time"
)

const (
	StatusRangeStart = 5600
	StatusRangeEnd   = 5799
)

// IsPortFree checks if a specific port is available on every interface.
func IsPortFree(port int) bool {
	ok, _ := canListen("tcp4", fmt.Sprintf("0.0.0.0:%d", port))
	if !ok {
		return false
	}

	ok, err := canListen("tcp6", fmt.Sprintf("[::]:%d", port))
	if ok {
		return true
	}
	return err != nil && isAddrFamilyUnsupported(err)
}

func canListen(network, addr string) (bool, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return false, err
	}
	_ = ln.Close()
	return true, nil
}

func isAddrFamilyUnsupported(err error) bool {
	return errors.Is(err, syscall.EAFNOSUPPORT) ||
		errors.Is(err, syscall.EPROTONOSUPPORT) ||
		errors.Is(err, syscall.EADDRNOTAVAIL)
}

// FindFreePort finds an available TCP port in the given range.
func FindFreePort(start, end int) (int, error) {
	for p := start; p <= end; p++ {
		if IsPortFree(p) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

// StatusPort returns preferred if it is set and free, otherwise the first
// free port of the status range.
func StatusPort(preferred int) (int, error) {
	if preferred > 0 {
		if IsPortFree(preferred) {
			return preferred, nil
		}
		return 0, fmt.Errorf("status port %d is in use", preferred)
	}
	return FindFreePort(StatusRangeStart, StatusRangeEnd)
}

// HostPort splits a base URL such as http://127.0.0.1:3001 into host and
// port, applying the scheme default when the port is omitted.
func HostPort(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("url %q has no host", rawURL)
	}

	p := u.Port()
	if p == "" {
		switch u.Scheme {
		case "https":
			return host, 443, nil
		default:
			return host, 80, nil
		}
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("parse port: %w", err)
	}
	return host, n, nil
}

// Listening reports whether something accepts connections on host:port.
func Listening(ctx context.Context, host string, port int) bool {
	dialer := net.Dialer{Timeout: 500 * time.Millisecond}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
