//go:build windows

package runner

import "os"

// Windows has no SIGTERM; Kill is the platform default.
func terminate(p *os.Process) error {
	return p.Kill()
}
