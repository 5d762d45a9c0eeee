package runner

import (
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	versionCommandTimeout = 2 * time.Second
	maxParallelDetect     = 4
)

var pythonVersionRegex = regexp.MustCompile(`Python (\d+\.\d+\.\d+)`)

// DefaultInterpreters returns the interpreter names tried on goos, most
// preferred first.
func DefaultInterpreters(goos string) []string {
	if goos == "windows" {
		return []string{"python", "py", "python3"}
	}
	return []string{"python3", "python"}
}

type Interpreter struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"` // e.g., "3.12.1"
	Found   bool   `json:"found"`
	Err     string `json:"error,omitempty"`
}

func (i Interpreter) Label() string {
	if !i.Found {
		return i.Name + " (not found)"
	}
	if i.Version == "" {
		return i.Name + " (" + i.Path + ")"
	}
	return i.Name + " (Python " + i.Version + ")"
}

// DetectInterpreters looks every name up on PATH and asks it for its version.
// Lookups run in parallel; order follows names.
func DetectInterpreters(ctx context.Context, names []string) []Interpreter {
	out := make([]Interpreter, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDetect)
	for i, name := range names {
		g.Go(func() error {
			out[i] = detectInterpreter(gctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func detectInterpreter(ctx context.Context, name string) Interpreter {
	info := Interpreter{Name: name}

	path, err := exec.LookPath(name)
	if err != nil {
		info.Err = err.Error()
		return info
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	info.Path = path
	info.Found = true

	out, err := runVersionCommand(ctx, path)
	if err != nil {
		info.Err = err.Error()
		return info
	}
	info.Version = ParsePythonVersion(string(out))
	return info
}

// ParsePythonVersion extracts "3.12.1" from "Python 3.12.1". It returns ""
// when the output does not carry a version.
func ParsePythonVersion(output string) string {
	matches := pythonVersionRegex.FindStringSubmatch(strings.TrimSpace(output))
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}

func runVersionCommand(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	// Python 2 prints its version on stderr.
	cmd := exec.CommandContext(ctx, path, "--version")
	return cmd.CombinedOutput()
}
