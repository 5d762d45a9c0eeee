package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devmarvs/alice/internal/health"
	"github.com/devmarvs/alice/internal/lifecycle"
	"github.com/devmarvs/alice/internal/runner"
)

const logTailLines = 200

// Backend is the supervisor surface the status API reads and drives.
type Backend interface {
	Snapshot() runner.Snapshot
	Interpreters() []string
	Stats(ctx context.Context) (runner.ProcessStats, error)
	TailLogs(n int) string
	ClearLogs()
	Stop() bool
}

type Controller interface {
	StartBackend() (*runner.Handle, error)
	State() lifecycle.State
}

type HealthSource interface {
	Status() health.Status
}

type Deps struct {
	Backend    Backend
	Controller Controller
	Health     HealthSource
	Resolve    func() runner.Resolution
}

type Layout struct {
	EntryPath string `json:"entry_path,omitempty"`
	Found     bool   `json:"found"`
	WorkDir   string `json:"work_dir"`
}

type Status struct {
	Lifecycle    string               `json:"lifecycle"`
	Backend      runner.Snapshot      `json:"backend"`
	Health       *health.Status       `json:"health,omitempty"`
	Layout       *Layout              `json:"layout,omitempty"`
	Interpreters []string             `json:"interpreters"`
	Stats        *runner.ProcessStats `json:"stats,omitempty"`
}

// BuildStatus gathers everything the status endpoint and the diagnostics
// panel show. Missing dependencies leave their section empty.
func BuildStatus(ctx context.Context, d Deps) Status {
	var st Status
	if d.Controller != nil {
		st.Lifecycle = d.Controller.State().String()
	}
	if d.Backend != nil {
		st.Backend = d.Backend.Snapshot()
		st.Interpreters = d.Backend.Interpreters()
		if st.Backend.Running {
			if stats, err := d.Backend.Stats(ctx); err == nil {
				st.Stats = &stats
			}
		}
	}
	if d.Health != nil {
		h := d.Health.Status()
		st.Health = &h
	}
	if d.Resolve != nil {
		res := d.Resolve()
		st.Layout = &Layout{EntryPath: res.EntryPath, Found: res.Found, WorkDir: res.WorkDir}
	}
	return st
}

// FormatStatus renders st as plain text.
func FormatStatus(st Status) string {
	var b strings.Builder

	if st.Lifecycle != "" {
		fmt.Fprintf(&b, "Lifecycle: %s\n", st.Lifecycle)
	}

	if st.Backend.Running {
		fmt.Fprintf(&b, "Backend: running (pid %d, %s)\n", st.Backend.Pid, st.Backend.Interpreter)
		fmt.Fprintf(&b, "Entry: %s\n", st.Backend.EntryPath)
		fmt.Fprintf(&b, "Started: %s\n", st.Backend.StartedAt.Format(time.RFC3339))
	} else {
		b.WriteString("Backend: stopped\n")
	}
	if exit := st.Backend.LastExit; exit != nil {
		fmt.Fprintf(&b, "Last exit: pid %d code %d", exit.Pid, exit.Code)
		if exit.Requested {
			b.WriteString(" (requested)")
		}
		if exit.Err != "" {
			fmt.Fprintf(&b, " %s", exit.Err)
		}
		b.WriteString("\n")
	}
	if st.Stats != nil {
		cpu := "n/a"
		if st.Stats.CPUPercent >= 0 {
			cpu = fmt.Sprintf("%.1f%%", st.Stats.CPUPercent)
		}
		fmt.Fprintf(&b, "CPU: %s  Memory: %.1f MB\n", cpu, float64(st.Stats.RSSBytes)/(1024*1024))
	}

	if h := st.Health; h != nil {
		switch {
		case h.LastCheck.IsZero():
			b.WriteString("Health: not checked yet\n")
		case h.Reachable:
			b.WriteString("Health: reachable\n")
		default:
			fmt.Fprintf(&b, "Health: unreachable (%d failures)", h.Failures)
			if h.LastError != "" {
				fmt.Fprintf(&b, ": %s", h.LastError)
			}
			b.WriteString("\n")
		}
	}

	if l := st.Layout; l != nil {
		if l.Found {
			fmt.Fprintf(&b, "Entry point: %s\n", l.EntryPath)
		} else {
			b.WriteString("Entry point: not found\n")
		}
		fmt.Fprintf(&b, "Working dir: %s\n", l.WorkDir)
	}

	if len(st.Interpreters) > 0 {
		fmt.Fprintf(&b, "Interpreters: %s\n", strings.Join(st.Interpreters, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Reporter returns a text report function with the backend log tail
// appended, suitable for the diagnostics panel.
func Reporter(d Deps) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		text := FormatStatus(BuildStatus(ctx, d))
		if d.Backend == nil {
			return text
		}
		if tail := d.Backend.TailLogs(40); tail != "" {
			text += "\n\nRecent output:\n" + tail
		}
		return text
	}
}

// startStatus maps a StartBackend outcome to an HTTP status code.
func startStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, runner.ErrNoEntryPoint):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrAlreadyRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
