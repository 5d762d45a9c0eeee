package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarvs/alice/internal/health"
	"github.com/devmarvs/alice/internal/lifecycle"
	"github.com/devmarvs/alice/internal/runner"
)

type stubBackend struct {
	snap     runner.Snapshot
	stats    runner.ProcessStats
	statsErr error
	logs     string
	cleared  bool
	stopped  bool
}

func (b *stubBackend) Snapshot() runner.Snapshot { return b.snap }
func (b *stubBackend) Interpreters() []string    { return []string{"python3", "python"} }
func (b *stubBackend) Stats(context.Context) (runner.ProcessStats, error) {
	return b.stats, b.statsErr
}
func (b *stubBackend) TailLogs(int) string { return b.logs }
func (b *stubBackend) ClearLogs()          { b.cleared = true }
func (b *stubBackend) Stop() bool {
	b.stopped = true
	return b.snap.Running
}

type stubController struct {
	handle *runner.Handle
	err    error
	state  lifecycle.State
}

func (c *stubController) StartBackend() (*runner.Handle, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.handle, nil
}

func (c *stubController) State() lifecycle.State { return c.state }

type stubHealth health.Status

func (h stubHealth) Status() health.Status { return health.Status(h) }

func runningSnapshot() runner.Snapshot {
	return runner.Snapshot{
		Running:     true,
		Pid:         4242,
		Interpreter: "python3",
		EntryPath:   "/app/chat.py/api_server.py",
		StartedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestBuildStatusRunning(t *testing.T) {
	d := Deps{
		Backend:    &stubBackend{snap: runningSnapshot(), stats: runner.ProcessStats{CPUPercent: 1.5, RSSBytes: 10 << 20}},
		Controller: &stubController{state: lifecycle.Running},
		Health:     stubHealth{Reachable: true, LastCheck: time.Now()},
		Resolve: func() runner.Resolution {
			return runner.Resolution{EntryPath: "/app/chat.py/api_server.py", Found: true, WorkDir: "/app/chat.py"}
		},
	}

	st := BuildStatus(context.Background(), d)

	assert.Equal(t, "running", st.Lifecycle)
	assert.True(t, st.Backend.Running)
	require.NotNil(t, st.Stats)
	assert.Equal(t, int64(10<<20), st.Stats.RSSBytes)
	require.NotNil(t, st.Health)
	assert.True(t, st.Health.Reachable)
	require.NotNil(t, st.Layout)
	assert.True(t, st.Layout.Found)
	assert.Equal(t, []string{"python3", "python"}, st.Interpreters)

	text := FormatStatus(st)
	assert.Contains(t, text, "Backend: running (pid 4242, python3)")
	assert.Contains(t, text, "CPU: 1.5%  Memory: 10.0 MB")
	assert.Contains(t, text, "Health: reachable")
	assert.Contains(t, text, "Interpreters: python3, python")
}

func TestBuildStatusStopped(t *testing.T) {
	d := Deps{
		Backend: &stubBackend{snap: runner.Snapshot{
			LastExit: &runner.ExitInfo{Pid: 7, Code: 1, Err: "exit status 1"},
		}},
		Health: stubHealth{LastCheck: time.Now(), Failures: 3, LastError: "connection refused"},
		Resolve: func() runner.Resolution {
			return runner.Resolution{WorkDir: "/app"}
		},
	}

	st := BuildStatus(context.Background(), d)
	assert.Nil(t, st.Stats)
	assert.Empty(t, st.Lifecycle)

	text := FormatStatus(st)
	assert.Contains(t, text, "Backend: stopped")
	assert.Contains(t, text, "Last exit: pid 7 code 1 exit status 1")
	assert.Contains(t, text, "Health: unreachable (3 failures): connection refused")
	assert.Contains(t, text, "Entry point: not found")
	assert.Contains(t, text, "Working dir: /app")
}

func TestBuildStatusIgnoresStatsFailure(t *testing.T) {
	d := Deps{Backend: &stubBackend{snap: runningSnapshot(), statsErr: errors.New("ps failed")}}

	st := BuildStatus(context.Background(), d)
	assert.Nil(t, st.Stats)
	assert.Nil(t, st.Health)
	assert.Nil(t, st.Layout)
}

func TestFormatStatusWindowsCPU(t *testing.T) {
	st := Status{Backend: runningSnapshot(), Stats: &runner.ProcessStats{CPUPercent: -1, RSSBytes: 1 << 20}}
	assert.Contains(t, FormatStatus(st), "CPU: n/a  Memory: 1.0 MB")
}

func TestReporterAppendsLogs(t *testing.T) {
	b := &stubBackend{logs: "listening on 3001"}
	report := Reporter(Deps{Backend: b})

	text := report(context.Background())
	assert.Contains(t, text, "Backend: stopped")
	assert.Contains(t, text, "Recent output:\nlistening on 3001")

	b.logs = ""
	assert.NotContains(t, report(context.Background()), "Recent output")
}

func TestHandleStart(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"ok", nil, http.StatusOK},
		{"no entry", runner.ErrNoEntryPoint, http.StatusNotFound},
		{"already running", fmt.Errorf("%w: pid 9", runner.ErrAlreadyRunning), http.StatusConflict},
		{"all failed", runner.ErrAllCandidatesFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The backend already exited: the snapshot no longer has a pid.
			d := Deps{
				Backend:    &stubBackend{},
				Controller: &stubController{handle: &runner.Handle{Pid: 4242}, err: tt.err},
			}
			code, resp := handleStart(d)
			assert.Equal(t, tt.code, code)
			if tt.err == nil {
				assert.Equal(t, "started", resp.Status)
				assert.Equal(t, 4242, resp.Pid)
			} else {
				assert.Equal(t, "failed", resp.Status)
				assert.Equal(t, tt.err.Error(), resp.Error)
			}
		})
	}
}

func TestNewBuildsApp(t *testing.T) {
	app := New(Deps{Backend: &stubBackend{}, Controller: &stubController{}}, 5600)
	assert.NotNil(t, app)
}
