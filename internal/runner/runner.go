// Package runner locates the chat backend on disk, starts it with the first
// interpreter that spawns and keeps track of the single live process.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoEntryPoint        = errors.New("backend entry point not found")
	ErrAlreadyRunning      = errors.New("backend already running")
	ErrAllCandidatesFailed = errors.New("could not start backend with any interpreter")
)

// DevModeEnv is forwarded to the backend so it can tell dev from packaged runs.
const DevModeEnv = "ALICE_DEV"

// Handle identifies the live backend process.
type Handle struct {
	ID          string
	Pid         int
	Interpreter string
	EntryPath   string
	WorkDir     string
	StartedAt   time.Time

	proc          Process
	done          chan struct{}
	stopRequested bool
}

// Done is closed once the exit of the process has been recorded.
func (h *Handle) Done() <-chan struct{} { return h.done }

type ExitInfo struct {
	LaunchID  string    `json:"launch_id"`
	Pid       int       `json:"pid"`
	When      time.Time `json:"when"`
	Code      int       `json:"code"`
	Err       string    `json:"error,omitempty"`
	Requested bool      `json:"requested"`
	Failed    bool      `json:"failed"`
}

// Options configures a Supervisor. Zero values fall back to the platform
// interpreter list, real processes and the host stdio.
type Options struct {
	Interpreters []string
	DevMode      bool
	Spawner      Spawner
	Stdout       io.Writer
	Stderr       io.Writer
	Environ      func() []string
	Logger       *zap.Logger
	LogLines     int
}

// Supervisor owns at most one backend process.
type Supervisor struct {
	mu       sync.Mutex
	current  *Handle
	// stopping holds a stopped handle until its exit has been recorded.
	stopping *Handle
	lastExit *ExitInfo

	interpreters []string
	devMode      bool
	spawner      Spawner
	environ      func() []string
	logger       *zap.Logger

	logs   *LogBuffer
	stdout *TagWriter
	stderr *TagWriter
}

func NewSupervisor(opts Options) *Supervisor {
	interpreters := opts.Interpreters
	if len(interpreters) == 0 {
		interpreters = DefaultInterpreters(runtime.GOOS)
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = ExecSpawner{}
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	logs := NewLogBuffer(opts.LogLines)
	return &Supervisor{
		interpreters: append([]string(nil), interpreters...),
		devMode:      opts.DevMode,
		spawner:      spawner,
		environ:      environ,
		logger:       logger.Named("backend"),
		logs:         logs,
		stdout:       NewTagWriter(StdoutTag, stdout, logs),
		stderr:       NewTagWriter(StderrTag, stderr, logs),
	}
}

// Interpreters returns the candidate list in preference order.
func (s *Supervisor) Interpreters() []string {
	return append([]string(nil), s.interpreters...)
}

// Start launches entry inside workDir with the first interpreter that yields
// a live process. Candidates are tried one at a time, in order.
func (s *Supervisor) Start(entry, workDir string) (*Handle, error) {
	if entry == "" {
		return nil, ErrNoEntryPoint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, fmt.Errorf("%w: pid %d", ErrAlreadyRunning, s.current.Pid)
	}
	if s.stopping != nil {
		return nil, fmt.Errorf("%w: pid %d has not exited yet", ErrAlreadyRunning, s.stopping.Pid)
	}

	env := append(s.environ(), DevModeEnv+"="+boolFlag(s.devMode))

	for _, name := range s.interpreters {
		proc, err := s.spawner.Spawn(Command{
			Name:   name,
			Args:   []string{entry},
			Dir:    workDir,
			Env:    env,
			Stdout: s.stdout,
			Stderr: s.stderr,
		})
		if err != nil {
			s.logger.Warn("interpreter failed to start", zap.String("interpreter", name), zap.Error(err))
			continue
		}
		if proc == nil || proc.Pid() <= 0 {
			s.logger.Warn("interpreter returned no live process", zap.String("interpreter", name))
			if proc != nil {
				_ = proc.Terminate()
			}
			continue
		}

		h := &Handle{
			ID:          uuid.NewString(),
			Pid:         proc.Pid(),
			Interpreter: name,
			EntryPath:   entry,
			WorkDir:     workDir,
			StartedAt:   time.Now(),
			proc:        proc,
			done:        make(chan struct{}),
		}
		s.current = h

		s.logger.Info("backend started",
			zap.String("interpreter", name),
			zap.Int("pid", h.Pid),
			zap.String("entry", entry),
			zap.String("launch_id", h.ID),
		)

		go s.monitor(h)
		return h, nil
	}

	s.logger.Error("could not start backend",
		zap.Strings("interpreters", s.interpreters),
		zap.String("entry", entry),
	)
	return nil, ErrAllCandidatesFailed
}

func (s *Supervisor) monitor(h *Handle) {
	status, err := h.proc.Wait()
	s.stdout.Flush()
	s.stderr.Flush()

	if err != nil {
		s.logger.Warn("backend process error", zap.Int("pid", h.Pid), zap.Error(err))
	}

	s.mu.Lock()
	requested := h.stopRequested
	info := ExitInfo{
		LaunchID:  h.ID,
		Pid:       h.Pid,
		When:      time.Now(),
		Code:      status.Code,
		Err:       status.Desc,
		Requested: requested,
		Failed:    status.Code != 0 && !requested,
	}
	if err != nil {
		info.Err = err.Error()
	}
	s.lastExit = &info
	if s.current == h {
		s.current = nil
	}
	if s.stopping == h {
		s.stopping = nil
	}
	s.mu.Unlock()

	s.logger.Info("backend exited",
		zap.Int("pid", h.Pid),
		zap.Int("code", status.Code),
		zap.String("status", status.Desc),
		zap.Bool("requested", requested),
	)
	close(h.done)
}

// Stop asks the live backend to terminate and clears the current handle. It
// reports whether there was a process to stop. Termination errors are logged
// only. Start keeps refusing until the stopped process has actually exited.
func (s *Supervisor) Stop() bool {
	s.mu.Lock()
	h := s.current
	s.current = nil
	if h != nil {
		h.stopRequested = true
		s.stopping = h
	}
	s.mu.Unlock()

	if h == nil {
		return false
	}

	if err := h.proc.Terminate(); err != nil {
		s.logger.Warn("failed to terminate backend", zap.Int("pid", h.Pid), zap.Error(err))
		return true
	}
	s.logger.Info("backend termination requested", zap.Int("pid", h.Pid))
	return true
}

// Current returns the live handle, if any.
func (s *Supervisor) Current() (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

func (s *Supervisor) LastExit() (ExitInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastExit == nil {
		return ExitInfo{}, false
	}
	return *s.lastExit, true
}

func (s *Supervisor) TailLogs(n int) string {
	return s.logs.TailText(n)
}

func (s *Supervisor) ClearLogs() {
	s.logs.Reset()
}

// Snapshot is a point-in-time view of the supervisor.
type Snapshot struct {
	Running     bool      `json:"running"`
	LaunchID    string    `json:"launch_id,omitempty"`
	Pid         int       `json:"pid,omitempty"`
	Interpreter string    `json:"interpreter,omitempty"`
	EntryPath   string    `json:"entry_path,omitempty"`
	WorkDir     string    `json:"work_dir,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	LastExit    *ExitInfo `json:"last_exit,omitempty"`
}

func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	if h := s.current; h != nil {
		snap.Running = true
		snap.LaunchID = h.ID
		snap.Pid = h.Pid
		snap.Interpreter = h.Interpreter
		snap.EntryPath = h.EntryPath
		snap.WorkDir = h.WorkDir
		snap.StartedAt = h.StartedAt
	}
	if s.lastExit != nil {
		info := *s.lastExit
		snap.LastExit = &info
	}
	return snap
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
