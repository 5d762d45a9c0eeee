// Package lifecycle binds host application events to the backend supervisor
// and the window orchestrator.
package lifecycle

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/devmarvs/alice/internal/runner"
	"github.com/devmarvs/alice/internal/window"
)

type State int

const (
	Idle State = iota
	Starting
	Running
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// QuitPolicy decides what closing the last surface means.
type QuitPolicy int

const (
	QuitWhenAllClosed QuitPolicy = iota
	StayResident
)

// PolicyFor returns the platform convention: macOS apps stay resident after
// their last window closes, everything else quits.
func PolicyFor(goos string) QuitPolicy {
	if goos == "darwin" {
		return StayResident
	}
	return QuitWhenAllClosed
}

type Backend interface {
	Start(entry, workDir string) (*runner.Handle, error)
	Stop() bool
}

type Windows interface {
	ShowSplash()
	CreateMain() window.Surface
	Activate() bool
	ReleaseHotkeys()
}

type Options struct {
	Resolve func() runner.Resolution
	Backend Backend
	Windows Windows
	// Quit asks the host application to exit.
	Quit   func()
	Policy QuitPolicy
	Logger *zap.Logger
	// Go runs fn concurrently. Tests pass a synchronous runner.
	Go func(fn func())
}

type Controller struct {
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	exitHandled bool
}

func New(opts Options) *Controller {
	if opts.Go == nil {
		opts.Go = func(fn func()) { go fn() }
	}
	if opts.Quit == nil {
		opts.Quit = func() {}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{opts: opts, logger: logger.Named("lifecycle")}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready starts the backend in the background and brings up the splash and
// main surfaces. Only the first call has an effect.
func (c *Controller) Ready() {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return
	}
	c.state = Starting
	c.mu.Unlock()

	c.logger.Info("application ready", zap.String("policy", c.opts.Policy.String()))

	c.opts.Go(func() { _, _ = c.StartBackend() })

	c.opts.Windows.ShowSplash()
	c.opts.Windows.CreateMain()

	c.mu.Lock()
	if c.state == Starting {
		c.state = Running
	}
	c.mu.Unlock()
}

// StartBackend resolves the entry point and launches the backend. A missing
// entry point is logged here; launch failures are logged by the supervisor.
func (c *Controller) StartBackend() (*runner.Handle, error) {
	res := c.opts.Resolve()
	if !res.Found {
		c.logger.Error("backend entry point not found", zap.String("work_dir", res.WorkDir))
		return nil, runner.ErrNoEntryPoint
	}

	h, err := c.opts.Backend.Start(res.EntryPath, res.WorkDir)
	switch {
	case err == nil, errors.Is(err, runner.ErrAllCandidatesFailed):
	default:
		c.logger.Warn("backend not started", zap.Error(err))
	}
	return h, err
}

// Activate handles the host re-activation signal.
func (c *Controller) Activate() {
	if c.State() != Running {
		return
	}
	if c.opts.Windows.Activate() {
		c.logger.Info("main surface recreated on activation")
	}
}

// AllSurfacesClosed stops the backend and quits, unless the platform keeps
// apps resident.
func (c *Controller) AllSurfacesClosed() {
	if c.opts.Policy == StayResident {
		c.logger.Debug("all surfaces closed, staying resident")
		return
	}

	c.mu.Lock()
	if c.state >= ShuttingDown {
		c.mu.Unlock()
		return
	}
	c.state = ShuttingDown
	c.mu.Unlock()

	c.logger.Info("all surfaces closed, quitting")
	c.opts.Backend.Stop()
	c.opts.Quit()
}

// BeforeExit releases global hotkeys and stops the backend. Neither step can
// abort the exit. Repeated calls do nothing.
func (c *Controller) BeforeExit() {
	c.mu.Lock()
	if c.exitHandled {
		c.mu.Unlock()
		return
	}
	c.exitHandled = true
	if c.state < ShuttingDown {
		c.state = ShuttingDown
	}
	c.mu.Unlock()

	c.opts.Windows.ReleaseHotkeys()
	c.opts.Backend.Stop()
}

// Exited marks the terminal state.
func (c *Controller) Exited() {
	c.mu.Lock()
	c.state = Stopped
	c.mu.Unlock()
}

func (p QuitPolicy) String() string {
	if p == StayResident {
		return "stay_resident"
	}
	return "quit_when_all_closed"
}
