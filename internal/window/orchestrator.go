// Package window sequences the splash and main surfaces of the desktop host.
//
// The Orchestrator only talks to a Host, so the fyne implementation in this
// package can be swapped for fakes in tests.
package window

import (
	"sync"

	"go.uber.org/zap"
)

type Role int

const (
	RoleSplash Role = iota
	RoleMain
)

const (
	SplashWidth  = 500
	SplashHeight = 350
	MainWidth    = 1200
	MainHeight   = 800
	MainTitle    = "Alice"
)

type SurfaceOptions struct {
	Role        Role
	Title       string
	Width       float32
	Height      float32
	Frameless   bool
	AlwaysOnTop bool
	Resizable   bool
	Hidden      bool
	Centered    bool
}

// Surface is one top-level window.
type Surface interface {
	// Load renders target and then calls done with the load error, if any.
	// Ready observers fire once the content is presentable, even when the
	// load failed.
	Load(target string, done func(error))
	OnReady(fn func())
	Show()
	Close() error
}

type Host interface {
	NewSurface(opts SurfaceOptions) Surface
	SurfaceCount() int
}

type Diagnostics interface {
	Open()
	Close()
	Toggle()
}

type HotkeyRegistrar interface {
	Register(spec string, fn func()) error
	UnregisterAll() error
}

type Options struct {
	Host            Host
	Diagnostics     Diagnostics
	Hotkeys         HotkeyRegistrar
	SplashDocument  string
	MainTarget      string
	DevMode         bool
	OpenDiagnostics bool
	Hotkey          string
	Logger          *zap.Logger
}

// Orchestrator owns the splash and main surface handles.
type Orchestrator struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	splash Surface
	main   Surface
}

func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{opts: opts, logger: logger.Named("window")}
}

// ShowSplash creates the frameless splash. A second call while a splash is
// up does nothing.
func (o *Orchestrator) ShowSplash() {
	o.mu.Lock()
	if o.splash != nil {
		o.mu.Unlock()
		return
	}
	s := o.opts.Host.NewSurface(SurfaceOptions{
		Role:        RoleSplash,
		Title:       MainTitle,
		Width:       SplashWidth,
		Height:      SplashHeight,
		Frameless:   true,
		AlwaysOnTop: true,
		Centered:    true,
	})
	o.splash = s
	o.mu.Unlock()

	doc := o.opts.SplashDocument
	s.Load(doc, func(err error) {
		if err != nil {
			o.logger.Warn("failed to load splash", zap.String("document", doc), zap.Error(err))
		}
	})
	s.Show()
}

// CreateMain creates the hidden main surface. It is revealed, and the splash
// closed, when the surface first reports it is ready.
func (o *Orchestrator) CreateMain() Surface {
	m := o.opts.Host.NewSurface(SurfaceOptions{
		Role:      RoleMain,
		Title:     MainTitle,
		Width:     MainWidth,
		Height:    MainHeight,
		Resizable: true,
		Hidden:    true,
		Centered:  true,
	})

	o.mu.Lock()
	o.main = m
	o.mu.Unlock()

	var once sync.Once
	m.OnReady(func() {
		once.Do(func() { o.reveal(m) })
	})

	target := o.opts.MainTarget
	m.Load(target, func(err error) {
		if err != nil {
			o.logger.Error("failed to load main surface", zap.String("target", target), zap.Error(err))
		}
	})

	if o.opts.Diagnostics != nil && (o.opts.DevMode || o.opts.OpenDiagnostics) {
		o.opts.Diagnostics.Open()
	}

	if o.opts.Hotkeys != nil && o.opts.Hotkey != "" {
		if err := o.opts.Hotkeys.Register(o.opts.Hotkey, o.ToggleDiagnostics); err != nil {
			o.logger.Warn("global hotkey not registered", zap.String("hotkey", o.opts.Hotkey), zap.Error(err))
		}
	}

	return m
}

func (o *Orchestrator) reveal(m Surface) {
	o.mu.Lock()
	splash := o.splash
	o.splash = nil
	o.mu.Unlock()

	if splash != nil {
		if err := splash.Close(); err != nil {
			o.logger.Debug("splash close failed", zap.Error(err))
		}
	}
	m.Show()
}

// Activate recreates the main surface when the host has none open. It
// reports whether a surface was created.
func (o *Orchestrator) Activate() bool {
	if o.opts.Host.SurfaceCount() > 0 {
		return false
	}
	o.CreateMain()
	return true
}

// ToggleDiagnostics opens or closes the diagnostics panel. It does nothing
// until a main surface exists.
func (o *Orchestrator) ToggleDiagnostics() {
	o.mu.Lock()
	hasMain := o.main != nil
	o.mu.Unlock()

	if hasMain && o.opts.Diagnostics != nil {
		o.opts.Diagnostics.Toggle()
	}
}

// ReleaseHotkeys drops every global hotkey. Failures are logged.
func (o *Orchestrator) ReleaseHotkeys() {
	if o.opts.Hotkeys == nil {
		return
	}
	if err := o.opts.Hotkeys.UnregisterAll(); err != nil {
		o.logger.Warn("failed to release global hotkeys", zap.Error(err))
	}
}

// Main returns the most recent main surface.
func (o *Orchestrator) Main() (Surface, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.main, o.main != nil
}

// SplashOpen reports whether the splash is still up.
func (o *Orchestrator) SplashOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.splash != nil
}
