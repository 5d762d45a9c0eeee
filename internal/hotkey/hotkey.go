// Package hotkey registers system-wide key combinations such as the
// diagnostics toggle.
package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.design/x/hotkey"
)

const (
	debounceInterval  = 300 * time.Millisecond
	unregisterTimeout = 500 * time.Millisecond
)

type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModShift Modifier = "shift"
	ModAlt   Modifier = "alt"
	ModSuper Modifier = "super"
)

var modifierAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"win":     ModSuper,
	"meta":    ModSuper,
}

// Combo is a parsed key combination like ctrl+shift+d.
type Combo struct {
	Mods []Modifier
	Key  string
}

func (c Combo) String() string {
	parts := make([]string, 0, len(c.Mods)+1)
	for _, m := range c.Mods {
		parts = append(parts, string(m))
	}
	return strings.Join(append(parts, c.Key), "+")
}

// ParseCombo parses "ctrl+shift+d". Modifiers are normalised and sorted so
// equivalent specs compare equal.
func ParseCombo(spec string) (Combo, error) {
	fields := strings.Split(strings.ToLower(strings.TrimSpace(spec)), "+")
	if len(fields) == 0 || strings.TrimSpace(fields[len(fields)-1]) == "" {
		return Combo{}, fmt.Errorf("hotkey %q has no key", spec)
	}

	key := strings.TrimSpace(fields[len(fields)-1])
	if _, ok := keyMap[key]; !ok {
		return Combo{}, fmt.Errorf("hotkey %q: unsupported key %q", spec, key)
	}

	seen := make(map[Modifier]bool)
	var mods []Modifier
	for _, f := range fields[:len(fields)-1] {
		mod, ok := modifierAliases[strings.TrimSpace(f)]
		if !ok {
			return Combo{}, fmt.Errorf("hotkey %q: unknown modifier %q", spec, f)
		}
		if !seen[mod] {
			seen[mod] = true
			mods = append(mods, mod)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return modifierOrder(mods[i]) < modifierOrder(mods[j]) })

	return Combo{Mods: mods, Key: key}, nil
}

func modifierOrder(m Modifier) int {
	switch m {
	case ModCtrl:
		return 0
	case ModShift:
		return 1
	case ModAlt:
		return 2
	default:
		return 3
	}
}

func (c Combo) platform() ([]hotkey.Modifier, hotkey.Key) {
	mods := make([]hotkey.Modifier, 0, len(c.Mods))
	for _, m := range c.Mods {
		if mod, ok := modifierMap[m]; ok {
			mods = append(mods, mod)
		}
	}
	return mods, keyMap[c.Key]
}

// binding is satisfied by *hotkey.Hotkey.
type binding interface {
	Register() error
	Unregister() error
	Keydown() <-chan hotkey.Event
}

type registration struct {
	combo Combo
	b     binding
	stop  chan struct{}
	done  chan struct{}
}

// Manager owns every global hotkey registered by the host.
type Manager struct {
	mu         sync.Mutex
	bindings   map[string]*registration
	newBinding func([]hotkey.Modifier, hotkey.Key) binding
	logger     *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		bindings: make(map[string]*registration),
		newBinding: func(mods []hotkey.Modifier, key hotkey.Key) binding {
			return hotkey.New(mods, key)
		},
		logger: logger.Named("hotkey"),
	}
}

// Register binds spec to fn, replacing an earlier binding of the same combo.
// fn runs on the listener goroutine.
func (m *Manager) Register(spec string, fn func()) error {
	combo, err := ParseCombo(spec)
	if err != nil {
		return err
	}
	id := combo.String()

	m.mu.Lock()
	old := m.bindings[id]
	delete(m.bindings, id)
	m.mu.Unlock()

	if old != nil {
		if err := m.release(old); err != nil {
			m.logger.Warn("failed to release previous hotkey", zap.String("combo", id), zap.Error(err))
		}
	}

	mods, key := combo.platform()
	b := m.newBinding(mods, key)
	if err := b.Register(); err != nil {
		return fmt.Errorf("register hotkey %s: %w", id, err)
	}

	reg := &registration{
		combo: combo,
		b:     b,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	m.mu.Lock()
	m.bindings[id] = reg
	m.mu.Unlock()

	m.logger.Info("hotkey registered", zap.String("combo", id))
	go m.listen(reg, fn)
	return nil
}

func (m *Manager) listen(reg *registration, fn func()) {
	defer close(reg.done)

	var lastKeydown time.Time
	keydown := reg.b.Keydown()
	for {
		select {
		case <-reg.stop:
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			// Key repeat delivers a burst of keydowns.
			now := time.Now()
			if now.Sub(lastKeydown) < debounceInterval {
				continue
			}
			lastKeydown = now
			if fn != nil {
				fn()
			}
		}
	}
}

func (m *Manager) release(reg *registration) error {
	close(reg.stop)
	<-reg.done

	errCh := make(chan error, 1)
	go func() { errCh <- reg.b.Unregister() }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(unregisterTimeout):
		return fmt.Errorf("unregister %s: timed out", reg.combo)
	}
}

// UnregisterAll releases every binding. It keeps going past failures and
// returns them joined.
func (m *Manager) UnregisterAll() error {
	m.mu.Lock()
	regs := make([]*registration, 0, len(m.bindings))
	for _, reg := range m.bindings {
		regs = append(regs, reg)
	}
	m.bindings = make(map[string]*registration)
	m.mu.Unlock()

	var errs []error
	for _, reg := range regs {
		if err := m.release(reg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Registered lists the active combos.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.bindings))
	for id := range m.bindings {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var keyMap = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"return": hotkey.KeyReturn,
	"enter":  hotkey.KeyReturn,
	"tab":    hotkey.KeyTab,
	"escape": hotkey.KeyEscape,
	"esc":    hotkey.KeyEscape,
	"a":      hotkey.KeyA,
	"b":      hotkey.KeyB,
	"c":      hotkey.KeyC,
	"d":      hotkey.KeyD,
	"e":      hotkey.KeyE,
	"f":      hotkey.KeyF,
	"g":      hotkey.KeyG,
	"h":      hotkey.KeyH,
	"i":      hotkey.KeyI,
	"j":      hotkey.KeyJ,
	"k":      hotkey.KeyK,
	"l":      hotkey.KeyL,
	"m":      hotkey.KeyM,
	"n":      hotkey.KeyN,
	"o":      hotkey.KeyO,
	"p":      hotkey.KeyP,
	"q":      hotkey.KeyQ,
	"r":      hotkey.KeyR,
	"s":      hotkey.KeyS,
	"t":      hotkey.KeyT,
	"u":      hotkey.KeyU,
	"v":      hotkey.KeyV,
	"w":      hotkey.KeyW,
	"x":      hotkey.KeyX,
	"y":      hotkey.KeyY,
	"z":      hotkey.KeyZ,
	"0":      hotkey.Key0,
	"1":      hotkey.Key1,
	"2":      hotkey.Key2,
	"3":      hotkey.Key3,
	"4":      hotkey.Key4,
	"5":      hotkey.Key5,
	"6":      hotkey.Key6,
	"7":      hotkey.Key7,
	"8":      hotkey.Key8,
	"9":      hotkey.Key9,
	"f1":     hotkey.KeyF1,
	"f2":     hotkey.KeyF2,
	"f3":     hotkey.KeyF3,
	"f4":     hotkey.KeyF4,
	"f5":     hotkey.KeyF5,
	"f6":     hotkey.KeyF6,
	"f7":     hotkey.KeyF7,
	"f8":     hotkey.KeyF8,
	"f9":     hotkey.KeyF9,
	"f10":    hotkey.KeyF10,
	"f11":    hotkey.KeyF11,
	"f12":    hotkey.KeyF12,
}
