package hotkey

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.design/x/hotkey"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBinding struct {
	keydown       chan hotkey.Event
	registerErr   error
	unregisterErr error
	unregistered  atomic.Bool
}

func (b *fakeBinding) Register() error { return b.registerErr }
func (b *fakeBinding) Keydown() <-chan hotkey.Event { return b.keydown }
func (b *fakeBinding) Unregister() error {
	b.unregistered.Store(true)
	return b.unregisterErr
}

type fakeFactory struct {
	mu       sync.Mutex
	bindings []*fakeBinding
	next     func(b *fakeBinding)
}

func (f *fakeFactory) install(m *Manager) {
	m.newBinding = func([]hotkey.Modifier, hotkey.Key) binding {
		f.mu.Lock()
		defer f.mu.Unlock()
		b := &fakeBinding{keydown: make(chan hotkey.Event, 4)}
		if f.next != nil {
			f.next(b)
		}
		f.bindings = append(f.bindings, b)
		return b
	}
}

func TestParseCombo(t *testing.T) {
	c, err := ParseCombo("Shift+Ctrl+D")
	require.NoError(t, err)
	assert.Equal(t, "ctrl+shift+d", c.String())

	c, err = ParseCombo("control+option+f12")
	require.NoError(t, err)
	assert.Equal(t, []Modifier{ModCtrl, ModAlt}, c.Mods)
	assert.Equal(t, "f12", c.Key)

	for _, bad := range []string{"", "ctrl+", "hyper+d", "ctrl+shift+pagedown"} {
		_, err := ParseCombo(bad)
		assert.Error(t, err, bad)
	}
}

func TestRegisterDeliversDebouncedPresses(t *testing.T) {
	m := NewManager(nil)
	f := &fakeFactory{}
	f.install(m)

	var presses atomic.Int32
	require.NoError(t, m.Register("ctrl+shift+d", func() { presses.Add(1) }))
	assert.Equal(t, []string{"ctrl+shift+d"}, m.Registered())

	b := f.bindings[0]
	b.keydown <- hotkey.Event{}
	b.keydown <- hotkey.Event{}
	require.Eventually(t, func() bool { return presses.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.UnregisterAll())
	assert.True(t, b.unregistered.Load())
	assert.Empty(t, m.Registered())
	assert.Equal(t, int32(1), presses.Load())
}

func TestRegisterReplacesSameCombo(t *testing.T) {
	m := NewManager(nil)
	f := &fakeFactory{}
	f.install(m)

	require.NoError(t, m.Register("ctrl+shift+d", nil))
	require.NoError(t, m.Register("shift+ctrl+d", nil))

	require.Len(t, f.bindings, 2)
	assert.True(t, f.bindings[0].unregistered.Load())
	assert.False(t, f.bindings[1].unregistered.Load())
	assert.Len(t, m.Registered(), 1)

	require.NoError(t, m.UnregisterAll())
}

func TestRegisterFailureIsReturned(t *testing.T) {
	m := NewManager(nil)
	f := &fakeFactory{next: func(b *fakeBinding) { b.registerErr = errors.New("grab failed") }}
	f.install(m)

	err := m.Register("ctrl+shift+d", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grab failed")
	assert.Empty(t, m.Registered())
}

func TestUnregisterAllJoinsErrors(t *testing.T) {
	m := NewManager(nil)
	f := &fakeFactory{next: func(b *fakeBinding) { b.unregisterErr = errors.New("not grabbed") }}
	f.install(m)

	require.NoError(t, m.Register("ctrl+shift+d", nil))
	require.NoError(t, m.Register("ctrl+shift+l", nil))

	err := m.UnregisterAll()
	require.Error(t, err)
	for _, b := range f.bindings {
		assert.True(t, b.unregistered.Load())
	}
	assert.NoError(t, m.UnregisterAll())
}
