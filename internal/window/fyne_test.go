package window

import (
	"errors"
	"net/http"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarvs/alice/internal/bridge"
)

func TestFyneHostCountsSurfaces(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	host := NewFyneHost(a, FyneHostOptions{})
	allClosed := 0
	host.OnAllClosed(func() { allClosed++ })

	splash := host.NewSurface(SurfaceOptions{Role: RoleSplash, Title: MainTitle, Width: SplashWidth, Height: SplashHeight, Frameless: true})
	main := host.NewSurface(SurfaceOptions{Role: RoleMain, Title: MainTitle, Width: MainWidth, Height: MainHeight, Resizable: true})
	assert.Equal(t, 2, host.SurfaceCount())

	require.NoError(t, splash.Close())
	assert.Equal(t, 1, host.SurfaceCount())
	assert.Zero(t, allClosed)
	assert.ErrorIs(t, splash.Close(), errSurfaceClosed)

	require.NoError(t, main.Close())
	assert.Zero(t, host.SurfaceCount())
	assert.Equal(t, 1, allClosed)
}

func TestDescribeHealth(t *testing.T) {
	assert.Equal(t, "unreachable (dial tcp: refused)", describeHealth(bridge.Reply{}, errors.New("dial tcp: refused")))
	assert.Equal(t, "HTTP 503", describeHealth(bridge.Reply{Status: http.StatusServiceUnavailable, Body: []byte(`{}`)}, nil))
	assert.Equal(t, "ok", describeHealth(bridge.Reply{Status: http.StatusOK, Body: []byte(`{"status":"OK"}`)}, nil))
	assert.Equal(t, "ok", describeHealth(bridge.Reply{Status: http.StatusOK, Body: []byte(`[]`)}, nil))
}
