package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/devmarvs/alice/internal/bridge"
	"github.com/devmarvs/alice/internal/document"
	"github.com/devmarvs/alice/internal/runner"
)

const loadTimeout = 15 * time.Second

var errSurfaceClosed = errors.New("surface already closed")

type DocumentLoader interface {
	Load(ctx context.Context, target string) (document.Document, error)
}

type FyneHostOptions struct {
	Loader DocumentLoader
	// Bridge is the only backend capability handed to the main surface.
	Bridge *bridge.Client
	Logger *zap.Logger
}

// FyneHost creates surfaces as fyne windows. Window calls made from other
// goroutines go through fyne.Do.
type FyneHost struct {
	app    fyne.App
	loader DocumentLoader
	bridge *bridge.Client
	logger *zap.Logger

	mu          sync.Mutex
	open        int
	onAllClosed func()
}

func NewFyneHost(a fyne.App, opts FyneHostOptions) *FyneHost {
	loader := opts.Loader
	if loader == nil {
		loader = document.NewLoader()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FyneHost{
		app:    a,
		loader: loader,
		bridge: opts.Bridge,
		logger: logger.Named("fyne"),
	}
}

// OnAllClosed runs fn when the last surface created by this host closes.
func (h *FyneHost) OnAllClosed(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAllClosed = fn
}

func (h *FyneHost) SurfaceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

func (h *FyneHost) NewSurface(opts SurfaceOptions) Surface {
	var w fyne.Window
	if opts.Frameless {
		if drv, ok := h.app.Driver().(desktop.Driver); ok {
			w = drv.CreateSplashWindow()
		}
	}
	if w == nil {
		w = h.app.NewWindow(opts.Title)
	}
	// fyne has no always-on-top; splash windows are the closest it offers.
	w.SetTitle(opts.Title)
	w.Resize(fyne.NewSize(opts.Width, opts.Height))
	w.SetFixedSize(!opts.Resizable)
	if opts.Centered {
		w.CenterOnScreen()
	}
	w.SetContent(container.NewCenter(widget.NewLabel("Loading…")))

	s := &fyneSurface{host: h, win: w, opts: opts}

	h.mu.Lock()
	h.open++
	h.mu.Unlock()

	w.SetOnClosed(func() {
		s.closed = true
		h.surfaceClosed()
	})
	return s
}

func (h *FyneHost) surfaceClosed() {
	h.mu.Lock()
	h.open--
	remaining := h.open
	fn := h.onAllClosed
	h.mu.Unlock()

	if remaining == 0 && fn != nil {
		fn()
	}
}

// fyneSurface fields are only touched on the fyne thread.
type fyneSurface struct {
	host    *FyneHost
	win     fyne.Window
	opts    SurfaceOptions
	onReady []func()
	closed  bool
}

func (s *fyneSurface) OnReady(fn func()) {
	s.onReady = append(s.onReady, fn)
}

func (s *fyneSurface) Load(target string, done func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		doc, err := s.host.loader.Load(ctx, target)
		cancel()

		fyne.Do(func() {
			if !s.closed {
				s.win.SetContent(s.render(target, doc, err))
			}
			if done != nil {
				done(err)
			}
			if s.closed {
				return
			}
			for _, fn := range s.onReady {
				fn()
			}
		})
	}()
}

func (s *fyneSurface) Show() {
	if !s.closed {
		s.win.Show()
	}
}

func (s *fyneSurface) Close() error {
	if s.closed {
		return errSurfaceClosed
	}
	s.win.Close()
	return nil
}

func (s *fyneSurface) render(target string, doc document.Document, loadErr error) fyne.CanvasObject {
	if s.opts.Role == RoleSplash {
		return renderSplash(doc, loadErr)
	}
	return s.renderMain(target, doc, loadErr)
}

func renderSplash(doc document.Document, loadErr error) fyne.CanvasObject {
	title := doc.Title
	if title == "" {
		title = MainTitle
	}
	heading := widget.NewLabelWithStyle(title, fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	text := doc.Text
	if loadErr != nil || text == "" {
		text = "Starting…"
	}
	body := widget.NewLabel(text)
	body.Alignment = fyne.TextAlignCenter
	body.Wrapping = fyne.TextWrapWord

	progress := widget.NewProgressBarInfinite()
	return container.NewPadded(container.NewVBox(layout.NewSpacer(), heading, body, progress, layout.NewSpacer()))
}

func (s *fyneSurface) renderMain(target string, doc document.Document, loadErr error) fyne.CanvasObject {
	title := doc.Title
	if title == "" {
		title = MainTitle
	}
	heading := widget.NewLabelWithStyle(title, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	source := widget.NewLabel(target)
	source.TextStyle = fyne.TextStyle{Monospace: true}
	source.Truncation = fyne.TextTruncateEllipsis

	body := widget.NewLabel(doc.Text)
	body.Wrapping = fyne.TextWrapWord
	if loadErr != nil {
		body.SetText(fmt.Sprintf("Could not load %s\n\n%v", target, loadErr))
		body.Importance = widget.DangerImportance
	}

	openBtn := widget.NewButton("Open in browser", func() {
		if err := runner.OpenBrowser(target); err != nil {
			s.host.logger.Warn("failed to open browser", zap.String("target", target), zap.Error(err))
		}
	})

	buttons := []fyne.CanvasObject{layout.NewSpacer(), openBtn}
	var backendLabel *widget.Label
	if s.host.bridge != nil {
		backendLabel = widget.NewLabel("Backend: not checked")
		client := s.host.bridge
		var checkBtn *widget.Button
		checkBtn = widget.NewButton("Check backend", func() {
			checkBtn.Disable()
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				reply, err := client.Health(ctx)
				cancel()
				fyne.Do(func() {
					backendLabel.SetText("Backend: " + describeHealth(reply, err))
					checkBtn.Enable()
				})
			}()
		})
		buttons = append(buttons, checkBtn)
	}

	header := container.NewVBox(heading, source)
	if backendLabel != nil {
		header.Add(backendLabel)
	}
	header.Add(container.NewHBox(buttons...))
	header.Add(widget.NewSeparator())

	return container.NewBorder(header, nil, nil, nil, container.NewVScroll(container.NewPadded(body)))
}

func describeHealth(reply bridge.Reply, err error) string {
	if err != nil {
		return "unreachable (" + err.Error() + ")"
	}
	if !reply.OK() {
		return fmt.Sprintf("HTTP %d", reply.Status)
	}
	if m, err := reply.Map(); err == nil {
		if status, ok := m["status"].(string); ok && status != "" {
			return strings.ToLower(status)
		}
	}
	return "ok"
}
