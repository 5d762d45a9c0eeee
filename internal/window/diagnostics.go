package window

import (
	"context"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const diagnosticsRefresh = time.Second

// ReportFunc renders the diagnostics text. It runs off the fyne thread and
// may block briefly.
type ReportFunc func(ctx context.Context) string

// DiagnosticsPanel is a detached window with backend status and log tail.
// Its fields are only touched on the fyne thread.
type DiagnosticsPanel struct {
	app    fyne.App
	report ReportFunc

	win  fyne.Window
	body *widget.Label
	stop chan struct{}
}

func NewDiagnosticsPanel(a fyne.App, report ReportFunc) *DiagnosticsPanel {
	return &DiagnosticsPanel{app: a, report: report}
}

func (p *DiagnosticsPanel) Open() { fyne.Do(p.open) }

func (p *DiagnosticsPanel) Close() { fyne.Do(p.close) }

func (p *DiagnosticsPanel) Toggle() {
	fyne.Do(func() {
		if p.win == nil {
			p.open()
			return
		}
		p.close()
	})
}

func (p *DiagnosticsPanel) open() {
	if p.win != nil {
		p.win.RequestFocus()
		return
	}

	w := p.app.NewWindow("Alice Diagnostics")
	body := widget.NewLabel("Collecting…")
	body.TextStyle = fyne.TextStyle{Monospace: true}
	body.Wrapping = fyne.TextWrapBreak

	stop := make(chan struct{})
	refreshBtn := widget.NewButton("Refresh", func() { go p.update(stop) })
	heading := widget.NewLabelWithStyle("Backend diagnostics", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	w.SetContent(container.NewBorder(
		container.NewBorder(nil, nil, nil, refreshBtn, heading),
		nil, nil, nil,
		container.NewVScroll(body),
	))
	w.Resize(fyne.NewSize(720, 520))
	w.SetOnClosed(func() {
		if p.stop == stop {
			close(stop)
			p.stop = nil
			p.win = nil
			p.body = nil
		}
	})

	p.win = w
	p.body = body
	p.stop = stop
	w.Show()

	go p.poll(stop)
}

func (p *DiagnosticsPanel) close() {
	if p.win != nil {
		p.win.Close()
	}
}

func (p *DiagnosticsPanel) poll(stop chan struct{}) {
	p.update(stop)

	ticker := time.NewTicker(diagnosticsRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.update(stop)
		}
	}
}

func (p *DiagnosticsPanel) update(stop chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), diagnosticsRefresh)
	text := p.report(ctx)
	cancel()

	fyne.Do(func() {
		if p.stop == stop && p.body != nil {
			p.body.SetText(text)
		}
	})
}
