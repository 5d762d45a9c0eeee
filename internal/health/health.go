// Package health polls the backend liveness endpoint. It never gates the
// UI; it only reports whether the backend answered last time.
package health

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devmarvs/alice/internal/bridge"
)

const (
	DefaultInterval   = 2 * time.Second
	DefaultMaxBackoff = 30 * time.Second
	probeTimeout      = 3 * time.Second
)

// Prober is the part of the bridge the watcher needs.
type Prober interface {
	Health(ctx context.Context) (bridge.Reply, error)
}

type Status struct {
	Reachable bool      `json:"reachable"`
	LastCheck time.Time `json:"last_check,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Failures  int       `json:"consecutive_failures"`
}

type Watcher struct {
	prober     Prober
	interval   time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	status   Status
	onChange func(Status)
}

func NewWatcher(p Prober, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		prober:     p,
		interval:   interval,
		maxBackoff: DefaultMaxBackoff,
		logger:     logger.Named("health"),
	}
}

// OnChange registers fn to run whenever reachability flips.
func (w *Watcher) OnChange(fn func(Status)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Check probes once and records the outcome.
func (w *Watcher) Check(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	reply, err := w.prober.Health(probeCtx)
	cancel()

	if err == nil && !reply.OK() {
		err = fmt.Errorf("health returned HTTP %d", reply.Status)
	}
	now := time.Now()

	w.mu.Lock()
	prev := w.status
	next := prev
	next.LastCheck = now
	if err != nil {
		next.Reachable = false
		next.LastError = err.Error()
		next.Failures++
	} else {
		next.Reachable = true
		next.LastError = ""
		next.Failures = 0
	}
	changed := prev.LastCheck.IsZero() || prev.Reachable != next.Reachable
	if changed {
		next.Since = now
	}
	w.status = next
	fn := w.onChange
	w.mu.Unlock()

	switch {
	case changed && next.Reachable:
		w.logger.Info("backend reachable")
	case changed && !prev.LastCheck.IsZero():
		w.logger.Warn("backend unreachable", zap.String("error", next.LastError))
	case !next.Reachable:
		w.logger.Debug("backend not answering yet", zap.String("error", next.LastError), zap.Int("failures", next.Failures))
	}

	if changed && fn != nil {
		fn(next)
	}
	return next
}

// Run polls until ctx is cancelled. Failures back off exponentially.
func (w *Watcher) Run(ctx context.Context) {
	for {
		st := w.Check(ctx)

		delay := w.interval
		if !st.Reachable && st.Failures > 1 {
			delay = calculateBackoff(w.interval, w.maxBackoff, st.Failures-1)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func calculateBackoff(initial, max time.Duration, attempt int) time.Duration {
	backoff := float64(initial) * math.Pow(2, float64(attempt))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	return time.Duration(backoff)
}
