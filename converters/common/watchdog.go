package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// Watchdog monitors row progress and closes a channel if no activity is
// recorded within the timeout.
type Watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	doneCh  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	running bool
	label   string
}

// NewWatchdog creates a new Watchdog.
// If timeout is <= 0, the watchdog is inert and never times out.
func NewWatchdog(label string, timeout time.Duration) *Watchdog {
	return &Watchdog{
		timeout: timeout,
		doneCh:  make(chan struct{}),
		label:   label,
	}
}

// Start begins the monitoring. It returns a channel that will be closed on timeout.
func (w *Watchdog) Start() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return w.doneCh
	}
	w.running = true

	if w.timeout <= 0 {
		return w.doneCh
	}

	w.timer = time.AfterFunc(w.timeout, w.close)
	return w.doneCh
}

// Watch starts the watchdog and returns a context that is cancelled with
// ErrScanTimeout as its cause when the watchdog fires. The returned stop
// function releases both.
func (w *Watchdog) Watch(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	done := w.Start()
	go func() {
		select {
		case <-done:
			cancel(ErrScanTimeout)
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		w.Stop()
		cancel(nil)
	}
}

// Kick resets the timeout.
func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running || w.timer == nil {
		return
	}

	// Too late once the channel is closed.
	select {
	case <-w.doneCh:
		return
	default:
	}

	w.timer.Reset(w.timeout)
}

// Stop stops the watchdog preventing the timeout from firing.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}

// Done returns the channel that shuts down on timeout.
func (w *Watchdog) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watchdog) close() {
	w.once.Do(func() {
		log.Printf("[GARSQL] %s: no rows for %v, giving up", w.label, w.timeout)
		close(w.doneCh)
	})
}
