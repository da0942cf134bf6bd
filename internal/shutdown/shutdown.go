// Package shutdown turns interrupt signals into context cancellation and
// runs named cleanup callbacks when a mirror run ends.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Callback is a function called during cleanup.
type Callback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	// Timeout bounds each cleanup callback.
	Timeout time.Duration
	Signals []os.Signal
	// OnSignal is called once when the first signal arrives.
	OnSignal func(sig os.Signal)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Handler manages interruption and cleanup.
type Handler struct {
	mu    sync.Mutex
	names []string
	funcs []Callback

	cfg         Config
	ctx         context.Context
	cancel      context.CancelFunc
	sigChan     chan os.Signal
	stop        chan struct{}
	interrupted atomic.Bool
	signal      atomic.Value

	closeOnce sync.Once
	closeErr  error
}

// New creates a handler whose context derives from parent.
func New(parent context.Context, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, cancel := context.WithCancel(parent)
	return &Handler{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		stop:    make(chan struct{}),
	}
}

// NewDefault creates a handler with default configuration.
func NewDefault() *Handler {
	return New(context.Background(), DefaultConfig())
}

// Context returns the run context. It is cancelled on the first signal,
// on Cancel, or on Close.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Listen starts watching for signals in the background.
func (h *Handler) Listen() {
	signal.Notify(h.sigChan, h.cfg.Signals...)
	go h.watch()
}

func (h *Handler) watch() {
	select {
	case sig := <-h.sigChan:
		h.interrupt(sig)
	case <-h.stop:
	case <-h.ctx.Done():
	}
}

func (h *Handler) interrupt(sig os.Signal) {
	if !h.interrupted.CompareAndSwap(false, true) {
		return
	}
	h.signal.Store(sig)
	if h.cfg.OnSignal != nil {
		h.cfg.OnSignal(sig)
	}
	h.cancel()
}

// Trigger simulates receipt of sig.
func (h *Handler) Trigger(sig os.Signal) {
	h.interrupt(sig)
}

// Cancel cancels the run context without marking the run interrupted.
func (h *Handler) Cancel() {
	h.cancel()
}

// Interrupted reports whether a signal ended the run.
func (h *Handler) Interrupted() bool {
	return h.interrupted.Load()
}

// Signal returns the signal that interrupted the run, or nil.
func (h *Handler) Signal() os.Signal {
	sig, _ := h.signal.Load().(os.Signal)
	return sig
}

// Register registers a cleanup callback with a name.
func (h *Handler) Register(name string, callback Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.names = append(h.names, name)
	h.funcs = append(h.funcs, callback)
}

// RegisterFunc registers a simple cleanup function.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// Close stops signal handling, cancels the run context and runs the
// callbacks in reverse registration order. Later calls return the
// first result.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.stop)
		h.cancel()

		h.mu.Lock()
		names := append([]string(nil), h.names...)
		funcs := append([]Callback(nil), h.funcs...)
		h.mu.Unlock()

		var errs []error
		for i := len(funcs) - 1; i >= 0; i-- {
			if err := h.run(names[i], funcs[i]); err != nil {
				errs = append(errs, err)
			}
		}
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}

func (h *Handler) run(name string, callback Callback) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- callback(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: name}
	}
}

// TimeoutError is returned when a callback times out.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}
