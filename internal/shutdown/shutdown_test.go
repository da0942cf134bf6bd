package shutdown

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Errorf("Signals length = %d, want 2", len(cfg.Signals))
	}
}

func TestNew_Defaults(t *testing.T) {
	h := New(context.Background(), Config{})
	if h.cfg.Timeout <= 0 || len(h.cfg.Signals) == 0 {
		t.Errorf("zero config not defaulted: %+v", h.cfg)
	}
}

func TestHandler_Context(t *testing.T) {
	h := NewDefault()
	defer h.Close()

	select {
	case <-h.Context().Done():
		t.Fatal("Context should not be done initially")
	default:
	}
}

func TestHandler_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := New(parent, DefaultConfig())
	defer h.Close()

	cancel()
	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation not propagated")
	}
	if h.Interrupted() {
		t.Error("parent cancellation is not an interruption")
	}
}

func TestHandler_Trigger(t *testing.T) {
	var got atomic.Value
	cfg := DefaultConfig()
	cfg.OnSignal = func(sig os.Signal) { got.Store(sig) }
	h := New(context.Background(), cfg)
	defer h.Close()

	h.Trigger(syscall.SIGINT)
	h.Trigger(syscall.SIGTERM)

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	if !h.Interrupted() {
		t.Error("Interrupted() = false")
	}
	if h.Signal() != syscall.SIGINT {
		t.Errorf("Signal() = %v, want SIGINT", h.Signal())
	}
	if got.Load() != syscall.SIGINT {
		t.Errorf("OnSignal got %v", got.Load())
	}
}

func TestHandler_Listen(t *testing.T) {
	h := NewDefault()
	defer h.Close()
	h.Listen()

	h.sigChan <- syscall.SIGTERM

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("signal did not cancel context")
	}
	if h.Signal() != syscall.SIGTERM {
		t.Errorf("Signal() = %v", h.Signal())
	}
}

func TestHandler_Cancel(t *testing.T) {
	h := NewDefault()
	defer h.Close()

	h.Cancel()
	<-h.Context().Done()
	if h.Interrupted() {
		t.Error("Cancel should not mark the run interrupted")
	}
	if h.Signal() != nil {
		t.Error("Signal() should be nil")
	}
}

func TestHandler_CloseOrder(t *testing.T) {
	h := NewDefault()
	var order []string

	h.RegisterFunc("first", func() { order = append(order, "first") })
	h.RegisterFunc("second", func() { order = append(order, "second") })
	h.Register("third", func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	})

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := []string{"third", "second", "first"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}

	select {
	case <-h.Context().Done():
	default:
		t.Error("Close should cancel the context")
	}
}

func TestHandler_CloseErrors(t *testing.T) {
	h := NewDefault()
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	h.Register("a", func(ctx context.Context) error { return errA })
	h.RegisterFunc("ok", func() {})
	h.Register("b", func(ctx context.Context) error { return errB })

	err := h.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() error = %v, want both errors", err)
	}
	if again := h.Close(); again != err {
		t.Error("second Close should return the first result")
	}
}

func TestHandler_CloseTimeout(t *testing.T) {
	h := New(context.Background(), Config{Timeout: 20 * time.Millisecond})

	h.Register("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	start := time.Now()
	err := h.Close()

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Close() error = %v, want TimeoutError", err)
	}
	if timeoutErr.CallbackName != "slow" {
		t.Errorf("CallbackName = %s", timeoutErr.CallbackName)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Close did not respect the timeout")
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{CallbackName: "state"}
	if err.Error() != "shutdown callback timed out: state" {
		t.Errorf("Error() = %q", err.Error())
	}
}
