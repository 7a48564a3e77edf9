package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler cancels a batch run on SIGINT/SIGTERM and tells the
// operator what was kept.
type InterruptHandler struct {
	writer       io.Writer
	cancelFunc   context.CancelFunc
	stop         func()
	interrupted  bool
	showProgress bool
	mu           sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer: writer,
	}
}

// HandleInterrupts returns a context that is canceled on the first interrupt.
// Call Stop once the guarded work is done.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, showProgress bool) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	h.cancelFunc = cancel
	h.showProgress = showProgress

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	var once sync.Once
	h.stop = func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
		})
	}

	go func() {
		select {
		case <-sigChan:
			h.interrupt()
		case <-ctx.Done():
			// The parent may have seen the same signal first.
			select {
			case <-sigChan:
				h.interrupt()
			default:
			}
		case <-done:
		}
	}()

	return ctx
}

// Stop releases the signal subscription and the derived context.
func (h *InterruptHandler) Stop() {
	if h.stop != nil {
		h.stop()
	}
	if h.cancelFunc != nil {
		h.cancelFunc()
	}
}

func (h *InterruptHandler) interrupt() {
	h.mu.Lock()
	if !h.interrupted {
		h.interrupted = true
		h.showInterruptMessage()
	}
	h.mu.Unlock()
	if h.cancelFunc != nil {
		h.cancelFunc()
	}
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning("Verification interrupted!")

	if h.showProgress {
		msg += "\n" + FormatInfo("Finished decisions are saved. Re-run the manifest to continue; verified invoices are skipped.")
	}

	msg += "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
