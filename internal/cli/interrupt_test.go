package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{name: "with custom writer", writer: &bytes.Buffer{}},
		{name: "with nil writer", writer: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.WasInterrupted())
		})
	}
}

func TestInterrupt_CancelsContext(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)
	ctx := handler.HandleInterrupts(context.Background(), true)
	defer handler.Stop()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	handler.interrupt()

	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, handler.WasInterrupted())
	assert.Contains(t, output.String(), "Verification interrupted!")
	assert.Contains(t, output.String(), "Re-run the manifest")
}

func TestInterrupt_MessageShownOnce(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)
	_ = handler.HandleInterrupts(context.Background(), false)
	defer handler.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.interrupt()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, strings.Count(output.String(), "Verification interrupted!"))
}

func TestStop_WithoutInterrupt(t *testing.T) {
	handler := NewInterruptHandler(&syncBuffer{})
	ctx := handler.HandleInterrupts(context.Background(), true)
	handler.Stop()
	handler.Stop()

	<-ctx.Done()
	assert.False(t, handler.WasInterrupted())
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name         string
		expected     []string
		notExpected  []string
		showProgress bool
	}{
		{
			name:         "with progress",
			showProgress: true,
			expected:     []string{"Verification interrupted!", "Finished decisions are saved"},
		},
		{
			name:         "without progress",
			showProgress: false,
			expected:     []string{"Verification interrupted!"},
			notExpected:  []string{"Finished decisions are saved", "Re-run"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer:       &output,
				showProgress: tt.showProgress,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
		})
	}
}
