package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/ocr"
)

// MockOCR is a test implementation of ocr.Client. Images are looked up by
// their exact bytes; unknown images return ErrOCRUnavailable.
type MockOCR struct {
	results map[string]ocr.Result
	errs    map[string]error
	calls   []string
	// Delay blocks each call until it elapses or the context ends.
	Delay time.Duration
	mu    sync.Mutex
}

var _ ocr.Client = (*MockOCR)(nil)

// NewMockOCR creates an empty mock.
func NewMockOCR() *MockOCR {
	return &MockOCR{
		results: make(map[string]ocr.Result),
		errs:    make(map[string]error),
	}
}

// SetText registers the text returned for image.
func (m *MockOCR) SetText(image []byte, text string, confidence float64) {
	m.SetResult(image, ocr.Result{Text: text, ModelID: "mock", Confidence: confidence})
}

// SetResult registers a full result for image.
func (m *MockOCR) SetResult(image []byte, result ocr.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[string(image)] = result
}

// SetError makes image fail with err.
func (m *MockOCR) SetError(image []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[string(image)] = err
}

// Extract returns the registered result for image.
func (m *MockOCR) Extract(ctx context.Context, image []byte) (ocr.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, string(image))
	delay := m.Delay
	result, ok := m.results[string(image)]
	err := m.errs[string(image)]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ocr.Result{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return ocr.Result{}, err
	}
	if !ok {
		return ocr.Result{}, common.ErrOCRUnavailable
	}
	return result, nil
}

// Calls returns how many times Extract was called.
func (m *MockOCR) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
