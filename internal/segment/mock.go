package segment

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockSegmenter is a test implementation of the Segmenter interface.
// It allows tests to control the segmentation results.
type MockSegmenter struct {
	mu    sync.Mutex
	tone  *SkinTone
	err   error
	calls int
	gate  chan struct{}
}

// NewMockSegmenter creates a new MockSegmenter that detects nobody.
func NewMockSegmenter() *MockSegmenter {
	return &MockSegmenter{}
}

// SetTone sets the tone returned by Segment. Nil means no person.
func (m *MockSegmenter) SetTone(tone *SkinTone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tone = tone
}

// SetError sets the error returned by Segment.
func (m *MockSegmenter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Hold makes Segment block until Release is called or its context ends.
func (m *MockSegmenter) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Release unblocks segments waiting after Hold.
func (m *MockSegmenter) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Calls returns how many times Segment was invoked.
func (m *MockSegmenter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Segment returns the pre-configured tone or error.
func (m *MockSegmenter) Segment(ctx context.Context, frame *gocv.Mat) (*SkinTone, error) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.tone == nil {
		return nil, nil
	}
	tone := *m.tone
	return &tone, nil
}

// Close is a no-op for the mock segmenter.
func (m *MockSegmenter) Close() error {
	return nil
}

// MockBlender records blend requests and answers with a fixed suffix.
type MockBlender struct {
	mu     sync.Mutex
	err    error
	suffix string
	calls  int
}

// NewMockBlender creates a MockBlender that returns "<uri>#blended".
func NewMockBlender() *MockBlender {
	return &MockBlender{suffix: "#blended"}
}

// SetError sets the error returned by Blend.
func (m *MockBlender) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Blend was invoked.
func (m *MockBlender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Blend implements Blender.
func (m *MockBlender) Blend(ctx context.Context, imageURI string, tone SkinTone, opacity float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return imageURI + m.suffix, nil
}
