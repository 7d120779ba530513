// Package ar runs skin-tone segmentation and overlay blending off the render
// loop, one inference at a time.
package ar

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ayusman/inkcam/internal/segment"
	"gocv.io/x/gocv"
)

// Sink receives inference results tagged with the generation they were
// submitted under. Implementations drop results whose generation is stale.
type Sink interface {
	ApplyBlend(gen uint64, tone segment.SkinTone, imageURI string) bool
	ApplyBlendFailure(gen uint64) bool
}

// Session runs at most one segment-then-blend inference at a time. Frames
// submitted while an inference is in flight are dropped.
type Session struct {
	segmenter segment.Segmenter
	blender   segment.Blender
	sink      Sink
	opacity   float64

	busy atomic.Bool

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewSession creates a Session. An opacity of zero selects segment.DefaultOpacity.
func NewSession(segmenter segment.Segmenter, blender segment.Blender, sink Sink, opacity float64) *Session {
	if opacity <= 0 {
		opacity = segment.DefaultOpacity
	}
	s := &Session{
		segmenter: segmenter,
		blender:   blender,
		sink:      sink,
		opacity:   opacity,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Busy reports whether an inference is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Submit starts an inference on a copy of frame for the overlay imageURI.
// It returns false without doing anything when another inference is in
// flight or the session is closed.
func (s *Session) Submit(frame *gocv.Mat, imageURI string, gen uint64) bool {
	if frame == nil || frame.Empty() || imageURI == "" {
		return false
	}
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.busy.Store(false)
		return false
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	input := frame.Clone()
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)
		defer input.Close()
		s.run(ctx, &input, imageURI, gen)
	}()
	return true
}

func (s *Session) run(ctx context.Context, frame *gocv.Mat, imageURI string, gen uint64) {
	tone, err := s.segmenter.Segment(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("ar: segmentation failed: %v", err)
		s.sink.ApplyBlendFailure(gen)
		return
	}
	if tone == nil {
		return
	}

	blended, err := s.blender.Blend(ctx, imageURI, *tone, s.opacity)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("ar: blend failed: %v", err)
		s.sink.ApplyBlendFailure(gen)
		return
	}

	if !s.sink.ApplyBlend(gen, *tone, blended) {
		log.Printf("ar: dropped stale result for generation %d", gen)
	}
}

// Invalidate cancels any in-flight inference. Its result, if it still
// arrives, is rejected by the sink's generation check.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

// Close cancels the in-flight inference, waits for it and closes the
// segmenter.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	return s.segmenter.Close()
}
