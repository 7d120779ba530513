package app

import (
	"context"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// FrameBuffer holds the latest composited frame for the stream and the
// native viewer. Readers wait for new frames by sequence number.
type FrameBuffer struct {
	mu        sync.Mutex
	jpeg      []byte
	img       image.Image
	size      image.Point
	seq       uint64
	wantImage bool
	updated   chan struct{}
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{updated: make(chan struct{})}
}

// WantImage enables decoding each frame to an image.Image for Image.
func (b *FrameBuffer) WantImage(want bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wantImage = want
	if !want {
		b.img = nil
	}
}

// Publish encodes frame and wakes waiting readers.
func (b *FrameBuffer) Publish(frame *gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	b.mu.Lock()
	want := b.wantImage
	b.mu.Unlock()

	var img image.Image
	if want {
		if img, err = frame.ToImage(); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.jpeg = data
	b.img = img
	b.size = image.Pt(frame.Cols(), frame.Rows())
	b.seq++
	close(b.updated)
	b.updated = make(chan struct{})
	return nil
}

// Latest returns the most recent JPEG frame and its sequence number.
// The sequence is zero before the first frame.
func (b *FrameBuffer) Latest() ([]byte, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jpeg, b.seq
}

// Image returns the most recent frame as an image when WantImage is set.
func (b *FrameBuffer) Image() image.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img
}

// Size returns the dimensions of the most recent frame.
func (b *FrameBuffer) Size() image.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Next blocks until a frame newer than seq is published or ctx ends.
func (b *FrameBuffer) Next(ctx context.Context, seq uint64) ([]byte, uint64, error) {
	for {
		b.mu.Lock()
		if b.seq > seq {
			data, cur := b.jpeg, b.seq
			b.mu.Unlock()
			return data, cur, nil
		}
		updated := b.updated
		b.mu.Unlock()

		select {
		case <-updated:
		case <-ctx.Done():
			return nil, seq, ctx.Err()
		}
	}
}
