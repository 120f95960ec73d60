package chat

import (
	"context"
	"io"
	"sync"
)

// FrameStream delivers serialized event frames to the HTTP layer as
// they are produced. Recv returns io.EOF once the turn is over; all
// errors are delivered in-band as terminal error frames, never through
// Recv.
type FrameStream struct {
	frames chan []byte
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

func newFrameStream(ctx context.Context, producer func(ctx context.Context, frames chan<- []byte)) *FrameStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &FrameStream{
		frames: make(chan []byte),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.frames)
		producer(ctx, s.frames)
	}()
	return s
}

func (s *FrameStream) Recv() ([]byte, error) {
	select {
	case frame, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-s.done:
		return nil, io.EOF
	}
}

// Close stops frame production. Safe to call more than once.
func (s *FrameStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
		go func() {
			for range s.frames {
			}
		}()
	})
	return nil
}
