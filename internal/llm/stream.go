package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream adapts a producer goroutine to the Stream interface.
// The producer writes events to its channel and returns nil when the
// response is exhausted, or an error to surface through Recv.
type eventStream struct {
	events chan Event
	errCh  chan error
	cancel context.CancelFunc

	mu   sync.Mutex
	done bool
	err  error

	closeOnce sync.Once
}

// newEventStream starts producer in its own goroutine and returns the
// stream. Closing the stream cancels the producer's context; the
// producer must honor cancellation and return.
func newEventStream(ctx context.Context, producer func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		events: make(chan Event),
		errCh:  make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		err := producer(ctx, s.events)
		s.errCh <- err
		close(s.events)
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	}
	s.mu.Unlock()

	ev, ok := <-s.events
	if ok {
		return ev, nil
	}

	err := <-s.errCh
	s.mu.Lock()
	s.done = true
	s.err = err
	s.mu.Unlock()
	if err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		// Drain so the producer goroutine can finish.
		go func() {
			for range s.events {
			}
		}()
	})
	return nil
}
