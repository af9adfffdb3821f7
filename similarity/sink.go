package similarity

import (
	"context"
	"slices"
	"sync"
)

// Sink receives result batches from concurrent workers.
//
// WriteBatch must be safe for concurrent use and must apply a batch
// atomically: results of one batch are never interleaved with another's.
// The slice is reused by the caller after WriteBatch returns.
type Sink interface {
	WriteBatch(batch []Result) error
}

// SinkFunc adapts a function to the Sink interface.
// The function must be safe for concurrent use.
type SinkFunc func(batch []Result) error

// WriteBatch implements Sink.
func (f SinkFunc) WriteBatch(batch []Result) error { return f(batch) }

// SliceSink collects all results in memory.
type SliceSink struct {
	mu      sync.Mutex
	results []Result
}

// WriteBatch implements Sink.
func (s *SliceSink) WriteBatch(batch []Result) error {
	s.mu.Lock()
	s.results = append(s.results, batch...)
	s.mu.Unlock()
	return nil
}

// Results returns a copy of the collected results in arrival order.
func (s *SliceSink) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

// Len returns the number of collected results.
func (s *SliceSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// ChannelSink forwards copies of each batch to a channel.
type ChannelSink struct {
	ctx context.Context
	ch  chan<- []Result
}

// NewChannelSink creates a sink sending to ch. Sends give up when ctx is done.
func NewChannelSink(ctx context.Context, ch chan<- []Result) *ChannelSink {
	return &ChannelSink{ctx: ctx, ch: ch}
}

// WriteBatch implements Sink.
func (s *ChannelSink) WriteBatch(batch []Result) error {
	select {
	case s.ch <- slices.Clone(batch):
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}
