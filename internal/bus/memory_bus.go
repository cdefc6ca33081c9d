// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/metrics"
)

// DefaultBuffer is the per-subscriber queue depth.
const DefaultBuffer = 64

const dropLogEvery = 100

var dropCount atomic.Uint64

// MemoryBus is an in-memory pub/sub. Publish never blocks: when a
// subscriber's queue is full the oldest queued message is evicted, so slow
// observers see the latest state rather than stalling the publisher.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub
	buffer int
}

// NewMemoryBus creates a bus with DefaultBuffer-deep subscriber queues.
func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(DefaultBuffer)
}

// NewMemoryBusWithBuffer creates a bus with the given queue depth (min 1).
func NewMemoryBusWithBuffer(n int) *MemoryBus {
	if n < 1 {
		n = 1
	}
	return &MemoryBus{subs: make(map[string][]*memSub), buffer: n}
}

// Publish delivers msg to every current subscriber of topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if err := ctx.Err(); err != nil {
		metrics.IncBusDropReason(topic, "context_done")
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}

	b.mu.RLock()
	subs := append([]*memSub(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.offer(msg) {
			metrics.IncBusDropReason(topic, "overflow")
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				log.L().Warn().
					Str("topic", topic).
					Uint64("dropped", count).
					Msg("memory bus evicted messages for a slow subscriber")
			}
		}
	}
	return nil
}

// Subscribe registers a new subscriber for topic.
func (b *MemoryBus) Subscribe(_ context.Context, topic string) (Subscriber, error) {
	s := &memSub{b: b, topic: topic, ch: make(chan Message, b.buffer)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	return s, nil
}

type memSub struct {
	b     *MemoryBus
	topic string

	mu     sync.Mutex
	ch     chan Message
	closed bool
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

// offer enqueues msg, evicting the oldest entry if the queue is full.
// It reports whether a message was evicted.
func (s *memSub) offer(msg Message) (evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.ch <- msg:
			return evicted
		default:
		}
		select {
		case <-s.ch:
			evicted = true
		default:
		}
	}
}

func (s *memSub) Close() error {
	s.b.mu.Lock()
	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	s.b.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

var _ Bus = (*MemoryBus)(nil)
