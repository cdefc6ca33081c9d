// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package testkit provides deterministic fakes for capture tests.
package testkit

import (
	"sync"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
)

// FakeClock is a manually advanced clock. Ticks are delivered synchronously:
// Advance returns only after every due tick was received or its ticker was
// stopped.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

// NewFakeClock returns a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTicker(d time.Duration) ports.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &FakeTicker{
		ch:     make(chan time.Time),
		stopCh: make(chan struct{}),
		period: d,
		next:   c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward by d, firing due ticks in time order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *FakeTicker
		for _, t := range c.tickers {
			if t.Stopped() || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		at := due.next
		c.now = at
		due.next = at.Add(due.period)
		c.mu.Unlock()

		select {
		case due.ch <- at:
		case <-due.stopCh:
		}
	}
}

// LiveTickers counts tickers that have not been stopped.
func (c *FakeClock) LiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// TotalTickers counts every ticker ever created.
func (c *FakeClock) TotalTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// FakeTicker is a ticker driven by FakeClock.
type FakeTicker struct {
	ch       chan time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	period   time.Duration
	next     time.Time
}

func (t *FakeTicker) C() <-chan time.Time { return t.ch }

func (t *FakeTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Stopped reports whether Stop was called.
func (t *FakeTicker) Stopped() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

var _ ports.Clock = (*FakeClock)(nil)
