// Package apptest holds fakes shared by application tests.
package apptest

import (
	"sync"
	"time"

	"github.com/bryanwahyu/leakwatch/internal/application"
)

// FakeClock is a manually driven application.Clock.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
	created chan struct{}
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now, created: make(chan struct{}, 16)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves time forward without firing tickers.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) NewTicker(d time.Duration) application.Ticker {
	t := &FakeTicker{ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	c.created <- struct{}{}
	return t
}

// WaitTicker blocks until a ticker has been created.
func (c *FakeClock) WaitTicker(timeout time.Duration) bool {
	select {
	case <-c.created:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Tick fires every live ticker once.
func (c *FakeClock) Tick() {
	c.mu.Lock()
	now := c.now
	ts := append([]*FakeTicker(nil), c.tickers...)
	c.mu.Unlock()
	for _, t := range ts {
		t.fire(now)
	}
}

type FakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *FakeTicker) C() <-chan time.Time { return t.ch }

func (t *FakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *FakeTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
}
