// Package worker drives the fetch→prove→submit pipeline: the task fetcher
// with difficulty auto-promotion, the signing proof submitter, and the
// authenticated worker loop that owns a cycle at a time
package worker

import "sync"

// Shutdown is the app-wide broadcast signal: one Broadcast releases every
// waiter, and further broadcasts are no-ops
type Shutdown struct {
	once sync.Once
	ch   chan struct{}
}

// NewShutdown returns an unfired signal
func NewShutdown() *Shutdown {
	return &Shutdown{ch: make(chan struct{})}
}

// Broadcast fires the signal; safe to call from any goroutine, any number
// of times
func (s *Shutdown) Broadcast() {
	s.once.Do(func() { close(s.ch) })
}

// Done returns the channel closed on broadcast
func (s *Shutdown) Done() <-chan struct{} { return s.ch }

// Fired reports whether the signal has been broadcast
func (s *Shutdown) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
