package repository

import (
	"context"
	"sync"
)

// Pending is the one-shot result of an asynchronous repository operation.
// It settles exactly once, either by the operation finishing or by Reject.
type Pending struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewPending returns an unsettled Pending.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved returns a Pending already settled with err.
func Resolved(err error) *Pending {
	p := NewPending()
	p.settle(err)
	return p
}

// Go runs fn on a new goroutine and settles the returned Pending with its result.
func Go(fn func() error) *Pending {
	p := NewPending()
	go func() {
		p.settle(fn())
	}()
	return p
}

func (p *Pending) settle(err error) bool {
	settled := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		settled = true
	})
	return settled
}

// Reject settles p with err unless it has already settled. It reports whether
// this call settled it. The underlying operation keeps running; only its
// result is discarded.
func (p *Pending) Reject(err error) bool {
	return p.settle(err)
}

// Done is closed once p has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the settled result. It returns nil while p is unsettled.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until p settles or ctx is done, whichever happens first.
// On context expiry it returns ctx.Err() and leaves p unsettled.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
