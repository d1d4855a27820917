package guard

import "context"

// Acknowledger lets the worker block until an operator confirms an interstitial was dismissed
type Acknowledger interface {
	// Reset discards acknowledgments given before the current block
	Reset()
	// Wait blocks until acknowledged or ctx is done
	Wait(ctx context.Context) error
}

// Rendezvous is a single-slot acknowledgment channel.
// Repeated Acknowledge calls before a Wait coalesce into one.
type Rendezvous struct {
	ch chan struct{}
}

var _ Acknowledger = (*Rendezvous)(nil)

// NewRendezvous creates an empty Rendezvous
func NewRendezvous() *Rendezvous {
	return &Rendezvous{ch: make(chan struct{}, 1)}
}

// Acknowledge signals the waiting worker. Never blocks.
func (r *Rendezvous) Acknowledge() {
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

// Reset implements Acknowledger
func (r *Rendezvous) Reset() {
	select {
	case <-r.ch:
	default:
	}
}

// Wait implements Acknowledger. There is no timeout; only ctx ends the wait.
func (r *Rendezvous) Wait(ctx context.Context) error {
	select {
	case <-r.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
