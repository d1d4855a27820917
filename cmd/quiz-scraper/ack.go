package main

import (
	"bufio"
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// acknowledger is satisfied by guard.Rendezvous
type acknowledger interface {
	Acknowledge()
}

// pumpAcknowledgments turns every line read from r into an acknowledgment
// until r is exhausted or ctx is done
func pumpAcknowledgments(ctx context.Context, r io.Reader, ack acknowledger, log *logrus.Entry) {
	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Debugf("Stopped reading acknowledgments: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-lines:
			if !ok {
				return
			}
			log.Debug("Operator acknowledgment received")
			ack.Acknowledge()
		}
	}
}
