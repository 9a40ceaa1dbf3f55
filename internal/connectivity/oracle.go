// Package connectivity answers whether the handset can currently reach the
// network, and streams transitions.
package connectivity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Oracle is consulted by the sync engine before every remote attempt.
type Oracle interface {
	IsAvailable() bool
	// Observe emits the current state, then every change, until ctx is done.
	// Consecutive identical states are never emitted twice.
	Observe(ctx context.Context) <-chan bool
}

const (
	ModeAuto    = "auto"
	ModeOnline  = "online"
	ModeOffline = "offline"

	DefaultPollInterval = 5 * time.Second
)

// New builds the oracle for a configured mode. auto inspects network
// interfaces; online and offline pin the answer.
func New(mode string, pollInterval time.Duration) (Oracle, error) {
	switch strings.ToLower(mode) {
	case ModeAuto, "":
		return NewInterfaceOracle(pollInterval), nil
	case ModeOnline:
		return NewManual(true), nil
	case ModeOffline:
		return NewManual(false), nil
	default:
		return nil, fmt.Errorf("unknown connectivity mode %q", mode)
	}
}

// poll samples check every interval and forwards changes.
func poll(ctx context.Context, interval time.Duration, check func() bool) <-chan bool {
	out := make(chan bool, 1)
	last := check()
	out <- last

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current := check()
			if current == last {
				continue
			}
			last = current

			select {
			case out <- current:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
