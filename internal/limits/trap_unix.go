//go:build linux || darwin

package limits

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// Trap calls a breach callback when the process receives SIGXCPU.
// The callback runs at most once, on the trap's own goroutine.
type Trap struct {
	onBreach func()

	armOnce  sync.Once
	fireOnce sync.Once
	signals  chan os.Signal
	done     chan struct{}
}

// NewTrap returns an unarmed trap.
func NewTrap(onBreach func()) *Trap {
	return &Trap{
		onBreach: onBreach,
		signals:  make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
}

// Arm starts watching for SIGXCPU. Arming again has no effect.
func (t *Trap) Arm() error {
	t.armOnce.Do(func() {
		signal.Notify(t.signals, unix.SIGXCPU)
		go t.watch()
	})
	return nil
}

// Stop stops watching. A stopped trap cannot be re-armed.
func (t *Trap) Stop() {
	t.armOnce.Do(func() {})
	signal.Stop(t.signals)
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}

func (t *Trap) watch() {
	for {
		select {
		case <-t.signals:
			t.fireOnce.Do(t.onBreach)
		case <-t.done:
			return
		}
	}
}
