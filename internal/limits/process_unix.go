//go:build linux || darwin

package limits

import (
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// Process applies limits to the current process.
type Process struct {
	trap *Trap
}

// NewProcess returns a Process that arms trap before the first CPU limit
// takes effect. trap may be nil.
func NewProcess(trap *Trap) *Process {
	return &Process{trap: trap}
}

// SetCPU sets the soft CPU-time limit in seconds.
func (p *Process) SetCPU(seconds uint64) error {
	if p.trap != nil {
		if err := p.trap.Arm(); err != nil {
			return err
		}
	}
	if err := setSoft(unix.RLIMIT_CPU, "cpu", seconds); err != nil {
		return err
	}
	slog.Info("cpu limit set", "seconds", seconds)
	return nil
}

// SetMemory sets the soft address-space limit in bytes and asks the
// garbage collector to stay below it.
func (p *Process) SetMemory(bytes uint64) error {
	if err := setSoft(unix.RLIMIT_AS, "memory", bytes); err != nil {
		return err
	}

	soft := int64(math.MaxInt64)
	if bytes < math.MaxInt64 {
		soft = int64(bytes)
	}
	debug.SetMemoryLimit(soft)

	slog.Info("memory limit set", "bytes", bytes)
	return nil
}

// Current returns the (soft, hard) pair for the CPU and memory limits.
func Current() (cpu, memory [2]uint64, err error) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_CPU, &lim); err != nil {
		return cpu, memory, fmt.Errorf("get cpu limit: %w", err)
	}
	cpu = [2]uint64{uint64(lim.Cur), uint64(lim.Max)}

	if err := unix.Getrlimit(unix.RLIMIT_AS, &lim); err != nil {
		return cpu, memory, fmt.Errorf("get memory limit: %w", err)
	}
	memory = [2]uint64{uint64(lim.Cur), uint64(lim.Max)}
	return cpu, memory, nil
}

func setSoft(resource int, name string, soft uint64) error {
	var lim unix.Rlimit
	if err := unix.Getrlimit(resource, &lim); err != nil {
		return fmt.Errorf("get %s limit: %w", name, err)
	}
	if err := checkSoft(name, soft, uint64(lim.Max)); err != nil {
		return err
	}

	lim.Cur = soft
	if err := unix.Setrlimit(resource, &lim); err != nil {
		return fmt.Errorf("set %s limit: %w", name, err)
	}
	return nil
}
