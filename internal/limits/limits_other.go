//go:build !(linux || darwin)

package limits

// Process reports ErrUnsupported for every limit.
type Process struct{}

// NewProcess returns a Process.
func NewProcess(*Trap) *Process { return &Process{} }

// SetCPU returns ErrUnsupported.
func (*Process) SetCPU(uint64) error { return ErrUnsupported }

// SetMemory returns ErrUnsupported.
func (*Process) SetMemory(uint64) error { return ErrUnsupported }

// Current returns ErrUnsupported.
func Current() (cpu, memory [2]uint64, err error) {
	return cpu, memory, ErrUnsupported
}

// Trap never fires on this platform.
type Trap struct{}

// NewTrap returns a trap that never fires.
func NewTrap(func()) *Trap { return &Trap{} }

// Arm does nothing.
func (*Trap) Arm() error { return nil }

// Stop does nothing.
func (*Trap) Stop() {}
