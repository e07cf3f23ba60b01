package journal

import "sync/atomic"

// Clock numbers the rows of one session from 1 upwards, so a trace lists
// them in the order they were written. Safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return new(Clock)
}

// Next returns the sequence number of the next row.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}
