package limits

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned on platforms without resource limits.
var ErrUnsupported = errors.New("resource limits are not supported on this platform")

// LimitError reports a requested soft limit above the hard limit.
type LimitError struct {
	Resource  string
	Requested uint64
	Hard      uint64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit %d exceeds hard limit %d", e.Resource, e.Requested, e.Hard)
}

// Unlimited is the value of an unbounded limit.
const Unlimited = ^uint64(0)

// checkSoft validates a requested soft limit against the hard limit.
func checkSoft(resource string, soft, hard uint64) error {
	if hard != Unlimited && soft > hard {
		return &LimitError{Resource: resource, Requested: soft, Hard: hard}
	}
	return nil
}
