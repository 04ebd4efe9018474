package channel

import (
	"errors"
	"fmt"

	"github.com/OCAP2/csp/pkg/future"
)

var (
	// ErrClosed is the end-of-stream signal. Every error returned because a
	// channel is closed matches it with errors.Is.
	ErrClosed = errors.New("channel closed")
	// ErrInvalidCapacity is returned by New for a negative buffer size.
	ErrInvalidCapacity = errors.New("invalid channel capacity")
	// ErrFull is returned by TryPush when the value cannot be accepted
	// without suspending.
	ErrFull = errors.New("channel full")
	// ErrEmpty is returned by TryPull when no value is available without
	// suspending.
	ErrEmpty = errors.New("channel empty")
	// ErrCanceled settles an operation retracted by Cancel, by a lost
	// select race, or by its context ending.
	ErrCanceled = errors.New("channel operation canceled")
	// ErrNoCases is returned by Select when called without cases.
	ErrNoCases = errors.New("select with no cases")
	// ErrPending is returned by Op.Result while the operation is in flight.
	ErrPending = future.ErrPending
)

// ClosedError reports which channel was closed.
type ClosedError struct {
	Channel string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("channel %q closed", e.Channel)
}

// Is makes errors.Is(err, ErrClosed) true.
func (e *ClosedError) Is(target error) bool {
	return target == ErrClosed
}
