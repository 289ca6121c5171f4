package ntfy

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrInvalidChannel is returned for channel names outside [-_A-Za-z0-9]{1,64}.
	ErrInvalidChannel = errors.New("invalid channel name")
	// ErrChannelNotFound maps a 404 from the relay.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrEmptyMessage is returned when publishing an empty body.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// Error describes a failed relay operation.
type Error struct {
	Op         string // read, publish, subscribe
	Channel    string
	StatusCode int // HTTP status, 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ntfy %s %q: HTTP %d: %v", e.Op, e.Channel, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ntfy %s %q: %v", e.Op, e.Channel, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
