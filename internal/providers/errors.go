package providers

import (
	"context"
	"errors"
	"fmt"
)

// Transport-level failure kinds. Orchestrators catch all four at their
// boundary and log them with the provider identity; none of them reaches the
// caller as an error.
var (
	ErrUnavailable    = errors.New("provider unavailable")
	ErrMalformed      = errors.New("malformed provider response")
	ErrContentBlocked = errors.New("content blocked by provider")
	ErrTimeout        = errors.New("provider timeout")
)

func unavailable(id string, err error) error {
	return fmt.Errorf("%s: %w: %v", id, ErrUnavailable, err)
}

func malformed(id string, err error) error {
	return fmt.Errorf("%s: %w: %v", id, ErrMalformed, err)
}

func blocked(id, reason string) error {
	return fmt.Errorf("%s: %w: %s", id, ErrContentBlocked, reason)
}

// mapTransportErr folds context expiry into ErrTimeout and everything else
// into ErrUnavailable.
func mapTransportErr(ctx context.Context, id string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", id, ErrTimeout, err)
	}
	return unavailable(id, err)
}
