package protection

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFaultType indicates a fault type other than phase or ground.
var ErrUnknownFaultType = errors.New("relay: unknown fault type")

// ErrRelayAlreadyLinked indicates a breaker is already bound to a relay.
var ErrRelayAlreadyLinked = errors.New("breaker: relay already linked")

// UnknownCurveError indicates a curve identifier absent from the registry.
// It enumerates all valid identifiers so callers can surface them.
type UnknownCurveError struct {
	ID    string
	Known []string
}

func (e *UnknownCurveError) Error() string {
	return fmt.Sprintf("curve: unknown type %q (available: %s)", e.ID, strings.Join(e.Known, ", "))
}
