package protection

import (
	"errors"
	"fmt"
	"sync"
)

// Circuit breaker defaults for a typical MV vacuum breaker.
const (
	DefaultBreakerRatedVoltageKV       = 24.0
	DefaultBreakerContinuousCurrentA   = 630.0
	DefaultBreakerInterruptingSymKA    = 25.0
	DefaultBreakerInterruptingAsymKA   = 25.0
	DefaultBreakerMakingCapacityPeakKA = 63.0
	DefaultBreakerOperatingTimeCycles  = 3.0

	lineFrequencyHz = 60.0
)

// BreakerState is the open/closed position of a breaker.
type BreakerState string

const (
	BreakerClosed BreakerState = "closed"
	BreakerOpen   BreakerState = "open"
)

// CircuitBreakerConfig describes a breaker at configuration time. Zero values
// fall back to the package defaults. OperatingTimeMS, when set, overrides the
// cycle count.
type CircuitBreakerConfig struct {
	Name                     string
	Kind                     string // VCB, SF6, Oil, ACB, MCCB
	RatedVoltageKV           float64
	ContinuousCurrentA       float64
	InterruptingRatingSymKA  float64
	InterruptingRatingAsymKA float64
	MakingCapacityPeakKA     float64
	OperatingTimeCycles      float64
	OperatingTimeMS          *float64
}

// CircuitBreaker models mechanical interruption delay, rated interrupting
// capability and open/closed state. Ratings are immutable; state transitions
// are serialized per instance.
type CircuitBreaker struct {
	name                 string
	kind                 string
	ratedVoltageKV       float64
	continuousCurrentA   float64
	interruptingSymKA    float64
	interruptingAsymKA   float64
	makingCapacityPeakKA float64
	operatingTime        float64 // seconds

	mu    sync.Mutex
	state BreakerState
	relay *Relay
}

// NewCircuitBreaker constructs a breaker in the closed position.
func NewCircuitBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, error) {
	if cfg.Name == "" {
		return nil, errors.New("breaker: empty name")
	}
	if cfg.Kind == "" {
		cfg.Kind = "VCB"
	}
	if cfg.RatedVoltageKV == 0 {
		cfg.RatedVoltageKV = DefaultBreakerRatedVoltageKV
	}
	if cfg.ContinuousCurrentA == 0 {
		cfg.ContinuousCurrentA = DefaultBreakerContinuousCurrentA
	}
	if cfg.InterruptingRatingSymKA == 0 {
		cfg.InterruptingRatingSymKA = DefaultBreakerInterruptingSymKA
	}
	if cfg.InterruptingRatingAsymKA == 0 {
		cfg.InterruptingRatingAsymKA = DefaultBreakerInterruptingAsymKA
	}
	if cfg.MakingCapacityPeakKA == 0 {
		cfg.MakingCapacityPeakKA = DefaultBreakerMakingCapacityPeakKA
	}
	if cfg.OperatingTimeCycles == 0 {
		cfg.OperatingTimeCycles = DefaultBreakerOperatingTimeCycles
	}
	if cfg.InterruptingRatingSymKA <= 0 {
		return nil, errors.New("breaker: interrupting rating must be positive")
	}

	operatingTime := cfg.OperatingTimeCycles / lineFrequencyHz
	if cfg.OperatingTimeMS != nil {
		if *cfg.OperatingTimeMS < 0 {
			return nil, errors.New("breaker: operating time must not be negative")
		}
		operatingTime = *cfg.OperatingTimeMS / 1000.0
	}

	return &CircuitBreaker{
		name:                 cfg.Name,
		kind:                 cfg.Kind,
		ratedVoltageKV:       cfg.RatedVoltageKV,
		continuousCurrentA:   cfg.ContinuousCurrentA,
		interruptingSymKA:    cfg.InterruptingRatingSymKA,
		interruptingAsymKA:   cfg.InterruptingRatingAsymKA,
		makingCapacityPeakKA: cfg.MakingCapacityPeakKA,
		operatingTime:        operatingTime,
		state:                BreakerClosed,
	}, nil
}

// linkRelay binds the associated relay. At most one relay may be linked.
func (cb *CircuitBreaker) linkRelay(r *Relay) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.relay != nil {
		return ErrRelayAlreadyLinked
	}
	cb.relay = r
	return nil
}

// Relay returns the associated relay, or nil when none is linked.
func (cb *CircuitBreaker) Relay() *Relay {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.relay
}

// OperatingTime returns the mechanical clearing delay in seconds.
func (cb *CircuitBreaker) OperatingTime() float64 { return cb.operatingTime }

// InterruptingRatingSymKA returns the symmetrical breaking capacity.
func (cb *CircuitBreaker) InterruptingRatingSymKA() float64 { return cb.interruptingSymKA }

// TotalClearingTime evaluates the linked relay at the given fault current and
// adds the breaker operating time. A non-operating relay decision, or an
// unlinked breaker, yields a non-operating decision unchanged.
func (cb *CircuitBreaker) TotalClearingTime(faultCurrentA float64, faultType FaultType) (TripDecision, error) {
	relay := cb.Relay()
	if relay == nil {
		return TripDecision{}, nil
	}
	decision, err := relay.CalculateTripTime(faultCurrentA, faultType)
	if err != nil {
		return TripDecision{}, err
	}
	return cb.AddOperatingTime(decision), nil
}

// AddOperatingTime composes the breaker delay onto a relay decision. "No trip"
// propagates unchanged.
func (cb *CircuitBreaker) AddOperatingTime(decision TripDecision) TripDecision {
	if !decision.Operates {
		return decision
	}
	decision.TimeSeconds += cb.operatingTime
	return decision
}

// CheckInterruptingCapability verifies the breaker can interrupt the given
// fault. An inadequate rating returns false with a diagnostic, never an error.
func (cb *CircuitBreaker) CheckInterruptingCapability(faultKA float64) (bool, *Diagnostic) {
	if faultKA > cb.interruptingSymKA {
		return false, &Diagnostic{
			Code:    DiagnosticBreakerCapability,
			Device:  cb.name,
			Message: fmt.Sprintf("fault current %.2fkA exceeds interrupting rating %.2fkA", faultKA, cb.interruptingSymKA),
		}
	}
	return true, nil
}

// Open moves the breaker to the open position. Idempotent.
func (cb *CircuitBreaker) Open() {
	cb.mu.Lock()
	cb.state = BreakerOpen
	cb.mu.Unlock()
}

// Close moves the breaker to the closed position. Idempotent.
func (cb *CircuitBreaker) Close() {
	cb.mu.Lock()
	cb.state = BreakerClosed
	cb.mu.Unlock()
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the breaker identifier.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Describe returns a one-line summary for fleet listings.
func (cb *CircuitBreaker) Describe() string {
	return fmt.Sprintf("CB(name=%s, type=%s, rating=%gkA, state=%s)", cb.name, cb.kind, cb.interruptingSymKA, cb.State())
}
