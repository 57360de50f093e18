package protection

import (
	"errors"
	"fmt"
)

// FaultType distinguishes phase and ground fault evaluation.
type FaultType string

const (
	FaultPhase  FaultType = "phase"
	FaultGround FaultType = "ground"
)

// ParseFaultType validates a fault type string.
func ParseFaultType(value string) (FaultType, error) {
	switch FaultType(value) {
	case FaultPhase, FaultGround:
		return FaultType(value), nil
	default:
		return "", ErrUnknownFaultType
	}
}

// ElementKind identifies the relay element that operated, in ANSI device
// number notation.
type ElementKind string

const (
	ElementPhaseInst  ElementKind = "50"
	ElementPhaseTime  ElementKind = "51"
	ElementGroundInst ElementKind = "50N"
	ElementGroundTime ElementKind = "51N"
)

// TripDecision is the outcome of a single relay evaluation. When Operates is
// false, TimeSeconds and Element are meaningless: a coordination table must
// render that as "no trip", never as a numeric time. Diagnostics carry
// non-fatal findings (CT saturation) raised during the evaluation.
type TripDecision struct {
	Operates    bool
	TimeSeconds float64
	Element     ElementKind
	Diagnostics []Diagnostic
}

// Relay element defaults following common MV feeder practice.
const (
	DefaultCurveID     = "IEC_NI"
	DefaultTMS         = 0.4
	DefaultInstDelayMS = 50.0
)

// TimeElementConfig configures a time-overcurrent element (51/51N). A nil
// pickup disables the element regardless of Disabled.
type TimeElementConfig struct {
	PickupA  *float64
	CurveID  string
	TMS      float64
	Disabled bool
}

// InstantaneousElementConfig configures an instantaneous element (50/50N).
// A nil pickup disables the element regardless of Disabled. A nil delay takes
// DefaultInstDelayMS; an explicit zero trips without added delay.
type InstantaneousElementConfig struct {
	PickupA  *float64
	DelayMS  *float64
	Disabled bool
}

// RelayConfig describes a relay at configuration time.
type RelayConfig struct {
	Name         string
	Manufacturer string
	Model        string
	PhaseTime    TimeElementConfig
	PhaseInst    InstantaneousElementConfig
	GroundTime   TimeElementConfig
	GroundInst   InstantaneousElementConfig
}

type timeElement struct {
	armed   bool
	pickupA float64
	curveID string
	curve   *Curve // nil when the configured id is not in the registry
	tms     float64
}

type instElement struct {
	armed        bool
	pickupA      float64
	delaySeconds float64
}

// Relay evaluates up to four protection elements against a fault current.
// Configuration is immutable after construction; evaluation is a pure
// function of configuration and input, safe for concurrent use.
type Relay struct {
	name         string
	manufacturer string
	model        string
	ct           *CurrentTransformer
	breaker      *CircuitBreaker

	phaseTime  timeElement
	phaseInst  instElement
	groundTime timeElement
	groundInst instElement
}

// NewRelay constructs a relay bound to exactly one CT and at most one
// breaker; a non-nil breaker is back-linked to this relay. Curve identifiers
// are resolved here when known; an unrecognized identifier is kept and only
// surfaces as an error on first evaluation of that element.
func NewRelay(cfg RelayConfig, ct *CurrentTransformer, breaker *CircuitBreaker) (*Relay, error) {
	if cfg.Name == "" {
		return nil, errors.New("relay: empty name")
	}
	if ct == nil {
		return nil, errors.New("relay: current transformer required")
	}
	if cfg.Manufacturer == "" {
		cfg.Manufacturer = "Schneider"
	}
	if cfg.Model == "" {
		cfg.Model = "Easergy P3U20"
	}

	phaseTime, err := buildTimeElement(cfg.Name, "phase", cfg.PhaseTime)
	if err != nil {
		return nil, err
	}
	groundTime, err := buildTimeElement(cfg.Name, "ground", cfg.GroundTime)
	if err != nil {
		return nil, err
	}
	phaseInst, err := buildInstElement(cfg.Name, "phase", cfg.PhaseInst)
	if err != nil {
		return nil, err
	}
	groundInst, err := buildInstElement(cfg.Name, "ground", cfg.GroundInst)
	if err != nil {
		return nil, err
	}

	relay := &Relay{
		name:         cfg.Name,
		manufacturer: cfg.Manufacturer,
		model:        cfg.Model,
		ct:           ct,
		breaker:      breaker,
		phaseTime:    phaseTime,
		phaseInst:    phaseInst,
		groundTime:   groundTime,
		groundInst:   groundInst,
	}
	if breaker != nil {
		if err := breaker.linkRelay(relay); err != nil {
			return nil, err
		}
	}
	return relay, nil
}

func buildTimeElement(relayName, side string, cfg TimeElementConfig) (timeElement, error) {
	if cfg.CurveID == "" {
		cfg.CurveID = DefaultCurveID
	}
	if cfg.TMS == 0 {
		cfg.TMS = DefaultTMS
	}
	element := timeElement{curveID: cfg.CurveID, tms: cfg.TMS}
	if cfg.PickupA == nil || cfg.Disabled {
		return element, nil
	}
	if *cfg.PickupA <= 0 {
		return timeElement{}, fmt.Errorf("relay %s: %s time pickup must be positive", relayName, side)
	}
	if cfg.TMS <= 0 {
		return timeElement{}, fmt.Errorf("relay %s: %s time multiplier must be positive", relayName, side)
	}
	element.armed = true
	element.pickupA = *cfg.PickupA
	if curve, err := LookupCurve(cfg.CurveID); err == nil {
		element.curve = &curve
	}
	return element, nil
}

func buildInstElement(relayName, side string, cfg InstantaneousElementConfig) (instElement, error) {
	delayMS := DefaultInstDelayMS
	if cfg.DelayMS != nil {
		delayMS = *cfg.DelayMS
	}
	if cfg.PickupA == nil || cfg.Disabled {
		return instElement{}, nil
	}
	if *cfg.PickupA <= 0 {
		return instElement{}, fmt.Errorf("relay %s: %s instantaneous pickup must be positive", relayName, side)
	}
	if delayMS < 0 {
		return instElement{}, fmt.Errorf("relay %s: %s instantaneous delay must not be negative", relayName, side)
	}
	return instElement{
		armed:        true,
		pickupA:      *cfg.PickupA,
		delaySeconds: delayMS / 1000.0,
	}, nil
}

// CalculateTripTime evaluates the element pair for the fault type against a
// primary-side fault current. The instantaneous element takes absolute
// precedence over the time element. A fault current at or below every armed
// pickup yields a non-operating decision, not an error.
func (r *Relay) CalculateTripTime(faultCurrentA float64, faultType FaultType) (TripDecision, error) {
	var diagnostics []Diagnostic
	// Secondary current feeds saturation diagnostics only; the trip decision
	// uses primary amps.
	if _, diag := r.ct.SecondaryCurrent(faultCurrentA); diag != nil {
		diagnostics = append(diagnostics, *diag)
	}

	var (
		inst      instElement
		timed     timeElement
		instKind  ElementKind
		timedKind ElementKind
	)
	switch faultType {
	case FaultPhase:
		inst, timed = r.phaseInst, r.phaseTime
		instKind, timedKind = ElementPhaseInst, ElementPhaseTime
	case FaultGround:
		inst, timed = r.groundInst, r.groundTime
		instKind, timedKind = ElementGroundInst, ElementGroundTime
	default:
		return TripDecision{}, ErrUnknownFaultType
	}

	if inst.armed && faultCurrentA >= inst.pickupA {
		return TripDecision{
			Operates:    true,
			TimeSeconds: inst.delaySeconds,
			Element:     instKind,
			Diagnostics: diagnostics,
		}, nil
	}

	if timed.armed && faultCurrentA >= timed.pickupA {
		multiple := faultCurrentA / timed.pickupA
		if multiple <= 1.0 {
			// Exact-pickup boundary: both curve formulas would divide by a
			// zero or negative denominator here.
			return TripDecision{Diagnostics: diagnostics}, nil
		}
		if timed.curve == nil {
			return TripDecision{}, &UnknownCurveError{ID: timed.curveID, Known: CurveIDs()}
		}
		return TripDecision{
			Operates:    true,
			TimeSeconds: timed.curve.OperateTime(multiple, timed.tms),
			Element:     timedKind,
			Diagnostics: diagnostics,
		}, nil
	}

	return TripDecision{Diagnostics: diagnostics}, nil
}

// CT returns the associated current transformer.
func (r *Relay) CT() *CurrentTransformer { return r.ct }

// Breaker returns the associated breaker, or nil.
func (r *Relay) Breaker() *CircuitBreaker { return r.breaker }

// Name returns the relay identifier.
func (r *Relay) Name() string { return r.name }

// Describe returns a one-line summary for fleet listings.
func (r *Relay) Describe() string {
	return fmt.Sprintf("Relay(name=%s, model=%s %s)", r.name, r.manufacturer, r.model)
}
