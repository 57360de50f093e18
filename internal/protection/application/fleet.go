package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
	protection "github.com/studikumbang/relay-coordination/internal/protection/domain"
)

// ErrRelayNotFound is returned when a study names a relay the fleet lacks.
var ErrRelayNotFound = errors.New("protection: relay not found")

// ErrBreakerNotFound is returned when a study names a breaker the fleet lacks.
var ErrBreakerNotFound = errors.New("protection: breaker not found")

// Fleet is the set of configured protection devices for one tenant, built
// from persisted settings. Construction diagnostics (CT class fallbacks)
// are collected rather than failing the build.
type Fleet struct {
	tenantID    string
	relays      []*protection.Relay
	relayIDs    []string
	relayByID   map[string]*protection.Relay
	breakerByID map[string]*protection.CircuitBreaker
	diagnostics []protection.Diagnostic
}

// TenantID returns the tenant the fleet was built for.
func (f *Fleet) TenantID() string { return f.tenantID }

// Relays returns relays in settings order (ascending id).
func (f *Fleet) Relays() []*protection.Relay { return f.relays }

// Relay returns the relay with the given settings id.
func (f *Fleet) Relay(id string) (*protection.Relay, error) {
	relay, ok := f.relayByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRelayNotFound, id)
	}
	return relay, nil
}

// RelaysByID resolves the given ids in order. An empty list means the whole
// fleet.
func (f *Fleet) RelaysByID(ids []string) ([]*protection.Relay, error) {
	if len(ids) == 0 {
		return f.relays, nil
	}
	relays := make([]*protection.Relay, 0, len(ids))
	for _, id := range ids {
		relay, err := f.Relay(id)
		if err != nil {
			return nil, err
		}
		relays = append(relays, relay)
	}
	return relays, nil
}

// Breaker returns the breaker with the given settings id.
func (f *Fleet) Breaker(id string) (*protection.CircuitBreaker, error) {
	breaker, ok := f.breakerByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBreakerNotFound, id)
	}
	return breaker, nil
}

// Breakers returns all breakers ordered by settings id.
func (f *Fleet) Breakers() []*protection.CircuitBreaker {
	ids := make([]string, 0, len(f.breakerByID))
	for id := range f.breakerByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	breakers := make([]*protection.CircuitBreaker, 0, len(ids))
	for _, id := range ids {
		breakers = append(breakers, f.breakerByID[id])
	}
	return breakers
}

// Diagnostics returns non-fatal findings recorded while building the fleet.
func (f *Fleet) Diagnostics() []protection.Diagnostic { return f.diagnostics }

// DeviceSummary is one fleet listing row.
type DeviceSummary struct {
	RelayID string `json:"relay_id"`
	Relay   string `json:"relay"`
	CT      string `json:"ct"`
	Breaker string `json:"breaker,omitempty"`
	State   string `json:"state,omitempty"`
}

// Summary describes every relay with its CT and breaker.
func (f *Fleet) Summary() []DeviceSummary {
	summaries := make([]DeviceSummary, 0, len(f.relays))
	for i, relay := range f.relays {
		summary := DeviceSummary{
			RelayID: f.relayIDs[i],
			Relay:   relay.Describe(),
			CT:      relay.CT().Describe(),
		}
		if breaker := relay.Breaker(); breaker != nil {
			summary.Breaker = breaker.Describe()
			summary.State = string(breaker.State())
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// FleetBuilder assembles domain devices from persisted settings.
type FleetBuilder struct {
	sensors  masterdata.SensorRepository
	breakers masterdata.BreakerRepository
	relays   masterdata.RelayRepository
}

// NewFleetBuilder constructs a builder.
func NewFleetBuilder(sensors masterdata.SensorRepository, breakers masterdata.BreakerRepository, relays masterdata.RelayRepository) (*FleetBuilder, error) {
	if sensors == nil || breakers == nil || relays == nil {
		return nil, errors.New("protection: nil settings repository")
	}
	return &FleetBuilder{sensors: sensors, breakers: breakers, relays: relays}, nil
}

// Build loads every relay of the tenant and wires it to its CT and breaker.
// A relay referencing missing sensor settings fails the build; malformed CT
// accuracy classes degrade to defaults with a diagnostic.
func (b *FleetBuilder) Build(ctx context.Context, tenantID string) (*Fleet, error) {
	if tenantID == "" {
		return nil, errors.New("protection: empty tenant id")
	}

	settingsList, err := b.relays.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	fleet := &Fleet{
		tenantID:    tenantID,
		relayByID:   make(map[string]*protection.Relay, len(settingsList)),
		breakerByID: make(map[string]*protection.CircuitBreaker),
	}

	for _, settings := range settingsList {
		relay, err := b.buildRelay(ctx, fleet, settings)
		if err != nil {
			return nil, fmt.Errorf("relay %s: %w", settings.ID, err)
		}
		fleet.relays = append(fleet.relays, relay)
		fleet.relayIDs = append(fleet.relayIDs, settings.ID)
		fleet.relayByID[settings.ID] = relay
	}
	return fleet, nil
}

func (b *FleetBuilder) buildRelay(ctx context.Context, fleet *Fleet, settings masterdata.RelaySettings) (*protection.Relay, error) {
	sensor, err := b.sensors.Get(ctx, settings.TenantID, settings.SensorID)
	if err != nil {
		return nil, err
	}
	if sensor == nil {
		return nil, fmt.Errorf("sensor %s not found", settings.SensorID)
	}
	ct, err := protection.NewCurrentTransformer(protection.CurrentTransformerConfig{
		Name:             sensor.Name,
		PrimaryRatingA:   sensor.PrimaryRatingA,
		SecondaryRatingA: sensor.SecondaryRatingA,
		BurdenVA:         sensor.BurdenVA,
		AccuracyClass:    sensor.AccuracyClass,
	})
	if err != nil {
		return nil, err
	}
	fleet.diagnostics = append(fleet.diagnostics, ct.ConfigDiagnostics()...)

	var breaker *protection.CircuitBreaker
	if settings.BreakerID != "" {
		breaker, err = b.buildBreaker(ctx, fleet, settings.TenantID, settings.BreakerID)
		if err != nil {
			return nil, err
		}
	}

	return protection.NewRelay(protection.RelayConfig{
		Name:         settings.Name,
		Manufacturer: settings.Manufacturer,
		Model:        settings.Model,
		PhaseTime: protection.TimeElementConfig{
			PickupA:  settings.PhasePickupA,
			CurveID:  settings.PhaseCurve,
			TMS:      settings.PhaseTMS,
			Disabled: !settings.PhaseEnabled,
		},
		PhaseInst: protection.InstantaneousElementConfig{
			PickupA:  settings.PhaseInstPickupA,
			DelayMS:  settings.PhaseInstDelayMS,
			Disabled: !settings.PhaseInstEnabled,
		},
		GroundTime: protection.TimeElementConfig{
			PickupA:  settings.GroundPickupA,
			CurveID:  settings.GroundCurve,
			TMS:      settings.GroundTMS,
			Disabled: !settings.GroundEnabled,
		},
		GroundInst: protection.InstantaneousElementConfig{
			PickupA:  settings.GroundInstPickupA,
			DelayMS:  settings.GroundInstDelayMS,
			Disabled: !settings.GroundInstEnabled,
		},
	}, ct, breaker)
}

func (b *FleetBuilder) buildBreaker(ctx context.Context, fleet *Fleet, tenantID, breakerID string) (*protection.CircuitBreaker, error) {
	if breaker, ok := fleet.breakerByID[breakerID]; ok {
		return breaker, nil
	}
	settings, err := b.breakers.Get(ctx, tenantID, breakerID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, fmt.Errorf("breaker %s not found", breakerID)
	}
	breaker, err := protection.NewCircuitBreaker(protection.CircuitBreakerConfig{
		Name:                     settings.Name,
		Kind:                     settings.Kind,
		RatedVoltageKV:           settings.RatedVoltageKV,
		ContinuousCurrentA:       settings.ContinuousCurrentA,
		InterruptingRatingSymKA:  settings.InterruptingRatingSymKA,
		InterruptingRatingAsymKA: settings.InterruptingRatingAsymKA,
		MakingCapacityPeakKA:     settings.MakingCapacityPeakKA,
		OperatingTimeCycles:      settings.OperatingTimeCycles,
		OperatingTimeMS:          settings.OperatingTimeMS,
	})
	if err != nil {
		return nil, err
	}
	fleet.breakerByID[breakerID] = breaker
	return breaker, nil
}
