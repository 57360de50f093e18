package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
	"github.com/studikumbang/relay-coordination/internal/masterdata/infrastructure/memory"
	protection "github.com/studikumbang/relay-coordination/internal/protection/domain"
)

func floatPtr(v float64) *float64 { return &v }

type fixtures struct {
	sensors  *memory.SensorRepository
	breakers *memory.BreakerRepository
	relays   *memory.RelayRepository
}

func newFixtures(t *testing.T) fixtures {
	t.Helper()
	return fixtures{
		sensors:  memory.NewSensorRepository(),
		breakers: memory.NewBreakerRepository(),
		relays:   memory.NewRelayRepository(),
	}
}

func (f fixtures) builder(t *testing.T) *FleetBuilder {
	t.Helper()
	builder, err := NewFleetBuilder(f.sensors, f.breakers, f.relays)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return builder
}

func (f fixtures) addSensor(t *testing.T, id string, class string) {
	t.Helper()
	err := f.sensors.Save(context.Background(), &masterdata.SensorSettings{
		ID:             id,
		TenantID:       "tenant-a",
		Name:           strings.ToUpper(id),
		PrimaryRatingA: 300,
		AccuracyClass:  class,
	})
	if err != nil {
		t.Fatalf("save sensor: %v", err)
	}
}

func (f fixtures) addBreaker(t *testing.T, id string) {
	t.Helper()
	err := f.breakers.Save(context.Background(), &masterdata.BreakerSettings{
		ID:       id,
		TenantID: "tenant-a",
		Name:     strings.ToUpper(id),
	})
	if err != nil {
		t.Fatalf("save breaker: %v", err)
	}
}

func (f fixtures) addRelay(t *testing.T, id, sensorID, breakerID string, pickupA float64) {
	t.Helper()
	err := f.relays.Save(context.Background(), &masterdata.RelaySettings{
		ID:           id,
		TenantID:     "tenant-a",
		Name:         strings.ToUpper(id),
		SensorID:     sensorID,
		BreakerID:    breakerID,
		PhasePickupA: floatPtr(pickupA),
		PhaseCurve:   "IEC_NI",
		PhaseTMS:     0.3,
		PhaseEnabled: true,
	})
	if err != nil {
		t.Fatalf("save relay: %v", err)
	}
}

func TestBuildFleetWiresDevices(t *testing.T) {
	f := newFixtures(t)
	f.addSensor(t, "ct-1", "5P20")
	f.addBreaker(t, "cb-1")
	f.addRelay(t, "r-1", "ct-1", "cb-1", 300)
	f.addRelay(t, "r-2", "ct-1", "", 600)

	fleet, err := f.builder(t).Build(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(fleet.Relays()) != 2 {
		t.Fatalf("expected 2 relays, got %d", len(fleet.Relays()))
	}

	relay, err := fleet.Relay("r-1")
	if err != nil {
		t.Fatalf("relay r-1: %v", err)
	}
	if relay.Breaker() == nil {
		t.Fatal("expected r-1 wired to breaker")
	}
	if relay.Breaker().Relay() != relay {
		t.Fatal("expected breaker back-linked to relay")
	}
	if relay.CT() == nil {
		t.Fatal("expected CT wired")
	}

	bare, err := fleet.Relay("r-2")
	if err != nil {
		t.Fatalf("relay r-2: %v", err)
	}
	if bare.Breaker() != nil {
		t.Fatal("expected r-2 without breaker")
	}
	if len(fleet.Diagnostics()) != 0 {
		t.Fatalf("unexpected diagnostics: %v", fleet.Diagnostics())
	}
}

func TestBuildFleetMissingSensor(t *testing.T) {
	f := newFixtures(t)
	f.addRelay(t, "r-1", "ct-missing", "", 300)

	_, err := f.builder(t).Build(context.Background(), "tenant-a")
	if err == nil || !strings.Contains(err.Error(), "ct-missing") {
		t.Fatalf("expected missing sensor error, got %v", err)
	}
}

func TestBuildFleetSharedBreakerRejected(t *testing.T) {
	f := newFixtures(t)
	f.addSensor(t, "ct-1", "5P20")
	f.addBreaker(t, "cb-1")
	f.addRelay(t, "r-1", "ct-1", "cb-1", 300)
	f.addRelay(t, "r-2", "ct-1", "cb-1", 600)

	_, err := f.builder(t).Build(context.Background(), "tenant-a")
	if !errors.Is(err, protection.ErrRelayAlreadyLinked) {
		t.Fatalf("expected ErrRelayAlreadyLinked, got %v", err)
	}
}

func TestBuildFleetCollectsCTDiagnostics(t *testing.T) {
	f := newFixtures(t)
	f.addSensor(t, "ct-1", "bogus")
	f.addRelay(t, "r-1", "ct-1", "", 300)

	fleet, err := f.builder(t).Build(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	diags := fleet.Diagnostics()
	if len(diags) != 1 || diags[0].Code != protection.DiagnosticCTClassFallback {
		t.Fatalf("expected class fallback diagnostic, got %v", diags)
	}
}

func TestFleetSummaryListsDevices(t *testing.T) {
	f := newFixtures(t)
	f.addSensor(t, "ct-1", "5P20")
	f.addBreaker(t, "cb-1")
	f.addRelay(t, "r-1", "ct-1", "cb-1", 300)

	fleet, err := f.builder(t).Build(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	summary := fleet.Summary()
	if len(summary) != 1 {
		t.Fatalf("expected 1 summary row, got %d", len(summary))
	}
	row := summary[0]
	if row.RelayID != "r-1" {
		t.Fatalf("relay id %q", row.RelayID)
	}
	if !strings.Contains(row.CT, "CT-1") {
		t.Fatalf("ct description %q", row.CT)
	}
	if row.State != string(protection.BreakerClosed) {
		t.Fatalf("breaker state %q", row.State)
	}
}

func TestRelaysByIDUnknown(t *testing.T) {
	f := newFixtures(t)
	f.addSensor(t, "ct-1", "5P20")
	f.addRelay(t, "r-1", "ct-1", "", 300)

	fleet, err := f.builder(t).Build(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := fleet.RelaysByID([]string{"r-1", "r-9"}); !errors.Is(err, ErrRelayNotFound) {
		t.Fatalf("expected ErrRelayNotFound, got %v", err)
	}
	relays, err := fleet.RelaysByID(nil)
	if err != nil {
		t.Fatalf("all relays: %v", err)
	}
	if len(relays) != 1 {
		t.Fatalf("expected whole fleet, got %d", len(relays))
	}
}
