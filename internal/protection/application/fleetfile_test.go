package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const fleetYAML = `
tenant_id: tenant-a
sensors:
  - id: ct-1
    name: CT-F1
    primary_rating_a: 300
    accuracy_class: 5P20
breakers:
  - id: cb-1
    name: CB-F1
    operating_time_ms: 80
relays:
  - id: r-1
    name: R-F1
    sensor: ct-1
    breaker: cb-1
    phase:
      pickup_a: 300
      curve: IEC_VI
      tms: 0.2
      inst_pickup_a: 3000
  - id: r-2
    sensor: ct-1
    phase:
      pickup_a: 600
`

func writeFleetFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fleet file: %v", err)
	}
	return path
}

func TestLoadFleetFileAndSeed(t *testing.T) {
	path := writeFleetFile(t, fleetYAML)

	file, err := LoadFleetFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if file.TenantID != "tenant-a" {
		t.Fatalf("tenant %q", file.TenantID)
	}

	f := newFixtures(t)
	if err := file.Seed(context.Background(), f.sensors, f.breakers, f.relays); err != nil {
		t.Fatalf("seed: %v", err)
	}

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
	breaker := relay.Breaker()
	if breaker == nil {
		t.Fatal("expected breaker wired")
	}
	if breaker.OperatingTime() != 0.08 {
		t.Fatalf("operating time %.3f", breaker.OperatingTime())
	}

	// Omitted disabled flags leave elements enabled.
	decision, err := relay.CalculateTripTime(3500, "phase")
	if err != nil {
		t.Fatalf("trip: %v", err)
	}
	if !decision.Operates || decision.Element != "50" {
		t.Fatalf("decision %+v", decision)
	}

	// Relay without a name falls back to its id.
	bare, err := fleet.Relay("r-2")
	if err != nil {
		t.Fatalf("relay r-2: %v", err)
	}
	if bare.Name() != "r-2" {
		t.Fatalf("name %q", bare.Name())
	}
}

func TestFleetFileInstDelayZeroVersusOmitted(t *testing.T) {
	path := writeFleetFile(t, `
tenant_id: tenant-a
sensors:
  - id: ct-1
relays:
  - id: r-zero
    sensor: ct-1
    phase:
      inst_pickup_a: 1000
      inst_delay_ms: 0
  - id: r-default
    sensor: ct-1
    phase:
      inst_pickup_a: 1000
`)
	file, err := LoadFleetFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	f := newFixtures(t)
	if err := file.Seed(context.Background(), f.sensors, f.breakers, f.relays); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fleet, err := f.builder(t).Build(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	zero, err := fleet.Relay("r-zero")
	if err != nil {
		t.Fatalf("relay r-zero: %v", err)
	}
	decision, err := zero.CalculateTripTime(2000, "phase")
	if err != nil {
		t.Fatalf("trip: %v", err)
	}
	if !decision.Operates || decision.TimeSeconds != 0 {
		t.Fatalf("explicit zero delay must be kept, got %+v", decision)
	}

	def, err := fleet.Relay("r-default")
	if err != nil {
		t.Fatalf("relay r-default: %v", err)
	}
	decision, err = def.CalculateTripTime(2000, "phase")
	if err != nil {
		t.Fatalf("trip: %v", err)
	}
	if !decision.Operates || decision.TimeSeconds != 0.05 {
		t.Fatalf("omitted delay must take the default, got %+v", decision)
	}
}

func TestLoadFleetFileValidation(t *testing.T) {
	if _, err := LoadFleetFile(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := LoadFleetFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := LoadFleetFile(writeFleetFile(t, "relays: []\n")); err == nil {
		t.Fatal("expected error for missing tenant")
	}
	if _, err := LoadFleetFile(writeFleetFile(t, "tenant_id: t\n")); err == nil {
		t.Fatal("expected error for empty relay list")
	}
	if _, err := LoadFleetFile(writeFleetFile(t, "tenant_id: [broken\n")); err == nil {
		t.Fatal("expected yaml error")
	}
}
