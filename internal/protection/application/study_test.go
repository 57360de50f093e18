package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/studikumbang/relay-coordination/internal/audit"
	"github.com/studikumbang/relay-coordination/internal/coordination"
	"github.com/studikumbang/relay-coordination/internal/eventing"
	"github.com/studikumbang/relay-coordination/internal/protection/application/events"
	protection "github.com/studikumbang/relay-coordination/internal/protection/domain"
)

type stubBus struct {
	mu     sync.Mutex
	events []any
}

func (b *stubBus) Publish(ctx context.Context, event any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *stubBus) Subscribe(eventType string, handler eventing.EventHandler) {}

func (b *stubBus) ofType(eventType string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []any
	for _, event := range b.events {
		if eventing.EventType(event) == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type stubAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *stubAudit) Log(ctx context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func newStudyFixtures(t *testing.T) (fixtures, *StudyService, *stubBus, *stubAudit) {
	t.Helper()
	f := newFixtures(t)
	f.addSensor(t, "ct-1", "5P20")
	f.addBreaker(t, "cb-1")
	f.addRelay(t, "r-1", "ct-1", "cb-1", 150)
	f.addRelay(t, "r-2", "ct-1", "", 300)

	bus := &stubBus{}
	audits := &stubAudit{}
	service, err := NewStudyService(f.builder(t), coordination.NewAnalyzer(), "tenant-a", nil,
		WithEventBus(bus),
		WithAuditLogger(audits),
		WithClock(fixedClock{at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return f, service, bus, audits
}

func TestTripTimeStudy(t *testing.T) {
	_, service, _, _ := newStudyFixtures(t)

	result, err := service.TripTime(context.Background(), TripTimeCommand{
		RelayID:       "r-1",
		FaultCurrentA: 400,
		FaultType:     "phase",
	})
	if err != nil {
		t.Fatalf("trip time: %v", err)
	}
	if !result.Operates {
		t.Fatal("expected relay to operate")
	}
	if result.Element != protection.ElementPhaseTime {
		t.Fatalf("element %q", result.Element)
	}
	// IEC_NI at 400/150 with TMS 0.3.
	if math.Abs(result.TimeSeconds-2.12) > 0.01 {
		t.Fatalf("trip time %.4f", result.TimeSeconds)
	}
	if result.TotalSeconds == nil {
		t.Fatal("expected total clearing time with breaker")
	}
	// Default 3-cycle breaker adds 50ms.
	if math.Abs(*result.TotalSeconds-result.TimeSeconds-0.05) > 1e-9 {
		t.Fatalf("total %.4f vs trip %.4f", *result.TotalSeconds, result.TimeSeconds)
	}
	if result.BreakerState != string(protection.BreakerClosed) {
		t.Fatalf("breaker state %q", result.BreakerState)
	}
	if result.BreakerOpened {
		t.Fatal("breaker should stay closed without trip_breaker")
	}
}

func TestTripTimeInvalidInput(t *testing.T) {
	_, service, _, _ := newStudyFixtures(t)

	if _, err := service.TripTime(context.Background(), TripTimeCommand{RelayID: "r-1", FaultCurrentA: 0, FaultType: "phase"}); !errors.Is(err, ErrInvalidFaultCurrent) {
		t.Fatalf("expected ErrInvalidFaultCurrent, got %v", err)
	}
	if _, err := service.TripTime(context.Background(), TripTimeCommand{RelayID: "r-1", FaultCurrentA: 400, FaultType: "bolted"}); !errors.Is(err, protection.ErrUnknownFaultType) {
		t.Fatalf("expected ErrUnknownFaultType, got %v", err)
	}
	if _, err := service.TripTime(context.Background(), TripTimeCommand{RelayID: "r-9", FaultCurrentA: 400, FaultType: "phase"}); !errors.Is(err, ErrRelayNotFound) {
		t.Fatalf("expected ErrRelayNotFound, got %v", err)
	}
}

func TestTripTimeOpensBreaker(t *testing.T) {
	_, service, bus, audits := newStudyFixtures(t)

	result, err := service.TripTime(context.Background(), TripTimeCommand{
		RelayID:       "r-1",
		FaultCurrentA: 400,
		FaultType:     "phase",
		TripBreaker:   true,
	})
	if err != nil {
		t.Fatalf("trip time: %v", err)
	}
	if !result.BreakerOpened {
		t.Fatal("expected breaker opened")
	}
	if result.BreakerState != string(protection.BreakerOpen) {
		t.Fatalf("breaker state %q", result.BreakerState)
	}

	opened := bus.ofType(eventing.EventTypeOf[events.BreakerOpened]())
	if len(opened) != 1 {
		t.Fatalf("expected 1 BreakerOpened event, got %d", len(opened))
	}
	event := opened[0].(events.BreakerOpened)
	if event.BreakerID != "CB-1" || event.RelayID != "R-1" {
		t.Fatalf("event devices %q %q", event.BreakerID, event.RelayID)
	}
	if event.ClearingTimeS != *result.TotalSeconds {
		t.Fatalf("event clearing %.4f", event.ClearingTimeS)
	}

	audits.mu.Lock()
	defer audits.mu.Unlock()
	if len(audits.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audits.entries))
	}
	entry := audits.entries[0]
	if entry.Action != "breaker.trip" || entry.ResourceID != "CB-1" {
		t.Fatalf("audit entry %+v", entry)
	}
}

func TestTripTimeNoTripKeepsBreakerClosed(t *testing.T) {
	_, service, bus, audits := newStudyFixtures(t)

	result, err := service.TripTime(context.Background(), TripTimeCommand{
		RelayID:       "r-1",
		FaultCurrentA: 100,
		FaultType:     "phase",
		TripBreaker:   true,
	})
	if err != nil {
		t.Fatalf("trip time: %v", err)
	}
	if result.Operates || result.BreakerOpened {
		t.Fatalf("expected no trip, got %+v", result)
	}
	if result.BreakerState != string(protection.BreakerClosed) {
		t.Fatalf("breaker state %q", result.BreakerState)
	}
	if len(bus.ofType(eventing.EventTypeOf[events.BreakerOpened]())) != 0 {
		t.Fatal("no BreakerOpened event expected")
	}
	audits.mu.Lock()
	defer audits.mu.Unlock()
	if len(audits.entries) != 0 {
		t.Fatal("no audit entry expected")
	}
}

func TestTripTimePublishesDiagnostics(t *testing.T) {
	f := newFixtures(t)
	f.addSensor(t, "ct-1", "5P20")
	f.addRelay(t, "r-1", "ct-1", "", 150)

	bus := &stubBus{}
	service, err := NewStudyService(f.builder(t), nil, "tenant-a", nil, WithEventBus(bus))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	// 300/5 CT with ALF 20 saturates above 6000A primary.
	if _, err := service.TripTime(context.Background(), TripTimeCommand{RelayID: "r-1", FaultCurrentA: 9000, FaultType: "phase"}); err != nil {
		t.Fatalf("trip time: %v", err)
	}
	raised := bus.ofType(eventing.EventTypeOf[events.DiagnosticRaised]())
	if len(raised) != 1 {
		t.Fatalf("expected 1 DiagnosticRaised event, got %d", len(raised))
	}
	event := raised[0].(events.DiagnosticRaised)
	if event.Code != protection.DiagnosticCTSaturation {
		t.Fatalf("diagnostic code %q", event.Code)
	}
}

func TestTableStudy(t *testing.T) {
	_, service, _, _ := newStudyFixtures(t)

	result, err := service.Table(context.Background(), TableCommand{
		FaultCurrentsA: []float64{400, 800},
		FaultType:      "phase",
	})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if len(result.Table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Table.Rows))
	}
	row := result.Table.Rows[0]
	if len(row.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(row.Entries))
	}
	if row.Entries[0].Columns() != 2 || row.Entries[1].Columns() != 1 {
		t.Fatalf("column mix %d/%d", row.Entries[0].Columns(), row.Entries[1].Columns())
	}
}

func TestTableStudyRejectsBadCurrents(t *testing.T) {
	_, service, _, _ := newStudyFixtures(t)

	if _, err := service.Table(context.Background(), TableCommand{FaultType: "phase"}); err == nil {
		t.Fatal("expected error for empty currents")
	}
	if _, err := service.Table(context.Background(), TableCommand{FaultCurrentsA: []float64{400, -1}, FaultType: "phase"}); !errors.Is(err, ErrInvalidFaultCurrent) {
		t.Fatalf("expected ErrInvalidFaultCurrent, got %v", err)
	}
}

func TestSelectivityStudy(t *testing.T) {
	_, service, _, _ := newStudyFixtures(t)

	report, err := service.Selectivity(context.Background(), SelectivityCommand{
		FaultCurrentA: 900,
		FaultType:     "phase",
	})
	if err != nil {
		t.Fatalf("selectivity: %v", err)
	}
	if report.MinMarginS != coordination.DefaultMinMargin {
		t.Fatalf("margin default %.2f", report.MinMarginS)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected 2 tripping relays, got %d", len(report.Results))
	}
	// r-1 has the lower pickup, so it trips faster and is primary.
	if report.Results[0].Relay != "R-1" || !report.Results[0].Primary {
		t.Fatalf("primary %+v", report.Results[0])
	}
}

func TestBreakerAdequacyStudy(t *testing.T) {
	_, service, bus, _ := newStudyFixtures(t)

	results, err := service.BreakerAdequacy(context.Background(), AdequacyCommand{FaultKA: 30})
	if err != nil {
		t.Fatalf("adequacy: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 breaker, got %d", len(results))
	}
	// Default rating is 25kA.
	if results[0].Adequate {
		t.Fatal("expected 30kA to exceed default rating")
	}
	if results[0].Diagnostic == nil || results[0].Diagnostic.Code != protection.DiagnosticBreakerCapability {
		t.Fatalf("diagnostic %+v", results[0].Diagnostic)
	}
	if len(bus.ofType(eventing.EventTypeOf[events.DiagnosticRaised]())) != 1 {
		t.Fatal("expected DiagnosticRaised event")
	}

	ok, err := service.BreakerAdequacy(context.Background(), AdequacyCommand{FaultKA: 20})
	if err != nil {
		t.Fatalf("adequacy: %v", err)
	}
	if !ok[0].Adequate || ok[0].Diagnostic != nil {
		t.Fatalf("expected adequate verdict, got %+v", ok[0])
	}
}

func TestFleetSummaryStudy(t *testing.T) {
	_, service, _, _ := newStudyFixtures(t)

	summary, diags, err := service.FleetSummary(context.Background())
	if err != nil {
		t.Fatalf("fleet summary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(summary))
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
}
