// Package application runs protection studies over fleets assembled from
// persisted device settings.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/studikumbang/relay-coordination/internal/audit"
	"github.com/studikumbang/relay-coordination/internal/auth"
	"github.com/studikumbang/relay-coordination/internal/coordination"
	"github.com/studikumbang/relay-coordination/internal/eventing"
	"github.com/studikumbang/relay-coordination/internal/observability/metrics"
	"github.com/studikumbang/relay-coordination/internal/protection/application/events"
	protection "github.com/studikumbang/relay-coordination/internal/protection/domain"
)

// ErrInvalidFaultCurrent is returned when a study supplies a non-positive
// fault current.
var ErrInvalidFaultCurrent = errors.New("protection: fault current must be positive")

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// StudyService runs trip-time, coordination and adequacy studies. Fleets are
// built once per tenant and cached so breaker positions survive across
// studies; settings mutations invalidate the cache, out-of-band edits take
// effect on restart.
type StudyService struct {
	fleets   *FleetBuilder
	analyzer *coordination.Analyzer
	bus      eventing.EventBus
	audits   audit.Logger
	logger   *log.Logger
	clock    Clock
	tenantID string

	mu         sync.Mutex
	fleetCache map[string]*Fleet
}

// StudyOption customizes the study service.
type StudyOption func(*StudyService)

// WithEventBus assigns an event bus for study events.
func WithEventBus(bus eventing.EventBus) StudyOption {
	return func(s *StudyService) {
		s.bus = bus
	}
}

// WithAuditLogger assigns an audit sink for breaker trips.
func WithAuditLogger(audits audit.Logger) StudyOption {
	return func(s *StudyService) {
		s.audits = audits
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) StudyOption {
	return func(s *StudyService) {
		s.clock = clock
	}
}

// NewStudyService constructs a study service. The tenant id is the fallback
// when a request context carries none.
func NewStudyService(fleets *FleetBuilder, analyzer *coordination.Analyzer, tenantID string, logger *log.Logger, opts ...StudyOption) (*StudyService, error) {
	if fleets == nil {
		return nil, errors.New("protection: nil fleet builder")
	}
	if analyzer == nil {
		analyzer = coordination.NewAnalyzer()
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &StudyService{
		fleets:     fleets,
		analyzer:   analyzer,
		logger:     logger,
		clock:      systemClock{},
		tenantID:   tenantID,
		fleetCache: make(map[string]*Fleet),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

func (s *StudyService) resolveTenant(ctx context.Context) string {
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" {
		return tenantID
	}
	return s.tenantID
}

func (s *StudyService) fleet(ctx context.Context, tenantID string) (*Fleet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fleet, ok := s.fleetCache[tenantID]; ok {
		return fleet, nil
	}
	fleet, err := s.fleets.Build(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.fleetCache[tenantID] = fleet
	return fleet, nil
}

// InvalidateFleet drops the cached fleet for a tenant so the next study
// rebuilds it from the settings repositories. Breaker open state is lost
// with the cache.
func (s *StudyService) InvalidateFleet(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fleetCache, tenantID)
}

// TripTimeCommand asks for one relay evaluation at one fault current.
// TripBreaker additionally opens the linked breaker when the relay operates.
type TripTimeCommand struct {
	RelayID       string
	FaultCurrentA float64
	FaultType     string
	TripBreaker   bool
}

// TripTimeResult is the outcome of a trip-time study.
type TripTimeResult struct {
	RelayID       string                  `json:"relay_id"`
	FaultCurrentA float64                 `json:"fault_current_a"`
	FaultType     protection.FaultType    `json:"fault_type"`
	Operates      bool                    `json:"operates"`
	TimeSeconds   float64                 `json:"time_seconds,omitempty"`
	Element       protection.ElementKind  `json:"element,omitempty"`
	TotalSeconds  *float64                `json:"total_seconds,omitempty"`
	BreakerState  string                  `json:"breaker_state,omitempty"`
	BreakerOpened bool                    `json:"breaker_opened,omitempty"`
	Diagnostics   []protection.Diagnostic `json:"diagnostics,omitempty"`
}

// TripTime evaluates one relay and optionally opens its breaker.
func (s *StudyService) TripTime(ctx context.Context, cmd TripTimeCommand) (*TripTimeResult, error) {
	started := s.clock.Now()
	result, err := s.tripTime(ctx, cmd)
	s.observeStudy("trip_time", started, err)
	return result, err
}

func (s *StudyService) tripTime(ctx context.Context, cmd TripTimeCommand) (*TripTimeResult, error) {
	if cmd.FaultCurrentA <= 0 {
		return nil, ErrInvalidFaultCurrent
	}
	faultType, err := protection.ParseFaultType(cmd.FaultType)
	if err != nil {
		return nil, err
	}

	tenantID := s.resolveTenant(ctx)
	fleet, err := s.fleet(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	relay, err := fleet.Relay(cmd.RelayID)
	if err != nil {
		return nil, err
	}

	decision, err := relay.CalculateTripTime(cmd.FaultCurrentA, faultType)
	if err != nil {
		return nil, err
	}
	metrics.IncTripEvaluation(string(faultType), decision.Operates)
	s.raiseDiagnostics(ctx, tenantID, decision.Diagnostics)

	result := &TripTimeResult{
		RelayID:       cmd.RelayID,
		FaultCurrentA: cmd.FaultCurrentA,
		FaultType:     faultType,
		Operates:      decision.Operates,
		TimeSeconds:   decision.TimeSeconds,
		Element:       decision.Element,
		Diagnostics:   decision.Diagnostics,
	}

	breaker := relay.Breaker()
	if breaker != nil {
		if decision.Operates {
			total := breaker.AddOperatingTime(decision).TimeSeconds
			result.TotalSeconds = &total
		}
		if cmd.TripBreaker && decision.Operates {
			breaker.Open()
			result.BreakerOpened = true
			metrics.IncBreakerTrip()
			s.publishBreakerOpened(ctx, tenantID, cmd, relay, breaker, result)
			s.auditBreakerTrip(ctx, tenantID, cmd, breaker, result)
		}
		result.BreakerState = string(breaker.State())
	}
	return result, nil
}

func (s *StudyService) publishBreakerOpened(ctx context.Context, tenantID string, cmd TripTimeCommand, relay *protection.Relay, breaker *protection.CircuitBreaker, result *TripTimeResult) {
	if s.bus == nil {
		return
	}
	clearing := result.TimeSeconds
	if result.TotalSeconds != nil {
		clearing = *result.TotalSeconds
	}
	event := events.BreakerOpened{
		TenantID:      tenantID,
		BreakerID:     breaker.Name(),
		RelayID:       relay.Name(),
		FaultCurrentA: cmd.FaultCurrentA,
		FaultType:     result.FaultType,
		Element:       result.Element,
		ClearingTimeS: clearing,
		OccurredAt:    s.clock.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Printf("publish breaker opened: %v", err)
	}
}

func (s *StudyService) auditBreakerTrip(ctx context.Context, tenantID string, cmd TripTimeCommand, breaker *protection.CircuitBreaker, result *TripTimeResult) {
	if s.audits == nil {
		return
	}
	metadata, err := json.Marshal(result)
	if err != nil {
		metadata = nil
	}
	entry := audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       "breaker.trip",
		ResourceType: "breaker",
		ResourceID:   breaker.Name(),
		DeviceID:     cmd.RelayID,
		Metadata:     metadata,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.audits.Log(ctx, entry); err != nil {
		s.logger.Printf("audit breaker trip: %v", err)
	}
}

// TableCommand asks for a coordination table. An empty relay list means the
// whole fleet.
type TableCommand struct {
	RelayIDs       []string
	FaultCurrentsA []float64
	FaultType      string
}

// TableResult carries the table plus fleet construction diagnostics.
type TableResult struct {
	Table       coordination.Table      `json:"table"`
	Diagnostics []protection.Diagnostic `json:"diagnostics,omitempty"`
}

// Table builds a coordination table across the requested relays.
func (s *StudyService) Table(ctx context.Context, cmd TableCommand) (*TableResult, error) {
	started := s.clock.Now()
	result, err := s.table(ctx, cmd)
	s.observeStudy("table", started, err)
	return result, err
}

func (s *StudyService) table(ctx context.Context, cmd TableCommand) (*TableResult, error) {
	if len(cmd.FaultCurrentsA) == 0 {
		return nil, errors.New("protection: no fault currents supplied")
	}
	for _, current := range cmd.FaultCurrentsA {
		if current <= 0 {
			return nil, ErrInvalidFaultCurrent
		}
	}
	faultType, err := protection.ParseFaultType(cmd.FaultType)
	if err != nil {
		return nil, err
	}

	tenantID := s.resolveTenant(ctx)
	fleet, err := s.fleet(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	relays, err := fleet.RelaysByID(cmd.RelayIDs)
	if err != nil {
		return nil, err
	}

	table, err := s.analyzer.BuildTable(relays, cmd.FaultCurrentsA, faultType)
	if err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		for _, entry := range row.Entries {
			metrics.IncTripEvaluation(string(faultType), entry.Trip.Operates)
			s.raiseDiagnostics(ctx, tenantID, entry.Trip.Diagnostics)
		}
	}
	return &TableResult{Table: table, Diagnostics: fleet.Diagnostics()}, nil
}

// SelectivityCommand asks for a selectivity check at one fault current. A
// non-positive margin selects the analyzer default.
type SelectivityCommand struct {
	RelayIDs      []string
	FaultCurrentA float64
	FaultType     string
	MinMarginS    float64
}

// SelectivityReport carries ordered per-relay results plus fleet
// construction diagnostics.
type SelectivityReport struct {
	FaultCurrentA float64                          `json:"fault_current_a"`
	FaultType     protection.FaultType             `json:"fault_type"`
	MinMarginS    float64                          `json:"min_margin_s"`
	Results       []coordination.SelectivityResult `json:"results"`
	Selective     bool                             `json:"selective"`
	Diagnostics   []protection.Diagnostic          `json:"diagnostics,omitempty"`
}

// Selectivity checks margin-based selectivity across the requested relays.
func (s *StudyService) Selectivity(ctx context.Context, cmd SelectivityCommand) (*SelectivityReport, error) {
	started := s.clock.Now()
	result, err := s.selectivity(ctx, cmd)
	s.observeStudy("selectivity", started, err)
	return result, err
}

func (s *StudyService) selectivity(ctx context.Context, cmd SelectivityCommand) (*SelectivityReport, error) {
	if cmd.FaultCurrentA <= 0 {
		return nil, ErrInvalidFaultCurrent
	}
	faultType, err := protection.ParseFaultType(cmd.FaultType)
	if err != nil {
		return nil, err
	}

	tenantID := s.resolveTenant(ctx)
	fleet, err := s.fleet(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	relays, err := fleet.RelaysByID(cmd.RelayIDs)
	if err != nil {
		return nil, err
	}

	minMargin := cmd.MinMarginS
	results, err := s.analyzer.CheckSelectivity(relays, cmd.FaultCurrentA, faultType, minMargin)
	if err != nil {
		return nil, err
	}
	if minMargin <= 0 {
		minMargin = coordination.DefaultMinMargin
	}

	selective := true
	for _, result := range results {
		if !result.Selective {
			selective = false
		}
		s.raiseDiagnostics(ctx, tenantID, result.Diagnostics)
	}
	return &SelectivityReport{
		FaultCurrentA: cmd.FaultCurrentA,
		FaultType:     faultType,
		MinMarginS:    minMargin,
		Results:       results,
		Selective:     selective,
		Diagnostics:   fleet.Diagnostics(),
	}, nil
}

// AdequacyCommand asks whether breakers can interrupt a prospective fault.
// An empty breaker list means every breaker in the fleet.
type AdequacyCommand struct {
	BreakerIDs []string
	FaultKA    float64
}

// AdequacyResult is one breaker's verdict.
type AdequacyResult struct {
	BreakerID   string                 `json:"breaker_id"`
	RatingSymKA float64                `json:"rating_sym_ka"`
	Adequate    bool                   `json:"adequate"`
	Diagnostic  *protection.Diagnostic `json:"diagnostic,omitempty"`
}

// BreakerAdequacy sweeps breakers against a prospective fault current.
func (s *StudyService) BreakerAdequacy(ctx context.Context, cmd AdequacyCommand) ([]AdequacyResult, error) {
	started := s.clock.Now()
	results, err := s.breakerAdequacy(ctx, cmd)
	s.observeStudy("adequacy", started, err)
	return results, err
}

func (s *StudyService) breakerAdequacy(ctx context.Context, cmd AdequacyCommand) ([]AdequacyResult, error) {
	if cmd.FaultKA <= 0 {
		return nil, ErrInvalidFaultCurrent
	}

	tenantID := s.resolveTenant(ctx)
	fleet, err := s.fleet(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var breakers []*protection.CircuitBreaker
	if len(cmd.BreakerIDs) == 0 {
		breakers = fleet.Breakers()
	} else {
		for _, id := range cmd.BreakerIDs {
			breaker, err := fleet.Breaker(id)
			if err != nil {
				return nil, err
			}
			breakers = append(breakers, breaker)
		}
	}

	results := make([]AdequacyResult, 0, len(breakers))
	for _, breaker := range breakers {
		adequate, diag := breaker.CheckInterruptingCapability(cmd.FaultKA)
		if diag != nil {
			s.raiseDiagnostics(ctx, tenantID, []protection.Diagnostic{*diag})
		}
		results = append(results, AdequacyResult{
			BreakerID:   breaker.Name(),
			RatingSymKA: breaker.InterruptingRatingSymKA(),
			Adequate:    adequate,
			Diagnostic:  diag,
		})
	}
	return results, nil
}

// FleetSummary lists every configured relay with its CT and breaker.
func (s *StudyService) FleetSummary(ctx context.Context) ([]DeviceSummary, []protection.Diagnostic, error) {
	tenantID := s.resolveTenant(ctx)
	fleet, err := s.fleet(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return fleet.Summary(), fleet.Diagnostics(), nil
}

func (s *StudyService) raiseDiagnostics(ctx context.Context, tenantID string, diagnostics []protection.Diagnostic) {
	for _, diag := range diagnostics {
		metrics.IncDiagnostic(string(diag.Code))
		if s.bus == nil {
			continue
		}
		event := events.DiagnosticRaised{
			TenantID:   tenantID,
			Code:       diag.Code,
			Device:     diag.Device,
			Message:    diag.Message,
			OccurredAt: s.clock.Now().UTC(),
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Printf("publish diagnostic: %v", err)
		}
	}
}

func (s *StudyService) observeStudy(study string, started time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveStudy(study, result, s.clock.Now().Sub(started))
}
