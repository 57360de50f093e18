package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/studikumbang/relay-coordination/internal/audit"
	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
	memoryrepo "github.com/studikumbang/relay-coordination/internal/masterdata/infrastructure/memory"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

type recordingInvalidator struct {
	mu      sync.Mutex
	tenants []string
}

func (i *recordingInvalidator) InvalidateFleet(tenantID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tenants = append(i.tenants, tenantID)
}

func newSettingsFixture(t *testing.T) (*Handler, *recordingAudit, *recordingInvalidator) {
	t.Helper()
	audits := &recordingAudit{}
	invalidator := &recordingInvalidator{}
	handler, err := NewHandler(
		memoryrepo.NewSensorRepository(),
		memoryrepo.NewBreakerRepository(),
		memoryrepo.NewRelayRepository(),
		"tenant-a",
	)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	handler = handler.WithAuditLogger(audits).WithFleetInvalidator(invalidator)
	return handler, audits, invalidator
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestSettingsSensorLifecycle(t *testing.T) {
	handler, audits, invalidator := newSettingsFixture(t)

	put := doJSON(t, handler, http.MethodPut, "/api/v1/settings/sensors/ct-1",
		`{"name":"CT-1","primary_rating_a":300,"secondary_rating_a":5,"burden_va":15,"accuracy_class":"5P20"}`)
	if put.Code != http.StatusOK {
		t.Fatalf("put status %d: %s", put.Code, put.Body.String())
	}

	get := doJSON(t, handler, http.MethodGet, "/api/v1/settings/sensors/ct-1", "")
	if get.Code != http.StatusOK {
		t.Fatalf("get status %d", get.Code)
	}
	var sensor sensorDTO
	if err := json.Unmarshal(get.Body.Bytes(), &sensor); err != nil {
		t.Fatalf("decode sensor: %v", err)
	}
	if sensor.ID != "ct-1" || sensor.PrimaryRatingA != 300 || sensor.AccuracyClass != "5P20" {
		t.Fatalf("sensor mismatch: %+v", sensor)
	}

	list := doJSON(t, handler, http.MethodGet, "/api/v1/settings/sensors", "")
	var listBody struct {
		Sensors []sensorDTO `json:"sensors"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listBody.Sensors) != 1 {
		t.Fatalf("expected 1 sensor, got %d", len(listBody.Sensors))
	}

	del := doJSON(t, handler, http.MethodDelete, "/api/v1/settings/sensors/ct-1", "")
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", del.Code)
	}
	gone := doJSON(t, handler, http.MethodGet, "/api/v1/settings/sensors/ct-1", "")
	if gone.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", gone.Code)
	}

	if len(audits.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(audits.entries))
	}
	if audits.entries[0].Action != "settings.sensor.save" || audits.entries[1].Action != "settings.sensor.delete" {
		t.Fatalf("audit actions mismatch: %+v", audits.entries)
	}
	if len(invalidator.tenants) != 2 || invalidator.tenants[0] != "tenant-a" {
		t.Fatalf("invalidator calls mismatch: %v", invalidator.tenants)
	}
}

func TestSettingsRelayValidation(t *testing.T) {
	handler, _, _ := newSettingsFixture(t)

	// sensor id missing
	resp := doJSON(t, handler, http.MethodPut, "/api/v1/settings/relays/r-1",
		`{"name":"R-1","phase_pickup_a":150,"phase_enabled":true}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	resp = doJSON(t, handler, http.MethodPut, "/api/v1/settings/relays/r-1",
		`{"sensor_id":"ct-1","phase_pickup_a":150,"phase_curve":"IEC_NI","phase_tms":0.3,"phase_enabled":true}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("put status %d: %s", resp.Code, resp.Body.String())
	}
	var relay relayDTO
	if err := json.Unmarshal(resp.Body.Bytes(), &relay); err != nil {
		t.Fatalf("decode relay: %v", err)
	}
	if relay.Name != "r-1" {
		t.Fatalf("expected name to default to id, got %q", relay.Name)
	}
	if relay.PhasePickupA == nil || *relay.PhasePickupA != 150 {
		t.Fatalf("pickup mismatch: %+v", relay)
	}
}

func TestSettingsBreakerRoundTrip(t *testing.T) {
	handler, _, _ := newSettingsFixture(t)

	put := doJSON(t, handler, http.MethodPut, "/api/v1/settings/breakers/cb-1",
		`{"name":"CB-1","kind":"vacuum","rated_voltage_kv":24,"interrupting_rating_sym_ka":25,"operating_time_ms":80}`)
	if put.Code != http.StatusOK {
		t.Fatalf("put status %d: %s", put.Code, put.Body.String())
	}

	get := doJSON(t, handler, http.MethodGet, "/api/v1/settings/breakers/cb-1", "")
	var breaker breakerDTO
	if err := json.Unmarshal(get.Body.Bytes(), &breaker); err != nil {
		t.Fatalf("decode breaker: %v", err)
	}
	if breaker.InterruptingRatingSymKA != 25 {
		t.Fatalf("rating mismatch: %+v", breaker)
	}
	if breaker.OperatingTimeMS == nil || *breaker.OperatingTimeMS != 80 {
		t.Fatalf("operating time mismatch: %+v", breaker)
	}
}

func TestSettingsRouting(t *testing.T) {
	handler, _, _ := newSettingsFixture(t)

	if resp := doJSON(t, handler, http.MethodGet, "/api/v1/settings/unknown", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown kind: expected 404, got %d", resp.Code)
	}
	if resp := doJSON(t, handler, http.MethodPost, "/api/v1/settings/sensors/ct-1", `{}`); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post: expected 405, got %d", resp.Code)
	}
	if resp := doJSON(t, handler, http.MethodDelete, "/api/v1/settings/sensors", ""); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("collection delete: expected 405, got %d", resp.Code)
	}
}

func TestSettingsResponsesOmitZeroTimestamps(t *testing.T) {
	// Repositories that do not report timestamps on save (postgres leaves them
	// to the database) must not leak zero times into responses.
	raw, err := json.Marshal(sensorToDTO(masterdata.SensorSettings{ID: "ct-1", TenantID: "tenant-a", Name: "CT"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "created_at") || strings.Contains(string(raw), "0001-01-01") {
		t.Fatalf("zero timestamps must be omitted: %s", raw)
	}

	now := time.Now().UTC()
	raw, err = json.Marshal(breakerToDTO(masterdata.BreakerSettings{ID: "cb-1", TenantID: "tenant-a", Name: "CB", CreatedAt: now, UpdatedAt: now}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), "created_at") || !strings.Contains(string(raw), "updated_at") {
		t.Fatalf("real timestamps must be kept: %s", raw)
	}
}
