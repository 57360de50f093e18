// Package http exposes protection settings CRUD over JSON endpoints.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/studikumbang/relay-coordination/internal/audit"
	"github.com/studikumbang/relay-coordination/internal/auth"
	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
)

// FleetInvalidator drops cached fleets after a settings mutation.
type FleetInvalidator interface {
	InvalidateFleet(tenantID string)
}

// Handler serves settings endpoints for CTs, breakers and relays.
type Handler struct {
	sensors     masterdata.SensorRepository
	breakers    masterdata.BreakerRepository
	relays      masterdata.RelayRepository
	auditLogger audit.Logger
	invalidator FleetInvalidator
	tenantID    string
}

// NewHandler constructs a Handler. tenantID is the fallback when the request
// carries no authenticated tenant.
func NewHandler(sensors masterdata.SensorRepository, breakers masterdata.BreakerRepository, relays masterdata.RelayRepository, tenantID string) (*Handler, error) {
	if sensors == nil || breakers == nil || relays == nil {
		return nil, errors.New("settings handler: nil repository")
	}
	return &Handler{sensors: sensors, breakers: breakers, relays: relays, tenantID: tenantID}, nil
}

// WithAuditLogger records settings mutations.
func (h *Handler) WithAuditLogger(logger audit.Logger) *Handler {
	h.auditLogger = logger
	return h
}

// WithFleetInvalidator drops study caches after mutations.
func (h *Handler) WithFleetInvalidator(invalidator FleetInvalidator) *Handler {
	h.invalidator = invalidator
	return h
}

const settingsPrefix = "/api/v1/settings/"

// Register mounts the settings routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(settingsPrefix, h)
}

// ServeHTTP routes settings requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, settingsPrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, settingsPrefix)
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" || len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	kind := parts[0]
	id := ""
	if len(parts) == 2 {
		id = parts[1]
	}

	switch kind {
	case "sensors":
		h.serveSensors(w, r, id)
	case "breakers":
		h.serveBreakers(w, r, id)
	case "relays":
		h.serveRelays(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) resolveTenant(r *http.Request) string {
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" {
		return tenantID
	}
	return h.tenantID
}

type sensorDTO struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	PrimaryRatingA   float64    `json:"primary_rating_a"`
	SecondaryRatingA float64    `json:"secondary_rating_a"`
	BurdenVA         float64    `json:"burden_va"`
	AccuracyClass    string     `json:"accuracy_class"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

func sensorToDTO(settings masterdata.SensorSettings) sensorDTO {
	return sensorDTO{
		ID:               settings.ID,
		Name:             settings.Name,
		PrimaryRatingA:   settings.PrimaryRatingA,
		SecondaryRatingA: settings.SecondaryRatingA,
		BurdenVA:         settings.BurdenVA,
		AccuracyClass:    settings.AccuracyClass,
		CreatedAt:        timestamp(settings.CreatedAt),
		UpdatedAt:        timestamp(settings.UpdatedAt),
	}
}

// timestamp hides zero times from responses; omitempty alone never omits a
// time.Time value.
func timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (h *Handler) serveSensors(w http.ResponseWriter, r *http.Request, id string) {
	tenantID := h.resolveTenant(r)
	ctx := r.Context()

	switch {
	case id == "" && r.Method == http.MethodGet:
		list, err := h.sensors.ListByTenant(ctx, tenantID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		dtos := make([]sensorDTO, 0, len(list))
		for _, settings := range list {
			dtos = append(dtos, sensorToDTO(settings))
		}
		writeJSON(w, map[string]any{"sensors": dtos})
	case id != "" && r.Method == http.MethodGet:
		settings, err := h.sensors.Get(ctx, tenantID, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if settings == nil {
			http.Error(w, "sensor not found", http.StatusNotFound)
			return
		}
		writeJSON(w, sensorToDTO(*settings))
	case id != "" && r.Method == http.MethodPut:
		var req sensorDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		settings := masterdata.SensorSettings{
			ID:               id,
			TenantID:         tenantID,
			Name:             req.Name,
			PrimaryRatingA:   req.PrimaryRatingA,
			SecondaryRatingA: req.SecondaryRatingA,
			BurdenVA:         req.BurdenVA,
			AccuracyClass:    req.AccuracyClass,
		}
		if settings.Name == "" {
			settings.Name = id
		}
		if err := h.sensors.Save(ctx, &settings); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.afterMutation(r, tenantID, "settings.sensor.save", "sensor", id)
		writeJSON(w, sensorToDTO(settings))
	case id != "" && r.Method == http.MethodDelete:
		if err := h.sensors.Delete(ctx, tenantID, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.afterMutation(r, tenantID, "settings.sensor.delete", "sensor", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type breakerDTO struct {
	ID                       string     `json:"id"`
	Name                     string     `json:"name"`
	Kind                     string     `json:"kind,omitempty"`
	RatedVoltageKV           float64    `json:"rated_voltage_kv"`
	ContinuousCurrentA       float64    `json:"continuous_current_a"`
	InterruptingRatingSymKA  float64    `json:"interrupting_rating_sym_ka"`
	InterruptingRatingAsymKA float64    `json:"interrupting_rating_asym_ka"`
	MakingCapacityPeakKA     float64    `json:"making_capacity_peak_ka"`
	OperatingTimeCycles      float64    `json:"operating_time_cycles"`
	OperatingTimeMS          *float64   `json:"operating_time_ms,omitempty"`
	CreatedAt                *time.Time `json:"created_at,omitempty"`
	UpdatedAt                *time.Time `json:"updated_at,omitempty"`
}

func breakerToDTO(settings masterdata.BreakerSettings) breakerDTO {
	return breakerDTO{
		ID:                       settings.ID,
		Name:                     settings.Name,
		Kind:                     settings.Kind,
		RatedVoltageKV:           settings.RatedVoltageKV,
		ContinuousCurrentA:       settings.ContinuousCurrentA,
		InterruptingRatingSymKA:  settings.InterruptingRatingSymKA,
		InterruptingRatingAsymKA: settings.InterruptingRatingAsymKA,
		MakingCapacityPeakKA:     settings.MakingCapacityPeakKA,
		OperatingTimeCycles:      settings.OperatingTimeCycles,
		OperatingTimeMS:          settings.OperatingTimeMS,
		CreatedAt:                timestamp(settings.CreatedAt),
		UpdatedAt:                timestamp(settings.UpdatedAt),
	}
}

func (h *Handler) serveBreakers(w http.ResponseWriter, r *http.Request, id string) {
	tenantID := h.resolveTenant(r)
	ctx := r.Context()

	switch {
	case id == "" && r.Method == http.MethodGet:
		list, err := h.breakers.ListByTenant(ctx, tenantID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		dtos := make([]breakerDTO, 0, len(list))
		for _, settings := range list {
			dtos = append(dtos, breakerToDTO(settings))
		}
		writeJSON(w, map[string]any{"breakers": dtos})
	case id != "" && r.Method == http.MethodGet:
		settings, err := h.breakers.Get(ctx, tenantID, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if settings == nil {
			http.Error(w, "breaker not found", http.StatusNotFound)
			return
		}
		writeJSON(w, breakerToDTO(*settings))
	case id != "" && r.Method == http.MethodPut:
		var req breakerDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		settings := masterdata.BreakerSettings{
			ID:                       id,
			TenantID:                 tenantID,
			Name:                     req.Name,
			Kind:                     req.Kind,
			RatedVoltageKV:           req.RatedVoltageKV,
			ContinuousCurrentA:       req.ContinuousCurrentA,
			InterruptingRatingSymKA:  req.InterruptingRatingSymKA,
			InterruptingRatingAsymKA: req.InterruptingRatingAsymKA,
			MakingCapacityPeakKA:     req.MakingCapacityPeakKA,
			OperatingTimeCycles:      req.OperatingTimeCycles,
			OperatingTimeMS:          req.OperatingTimeMS,
		}
		if settings.Name == "" {
			settings.Name = id
		}
		if err := h.breakers.Save(ctx, &settings); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.afterMutation(r, tenantID, "settings.breaker.save", "breaker", id)
		writeJSON(w, breakerToDTO(settings))
	case id != "" && r.Method == http.MethodDelete:
		if err := h.breakers.Delete(ctx, tenantID, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.afterMutation(r, tenantID, "settings.breaker.delete", "breaker", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type relayDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SensorID     string `json:"sensor_id"`
	BreakerID    string `json:"breaker_id,omitempty"`

	PhasePickupA     *float64 `json:"phase_pickup_a,omitempty"`
	PhaseCurve       string   `json:"phase_curve,omitempty"`
	PhaseTMS         float64  `json:"phase_tms,omitempty"`
	PhaseEnabled     bool     `json:"phase_enabled"`
	PhaseInstPickupA *float64 `json:"phase_inst_pickup_a,omitempty"`
	PhaseInstDelayMS *float64 `json:"phase_inst_delay_ms,omitempty"`
	PhaseInstEnabled bool     `json:"phase_inst_enabled"`

	GroundPickupA     *float64 `json:"ground_pickup_a,omitempty"`
	GroundCurve       string   `json:"ground_curve,omitempty"`
	GroundTMS         float64  `json:"ground_tms,omitempty"`
	GroundEnabled     bool     `json:"ground_enabled"`
	GroundInstPickupA *float64 `json:"ground_inst_pickup_a,omitempty"`
	GroundInstDelayMS *float64 `json:"ground_inst_delay_ms,omitempty"`
	GroundInstEnabled bool     `json:"ground_inst_enabled"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func relayToDTO(settings masterdata.RelaySettings) relayDTO {
	return relayDTO{
		ID:                settings.ID,
		Name:              settings.Name,
		Manufacturer:      settings.Manufacturer,
		Model:             settings.Model,
		SensorID:          settings.SensorID,
		BreakerID:         settings.BreakerID,
		PhasePickupA:      settings.PhasePickupA,
		PhaseCurve:        settings.PhaseCurve,
		PhaseTMS:          settings.PhaseTMS,
		PhaseEnabled:      settings.PhaseEnabled,
		PhaseInstPickupA:  settings.PhaseInstPickupA,
		PhaseInstDelayMS:  settings.PhaseInstDelayMS,
		PhaseInstEnabled:  settings.PhaseInstEnabled,
		GroundPickupA:     settings.GroundPickupA,
		GroundCurve:       settings.GroundCurve,
		GroundTMS:         settings.GroundTMS,
		GroundEnabled:     settings.GroundEnabled,
		GroundInstPickupA: settings.GroundInstPickupA,
		GroundInstDelayMS: settings.GroundInstDelayMS,
		GroundInstEnabled: settings.GroundInstEnabled,
		CreatedAt:         timestamp(settings.CreatedAt),
		UpdatedAt:         timestamp(settings.UpdatedAt),
	}
}

func (h *Handler) serveRelays(w http.ResponseWriter, r *http.Request, id string) {
	tenantID := h.resolveTenant(r)
	ctx := r.Context()

	switch {
	case id == "" && r.Method == http.MethodGet:
		list, err := h.relays.ListByTenant(ctx, tenantID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		dtos := make([]relayDTO, 0, len(list))
		for _, settings := range list {
			dtos = append(dtos, relayToDTO(settings))
		}
		writeJSON(w, map[string]any{"relays": dtos})
	case id != "" && r.Method == http.MethodGet:
		settings, err := h.relays.Get(ctx, tenantID, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if settings == nil {
			http.Error(w, "relay not found", http.StatusNotFound)
			return
		}
		writeJSON(w, relayToDTO(*settings))
	case id != "" && r.Method == http.MethodPut:
		var req relayDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		settings := masterdata.RelaySettings{
			ID:                id,
			TenantID:          tenantID,
			Name:              req.Name,
			Manufacturer:      req.Manufacturer,
			Model:             req.Model,
			SensorID:          req.SensorID,
			BreakerID:         req.BreakerID,
			PhasePickupA:      req.PhasePickupA,
			PhaseCurve:        req.PhaseCurve,
			PhaseTMS:          req.PhaseTMS,
			PhaseEnabled:      req.PhaseEnabled,
			PhaseInstPickupA:  req.PhaseInstPickupA,
			PhaseInstDelayMS:  req.PhaseInstDelayMS,
			PhaseInstEnabled:  req.PhaseInstEnabled,
			GroundPickupA:     req.GroundPickupA,
			GroundCurve:       req.GroundCurve,
			GroundTMS:         req.GroundTMS,
			GroundEnabled:     req.GroundEnabled,
			GroundInstPickupA: req.GroundInstPickupA,
			GroundInstDelayMS: req.GroundInstDelayMS,
			GroundInstEnabled: req.GroundInstEnabled,
		}
		if settings.Name == "" {
			settings.Name = id
		}
		if err := h.relays.Save(ctx, &settings); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.afterMutation(r, tenantID, "settings.relay.save", "relay", id)
		writeJSON(w, relayToDTO(settings))
	case id != "" && r.Method == http.MethodDelete:
		if err := h.relays.Delete(ctx, tenantID, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.afterMutation(r, tenantID, "settings.relay.delete", "relay", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) afterMutation(r *http.Request, tenantID, action, resourceType, resourceID string) {
	if h.invalidator != nil {
		h.invalidator.InvalidateFleet(tenantID)
	}
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		DeviceID:     resourceID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
