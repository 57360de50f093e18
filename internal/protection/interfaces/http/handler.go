// Package http exposes protection studies over JSON endpoints.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/studikumbang/relay-coordination/internal/auth"
	"github.com/studikumbang/relay-coordination/internal/coordination"
	protectionapp "github.com/studikumbang/relay-coordination/internal/protection/application"
	protection "github.com/studikumbang/relay-coordination/internal/protection/domain"
)

// Handler provides protection study HTTP endpoints.
type Handler struct {
	service *protectionapp.StudyService
}

// NewHandler constructs a handler.
func NewHandler(service *protectionapp.StudyService) (*Handler, error) {
	if service == nil {
		return nil, errors.New("protection handler: nil service")
	}
	return &Handler{service: service}, nil
}

// Register mounts the study routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/curves", h.handleCurves)
	mux.HandleFunc("/api/v1/fleet", h.handleFleet)
	mux.HandleFunc("/api/v1/protection/trip-time", h.handleTripTime)
	mux.HandleFunc("/api/v1/coordination/table", h.handleTable)
	mux.HandleFunc("/api/v1/coordination/selectivity", h.handleSelectivity)
	mux.HandleFunc("/api/v1/breakers/adequacy", h.handleAdequacy)
}

type curveDescriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Standard string `json:"standard"`
	Family   string `json:"family"`
}

func (h *Handler) handleCurves(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	curves := protection.ListCurves()
	descriptors := make([]curveDescriptor, 0, len(curves))
	for _, curve := range curves {
		descriptors = append(descriptors, curveDescriptor{
			ID:       curve.ID,
			Name:     curve.Name,
			Standard: curve.Standard,
			Family:   string(curve.Family),
		})
	}
	writeJSON(w, map[string]any{"curves": descriptors})
}

func (h *Handler) handleFleet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	devices, diagnostics, err := h.service.FleetSummary(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"devices":     devices,
		"diagnostics": diagnosticsDTO(diagnostics),
	})
}

type tripTimeRequest struct {
	RelayID       string  `json:"relay_id"`
	FaultCurrentA float64 `json:"fault_current_a"`
	FaultType     string  `json:"fault_type"`
	TripBreaker   bool    `json:"trip_breaker"`
}

func (h *Handler) handleTripTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req tripTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.RelayID == "" {
		http.Error(w, "relay_id is required", http.StatusBadRequest)
		return
	}
	// Opening a breaker changes device state; viewers may only calculate.
	if req.TripBreaker {
		if role := auth.RoleFromContext(r.Context()); role != "" && !auth.RoleAtLeast(role, auth.RoleOperator) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	result, err := h.service.TripTime(r.Context(), protectionapp.TripTimeCommand{
		RelayID:       req.RelayID,
		FaultCurrentA: req.FaultCurrentA,
		FaultType:     req.FaultType,
		TripBreaker:   req.TripBreaker,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, result)
}

type tableRequest struct {
	RelayIDs       []string  `json:"relay_ids"`
	FaultCurrentsA []float64 `json:"fault_currents_a"`
	FaultType      string    `json:"fault_type"`
}

type decisionDTO struct {
	Operates    bool            `json:"operates"`
	TimeSeconds *float64        `json:"time_seconds,omitempty"`
	Element     string          `json:"element,omitempty"`
	Diagnostics []diagnosticDTO `json:"diagnostics,omitempty"`
}

type tableEntryDTO struct {
	Relay string       `json:"relay"`
	Trip  decisionDTO  `json:"trip"`
	Total *decisionDTO `json:"total,omitempty"`
}

type tableRowDTO struct {
	FaultCurrentA float64         `json:"fault_current_a"`
	Entries       []tableEntryDTO `json:"entries"`
}

type tableResponse struct {
	FaultType   string          `json:"fault_type"`
	Rows        []tableRowDTO   `json:"rows"`
	Diagnostics []diagnosticDTO `json:"diagnostics,omitempty"`
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Table(r.Context(), protectionapp.TableCommand{
		RelayIDs:       req.RelayIDs,
		FaultCurrentsA: req.FaultCurrentsA,
		FaultType:      req.FaultType,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	response := tableResponse{
		FaultType:   string(result.Table.FaultType),
		Rows:        make([]tableRowDTO, 0, len(result.Table.Rows)),
		Diagnostics: diagnosticsDTO(result.Diagnostics),
	}
	for _, row := range result.Table.Rows {
		rowDTO := tableRowDTO{FaultCurrentA: row.FaultCurrentA, Entries: make([]tableEntryDTO, 0, len(row.Entries))}
		for _, entry := range row.Entries {
			entryDTO := tableEntryDTO{Relay: entry.Relay, Trip: decisionToDTO(entry.Trip)}
			if entry.Total != nil {
				total := decisionToDTO(*entry.Total)
				entryDTO.Total = &total
			}
			rowDTO.Entries = append(rowDTO.Entries, entryDTO)
		}
		response.Rows = append(response.Rows, rowDTO)
	}
	writeJSON(w, response)
}

type selectivityRequest struct {
	RelayIDs      []string `json:"relay_ids"`
	FaultCurrentA float64  `json:"fault_current_a"`
	FaultType     string   `json:"fault_type"`
	MinMarginS    float64  `json:"min_margin_s"`
}

type selectivityResultDTO struct {
	Relay     string   `json:"relay"`
	TripTimeS float64  `json:"trip_time_s"`
	MarginS   *float64 `json:"margin_s,omitempty"`
	Primary   bool     `json:"primary"`
	Selective bool     `json:"selective"`
}

type selectivityResponse struct {
	FaultCurrentA float64                `json:"fault_current_a"`
	FaultType     string                 `json:"fault_type"`
	MinMarginS    float64                `json:"min_margin_s"`
	Selective     bool                   `json:"selective"`
	Results       []selectivityResultDTO `json:"results"`
	Diagnostics   []diagnosticDTO        `json:"diagnostics,omitempty"`
}

func (h *Handler) handleSelectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req selectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	report, err := h.service.Selectivity(r.Context(), protectionapp.SelectivityCommand{
		RelayIDs:      req.RelayIDs,
		FaultCurrentA: req.FaultCurrentA,
		FaultType:     req.FaultType,
		MinMarginS:    req.MinMarginS,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	response := selectivityResponse{
		FaultCurrentA: report.FaultCurrentA,
		FaultType:     string(report.FaultType),
		MinMarginS:    report.MinMarginS,
		Selective:     report.Selective,
		Results:       make([]selectivityResultDTO, 0, len(report.Results)),
		Diagnostics:   diagnosticsDTO(report.Diagnostics),
	}
	for _, result := range report.Results {
		response.Results = append(response.Results, selectivityResultDTO{
			Relay:     result.Relay,
			TripTimeS: result.TripTime,
			MarginS:   result.Margin,
			Primary:   result.Primary,
			Selective: result.Selective,
		})
	}
	writeJSON(w, response)
}

type adequacyRequest struct {
	BreakerIDs []string `json:"breaker_ids"`
	FaultKA    float64  `json:"fault_ka"`
}

func (h *Handler) handleAdequacy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req adequacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	results, err := h.service.BreakerAdequacy(r.Context(), protectionapp.AdequacyCommand{
		BreakerIDs: req.BreakerIDs,
		FaultKA:    req.FaultKA,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, map[string]any{"results": results})
}

type diagnosticDTO struct {
	Code    string `json:"code"`
	Device  string `json:"device"`
	Message string `json:"message"`
}

func diagnosticsDTO(diagnostics []protection.Diagnostic) []diagnosticDTO {
	if len(diagnostics) == 0 {
		return nil
	}
	dtos := make([]diagnosticDTO, 0, len(diagnostics))
	for _, diag := range diagnostics {
		dtos = append(dtos, diagnosticDTO{
			Code:    string(diag.Code),
			Device:  diag.Device,
			Message: diag.Message,
		})
	}
	return dtos
}

func decisionToDTO(decision protection.TripDecision) decisionDTO {
	dto := decisionDTO{
		Operates:    decision.Operates,
		Diagnostics: diagnosticsDTO(decision.Diagnostics),
	}
	if decision.Operates {
		seconds := decision.TimeSeconds
		dto.TimeSeconds = &seconds
		dto.Element = string(decision.Element)
	}
	return dto
}

func respondError(w http.ResponseWriter, err error) {
	var unknownCurve *protection.UnknownCurveError
	switch {
	case errors.Is(err, protectionapp.ErrRelayNotFound),
		errors.Is(err, protectionapp.ErrBreakerNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, protection.ErrUnknownFaultType),
		errors.Is(err, protectionapp.ErrInvalidFaultCurrent),
		errors.Is(err, coordination.ErrNoRelays),
		errors.As(err, &unknownCurve):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
