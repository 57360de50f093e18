// Package events defines the protection study events published on the
// in-process bus.
package events

import (
	"time"

	protection "github.com/studikumbang/relay-coordination/internal/protection/domain"
)

// BreakerOpened is published when a trip evaluation opens a breaker.
type BreakerOpened struct {
	TenantID      string                 `json:"tenant_id"`
	BreakerID     string                 `json:"breaker_id"`
	RelayID       string                 `json:"relay_id"`
	FaultCurrentA float64                `json:"fault_current_a"`
	FaultType     protection.FaultType   `json:"fault_type"`
	Element       protection.ElementKind `json:"element"`
	ClearingTimeS float64                `json:"clearing_time_s"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// DiagnosticRaised is published once per diagnostic produced by a study.
type DiagnosticRaised struct {
	TenantID   string                    `json:"tenant_id"`
	Code       protection.DiagnosticCode `json:"code"`
	Device     string                    `json:"device"`
	Message    string                    `json:"message"`
	OccurredAt time.Time                 `json:"occurred_at"`
}
