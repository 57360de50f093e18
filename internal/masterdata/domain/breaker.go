package masterdata

import (
	"context"
	"errors"
	"time"
)

// BreakerSettings is the persisted configuration of a circuit breaker.
// OperatingTimeMS, when non-nil, overrides the cycle count.
type BreakerSettings struct {
	ID                       string
	TenantID                 string
	Name                     string
	Kind                     string
	RatedVoltageKV           float64
	ContinuousCurrentA       float64
	InterruptingRatingSymKA  float64
	InterruptingRatingAsymKA float64
	MakingCapacityPeakKA     float64
	OperatingTimeCycles      float64
	OperatingTimeMS          *float64
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Validate checks breaker settings invariants.
func (b BreakerSettings) Validate() error {
	if b.ID == "" {
		return errors.New("breaker: empty id")
	}
	if b.TenantID == "" {
		return errors.New("breaker: empty tenant id")
	}
	if b.Name == "" {
		return errors.New("breaker: empty name")
	}
	if b.InterruptingRatingSymKA < 0 || b.InterruptingRatingAsymKA < 0 {
		return errors.New("breaker: negative interrupting rating")
	}
	if b.OperatingTimeMS != nil && *b.OperatingTimeMS < 0 {
		return errors.New("breaker: negative operating time")
	}
	return nil
}

// BreakerRepository manages breaker settings persistence.
type BreakerRepository interface {
	Get(ctx context.Context, tenantID, id string) (*BreakerSettings, error)
	ListByTenant(ctx context.Context, tenantID string) ([]BreakerSettings, error)
	Save(ctx context.Context, settings *BreakerSettings) error
	Delete(ctx context.Context, tenantID, id string) error
}
