package masterdata

import (
	"context"
	"errors"
	"time"
)

// SensorSettings is the persisted configuration of a current transformer.
type SensorSettings struct {
	ID               string
	TenantID         string
	Name             string
	PrimaryRatingA   float64
	SecondaryRatingA float64
	BurdenVA         float64
	AccuracyClass    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks sensor settings invariants.
func (s SensorSettings) Validate() error {
	if s.ID == "" {
		return errors.New("sensor: empty id")
	}
	if s.TenantID == "" {
		return errors.New("sensor: empty tenant id")
	}
	if s.Name == "" {
		return errors.New("sensor: empty name")
	}
	if s.PrimaryRatingA < 0 || s.SecondaryRatingA < 0 {
		return errors.New("sensor: negative rating")
	}
	return nil
}

// SensorRepository manages sensor settings persistence.
type SensorRepository interface {
	Get(ctx context.Context, tenantID, id string) (*SensorSettings, error)
	ListByTenant(ctx context.Context, tenantID string) ([]SensorSettings, error)
	Save(ctx context.Context, settings *SensorSettings) error
	Delete(ctx context.Context, tenantID, id string) error
}
