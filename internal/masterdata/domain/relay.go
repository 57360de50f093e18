package masterdata

import (
	"context"
	"errors"
	"time"
)

// RelaySettings is the persisted configuration of a protection relay and its
// four elements. Nil pickups leave the element unarmed; a nil instantaneous
// delay takes the engine default, an explicit zero means no added delay.
type RelaySettings struct {
	ID           string
	TenantID     string
	Name         string
	Manufacturer string
	Model        string
	SensorID     string
	BreakerID    string // optional

	PhasePickupA     *float64
	PhaseCurve       string
	PhaseTMS         float64
	PhaseEnabled     bool
	PhaseInstPickupA *float64
	PhaseInstDelayMS *float64
	PhaseInstEnabled bool

	GroundPickupA     *float64
	GroundCurve       string
	GroundTMS         float64
	GroundEnabled     bool
	GroundInstPickupA *float64
	GroundInstDelayMS *float64
	GroundInstEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks relay settings invariants. Curve identifiers are not
// validated here; an unknown curve only surfaces when the element first
// evaluates.
func (r RelaySettings) Validate() error {
	if r.ID == "" {
		return errors.New("relay: empty id")
	}
	if r.TenantID == "" {
		return errors.New("relay: empty tenant id")
	}
	if r.Name == "" {
		return errors.New("relay: empty name")
	}
	if r.SensorID == "" {
		return errors.New("relay: sensor id required")
	}
	for _, pickup := range []*float64{r.PhasePickupA, r.PhaseInstPickupA, r.GroundPickupA, r.GroundInstPickupA} {
		if pickup != nil && *pickup <= 0 {
			return errors.New("relay: pickup must be positive")
		}
	}
	if r.PhaseTMS < 0 || r.GroundTMS < 0 {
		return errors.New("relay: negative time multiplier")
	}
	for _, delay := range []*float64{r.PhaseInstDelayMS, r.GroundInstDelayMS} {
		if delay != nil && *delay < 0 {
			return errors.New("relay: negative instantaneous delay")
		}
	}
	return nil
}

// RelayRepository manages relay settings persistence.
type RelayRepository interface {
	Get(ctx context.Context, tenantID, id string) (*RelaySettings, error)
	ListByTenant(ctx context.Context, tenantID string) ([]RelaySettings, error)
	Save(ctx context.Context, settings *RelaySettings) error
	Delete(ctx context.Context, tenantID, id string) error
}
