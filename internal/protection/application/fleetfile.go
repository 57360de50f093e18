package application

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
)

// FleetFile is a YAML fleet definition for deployments that run without a
// database. Disabled flags default to false, so an omitted flag leaves the
// element enabled.
type FleetFile struct {
	TenantID string        `yaml:"tenant_id"`
	Sensors  []SensorFile  `yaml:"sensors"`
	Breakers []BreakerFile `yaml:"breakers"`
	Relays   []RelayFile   `yaml:"relays"`
}

// SensorFile is one CT definition. Zero ratings fall back to defaults.
type SensorFile struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	PrimaryRatingA   float64 `yaml:"primary_rating_a"`
	SecondaryRatingA float64 `yaml:"secondary_rating_a"`
	BurdenVA         float64 `yaml:"burden_va"`
	AccuracyClass    string  `yaml:"accuracy_class"`
}

// BreakerFile is one breaker definition. Zero ratings fall back to defaults.
type BreakerFile struct {
	ID                       string   `yaml:"id"`
	Name                     string   `yaml:"name"`
	Kind                     string   `yaml:"kind"`
	RatedVoltageKV           float64  `yaml:"rated_voltage_kv"`
	ContinuousCurrentA       float64  `yaml:"continuous_current_a"`
	InterruptingRatingSymKA  float64  `yaml:"interrupting_sym_ka"`
	InterruptingRatingAsymKA float64  `yaml:"interrupting_asym_ka"`
	MakingCapacityPeakKA     float64  `yaml:"making_capacity_peak_ka"`
	OperatingTimeCycles      float64  `yaml:"operating_time_cycles"`
	OperatingTimeMS          *float64 `yaml:"operating_time_ms"`
}

// ElementFile configures the time and instantaneous elements of one side.
// An omitted inst_delay_ms takes the engine default; an explicit 0 is kept.
type ElementFile struct {
	PickupA      *float64 `yaml:"pickup_a"`
	Curve        string   `yaml:"curve"`
	TMS          float64  `yaml:"tms"`
	Disabled     bool     `yaml:"disabled"`
	InstPickupA  *float64 `yaml:"inst_pickup_a"`
	InstDelayMS  *float64 `yaml:"inst_delay_ms"`
	InstDisabled bool     `yaml:"inst_disabled"`
}

// RelayFile is one relay definition referencing a sensor and optional breaker.
type RelayFile struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	Manufacturer string      `yaml:"manufacturer"`
	Model        string      `yaml:"model"`
	Sensor       string      `yaml:"sensor"`
	Breaker      string      `yaml:"breaker"`
	Phase        ElementFile `yaml:"phase"`
	Ground       ElementFile `yaml:"ground"`
}

// LoadFleetFile reads and parses a YAML fleet definition.
func LoadFleetFile(path string) (*FleetFile, error) {
	if path == "" {
		return nil, errors.New("protection: empty fleet file path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file FleetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.TenantID == "" {
		return nil, errors.New("protection: fleet file missing tenant_id")
	}
	if len(file.Relays) == 0 {
		return nil, errors.New("protection: fleet file defines no relays")
	}
	return &file, nil
}

// Seed writes the fleet definition into the settings repositories.
func (f *FleetFile) Seed(ctx context.Context, sensors masterdata.SensorRepository, breakers masterdata.BreakerRepository, relays masterdata.RelayRepository) error {
	for _, sensor := range f.Sensors {
		settings := masterdata.SensorSettings{
			ID:               sensor.ID,
			TenantID:         f.TenantID,
			Name:             nameOrID(sensor.Name, sensor.ID),
			PrimaryRatingA:   sensor.PrimaryRatingA,
			SecondaryRatingA: sensor.SecondaryRatingA,
			BurdenVA:         sensor.BurdenVA,
			AccuracyClass:    sensor.AccuracyClass,
		}
		if err := sensors.Save(ctx, &settings); err != nil {
			return fmt.Errorf("seed sensor %s: %w", sensor.ID, err)
		}
	}

	for _, breaker := range f.Breakers {
		settings := masterdata.BreakerSettings{
			ID:                       breaker.ID,
			TenantID:                 f.TenantID,
			Name:                     nameOrID(breaker.Name, breaker.ID),
			Kind:                     breaker.Kind,
			RatedVoltageKV:           breaker.RatedVoltageKV,
			ContinuousCurrentA:       breaker.ContinuousCurrentA,
			InterruptingRatingSymKA:  breaker.InterruptingRatingSymKA,
			InterruptingRatingAsymKA: breaker.InterruptingRatingAsymKA,
			MakingCapacityPeakKA:     breaker.MakingCapacityPeakKA,
			OperatingTimeCycles:      breaker.OperatingTimeCycles,
			OperatingTimeMS:          breaker.OperatingTimeMS,
		}
		if err := breakers.Save(ctx, &settings); err != nil {
			return fmt.Errorf("seed breaker %s: %w", breaker.ID, err)
		}
	}

	for _, relay := range f.Relays {
		settings := masterdata.RelaySettings{
			ID:           relay.ID,
			TenantID:     f.TenantID,
			Name:         nameOrID(relay.Name, relay.ID),
			Manufacturer: relay.Manufacturer,
			Model:        relay.Model,
			SensorID:     relay.Sensor,
			BreakerID:    relay.Breaker,

			PhasePickupA:     relay.Phase.PickupA,
			PhaseCurve:       relay.Phase.Curve,
			PhaseTMS:         relay.Phase.TMS,
			PhaseEnabled:     !relay.Phase.Disabled,
			PhaseInstPickupA: relay.Phase.InstPickupA,
			PhaseInstDelayMS: relay.Phase.InstDelayMS,
			PhaseInstEnabled: !relay.Phase.InstDisabled,

			GroundPickupA:     relay.Ground.PickupA,
			GroundCurve:       relay.Ground.Curve,
			GroundTMS:         relay.Ground.TMS,
			GroundEnabled:     !relay.Ground.Disabled,
			GroundInstPickupA: relay.Ground.InstPickupA,
			GroundInstDelayMS: relay.Ground.InstDelayMS,
			GroundInstEnabled: !relay.Ground.InstDisabled,
		}
		if err := relays.Save(ctx, &settings); err != nil {
			return fmt.Errorf("seed relay %s: %w", relay.ID, err)
		}
	}
	return nil
}

func nameOrID(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
