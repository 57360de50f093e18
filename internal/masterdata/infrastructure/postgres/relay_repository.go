package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
)

const defaultRelaysTable = "protection_relays"

// RelayRepository is a Postgres implementation for relay settings.
type RelayRepository struct {
	db    DBTX
	table string
}

// NewRelayRepository constructs a repository.
func NewRelayRepository(db DBTX, opts ...RelayOption) *RelayRepository {
	repo := &RelayRepository{db: db, table: defaultRelaysTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RelayOption configures the repository.
type RelayOption func(*RelayRepository)

// WithRelayTable overrides the default table name.
func WithRelayTable(table string) RelayOption {
	return func(repo *RelayRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const relayColumns = `id, tenant_id, name, manufacturer, model, sensor_id, breaker_id,
phase_pickup_a, phase_curve, phase_tms, phase_enabled,
phase_inst_pickup_a, phase_inst_delay_ms, phase_inst_enabled,
ground_pickup_a, ground_curve, ground_tms, ground_enabled,
ground_inst_pickup_a, ground_inst_delay_ms, ground_inst_enabled,
created_at, updated_at`

func scanRelay(scan func(dest ...any) error) (*masterdata.RelaySettings, error) {
	var settings masterdata.RelaySettings
	var breakerID sql.NullString
	var phasePickup, phaseInstPickup, groundPickup, groundInstPickup sql.NullFloat64
	if err := scan(
		&settings.ID,
		&settings.TenantID,
		&settings.Name,
		&settings.Manufacturer,
		&settings.Model,
		&settings.SensorID,
		&breakerID,
		&phasePickup,
		&settings.PhaseCurve,
		&settings.PhaseTMS,
		&settings.PhaseEnabled,
		&phaseInstPickup,
		&settings.PhaseInstDelayMS,
		&settings.PhaseInstEnabled,
		&groundPickup,
		&settings.GroundCurve,
		&settings.GroundTMS,
		&settings.GroundEnabled,
		&groundInstPickup,
		&settings.GroundInstDelayMS,
		&settings.GroundInstEnabled,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	); err != nil {
		return nil, err
	}
	settings.BreakerID = breakerID.String
	settings.PhasePickupA = nullableFloat(phasePickup)
	settings.PhaseInstPickupA = nullableFloat(phaseInstPickup)
	settings.GroundPickupA = nullableFloat(groundPickup)
	settings.GroundInstPickupA = nullableFloat(groundInstPickup)
	settings.CreatedAt = settings.CreatedAt.UTC()
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

func nullableFloat(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func floatArg(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

// Get loads relay settings by id within a tenant.
func (r *RelayRepository) Get(ctx context.Context, tenantID, id string) (*masterdata.RelaySettings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("relay repo: nil db")
	}
	if tenantID == "" || id == "" {
		return nil, errors.New("relay repo: empty tenant or id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE tenant_id = $1 AND id = $2
LIMIT 1`, relayColumns, r.table)

	settings, err := scanRelay(r.db.QueryRowContext(ctx, query, tenantID, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return settings, nil
}

// ListByTenant loads all relay settings for a tenant.
func (r *RelayRepository) ListByTenant(ctx context.Context, tenantID string) ([]masterdata.RelaySettings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("relay repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("relay repo: empty tenant id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE tenant_id = $1
ORDER BY id ASC`, relayColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.RelaySettings
	for rows.Next() {
		settings, err := scanRelay(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *settings)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts relay settings.
func (r *RelayRepository) Save(ctx context.Context, settings *masterdata.RelaySettings) error {
	if r == nil || r.db == nil {
		return errors.New("relay repo: nil db")
	}
	if settings == nil {
		return errors.New("relay repo: nil settings")
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	var breakerID sql.NullString
	if settings.BreakerID != "" {
		breakerID = sql.NullString{String: settings.BreakerID, Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	name,
	manufacturer,
	model,
	sensor_id,
	breaker_id,
	phase_pickup_a,
	phase_curve,
	phase_tms,
	phase_enabled,
	phase_inst_pickup_a,
	phase_inst_delay_ms,
	phase_inst_enabled,
	ground_pickup_a,
	ground_curve,
	ground_tms,
	ground_enabled,
	ground_inst_pickup_a,
	ground_inst_delay_ms,
	ground_inst_enabled
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
)
ON CONFLICT (id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	name = EXCLUDED.name,
	manufacturer = EXCLUDED.manufacturer,
	model = EXCLUDED.model,
	sensor_id = EXCLUDED.sensor_id,
	breaker_id = EXCLUDED.breaker_id,
	phase_pickup_a = EXCLUDED.phase_pickup_a,
	phase_curve = EXCLUDED.phase_curve,
	phase_tms = EXCLUDED.phase_tms,
	phase_enabled = EXCLUDED.phase_enabled,
	phase_inst_pickup_a = EXCLUDED.phase_inst_pickup_a,
	phase_inst_delay_ms = EXCLUDED.phase_inst_delay_ms,
	phase_inst_enabled = EXCLUDED.phase_inst_enabled,
	ground_pickup_a = EXCLUDED.ground_pickup_a,
	ground_curve = EXCLUDED.ground_curve,
	ground_tms = EXCLUDED.ground_tms,
	ground_enabled = EXCLUDED.ground_enabled,
	ground_inst_pickup_a = EXCLUDED.ground_inst_pickup_a,
	ground_inst_delay_ms = EXCLUDED.ground_inst_delay_ms,
	ground_inst_enabled = EXCLUDED.ground_inst_enabled,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		settings.ID,
		settings.TenantID,
		settings.Name,
		settings.Manufacturer,
		settings.Model,
		settings.SensorID,
		breakerID,
		floatArg(settings.PhasePickupA),
		settings.PhaseCurve,
		settings.PhaseTMS,
		settings.PhaseEnabled,
		floatArg(settings.PhaseInstPickupA),
		settings.PhaseInstDelayMS,
		settings.PhaseInstEnabled,
		floatArg(settings.GroundPickupA),
		settings.GroundCurve,
		settings.GroundTMS,
		settings.GroundEnabled,
		floatArg(settings.GroundInstPickupA),
		settings.GroundInstDelayMS,
		settings.GroundInstEnabled,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	return nil
}

// Delete removes relay settings within a tenant.
func (r *RelayRepository) Delete(ctx context.Context, tenantID, id string) error {
	if r == nil || r.db == nil {
		return errors.New("relay repo: nil db")
	}
	if tenantID == "" || id == "" {
		return errors.New("relay repo: empty tenant or id")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND id = $2`, r.table)
	_, err := r.db.ExecContext(ctx, query, tenantID, id)
	return err
}
