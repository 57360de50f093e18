package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
)

const defaultBreakersTable = "circuit_breakers"

// BreakerRepository is a Postgres implementation for breaker settings.
type BreakerRepository struct {
	db    DBTX
	table string
}

// NewBreakerRepository constructs a repository.
func NewBreakerRepository(db DBTX, opts ...BreakerOption) *BreakerRepository {
	repo := &BreakerRepository{db: db, table: defaultBreakersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// BreakerOption configures the repository.
type BreakerOption func(*BreakerRepository)

// WithBreakerTable overrides the default table name.
func WithBreakerTable(table string) BreakerOption {
	return func(repo *BreakerRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const breakerColumns = `id, tenant_id, name, kind, rated_voltage_kv, continuous_current_a,
interrupting_rating_sym_ka, interrupting_rating_asym_ka, making_capacity_peak_ka,
operating_time_cycles, operating_time_ms, created_at, updated_at`

func scanBreaker(scan func(dest ...any) error) (*masterdata.BreakerSettings, error) {
	var settings masterdata.BreakerSettings
	var operatingMS sql.NullFloat64
	if err := scan(
		&settings.ID,
		&settings.TenantID,
		&settings.Name,
		&settings.Kind,
		&settings.RatedVoltageKV,
		&settings.ContinuousCurrentA,
		&settings.InterruptingRatingSymKA,
		&settings.InterruptingRatingAsymKA,
		&settings.MakingCapacityPeakKA,
		&settings.OperatingTimeCycles,
		&operatingMS,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if operatingMS.Valid {
		value := operatingMS.Float64
		settings.OperatingTimeMS = &value
	}
	settings.CreatedAt = settings.CreatedAt.UTC()
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

// Get loads breaker settings by id within a tenant.
func (r *BreakerRepository) Get(ctx context.Context, tenantID, id string) (*masterdata.BreakerSettings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("breaker repo: nil db")
	}
	if tenantID == "" || id == "" {
		return nil, errors.New("breaker repo: empty tenant or id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE tenant_id = $1 AND id = $2
LIMIT 1`, breakerColumns, r.table)

	settings, err := scanBreaker(r.db.QueryRowContext(ctx, query, tenantID, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return settings, nil
}

// ListByTenant loads all breaker settings for a tenant.
func (r *BreakerRepository) ListByTenant(ctx context.Context, tenantID string) ([]masterdata.BreakerSettings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("breaker repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("breaker repo: empty tenant id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE tenant_id = $1
ORDER BY id ASC`, breakerColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.BreakerSettings
	for rows.Next() {
		settings, err := scanBreaker(rows.Scan)
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

// Save upserts breaker settings.
func (r *BreakerRepository) Save(ctx context.Context, settings *masterdata.BreakerSettings) error {
	if r == nil || r.db == nil {
		return errors.New("breaker repo: nil db")
	}
	if settings == nil {
		return errors.New("breaker repo: nil settings")
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	var operatingMS sql.NullFloat64
	if settings.OperatingTimeMS != nil {
		operatingMS = sql.NullFloat64{Float64: *settings.OperatingTimeMS, Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	name,
	kind,
	rated_voltage_kv,
	continuous_current_a,
	interrupting_rating_sym_ka,
	interrupting_rating_asym_ka,
	making_capacity_peak_ka,
	operating_time_cycles,
	operating_time_ms
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	name = EXCLUDED.name,
	kind = EXCLUDED.kind,
	rated_voltage_kv = EXCLUDED.rated_voltage_kv,
	continuous_current_a = EXCLUDED.continuous_current_a,
	interrupting_rating_sym_ka = EXCLUDED.interrupting_rating_sym_ka,
	interrupting_rating_asym_ka = EXCLUDED.interrupting_rating_asym_ka,
	making_capacity_peak_ka = EXCLUDED.making_capacity_peak_ka,
	operating_time_cycles = EXCLUDED.operating_time_cycles,
	operating_time_ms = EXCLUDED.operating_time_ms,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		settings.ID,
		settings.TenantID,
		settings.Name,
		settings.Kind,
		settings.RatedVoltageKV,
		settings.ContinuousCurrentA,
		settings.InterruptingRatingSymKA,
		settings.InterruptingRatingAsymKA,
		settings.MakingCapacityPeakKA,
		settings.OperatingTimeCycles,
		operatingMS,
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

// Delete removes breaker settings within a tenant.
func (r *BreakerRepository) Delete(ctx context.Context, tenantID, id string) error {
	if r == nil || r.db == nil {
		return errors.New("breaker repo: nil db")
	}
	if tenantID == "" || id == "" {
		return errors.New("breaker repo: empty tenant or id")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND id = $2`, r.table)
	_, err := r.db.ExecContext(ctx, query, tenantID, id)
	return err
}
