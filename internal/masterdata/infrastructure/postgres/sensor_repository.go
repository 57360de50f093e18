package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
)

const defaultSensorsTable = "current_transformers"

// SensorRepository is a Postgres implementation for CT settings.
type SensorRepository struct {
	db    DBTX
	table string
}

// NewSensorRepository constructs a repository.
func NewSensorRepository(db DBTX, opts ...SensorOption) *SensorRepository {
	repo := &SensorRepository{db: db, table: defaultSensorsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SensorOption configures the repository.
type SensorOption func(*SensorRepository)

// WithSensorTable overrides the default table name.
func WithSensorTable(table string) SensorOption {
	return func(repo *SensorRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads sensor settings by id within a tenant.
func (r *SensorRepository) Get(ctx context.Context, tenantID, id string) (*masterdata.SensorSettings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	if tenantID == "" || id == "" {
		return nil, errors.New("sensor repo: empty tenant or id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, name, primary_rating_a, secondary_rating_a, burden_va, accuracy_class, created_at, updated_at
FROM %s
WHERE tenant_id = $1 AND id = $2
LIMIT 1`, r.table)

	var settings masterdata.SensorSettings
	if err := r.db.QueryRowContext(ctx, query, tenantID, id).Scan(
		&settings.ID,
		&settings.TenantID,
		&settings.Name,
		&settings.PrimaryRatingA,
		&settings.SecondaryRatingA,
		&settings.BurdenVA,
		&settings.AccuracyClass,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	settings.CreatedAt = settings.CreatedAt.UTC()
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

// ListByTenant loads all sensor settings for a tenant.
func (r *SensorRepository) ListByTenant(ctx context.Context, tenantID string) ([]masterdata.SensorSettings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("sensor repo: empty tenant id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, name, primary_rating_a, secondary_rating_a, burden_va, accuracy_class, created_at, updated_at
FROM %s
WHERE tenant_id = $1
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.SensorSettings
	for rows.Next() {
		var settings masterdata.SensorSettings
		if err := rows.Scan(
			&settings.ID,
			&settings.TenantID,
			&settings.Name,
			&settings.PrimaryRatingA,
			&settings.SecondaryRatingA,
			&settings.BurdenVA,
			&settings.AccuracyClass,
			&settings.CreatedAt,
			&settings.UpdatedAt,
		); err != nil {
			return nil, err
		}
		settings.CreatedAt = settings.CreatedAt.UTC()
		settings.UpdatedAt = settings.UpdatedAt.UTC()
		result = append(result, settings)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts sensor settings.
func (r *SensorRepository) Save(ctx context.Context, settings *masterdata.SensorSettings) error {
	if r == nil || r.db == nil {
		return errors.New("sensor repo: nil db")
	}
	if settings == nil {
		return errors.New("sensor repo: nil settings")
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	name,
	primary_rating_a,
	secondary_rating_a,
	burden_va,
	accuracy_class
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	name = EXCLUDED.name,
	primary_rating_a = EXCLUDED.primary_rating_a,
	secondary_rating_a = EXCLUDED.secondary_rating_a,
	burden_va = EXCLUDED.burden_va,
	accuracy_class = EXCLUDED.accuracy_class,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		settings.ID,
		settings.TenantID,
		settings.Name,
		settings.PrimaryRatingA,
		settings.SecondaryRatingA,
		settings.BurdenVA,
		settings.AccuracyClass,
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

// Delete removes sensor settings within a tenant.
func (r *SensorRepository) Delete(ctx context.Context, tenantID, id string) error {
	if r == nil || r.db == nil {
		return errors.New("sensor repo: nil db")
	}
	if tenantID == "" || id == "" {
		return errors.New("sensor repo: empty tenant or id")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND id = $2`, r.table)
	_, err := r.db.ExecContext(ctx, query, tenantID, id)
	return err
}
