// Package memory provides in-memory settings repositories for YAML-backed
// deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
)

// SensorRepository is an in-memory SensorRepository implementation.
type SensorRepository struct {
	mu   sync.RWMutex
	data map[string]masterdata.SensorSettings
}

// NewSensorRepository constructs a repository.
func NewSensorRepository() *SensorRepository {
	return &SensorRepository{data: make(map[string]masterdata.SensorSettings)}
}

// Get loads sensor settings by id within a tenant.
func (r *SensorRepository) Get(ctx context.Context, tenantID, id string) (*masterdata.SensorSettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	settings, ok := r.data[id]
	if !ok || settings.TenantID != tenantID {
		return nil, nil
	}
	return &settings, nil
}

// ListByTenant loads all sensor settings for a tenant, ordered by id.
func (r *SensorRepository) ListByTenant(ctx context.Context, tenantID string) ([]masterdata.SensorSettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []masterdata.SensorSettings
	for _, settings := range r.data {
		if settings.TenantID == tenantID {
			result = append(result, settings)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Save upserts sensor settings.
func (r *SensorRepository) Save(ctx context.Context, settings *masterdata.SensorSettings) error {
	_ = ctx
	if err := settings.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	r.data[settings.ID] = *settings
	return nil
}

// Delete removes sensor settings within a tenant.
func (r *SensorRepository) Delete(ctx context.Context, tenantID, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings, ok := r.data[id]; ok && settings.TenantID == tenantID {
		delete(r.data, id)
	}
	return nil
}

// BreakerRepository is an in-memory BreakerRepository implementation.
type BreakerRepository struct {
	mu   sync.RWMutex
	data map[string]masterdata.BreakerSettings
}

// NewBreakerRepository constructs a repository.
func NewBreakerRepository() *BreakerRepository {
	return &BreakerRepository{data: make(map[string]masterdata.BreakerSettings)}
}

// Get loads breaker settings by id within a tenant.
func (r *BreakerRepository) Get(ctx context.Context, tenantID, id string) (*masterdata.BreakerSettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	settings, ok := r.data[id]
	if !ok || settings.TenantID != tenantID {
		return nil, nil
	}
	return &settings, nil
}

// ListByTenant loads all breaker settings for a tenant, ordered by id.
func (r *BreakerRepository) ListByTenant(ctx context.Context, tenantID string) ([]masterdata.BreakerSettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []masterdata.BreakerSettings
	for _, settings := range r.data {
		if settings.TenantID == tenantID {
			result = append(result, settings)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Save upserts breaker settings.
func (r *BreakerRepository) Save(ctx context.Context, settings *masterdata.BreakerSettings) error {
	_ = ctx
	if err := settings.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	r.data[settings.ID] = *settings
	return nil
}

// Delete removes breaker settings within a tenant.
func (r *BreakerRepository) Delete(ctx context.Context, tenantID, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings, ok := r.data[id]; ok && settings.TenantID == tenantID {
		delete(r.data, id)
	}
	return nil
}

// RelayRepository is an in-memory RelayRepository implementation.
type RelayRepository struct {
	mu   sync.RWMutex
	data map[string]masterdata.RelaySettings
}

// NewRelayRepository constructs a repository.
func NewRelayRepository() *RelayRepository {
	return &RelayRepository{data: make(map[string]masterdata.RelaySettings)}
}

// Get loads relay settings by id within a tenant.
func (r *RelayRepository) Get(ctx context.Context, tenantID, id string) (*masterdata.RelaySettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	settings, ok := r.data[id]
	if !ok || settings.TenantID != tenantID {
		return nil, nil
	}
	return &settings, nil
}

// ListByTenant loads all relay settings for a tenant, ordered by id.
func (r *RelayRepository) ListByTenant(ctx context.Context, tenantID string) ([]masterdata.RelaySettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []masterdata.RelaySettings
	for _, settings := range r.data {
		if settings.TenantID == tenantID {
			result = append(result, settings)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Save upserts relay settings.
func (r *RelayRepository) Save(ctx context.Context, settings *masterdata.RelaySettings) error {
	_ = ctx
	if err := settings.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	r.data[settings.ID] = *settings
	return nil
}

// Delete removes relay settings within a tenant.
func (r *RelayRepository) Delete(ctx context.Context, tenantID, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings, ok := r.data[id]; ok && settings.TenantID == tenantID {
		delete(r.data, id)
	}
	return nil
}
