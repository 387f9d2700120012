package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/port/cache"
	"github.com/Strob0t/ActionForge/internal/port/database"
)

const directoryCacheKey = "directory.v1"

// CachedDirectory serves the entity directory from a cache in front of an
// EntityStore. Writes go to the store and invalidate the cached copy.
type CachedDirectory struct {
	store database.EntityStore
	cache cache.Cache
	ttl   time.Duration
}

var _ database.EntityStore = (*CachedDirectory)(nil)

// NewCachedDirectory wraps store with c. A nil cache disables caching.
func NewCachedDirectory(store database.EntityStore, c cache.Cache, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{store: store, cache: c, ttl: ttl}
}

// LoadDirectory returns the cached directory or loads and caches it.
// Cache failures fall through to the store.
func (d *CachedDirectory) LoadDirectory(ctx context.Context) (*interaction.Directory, error) {
	if d.cache != nil {
		data, ok, err := d.cache.Get(ctx, directoryCacheKey)
		if err != nil {
			slog.WarnContext(ctx, "directory cache get failed", "error", err)
		}
		if ok {
			var dir interaction.Directory
			if err := json.Unmarshal(data, &dir); err == nil {
				return &dir, nil
			}
			slog.WarnContext(ctx, "discarding undecodable cached directory")
		}
	}

	dir, err := d.store.LoadDirectory(ctx)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if data, err := json.Marshal(dir); err == nil {
			if err := d.cache.Set(ctx, directoryCacheKey, data, d.ttl); err != nil {
				slog.WarnContext(ctx, "directory cache set failed", "error", err)
			}
		}
	}
	return dir, nil
}

// UpsertEntity writes through to the store.
func (d *CachedDirectory) UpsertEntity(ctx context.Context, kind database.EntityKind, e *interaction.EntityRef) error {
	if err := d.store.UpsertEntity(ctx, kind, e); err != nil {
		return err
	}
	d.invalidate(ctx)
	return nil
}

// DeleteEntity deletes from the store.
func (d *CachedDirectory) DeleteEntity(ctx context.Context, kind database.EntityKind, id string) error {
	if err := d.store.DeleteEntity(ctx, kind, id); err != nil {
		return err
	}
	d.invalidate(ctx)
	return nil
}

func (d *CachedDirectory) invalidate(ctx context.Context) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, directoryCacheKey); err != nil {
		slog.WarnContext(ctx, "directory cache invalidate failed", "error", err)
	}
}
