package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Strob0t/ActionForge/internal/adapter/litellm"
	"github.com/Strob0t/ActionForge/internal/adapter/ws"
	"github.com/Strob0t/ActionForge/internal/port/broadcast"
)

// ModelSource lists the models served by the generation backend.
type ModelSource interface {
	ListModels(ctx context.Context) ([]litellm.Model, error)
}

// ModelRegistry caches the backend's model list, periodically refreshed,
// and tracks whether the configured generation model is among them.
type ModelRegistry struct {
	mu          sync.RWMutex
	models      []litellm.Model
	lastRefresh time.Time
	interval    time.Duration
	source      ModelSource
	hub         broadcast.Broadcaster
	configured  string
	now         func() time.Time
}

// NewModelRegistry creates a registry for the configured model name.
// Pass interval <= 0 to disable periodic polling (refresh on demand only).
func NewModelRegistry(source ModelSource, hub broadcast.Broadcaster, configured string, interval time.Duration) *ModelRegistry {
	return &ModelRegistry{
		source:     source,
		hub:        hub,
		configured: configured,
		interval:   interval,
		now:        time.Now,
	}
}

// Start performs a synchronous first refresh, then refreshes on the
// configured interval until ctx is cancelled.
func (r *ModelRegistry) Start(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		slog.Warn("model registry: initial refresh failed", "error", err)
	}

	if r.interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					slog.Warn("model registry: periodic refresh failed", "error", err)
				}
			}
		}
	}()
}

// Refresh reloads the model list and broadcasts models.updated when the set
// of model names changed.
func (r *ModelRegistry) Refresh(ctx context.Context) error {
	models, err := r.source.ListModels(ctx)
	if err != nil {
		return err
	}
	if models == nil {
		models = []litellm.Model{}
	}
	names := modelNames(models)

	r.mu.Lock()
	changed := r.lastRefresh.IsZero() || !slices.Equal(modelNames(r.models), names)
	r.models = models
	r.lastRefresh = r.now()
	r.mu.Unlock()

	if !changed {
		return nil
	}

	served := slices.Contains(names, r.configured)
	if !served {
		slog.Warn("model registry: configured model not served by backend", "model", r.configured, "available", len(names))
	}
	if r.hub != nil {
		r.hub.BroadcastEvent(ctx, ws.EventModelsUpdated, ws.ModelsUpdatedEvent{
			Models:          names,
			Configured:      r.configured,
			ConfiguredValid: served,
		})
	}
	return nil
}

// ListModels returns the cached models, loading them on first use.
func (r *ModelRegistry) ListModels(ctx context.Context) ([]litellm.Model, error) {
	r.mu.RLock()
	loaded := !r.lastRefresh.IsZero()
	r.mu.RUnlock()

	if !loaded {
		if err := r.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.models), nil
}

// IsServed reports whether name was in the last refreshed model list.
func (r *ModelRegistry) IsServed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(modelNames(r.models), name)
}

// LastRefresh returns when the registry was last refreshed.
func (r *ModelRegistry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh
}

func modelNames(models []litellm.Model) []string {
	names := make([]string, len(models))
	for i := range models {
		names[i] = models[i].ModelName
	}
	slices.Sort(names)
	return names
}
