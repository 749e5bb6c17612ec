// Package models provides listing and resolution over the marketplace model catalog.
package models

import (
	"context"
	"sync"

	virtus "github.com/virtus-ai/virtus-go"
)

// Manager fetches and caches the marketplace model catalog.
type Manager struct {
	client *virtus.Client

	mu     sync.Mutex
	cached []virtus.Model
}

// NewManager creates a Manager backed by client.
func NewManager(client *virtus.Client) *Manager {
	return &Manager{client: client}
}

// List returns the available models, fetching from the API if not cached.
func (m *Manager) List(ctx context.Context) ([]virtus.Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		return m.cached, nil
	}

	models, err := m.client.ListModels(ctx, "")
	if err != nil {
		return nil, err
	}
	m.cached = models
	return m.cached, nil
}

// Invalidate clears the cached model list.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

// Find resolves a model by id or slug. It returns nil when nothing matches.
func (m *Manager) Find(ctx context.Context, ref string) (*virtus.Model, error) {
	models, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].ID == ref || models[i].Slug == ref {
			return &models[i], nil
		}
	}
	return nil, nil
}

// Has reports whether a model with the given id or slug exists.
func (m *Manager) Has(ctx context.Context, ref string) (bool, error) {
	model, err := m.Find(ctx, ref)
	if err != nil {
		return false, err
	}
	return model != nil, nil
}
