package presets

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and ephemeral setups.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*WeightPreset
	nameIdx map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*WeightPreset),
		nameIdx: make(map[string]string),
	}
}

// Save inserts or updates a preset.
func (s *MemoryStore) Save(ctx context.Context, preset *WeightPreset) error {
	if err := preset.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.nameIdx[preset.Name]; ok && owner != preset.ID {
		return &DuplicateNameError{Name: preset.Name}
	}

	stored := clonePreset(preset)
	if existing, ok := s.byID[preset.ID]; ok {
		delete(s.nameIdx, existing.Name)
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = time.Now()
	}
	s.byID[stored.ID] = stored
	s.nameIdx[stored.Name] = stored.ID
	return nil
}

// Get returns a preset by ID, or nil when absent.
func (s *MemoryStore) Get(ctx context.Context, id string) (*WeightPreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	preset, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return clonePreset(preset), nil
}

// GetByName returns a preset by name, or nil when absent.
func (s *MemoryStore) GetByName(ctx context.Context, name string) (*WeightPreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.nameIdx[name]
	if !ok {
		return nil, nil
	}
	return clonePreset(s.byID[id]), nil
}

// List returns all presets ordered by name.
func (s *MemoryStore) List(ctx context.Context) ([]*WeightPreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	presets := make([]*WeightPreset, 0, len(s.byID))
	for _, preset := range s.byID {
		presets = append(presets, clonePreset(preset))
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets, nil
}

// Delete removes a preset by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	preset, ok := s.byID[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	delete(s.nameIdx, preset.Name)
	delete(s.byID, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func clonePreset(p *WeightPreset) *WeightPreset {
	c := *p
	c.Weights = make(map[string]int, len(p.Weights))
	for id, w := range p.Weights {
		c.Weights[id] = w
	}
	c.Tags = append([]string(nil), p.Tags...)
	return &c
}
