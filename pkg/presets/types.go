package presets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WeightPreset is a named, reusable weight set.
type WeightPreset struct {
	// ID is the unique preset identifier, assigned at creation.
	ID string `json:"id"`

	// Name is the human-facing label. Unique across the store.
	Name string `json:"name"`

	// Description explains what the preset is for.
	Description string `json:"description,omitempty"`

	// Weights maps key IDs to configured weights.
	Weights map[string]int `json:"weights"`

	// CreatedBy identifies who created the preset.
	CreatedBy string `json:"created_by,omitempty"`

	// Tags are free-form labels for grouping and search.
	Tags []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWeightPreset builds a preset with a fresh ID and timestamps. The
// weights map is copied.
func NewWeightPreset(name, description string, weights map[string]int, createdBy string, tags []string) *WeightPreset {
	copied := make(map[string]int, len(weights))
	for id, w := range weights {
		copied[id] = w
	}
	now := time.Now()
	return &WeightPreset{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Weights:     copied,
		CreatedBy:   createdBy,
		Tags:        append([]string(nil), tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the preset is storable.
func (p *WeightPreset) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("preset id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("preset name is required")
	}
	if len(p.Weights) == 0 {
		return fmt.Errorf("preset needs at least one weight")
	}
	for keyID, w := range p.Weights {
		if keyID == "" {
			return fmt.Errorf("preset weight with empty key id")
		}
		if w < 0 {
			return fmt.Errorf("preset weight for %s is negative", keyID)
		}
	}
	return nil
}

// Store persists weight presets.
type Store interface {
	// Save inserts or updates a preset. Updates refresh UpdatedAt.
	Save(ctx context.Context, preset *WeightPreset) error

	// Get returns a preset by ID, or nil when it does not exist.
	Get(ctx context.Context, id string) (*WeightPreset, error)

	// GetByName returns a preset by name, or nil when it does not exist.
	GetByName(ctx context.Context, name string) (*WeightPreset, error)

	// List returns all presets ordered by name.
	List(ctx context.Context) ([]*WeightPreset, error)

	// Delete removes a preset by ID.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

// NotFoundError reports a preset lookup miss on mutation.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("preset not found: %s", e.ID)
}

// DuplicateNameError reports a name collision between two presets.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("preset name already in use: %s", e.Name)
}
