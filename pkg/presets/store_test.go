package presets

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// storeUnderTest runs the shared Store contract against each backend.
func storeUnderTest(t *testing.T, name string) Store {
	t.Helper()
	switch name {
	case "memory":
		return NewMemoryStore()
	case "sqlite":
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "presets.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	default:
		t.Fatalf("unknown backend %q", name)
		return nil
	}
}

func TestStore_Contract(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			store := storeUnderTest(t, backend)
			ctx := context.Background()

			preset := NewWeightPreset("canary", "10% to key-b", map[string]int{"key-a": 900, "key-b": 100}, "alice", []string{"rollout"})
			if err := store.Save(ctx, preset); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			t.Run("get roundtrip", func(t *testing.T) {
				got, err := store.Get(ctx, preset.ID)
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if got == nil {
					t.Fatal("Get() = nil for saved preset")
				}
				if got.Name != "canary" || got.Weights["key-a"] != 900 || got.Weights["key-b"] != 100 {
					t.Errorf("roundtrip mismatch: %+v", got)
				}
				if len(got.Tags) != 1 || got.Tags[0] != "rollout" {
					t.Errorf("tags = %v, want [rollout]", got.Tags)
				}
			})

			t.Run("get by name", func(t *testing.T) {
				got, err := store.GetByName(ctx, "canary")
				if err != nil {
					t.Fatalf("GetByName() error = %v", err)
				}
				if got == nil || got.ID != preset.ID {
					t.Errorf("GetByName() = %+v, want preset %s", got, preset.ID)
				}
			})

			t.Run("missing returns nil", func(t *testing.T) {
				got, err := store.Get(ctx, "no-such-id")
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if got != nil {
					t.Errorf("Get() = %+v for unknown id, want nil", got)
				}
			})

			t.Run("duplicate name rejected", func(t *testing.T) {
				dupe := NewWeightPreset("canary", "", map[string]int{"key-a": 1}, "bob", nil)
				err := store.Save(ctx, dupe)
				var dupeErr *DuplicateNameError
				if !errors.As(err, &dupeErr) {
					t.Errorf("Save() error = %v, want DuplicateNameError", err)
				}
			})

			t.Run("update in place", func(t *testing.T) {
				preset.Weights["key-a"] = 500
				if err := store.Save(ctx, preset); err != nil {
					t.Fatalf("Save() update error = %v", err)
				}
				got, err := store.Get(ctx, preset.ID)
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if got.Weights["key-a"] != 500 {
					t.Errorf("updated weight = %d, want 500", got.Weights["key-a"])
				}
			})

			t.Run("list ordered by name", func(t *testing.T) {
				even := NewWeightPreset("all-even", "", map[string]int{"key-a": 100, "key-b": 100}, "alice", nil)
				if err := store.Save(ctx, even); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
				presets, err := store.List(ctx)
				if err != nil {
					t.Fatalf("List() error = %v", err)
				}
				if len(presets) != 2 {
					t.Fatalf("List() = %d presets, want 2", len(presets))
				}
				if presets[0].Name != "all-even" || presets[1].Name != "canary" {
					t.Errorf("List() order = %s, %s", presets[0].Name, presets[1].Name)
				}
			})

			t.Run("delete", func(t *testing.T) {
				if err := store.Delete(ctx, preset.ID); err != nil {
					t.Fatalf("Delete() error = %v", err)
				}
				got, err := store.Get(ctx, preset.ID)
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if got != nil {
					t.Error("preset still present after delete")
				}

				var notFound *NotFoundError
				if err := store.Delete(ctx, preset.ID); !errors.As(err, &notFound) {
					t.Errorf("second Delete() error = %v, want NotFoundError", err)
				}
			})
		})
	}
}

func TestStore_ValidationRejected(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cases := []struct {
		name   string
		preset *WeightPreset
	}{
		{"empty name", NewWeightPreset("", "", map[string]int{"a": 1}, "", nil)},
		{"no weights", NewWeightPreset("empty", "", nil, "", nil)},
		{"negative weight", NewWeightPreset("neg", "", map[string]int{"a": -1}, "", nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := store.Save(ctx, tc.preset); err == nil {
				t.Error("Save() accepted invalid preset")
			}
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	preset := NewWeightPreset("even", "", map[string]int{"a": 100}, "", nil)
	if err := store.Save(ctx, preset); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, preset.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Weights["a"] = 999

	again, err := store.Get(ctx, preset.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if again.Weights["a"] != 100 {
		t.Errorf("stored weight mutated through returned copy: %d", again.Weights["a"])
	}
}
