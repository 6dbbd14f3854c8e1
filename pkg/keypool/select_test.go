package keypool

import "testing"

// TestSelectNext_ProportionalDistribution tests that a full cycle hands
// out selections in exact proportion to the configured weights.
func TestSelectNext_ProportionalDistribution(t *testing.T) {
	p := New()
	p.AddKey(testKey("small", 100))
	p.AddKey(testKey("medium", 200))
	p.AddKey(testKey("large", 300))

	counts := map[string]int{}
	for i := 0; i < 600; i++ {
		k := p.SelectNext()
		if k == nil {
			t.Fatalf("SelectNext() = nil at iteration %d", i)
		}
		counts[k.ID]++
	}

	want := map[string]int{"small": 100, "medium": 200, "large": 300}
	for id, n := range want {
		if counts[id] != n {
			t.Errorf("counts[%s] = %d, want %d", id, counts[id], n)
		}
	}
}

// TestSelectNext_ZeroWeightNeverSelected tests that a zero-weight key is
// skipped entirely.
func TestSelectNext_ZeroWeightNeverSelected(t *testing.T) {
	p := New()
	p.AddKey(testKey("zero", 0))
	p.AddKey(testKey("live", 100))

	for i := 0; i < 50; i++ {
		k := p.SelectNext()
		if k == nil {
			t.Fatal("SelectNext() = nil")
		}
		if k.ID == "zero" {
			t.Fatal("zero-weight key was selected")
		}
	}
}

// TestSelectNext_Smoothness tests that the heavy key does not burst; with
// weights 5:1 the light key appears once within any window of six.
func TestSelectNext_Smoothness(t *testing.T) {
	p := New()
	p.AddKey(testKey("heavy", 5))
	p.AddKey(testKey("light", 1))

	var order []string
	for i := 0; i < 12; i++ {
		k := p.SelectNext()
		if k == nil {
			t.Fatal("SelectNext() = nil")
		}
		order = append(order, k.ID)
	}

	for start := 0; start+6 <= len(order); start += 6 {
		light := 0
		for _, id := range order[start : start+6] {
			if id == "light" {
				light++
			}
		}
		if light != 1 {
			t.Errorf("window %d: light selected %d times, want 1 (order %v)", start, light, order)
		}
	}
}

// TestSelectNext_EmptyPool tests the no-eligible-key cases.
func TestSelectNext_EmptyPool(t *testing.T) {
	p := New()
	if k := p.SelectNext(); k != nil {
		t.Fatalf("SelectNext() on empty pool = %q, want nil", k.ID)
	}

	p.AddKey(testKey("a", 100))
	for i := 0; i < FailureThreshold; i++ {
		p.MarkFailed("a")
	}
	if k := p.SelectNext(); k != nil {
		t.Fatalf("SelectNext() with all keys down = %q, want nil", k.ID)
	}
}

// TestSelectNext_SkipsInactive tests that selections flow to the
// remaining keys when one is deactivated, and rebalance after recovery.
func TestSelectNext_SkipsInactive(t *testing.T) {
	p := New()
	p.AddKey(testKey("a", 100))
	p.AddKey(testKey("b", 100))

	for i := 0; i < FailureThreshold; i++ {
		p.MarkFailed("a")
	}

	for i := 0; i < 10; i++ {
		k := p.SelectNext()
		if k == nil {
			t.Fatal("SelectNext() = nil")
		}
		if k.ID != "b" {
			t.Fatalf("SelectNext() = %q, want b while a is down", k.ID)
		}
	}

	p.MarkSuccess("a")

	counts := map[string]int{}
	for i := 0; i < 20; i++ {
		counts[p.SelectNext().ID]++
	}
	if counts["a"] == 0 {
		t.Error("recovered key never selected")
	}
}

// TestSelectNext_DegradedWeightShiftsTraffic tests that a partially
// failed key receives proportionally fewer selections.
func TestSelectNext_DegradedWeightShiftsTraffic(t *testing.T) {
	p := New()
	p.AddKey(testKey("a", 10))
	p.AddKey(testKey("b", 10))

	// Two failures: a's effective weight drops to 8.
	p.MarkFailed("a")
	p.MarkFailed("a")

	counts := map[string]int{}
	for i := 0; i < 18; i++ {
		counts[p.SelectNext().ID]++
	}
	if counts["a"] != 8 || counts["b"] != 10 {
		t.Errorf("counts = %v, want a=8 b=10", counts)
	}
}
