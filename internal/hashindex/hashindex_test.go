package hashindex

import "testing"

func TestSetGetRemove(t *testing.T) {
	idx := New[string, int](nil)

	idx.Set("a", 1)
	idx.Set("b", 2)

	if v, ok := idx.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}

	idx.Remove("a")
	if _, ok := idx.Get("a"); ok {
		t.Fatal("expected a to be removed")
	}
	if idx.Len() != 1 {
		t.Fatalf("Len() after remove = %d, want 1", idx.Len())
	}
}

func TestRemoveInvokesFreeWithRemainingRefcount(t *testing.T) {
	type record struct {
		refcount int
	}
	var freed []int
	rec := &record{refcount: 2}

	free := func(r *record) {
		r.refcount--
		freed = append(freed, r.refcount)
	}

	byA := New[string, *record](free)
	byB := New[string, *record](free)

	byA.Set("k1", rec)
	byB.Set("k2", rec)

	byA.Remove("k1")
	byB.Remove("k2")

	if len(freed) != 2 {
		t.Fatalf("expected free called twice, got %d", len(freed))
	}
	if freed[0] != 1 || freed[1] != 0 {
		t.Fatalf("refcounts observed = %v, want [1 0]", freed)
	}
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	called := false
	idx := New[string, int](func(int) { called = true })
	idx.Remove("nope")
	if called {
		t.Fatal("free should not be invoked for a miss")
	}
}

func TestForEachVisitsEveryEntry(t *testing.T) {
	idx := New[int, int](nil)
	for i := 0; i < 5; i++ {
		idx.Set(i, i*10)
	}

	seen := make(map[int]int)
	idx.ForEach(func(k, v int) bool {
		seen[k] = v
		return true
	})

	if len(seen) != 5 {
		t.Fatalf("visited %d entries, want 5", len(seen))
	}
	for k, v := range seen {
		if v != k*10 {
			t.Errorf("seen[%d] = %d, want %d", k, v, k*10)
		}
	}
}

func TestForEachStopsEarly(t *testing.T) {
	idx := New[int, int](nil)
	for i := 0; i < 10; i++ {
		idx.Set(i, i)
	}

	count := 0
	idx.ForEach(func(k, v int) bool {
		count++
		return count < 3
	})

	if count != 3 {
		t.Fatalf("visited %d entries, want exactly 3 before stopping", count)
	}
}

func TestDestroyFreesEveryEntryAndEmpties(t *testing.T) {
	var freedCount int
	idx := New[int, int](func(int) { freedCount++ })
	for i := 0; i < 4; i++ {
		idx.Set(i, i)
	}

	idx.Destroy()

	if freedCount != 4 {
		t.Fatalf("freed %d entries, want 4", freedCount)
	}
	if idx.Len() != 0 {
		t.Fatalf("Len() after Destroy = %d, want 0", idx.Len())
	}
}

func TestSetOverwritesExistingKey(t *testing.T) {
	idx := New[string, int](nil)
	idx.Set("k", 1)
	idx.Set("k", 2)

	if v, ok := idx.Get("k"); !ok || v != 2 {
		t.Fatalf("Get(k) = %v, %v; want 2, true", v, ok)
	}
	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (overwrite, not insert)", idx.Len())
	}
}
