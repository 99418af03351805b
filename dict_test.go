package latchtree_test

import (
	"cmp"
	"testing"

	"github.com/nutella-labs/latchtree"
)

func newIntTree(t *testing.T, k int) *latchtree.Tree[int, int] {
	t.Helper()
	tr, err := latchtree.New[int, int](k, cmp.Compare[int])
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestConstructorRejectsSmallK(t *testing.T) {
	if _, err := latchtree.New[int, int](2, cmp.Compare[int]); err == nil {
		t.Fatalf("expected an ArgumentError for k=2")
	}
	if _, err := latchtree.New[int, int](3, cmp.Compare[int]); err != nil {
		t.Fatalf("k=3 should be legal, got %v", err)
	}
}

func TestConstructorRejectsNilComparator(t *testing.T) {
	if _, err := latchtree.New[int, int](8, nil); err == nil {
		t.Fatalf("expected an ArgumentError for a nil comparator")
	}
}

// Scenario 1: single insert/delete, k=3 (spec.md §8).
func TestSingleInsertDelete(t *testing.T) {
	tr := newIntTree(t, 3)

	result, err := tr.TryAdd(1, -1, latchtree.InfiniteTimeout)
	if err != nil || result != latchtree.Inserted {
		t.Fatalf("TryAdd: result=%v err=%v", result, err)
	}
	if tr.Count() != 1 || tr.Depth() != 1 {
		t.Fatalf("count=%d depth=%d, want 1/1", tr.Count(), tr.Depth())
	}

	value, lookup, err := tr.TryGet(1, latchtree.InfiniteTimeout)
	if err != nil || lookup != latchtree.Found || value != -1 {
		t.Fatalf("TryGet: value=%d lookup=%v err=%v", value, lookup, err)
	}

	removeResult, err := tr.TryRemove(1, latchtree.InfiniteTimeout)
	if err != nil || removeResult != latchtree.Removed {
		t.Fatalf("TryRemove: result=%v err=%v", removeResult, err)
	}
	if tr.Count() != 0 {
		t.Fatalf("count=%d, want 0", tr.Count())
	}

	_, lookup, err = tr.TryGet(1, latchtree.InfiniteTimeout)
	if err != nil || lookup != latchtree.LookupNotFound {
		t.Fatalf("expected not found after remove, got %v (err %v)", lookup, err)
	}
}

// Scenario 2: split at k=3.
func TestSplitAtK3(t *testing.T) {
	tr := newIntTree(t, 3)
	for _, k := range []int{1, 2, 3, 4} {
		if _, err := tr.TryAdd(k, k*10, latchtree.InfiniteTimeout); err != nil {
			t.Fatalf("TryAdd(%d): %v", k, err)
		}
	}
	if tr.Count() != 4 {
		t.Fatalf("count=%d, want 4", tr.Count())
	}
	if tr.Depth() != 2 {
		t.Fatalf("depth=%d, want 2 after the overflowing insert", tr.Depth())
	}
	if err := tr.VerifyInvariants(); err != nil {
		t.Fatalf("VerifyInvariants: %v", err)
	}
}

// Scenario 3: merge/adopt at k=3.
func TestMergeAdoptAtK3(t *testing.T) {
	tr := newIntTree(t, 3)
	for _, k := range []int{1, 2, 3, 4} {
		if _, err := tr.TryAdd(k, k, latchtree.InfiniteTimeout); err != nil {
			t.Fatalf("TryAdd(%d): %v", k, err)
		}
	}
	if _, err := tr.TryRemove(4, latchtree.InfiniteTimeout); err != nil {
		t.Fatalf("TryRemove(4): %v", err)
	}
	if tr.Depth() != 1 {
		t.Fatalf("depth=%d, want 1 after the root collapses", tr.Depth())
	}
	if tr.Count() != 3 {
		t.Fatalf("count=%d, want 3", tr.Count())
	}
	for _, k := range []int{1, 2, 3} {
		if _, lookup, _ := tr.TryGet(k, latchtree.InfiniteTimeout); lookup != latchtree.Found {
			t.Errorf("key %d should survive the merge", k)
		}
	}
	if err := tr.VerifyInvariants(); err != nil {
		t.Fatalf("VerifyInvariants: %v", err)
	}
}

func TestRoundTripInsertThenDeleteAll(t *testing.T) {
	tr := newIntTree(t, 4)
	keys := make([]int, 0, 200)
	for i := 0; i < 200; i++ {
		keys = append(keys, i)
	}
	for _, k := range keys {
		if _, err := tr.TryAdd(k, k, latchtree.InfiniteTimeout); err != nil {
			t.Fatalf("TryAdd(%d): %v", k, err)
		}
	}
	if err := tr.VerifyInvariants(); err != nil {
		t.Fatalf("VerifyInvariants after inserts: %v", err)
	}
	for _, k := range keys {
		if _, err := tr.TryRemove(k, latchtree.InfiniteTimeout); err != nil {
			t.Fatalf("TryRemove(%d): %v", k, err)
		}
	}
	if tr.Count() != 0 {
		t.Fatalf("count=%d, want 0", tr.Count())
	}
	if tr.Depth() != 1 {
		t.Fatalf("depth=%d, want 1", tr.Depth())
	}
}

func TestAddOrUpdateOverwrites(t *testing.T) {
	tr := newIntTree(t, 4)
	if _, err := tr.AddOrUpdate(1, 100, latchtree.InfiniteTimeout); err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if _, err := tr.AddOrUpdate(1, 200, latchtree.InfiniteTimeout); err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	value, _, err := tr.TryGet(1, latchtree.InfiniteTimeout)
	if err != nil || value != 200 {
		t.Fatalf("expected 200 after overwrite, got %d (err %v)", value, err)
	}
}

func TestTryAddAlreadyExists(t *testing.T) {
	tr := newIntTree(t, 4)
	if _, err := tr.TryAdd(1, 100, latchtree.InfiniteTimeout); err != nil {
		t.Fatalf("TryAdd: %v", err)
	}
	result, err := tr.TryAdd(1, 200, latchtree.InfiniteTimeout)
	if err != nil || result != latchtree.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v (err %v)", result, err)
	}
	value, _, _ := tr.TryGet(1, latchtree.InfiniteTimeout)
	if value != 100 {
		t.Fatalf("original value should be preserved, got %d", value)
	}
}

func TestGetOrAdd(t *testing.T) {
	tr := newIntTree(t, 4)
	value, result, err := tr.GetOrAdd(1, 100, latchtree.InfiniteTimeout)
	if err != nil || result != latchtree.Inserted || value != 100 {
		t.Fatalf("first GetOrAdd: value=%d result=%v err=%v", value, result, err)
	}
	value, result, err = tr.GetOrAdd(1, 200, latchtree.InfiniteTimeout)
	if err != nil || result != latchtree.AlreadyExists || value != 100 {
		t.Fatalf("second GetOrAdd: value=%d result=%v err=%v", value, result, err)
	}
}

func TestContainsKey(t *testing.T) {
	tr := newIntTree(t, 4)
	if ok, _, _ := tr.ContainsKey(1, latchtree.InfiniteTimeout); ok {
		t.Fatalf("empty tree should not contain 1")
	}
	tr.AddOrUpdate(1, 1, latchtree.InfiniteTimeout)
	if ok, _, _ := tr.ContainsKey(1, latchtree.InfiniteTimeout); !ok {
		t.Fatalf("expected ContainsKey(1) to be true")
	}
}

func TestRemoveNotFound(t *testing.T) {
	tr := newIntTree(t, 4)
	result, err := tr.TryRemove(1, latchtree.InfiniteTimeout)
	if err != nil || result != latchtree.NotFound {
		t.Fatalf("expected NotFound, got %v (err %v)", result, err)
	}
}

func TestClearResetsTree(t *testing.T) {
	tr := newIntTree(t, 4)
	for i := 0; i < 50; i++ {
		tr.AddOrUpdate(i, i, latchtree.InfiniteTimeout)
	}
	result, err := tr.Clear(latchtree.InfiniteTimeout)
	if err != nil || result != latchtree.Cleared {
		t.Fatalf("Clear: result=%v err=%v", result, err)
	}
	if tr.Count() != 0 || tr.Depth() != 1 {
		t.Fatalf("count=%d depth=%d after Clear, want 0/1", tr.Count(), tr.Depth())
	}
	if _, lookup, _ := tr.TryGet(0, latchtree.InfiniteTimeout); lookup != latchtree.LookupNotFound {
		t.Fatalf("expected all keys gone after Clear")
	}
}

func TestBulkInsertInvariantsHoldAtLargeFanOut(t *testing.T) {
	tr := newIntTree(t, 32)
	for i := 640; i >= 1; i-- {
		if _, err := tr.TryAdd(i, i, latchtree.InfiniteTimeout); err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
	}
	if tr.Count() != 640 {
		t.Fatalf("count=%d, want 640", tr.Count())
	}
	if err := tr.VerifyInvariants(); err != nil {
		t.Fatalf("VerifyInvariants: %v", err)
	}
}
