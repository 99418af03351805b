package latchtree

import (
	"cmp"
	"testing"
)

func TestNodeInsertAtShiftsRight(t *testing.T) {
	n := newLeaf[int, string](3)
	n.insertAt(0, entry[int, string]{key: 1, value: "a"})
	n.insertAt(1, entry[int, string]{key: 3, value: "c"})
	n.insertAt(1, entry[int, string]{key: 2, value: "b"})

	if n.count != 3 {
		t.Fatalf("expected count 3, got %d", n.count)
	}
	want := []int{1, 2, 3}
	for i, k := range want {
		if n.entries[i].key != k {
			t.Errorf("index %d: expected key %d, got %d", i, k, n.entries[i].key)
		}
	}
}

func TestNodeDeleteAtShiftsLeft(t *testing.T) {
	n := newLeaf[int, string](3)
	n.insertAt(0, entry[int, string]{key: 1})
	n.insertAt(1, entry[int, string]{key: 2})
	n.insertAt(2, entry[int, string]{key: 3})

	removed := n.deleteAt(1)
	if removed.key != 2 {
		t.Fatalf("expected removed key 2, got %d", removed.key)
	}
	if n.count != 2 {
		t.Fatalf("expected count 2, got %d", n.count)
	}
	if n.entries[0].key != 1 || n.entries[1].key != 3 {
		t.Fatalf("unexpected entries after delete: %+v", n.entries[:n.count])
	}
}

func TestNodeSearchRangeLeaf(t *testing.T) {
	n := newLeaf[int, string](5)
	for i, k := range []int{10, 20, 30} {
		n.insertAt(i, entry[int, string]{key: k})
	}

	idx, sign := n.searchRange(cmp.Compare[int], 20)
	if idx != 1 || sign != 0 {
		t.Fatalf("expected (1, 0) for exact match, got (%d, %d)", idx, sign)
	}
	idx, sign = n.searchRange(cmp.Compare[int], 25)
	if idx != 1 || sign <= 0 {
		t.Fatalf("expected (1, >0) for a key between entries, got (%d, %d)", idx, sign)
	}
	idx, sign = n.searchRange(cmp.Compare[int], 5)
	if idx != 0 || sign >= 0 {
		t.Fatalf("expected (0, <0) for a key below everything, got (%d, %d)", idx, sign)
	}
}

func TestNodeSearchRangeInternalSlotZeroIsMinusInfinity(t *testing.T) {
	n := newInternal[int, string](5)
	leftChild := newLeaf[int, string](5)
	rightChild := newLeaf[int, string](5)
	n.insertAt(0, entry[int, string]{child: leftChild})
	n.insertAt(1, entry[int, string]{key: 100, child: rightChild})

	idx, _ := n.searchRange(cmp.Compare[int], -1000)
	if idx != 0 {
		t.Fatalf("a key far below the first separator should still select child 0, got %d", idx)
	}
	idx, _ = n.searchRange(cmp.Compare[int], 100)
	if idx != 1 {
		t.Fatalf("a key equal to a separator should follow that separator's child, got %d", idx)
	}
}

func TestNodeSafetyPredicates(t *testing.T) {
	k := 4
	n := newLeaf[int, string](k)
	for i := 0; i < k; i++ {
		n.insertAt(i, entry[int, string]{key: i})
	}
	if n.canSafelyInsert() {
		t.Errorf("count == k should not be safe to insert")
	}
	n.insertAt(k, entry[int, string]{key: k})
	if !n.canSplit() {
		t.Errorf("count == k+1 should be splittable")
	}

	n2 := newLeaf[int, string](k)
	n2.insertAt(0, entry[int, string]{key: 1})
	if !n2.canMerge() {
		t.Errorf("count below ceil(k/2) should be mergeable")
	}
}

func TestCeilHalf(t *testing.T) {
	cases := map[int]int{3: 2, 4: 2, 5: 3, 32: 16, 33: 17}
	for k, want := range cases {
		if got := ceilHalf(k); got != want {
			t.Errorf("ceilHalf(%d) = %d, want %d", k, got, want)
		}
	}
}
