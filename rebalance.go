package latchtree

import "sync/atomic"

// trySplit restores the node-size invariant after an insert, walking
// upward along latches the caller's chain already holds (spec.md
// §4.4.1). It is only ever called on a node proven unsafe at descent
// time, so every node it touches is already write-latched.
func (t *Tree[K, V]) trySplit(n *node[K, V]) error {
	for n.canSplit() {
		if n.parent == nil && t.Depth() >= MaxDepth {
			// Refuse before splitNode touches anything: n is the actual
			// root, so carving it up now and only noticing the capacity
			// ceiling afterward (in installSplitRoot) would strand the
			// moved-out half of its entries in an unpublished sibling.
			return &CapacityError{maxDepth: MaxDepth}
		}

		sibling, newSep := t.splitNode(n)
		n.latch.BumpVersion()
		sibling.latch.BumpVersion()

		if n.parent == nil {
			return t.installSplitRoot(n, sibling, newSep)
		}

		parent := n.parent
		idx := n.indexInParent(t.cmp)
		parent.insertAt(idx+1, entry[K, V]{key: newSep, child: sibling})
		sibling.parent = parent
		parent.latch.BumpVersion()
		n = parent
	}
	return nil
}

// splitNode carves the upper half of n's entries into a freshly
// allocated sibling and returns it along with the separator the
// parent should use to find it.
func (t *Tree[K, V]) splitNode(n *node[K, V]) (*node[K, V], K) {
	// n.count == t.k+1 here (canSplit's precondition). Splitting at
	// ceilHalf(t.k) rather than t.k/2 guarantees both halves land at or
	// above the minimum legal node size the safety predicates check
	// against: k=3's 4-entry overflow becomes {1,2}/{3,4}, never a
	// 1/3 split that would leave the left half underflowing on arrival.
	mid := ceilHalf(n.k)
	moveCount := n.count - mid

	var sibling *node[K, V]
	var newSep K
	if n.kind == leafKind {
		sibling = newLeaf[K, V](t.k)
		sibling.entries = append(sibling.entries, n.entries[mid:n.count]...)
		newSep = sibling.entries[0].key
	} else {
		sibling = newInternal[K, V](t.k)
		newSep = n.entries[mid].key
		sibling.entries = append(sibling.entries, n.entries[mid:n.count]...)
		var zero K
		sibling.entries[0].key = zero // slot 0 is always the -infinity placeholder
		for i := range sibling.entries {
			sibling.entries[i].child.parent = sibling
		}
	}
	sibling.count = moveCount
	sibling.parent = n.parent

	for i := mid; i < n.count; i++ {
		n.entries[i] = entry[K, V]{}
	}
	n.entries = n.entries[:mid]
	n.count = mid

	return sibling, newSep
}

// installSplitRoot replaces a split root with a fresh internal root of
// two children. Precondition: the caller's chain holds the
// root-pointer write latch (guaranteed because a node that reaches
// here was never found "safe" during descent, so the crab release
// never dropped it — see search.go). The capacity ceiling is checked by
// the caller, trySplit, before oldRoot/sibling are carved apart; by the
// time control reaches here publishing the new root is always safe.
func (t *Tree[K, V]) installSplitRoot(oldRoot, sibling *node[K, V], sep K) error {
	var zero K
	newRoot := newInternal[K, V](t.k)
	newRoot.entries = append(newRoot.entries,
		entry[K, V]{key: zero, child: oldRoot},
		entry[K, V]{key: sep, child: sibling},
	)
	newRoot.count = 2
	oldRoot.parent = newRoot
	sibling.parent = newRoot
	t.root = newRoot
	atomic.AddInt32(&t.depth, 1)
	return nil
}

// tryMerge restores the node-size invariant after a delete, preferring
// adoption (no parent-entry removal) over merging, and left adoption
// over right (spec.md §4.4.2).
func (t *Tree[K, V]) tryMerge(n *node[K, V]) {
	for n.canMerge() {
		if n.parent == nil {
			t.collapseRootIfNeeded(n)
			return
		}

		parent := n.parent
		p := n.indexInParent(t.cmp)
		var left, right *node[K, V]
		if p > 0 {
			left = parent.entries[p-1].child
		}
		if p+1 < parent.count {
			right = parent.entries[p+1].child
		}

		switch {
		case left != nil && left.canSafelyDelete():
			t.adoptFromLeft(n, left, parent, p)
			return
		case right != nil && right.canSafelyDelete():
			t.adoptFromRight(n, right, parent, p)
			return
		case right != nil:
			t.mergeRightIntoSelf(n, right, parent, p)
			n = parent
		default:
			t.mergeSelfIntoLeft(n, left, parent, p)
			n = parent
		}
	}
}

// collapseRootIfNeeded handles spec.md §4.4.2 step 1: an internal root
// with at most one child is replaced by that child; a leaf root is
// left underflowing (an empty map is legal).
func (t *Tree[K, V]) collapseRootIfNeeded(root *node[K, V]) {
	if root.kind == leafKind || root.count != 1 {
		return
	}
	newRoot := root.entries[0].child
	newRoot.parent = nil
	t.root = newRoot
	root.latch.BumpVersion()
	if d := atomic.AddInt32(&t.depth, -1); d < 1 {
		atomic.StoreInt32(&t.depth, 1)
	}
}

func (t *Tree[K, V]) adoptFromLeft(n, left, parent *node[K, V], p int) {
	moved := left.deleteAt(left.count - 1)
	if n.kind == leafKind {
		n.insertAt(0, moved)
		parent.entries[p].key = moved.key
	} else {
		oldFirstChild := n.entries[0].child
		oldSepOfN := parent.entries[p].key
		newMin := moved.key
		var zero K
		moved.child.parent = n
		n.entries[0] = entry[K, V]{key: zero, child: moved.child}
		n.insertAt(1, entry[K, V]{key: oldSepOfN, child: oldFirstChild})
		parent.entries[p].key = newMin
	}
	n.latch.BumpVersion()
	left.latch.BumpVersion()
	parent.latch.BumpVersion()
}

func (t *Tree[K, V]) adoptFromRight(n, right, parent *node[K, V], p int) {
	if n.kind == leafKind {
		moved := right.deleteAt(0)
		n.insertAt(n.count, moved)
		parent.entries[p+1].key = right.entries[0].key
	} else {
		oldSepOfRight := parent.entries[p+1].key
		movedChild := right.entries[0].child
		right.deleteAt(0)
		newRightMin := right.entries[0].key
		var zero K
		right.entries[0].key = zero
		movedChild.parent = n
		n.insertAt(n.count, entry[K, V]{key: oldSepOfRight, child: movedChild})
		parent.entries[p+1].key = newRightMin
	}
	n.latch.BumpVersion()
	right.latch.BumpVersion()
	parent.latch.BumpVersion()
}

func (t *Tree[K, V]) mergeRightIntoSelf(n, right, parent *node[K, V], p int) {
	if n.kind == internalKind {
		right.entries[0].key = parent.entries[p+1].key
	}
	for i := 0; i < right.count; i++ {
		e := right.entries[i]
		if n.kind == internalKind {
			e.child.parent = n
		}
		n.insertAt(n.count, e)
	}
	parent.deleteAt(p + 1)
	right.parent = nil
	right.entries = nil
	right.count = 0
	n.latch.BumpVersion()
	parent.latch.BumpVersion()
}

func (t *Tree[K, V]) mergeSelfIntoLeft(n, left, parent *node[K, V], p int) {
	if n.kind == internalKind {
		n.entries[0].key = parent.entries[p].key
	}
	for i := 0; i < n.count; i++ {
		e := n.entries[i]
		if n.kind == internalKind {
			e.child.parent = left
		}
		left.insertAt(left.count, e)
	}
	parent.deleteAt(p)
	n.parent = nil
	n.entries = nil
	n.count = 0
	left.latch.BumpVersion()
	parent.latch.BumpVersion()
}
