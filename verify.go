package latchtree

// VerifyInvariants walks the whole tree and checks the quantified
// invariants of spec.md §8. It is the hook the test collaborator
// (spec.md §1) consumes; it does not participate in the latch
// protocol beyond taking the root-pointer read latch and each node's
// read latch non-blocking (failing if any is held by a writer), and
// the caller is expected to invoke it only when no writer holds any
// node latch — the same "whenever no writer holds any node lock on the
// tree" precondition spec.md §3 states for its own invariants.
//
// Keys are compared with the tree's own comparator throughout, but
// duplicate-key detection also uses K as a Go map key: a K whose
// dynamic type is not comparable (e.g. a slice or a func) will panic
// here. Every other operation in the package only ever uses cmp, so
// this is a restriction of the debug checker alone.
func (t *Tree[K, V]) VerifyInvariants() error {
	if !t.rootLatch.TryRLock() {
		return invariantErr("root latch is held by a writer; VerifyInvariants requires quiescence")
	}
	defer t.rootLatch.RUnlock()

	leafDepths := map[int]bool{}
	seen := map[any]bool{}
	if err := t.verifyNode(t.root, true, leafDepths, seen, 0, nil, nil); err != nil {
		return err
	}
	if len(leafDepths) > 1 {
		return invariantErr("leaves are not all at the same depth: %v", leafDepths)
	}
	return nil
}

func (t *Tree[K, V]) verifyNode(
	n *node[K, V],
	isRoot bool,
	leafDepths map[int]bool,
	seen map[any]bool,
	depth int,
	lowerBound, upperBound *K,
) error {
	if !n.latch.TryRLock() {
		return invariantErr("node at depth %d is held by a writer", depth)
	}
	defer n.latch.RUnlock()

	min := ceilHalf(n.k)
	if !isRoot {
		if n.count < min || n.count > n.k {
			return invariantErr("non-root node at depth %d has count %d, want [%d,%d]", depth, n.count, min, n.k)
		}
	} else if n.kind == internalKind && n.count < 2 {
		return invariantErr("internal root has count %d, want >= 2", n.count)
	}

	first := 1
	if n.kind == internalKind {
		first = 2 // entries[0]'s separator is the -infinity placeholder
	}
	for i := first; i < n.count; i++ {
		if t.cmp(n.entries[i-1].key, n.entries[i].key) >= 0 {
			return invariantErr("entries out of order at depth %d index %d", depth, i)
		}
	}

	if n.kind == leafKind {
		leafDepths[depth] = true
		for i := 0; i < n.count; i++ {
			key := n.entries[i].key
			if seen[any(key)] {
				return invariantErr("duplicate key at depth %d", depth)
			}
			seen[any(key)] = true
			if lowerBound != nil && t.cmp(key, *lowerBound) < 0 {
				return invariantErr("leaf key below its subtree's lower bound at depth %d", depth)
			}
			if upperBound != nil && t.cmp(key, *upperBound) >= 0 {
				return invariantErr("leaf key at or above its subtree's upper bound at depth %d", depth)
			}
		}
		return nil
	}

	for i := 0; i < n.count; i++ {
		child := n.entries[i].child
		if child.parent != n {
			return invariantErr("child at depth %d index %d does not point back to its parent", depth, i)
		}
		childLower, childUpper := lowerBound, upperBound
		if i > 0 {
			sep := n.entries[i].key
			childLower = &sep
		}
		if i+1 < n.count {
			next := n.entries[i+1].key
			childUpper = &next
		}
		if err := t.verifyNode(child, false, leafDepths, seen, depth+1, childLower, childUpper); err != nil {
			return err
		}
	}
	return nil
}
