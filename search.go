package latchtree

import "github.com/nutella-labs/latchtree/internal/rw"

// isMutationNoop reports whether performing intent against a leaf
// where the key's presence is given by found would require no
// structural change: an insert that finds the key already present
// only overwrites a value in place, and a delete that doesn't find the
// key does nothing. In either case no split/merge can cascade, so the
// leaf's raw safety predicate (which only looks at count vs k) need
// never be consulted — this is exactly the "inspect the leaf
// atomically" shortcut spec.md §4.2 grants the *_test intents, made
// unconditional because the inspection already happened under the
// leaf's write latch by the time this is evaluated.
func isMutationNoop(intent Intent, found bool) bool {
	switch intent {
	case IntentInsert, IntentInsertTest:
		return found
	case IntentDelete, IntentDeleteTest:
		return !found
	default:
		return false
	}
}

// seekMode selects how childIndexFor/descendRead choose a child,
// beyond the plain by-key search: seekMin/seekMax unconditionally
// follow the first/last child; seekBefore follows the child strictly
// before the one key separates, used by the iterator to re-descend to
// the subtree preceding one it has already visited (spec.md §4.3,
// §4.6).
type seekMode uint8

const (
	seekKey seekMode = iota
	seekMin
	seekMax
	seekBefore
)

func childIndexFor[K any, V any](n *node[K, V], cmp CompareFunc[K], key K, mode seekMode) int {
	switch mode {
	case seekMin:
		return 0
	case seekMax:
		return n.count - 1
	case seekBefore:
		return n.searchBefore(cmp, key)
	default:
		idx, _ := n.searchRange(cmp, key)
		return idx
	}
}

// descendOptimistic performs the cheap first phase of a mutation:
// read-lock every internal node on the path, write-lock only the
// leaf. It always returns a chain (possibly already fully released on
// error or on a proven-unsafe leaf); the caller must still call
// releaseAll once it is done with whatever remains held.
func (t *Tree[K, V]) descendOptimistic(budget *rw.Budget, intent Intent, key K) (*latchChain[K, V], int, bool, bool, error) {
	chain := newChain[K, V](t, budget, intent, true)
	if err := chain.acquireRoot(false); err != nil {
		chain.releaseAll()
		return chain, -1, false, false, err
	}
	cur := t.root
	for cur.kind == internalKind {
		if err := chain.acquireNode(cur, false); err != nil {
			chain.releaseAll()
			return chain, -1, false, false, err
		}
		idx := childIndexFor(cur, t.cmp, key, seekKey)
		cur = cur.entries[idx].child
	}
	if err := chain.acquireNode(cur, true); err != nil {
		chain.releaseAll()
		return chain, -1, false, false, err
	}
	idx, sign := cur.searchRange(t.cmp, key)
	found := cur.count > 0 && sign == 0
	if cur.count > 0 && sign > 0 {
		idx++ // a missing key belongs right after the last entry below it
	}
	safe := isMutationNoop(intent, found) || cur.nodeIsSafe(intent)
	chain.releaseAncestors(cur)
	if !safe {
		chain.releaseAll()
	}
	return chain, idx, found, safe, nil
}

// descendPessimistic performs the fallback phase: write-lock every
// node on the path. When a node proves safe for intent the
// root-pointer latch is dropped (unless that node is the root), but
// the node latches of its ancestors stay held until releaseAll (see
// releaseAncestors). The terminal leaf's write latch is always
// retained on success.
func (t *Tree[K, V]) descendPessimistic(budget *rw.Budget, intent Intent, key K) (*latchChain[K, V], int, bool, error) {
	chain := newChain[K, V](t, budget, intent, false)
	if err := chain.acquireRoot(true); err != nil {
		chain.releaseAll()
		return chain, -1, false, err
	}
	cur := t.root
	for {
		if err := chain.acquireNode(cur, true); err != nil {
			chain.releaseAll()
			return chain, -1, false, err
		}
		if cur.nodeIsSafe(intent) {
			chain.releaseAncestors(cur)
		}
		if cur.kind == leafKind {
			break
		}
		idx := childIndexFor(cur, t.cmp, key, seekKey)
		cur = cur.entries[idx].child
	}
	idx, sign := cur.searchRange(t.cmp, key)
	found := cur.count > 0 && sign == 0
	if cur.count > 0 && sign > 0 {
		idx++ // a missing key belongs right after the last entry below it
	}
	return chain, idx, found, nil
}

// readSearch is the result of a pure-read descent: a point lookup, or
// (when maxDepth >= 0) a bounded-depth subtree root acquisition for
// the iterator. nextSiblingKey/prevSiblingKey are boundary hints the
// iterator uses to advance to the next (or, in reverse, the previous)
// subtree, taken from the deepest ancestor on the path that actually
// has one — a subtree root whose immediate parent was itself the
// rightmost (or leftmost) child inherits its sibling from a
// grandparent or higher, exactly as an in-order successor/predecessor
// walk climbs past exhausted ancestors. nextSiblingKey is always a
// real separator (entries[idx+1], idx+1 >= 1, never the placeholder).
// prevSiblingKey is the current subtree's own real lower-bound
// separator (entries[idx], idx >= 1) rather than the previous
// sibling's separator directly — re-descending with it requires
// seekBefore, not seekKey, to land one child to the left (see
// childIndexFor).
type readSearch[K any, V any] struct {
	chain          *latchChain[K, V]
	node           *node[K, V]
	index          int
	found          bool
	depth          int
	nextSiblingKey K
	hasNextSibling bool
	prevSiblingKey K
	hasPrevSibling bool
}

// descendRead walks the tree under read latches only. The root-pointer
// latch is dropped once the first node is latched; the node latches
// along the path stay held until the caller's releaseAll (see
// releaseAncestors), so no level is released while the walk
// continues below it. If maxDepth >= 0 the descent stops
// early once that many levels have been crossed, returning an
// internal node rather than a leaf — this is how the iterator locks a
// bounded subtree instead of the whole tree. mode seekMin/seekMax
// ignores key and always follows the first/last child, used to seek
// the very first or very last subtree/leaf.
func (t *Tree[K, V]) descendRead(budget *rw.Budget, key K, maxDepth int, mode seekMode) (*readSearch[K, V], error) {
	chain := newChain[K, V](t, budget, IntentRead, false)
	if err := chain.acquireRoot(false); err != nil {
		chain.releaseAll()
		return nil, err
	}
	cur := t.root
	if err := chain.acquireNode(cur, false); err != nil {
		chain.releaseAll()
		return nil, err
	}
	chain.releaseAncestors(cur)

	depth := 0
	var nextKey, prevKey K
	hasNext, hasPrev := false, false
	for cur.kind == internalKind {
		if maxDepth >= 0 && depth >= maxDepth {
			break
		}
		idx := childIndexFor(cur, t.cmp, key, mode)
		// Overwrite only when this level actually has the sibling in
		// question; otherwise keep whatever a shallower ancestor
		// already found. The last overwrite along the root-to-leaf
		// walk is therefore the deepest (tightest) available one, with
		// climbing to a shallower ancestor falling out for free when
		// no deeper level qualifies.
		if idx+1 < cur.count {
			nextKey = cur.entries[idx+1].key
			hasNext = true
		}
		if idx > 0 {
			prevKey = cur.entries[idx].key
			hasPrev = true
		}
		child := cur.entries[idx].child
		if err := chain.acquireNode(child, false); err != nil {
			chain.releaseAll()
			return nil, err
		}
		chain.releaseAncestors(child)
		cur = child
		depth++
	}

	idx, found := -1, false
	if cur.kind == leafKind && mode == seekKey {
		i, sign := cur.searchRange(t.cmp, key)
		if cur.count > 0 && sign == 0 {
			idx, found = i, true
		}
	}
	return &readSearch[K, V]{
		chain: chain, node: cur, index: idx, found: found,
		depth: depth,
		nextSiblingKey: nextKey, hasNextSibling: hasNext,
		prevSiblingKey: prevKey, hasPrevSibling: hasPrev,
	}, nil
}
