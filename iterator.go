package latchtree

import "github.com/nutella-labs/latchtree/internal/rw"

// defaultSubtreeDepth is how many levels above the leaves the
// iterator's per-step read lock reaches up to (spec.md §4.6): each
// step locks a subtree of this depth rather than a single leaf or the
// whole tree.
const defaultSubtreeDepth = 2

// bound is one (optional) endpoint of a key range, independent of
// iteration direction: lo is always the smaller-or-equal side, hi
// always the larger-or-equal side, each individually inclusive or
// exclusive.
type bound[K any] struct {
	key       K
	has       bool
	inclusive bool
}

// Iterator is a lazy, ordered enumeration over a Tree (spec.md §4.6).
// It holds no lock between calls to Next: each call that needs fresh
// data performs a bounded-depth subtree descent, buffers that
// subtree's matching entries, and releases the subtree's lock before
// returning. It is a scoped resource only in the sense that an
// abandoned Iterator need not be explicitly closed — there is nothing
// left locked once Next returns.
type Iterator[K any, V any] struct {
	tree    *Tree[K, V]
	reverse bool
	lo, hi  bound[K]

	timeoutMs    int
	subtreeDepth int

	boundary    K
	hasBoundary bool
	exhausted   bool

	buf    []entry[K, V]
	bufIdx int

	lastYielded    K
	hasLastYielded bool

	err error
}

func newIterator[K any, V any](t *Tree[K, V], reverse bool, lo, hi bound[K], timeoutMs int) *Iterator[K, V] {
	return &Iterator[K, V]{
		tree: t, reverse: reverse, lo: lo, hi: hi,
		timeoutMs: timeoutMs, subtreeDepth: defaultSubtreeDepth,
	}
}

// Iter yields every entry in ascending key order.
func (t *Tree[K, V]) Iter(timeoutMs int) *Iterator[K, V] {
	return newIterator[K, V](t, false, bound[K]{}, bound[K]{}, timeoutMs)
}

// IterReversed yields every entry in descending key order.
func (t *Tree[K, V]) IterReversed(timeoutMs int) *Iterator[K, V] {
	return newIterator[K, V](t, true, bound[K]{}, bound[K]{}, timeoutMs)
}

// Range yields entries with lo <= key < hi in ascending order. If
// lo > hi it is interpreted as a reverse range: entries with
// hi < key <= lo, in descending order (spec.md §4.6).
func (t *Tree[K, V]) Range(lo, hi K, timeoutMs int) *Iterator[K, V] {
	if t.cmp(lo, hi) <= 0 {
		return newIterator[K, V](t, false,
			bound[K]{key: lo, has: true, inclusive: true},
			bound[K]{key: hi, has: true, inclusive: false},
			timeoutMs)
	}
	return newIterator[K, V](t, true,
		bound[K]{key: hi, has: true, inclusive: false},
		bound[K]{key: lo, has: true, inclusive: true},
		timeoutMs)
}

// StartingWith yields entries with key >= k in ascending order, or, if
// reverse is set, entries with key <= k in descending order.
func (t *Tree[K, V]) StartingWith(k K, reverse bool, timeoutMs int) *Iterator[K, V] {
	b := bound[K]{key: k, has: true, inclusive: true}
	if !reverse {
		return newIterator[K, V](t, false, b, bound[K]{}, timeoutMs)
	}
	return newIterator[K, V](t, true, bound[K]{}, b, timeoutMs)
}

// EndingWith yields entries up to k, in ascending order, inclusive or
// exclusive of k as requested.
func (t *Tree[K, V]) EndingWith(k K, inclusive bool, timeoutMs int) *Iterator[K, V] {
	return newIterator[K, V](t, false, bound[K]{}, bound[K]{key: k, has: true, inclusive: inclusive}, timeoutMs)
}

// Next advances the iterator and reports whether a pair was produced.
// Once it returns false the iterator is exhausted (check Err to
// distinguish a clean end from a timeout or other error) and every
// subsequent call also returns false.
func (it *Iterator[K, V]) Next() (K, V, bool) {
	var zeroK K
	var zeroV V
	for it.bufIdx >= len(it.buf) {
		if !it.fetchNextSubtree() {
			return zeroK, zeroV, false
		}
	}
	e := it.buf[it.bufIdx]
	it.bufIdx++
	it.lastYielded = e.key
	it.hasLastYielded = true
	return e.key, e.value, true
}

// WithSubtreeDepth overrides the number of levels each per-step read
// lock reaches up to (default defaultSubtreeDepth). Must be called
// before the first Next. A larger depth means fewer, larger locked
// steps; a smaller depth means more, smaller ones.
func (it *Iterator[K, V]) WithSubtreeDepth(d int) *Iterator[K, V] {
	if d > 0 {
		it.subtreeDepth = d
	}
	return it
}

// Err reports the error (if any) that ended iteration early. A clean
// end (the range was fully consumed) leaves Err nil.
func (it *Iterator[K, V]) Err() error { return it.err }

// fetchNextSubtree descends to and buffers the next subtree in
// traversal order, advancing the boundary for the following call.
// Returns false when the iterator is exhausted or has failed.
func (it *Iterator[K, V]) fetchNextSubtree() bool {
	if it.exhausted {
		return false
	}

	budget, err := newBudget(it.timeoutMs)
	if err != nil {
		it.err = err
		it.exhausted = true
		return false
	}
	defer budget.Release()

	maxDepth := 0
	if d := it.tree.Depth() - it.subtreeDepth; d > 0 {
		maxDepth = d
	}

	var seekKeyVal K
	mode := seekMin
	switch {
	case it.hasBoundary && it.reverse:
		// res.prevSiblingKey is the subtree just visited's own
		// lower-bound separator, not the previous subtree's — seekKey
		// would re-select the same child, so land one to its left.
		seekKeyVal, mode = it.boundary, seekBefore
	case it.hasBoundary:
		seekKeyVal, mode = it.boundary, seekKey
	case !it.reverse && it.lo.has:
		seekKeyVal, mode = it.lo.key, seekKey
	case it.reverse && it.hi.has:
		seekKeyVal, mode = it.hi.key, seekKey
	case it.reverse:
		mode = seekMax
	}

	res, err := it.tree.descendRead(budget, seekKeyVal, maxDepth, mode)
	if err != nil {
		it.err = classifyIterErr(err)
		it.exhausted = true
		return false
	}

	collected, collectErr := it.collectSubtree(res.node, budget)

	if it.reverse {
		if res.hasPrevSibling {
			it.boundary, it.hasBoundary = res.prevSiblingKey, true
		} else {
			it.exhausted = true
		}
	} else {
		if res.hasNextSibling {
			it.boundary, it.hasBoundary = res.nextSiblingKey, true
		} else {
			it.exhausted = true
		}
	}
	res.chain.releaseAll()

	if collectErr != nil {
		it.err = collectErr
		it.exhausted = true
		return false
	}

	it.filterAndBuffer(collected)
	it.bufIdx = 0
	return true
}

func classifyIterErr(err error) error {
	if isTimeout(err) {
		return ErrIterationTimedOut
	}
	return err
}

// collectSubtree depth-first-traverses n, which the caller already
// holds read-latched, locking and releasing each descendant in turn.
// Holding several levels of a small subtree locked at once (rather
// than crab-releasing) is the tradeoff spec.md §4.6 accepts in
// exchange for never holding the whole tree.
func (it *Iterator[K, V]) collectSubtree(n *node[K, V], budget *rw.Budget) ([]entry[K, V], error) {
	if n.kind == leafKind {
		out := make([]entry[K, V], n.count)
		copy(out, n.entries[:n.count])
		if it.reverse {
			reverseEntries(out)
		}
		return out, nil
	}

	order := make([]int, n.count)
	for i := range order {
		order[i] = i
	}
	if it.reverse {
		reverseInts(order)
	}

	var out []entry[K, V]
	for _, i := range order {
		child := n.entries[i].child
		ok := false
		if budget.NonBlocking() {
			ok = child.latch.TryRLock()
		} else {
			ok = child.latch.RLock(budget.Context()) == nil
		}
		if !ok {
			return out, ErrIterationTimedOut
		}
		childOut, err := it.collectSubtree(child, budget)
		child.latch.RUnlock()
		if err != nil {
			return out, err
		}
		out = append(out, childOut...)
	}
	return out, nil
}

// filterAndBuffer narrows a freshly collected subtree's entries to
// those within [lo, hi] and, since an adjacent split may have
// happened between two subtree descents, strictly past the last key
// already yielded (spec.md §4.6's boundary-duplication guard).
func (it *Iterator[K, V]) filterAndBuffer(in []entry[K, V]) {
	cmp := it.tree.cmp
	out := in[:0]
	for _, e := range in {
		if it.lo.has {
			c := cmp(e.key, it.lo.key)
			if c < 0 || (c == 0 && !it.lo.inclusive) {
				continue
			}
		}
		if it.hi.has {
			c := cmp(e.key, it.hi.key)
			if c > 0 || (c == 0 && !it.hi.inclusive) {
				continue
			}
		}
		if it.hasLastYielded {
			c := cmp(e.key, it.lastYielded)
			if it.reverse && c >= 0 {
				continue
			}
			if !it.reverse && c <= 0 {
				continue
			}
		}
		out = append(out, e)
	}
	it.buf = out
}

func reverseEntries[K any, V any](es []entry[K, V]) {
	for i, j := 0, len(es)-1; i < j; i, j = i+1, j-1 {
		es[i], es[j] = es[j], es[i]
	}
}

func reverseInts(xs []int) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}
