package latchtree

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/nutella-labs/latchtree/internal/rw"
)

func newBudget(timeoutMs int) (*rw.Budget, error) {
	b, err := rw.NewBudget(timeoutMs)
	if err != nil {
		return nil, argErr(err.Error())
	}
	return b, nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// locateForInsert runs the two-phase descent spec.md §4.5 prescribes
// for every mutating operation: optimistic first, pessimistic only if
// the optimistic leaf proves unsafe. On return with a nil error, the
// returned chain's top node is the leaf to mutate and idx is where the
// key belongs (its current position if found, the insertion point
// otherwise).
func (t *Tree[K, V]) locateForInsert(budget *rw.Budget, intent Intent, key K) (*latchChain[K, V], int, bool, error) {
	chain, idx, found, safe, err := t.descendOptimistic(budget, intent, key)
	if err != nil {
		return chain, idx, found, err
	}
	if safe {
		return chain, idx, found, nil
	}
	chain, idx, found, err = t.descendPessimistic(budget, intent, key)
	if err != nil {
		return chain, idx, found, err
	}
	// A root write latch still held after a full pessimistic descent,
	// with the root node itself full, means every node on the path was
	// unsafe, which for an insert intent only happens when every one of
	// them is already at capacity: the cascading split is certain to
	// reach the root. Fail before mutating anything rather than
	// discover the capacity ceiling only after the leaf (and possibly
	// several internal levels) have already been rewritten.
	if !found && chain.rootHeld && chain.rootWrite && !t.root.canSafelyInsert() && t.Depth() >= MaxDepth {
		chain.releaseAll()
		return chain, idx, found, &CapacityError{maxDepth: MaxDepth}
	}
	return chain, idx, found, nil
}

func (t *Tree[K, V]) locateForDelete(budget *rw.Budget, intent Intent, key K) (*latchChain[K, V], int, bool, error) {
	chain, idx, found, safe, err := t.descendOptimistic(budget, intent, key)
	if err != nil {
		return chain, idx, found, err
	}
	if safe {
		return chain, idx, found, nil
	}
	return t.descendPessimistic(budget, intent, key)
}

// TryAdd inserts (key, value) only if key is not already present.
func (t *Tree[K, V]) TryAdd(key K, value V, timeoutMs int) (InsertResult, error) {
	budget, err := newBudget(timeoutMs)
	if err != nil {
		return 0, err
	}
	defer budget.Release()

	chain, idx, found, err := t.locateForInsert(budget, IntentInsertTest, key)
	if err != nil {
		chain.releaseAll()
		if isTimeout(err) {
			return TimedOut, nil
		}
		return 0, err
	}
	defer chain.releaseAll()

	if found {
		return AlreadyExists, nil
	}
	t.insertAtLeaf(chain, idx, key, value)
	return Inserted, nil
}

// AddOrUpdate inserts (key, value), overwriting any existing value.
func (t *Tree[K, V]) AddOrUpdate(key K, value V, timeoutMs int) (InsertResult, error) {
	budget, err := newBudget(timeoutMs)
	if err != nil {
		return 0, err
	}
	defer budget.Release()

	chain, idx, found, err := t.locateForInsert(budget, IntentInsert, key)
	if err != nil {
		chain.releaseAll()
		if isTimeout(err) {
			return TimedOut, nil
		}
		return 0, err
	}
	defer chain.releaseAll()

	leaf := chain.top()
	if found {
		leaf.entries[idx].value = value
		leaf.latch.BumpVersion()
		return Inserted, nil
	}
	t.insertAtLeaf(chain, idx, key, value)
	return Inserted, nil
}

// GetOrAdd returns the existing value for key, or inserts value and
// returns it if key was absent.
func (t *Tree[K, V]) GetOrAdd(key K, value V, timeoutMs int) (V, InsertResult, error) {
	budget, err := newBudget(timeoutMs)
	if err != nil {
		var zero V
		return zero, 0, err
	}
	defer budget.Release()

	chain, idx, found, err := t.locateForInsert(budget, IntentInsertTest, key)
	if err != nil {
		chain.releaseAll()
		var zero V
		if isTimeout(err) {
			return zero, TimedOut, nil
		}
		return zero, 0, err
	}
	defer chain.releaseAll()

	if found {
		return chain.top().entries[idx].value, AlreadyExists, nil
	}
	t.insertAtLeaf(chain, idx, key, value)
	return value, Inserted, nil
}

// insertAtLeaf performs the physical insert and, if it overflows the
// leaf, runs the rebalancer. Precondition: chain's top node is the
// leaf, write-latched, and key does not already occur in it.
func (t *Tree[K, V]) insertAtLeaf(chain *latchChain[K, V], idx int, key K, value V) {
	leaf := chain.top()
	leaf.insertAt(idx, entry[K, V]{key: key, value: value})
	leaf.latch.BumpVersion()
	atomic.AddInt64(&t.count, 1)
	if leaf.canSplit() {
		// A capacity error here is defensive: locateForInsert already
		// refuses upfront whenever a root split is certain. It can
		// only fire if the tree's depth changed between that check and
		// this call, which cannot happen while this chain still holds
		// the root-pointer write latch.
		_ = t.trySplit(leaf)
	}
}

// TryRemove deletes key if present.
func (t *Tree[K, V]) TryRemove(key K, timeoutMs int) (RemoveResult, error) {
	budget, err := newBudget(timeoutMs)
	if err != nil {
		return 0, err
	}
	defer budget.Release()

	chain, idx, found, err := t.locateForDelete(budget, IntentDeleteTest, key)
	if err != nil {
		chain.releaseAll()
		if isTimeout(err) {
			return RemoveTimedOut, nil
		}
		return 0, err
	}
	defer chain.releaseAll()

	if !found {
		return NotFound, nil
	}
	leaf := chain.top()
	leaf.deleteAt(idx)
	leaf.latch.BumpVersion()
	atomic.AddInt64(&t.count, -1)
	if leaf.canMerge() {
		t.tryMerge(leaf)
	}
	return Removed, nil
}

// TryGet returns the value stored for key, if any.
func (t *Tree[K, V]) TryGet(key K, timeoutMs int) (V, LookupResult, error) {
	budget, err := newBudget(timeoutMs)
	if err != nil {
		var zero V
		return zero, 0, err
	}
	defer budget.Release()

	res, err := t.descendRead(budget, key, -1, seekKey)
	if err != nil {
		var zero V
		if isTimeout(err) {
			return zero, LookupTimedOut, nil
		}
		return zero, 0, err
	}
	defer res.chain.releaseAll()

	if !res.found {
		var zero V
		return zero, LookupNotFound, nil
	}
	return res.node.entries[res.index].value, Found, nil
}

// ContainsKey reports whether key is present.
func (t *Tree[K, V]) ContainsKey(key K, timeoutMs int) (bool, LookupResult, error) {
	_, result, err := t.TryGet(key, timeoutMs)
	return result == Found, result, err
}

// Clear empties the tree, installing a fresh leaf as the root.
// Existing concurrent readers keep seeing their own already-latched
// snapshot until they release it.
func (t *Tree[K, V]) Clear(timeoutMs int) (ClearResult, error) {
	budget, err := newBudget(timeoutMs)
	if err != nil {
		return 0, err
	}
	defer budget.Release()

	var acquireErr error
	if budget.NonBlocking() {
		if !t.rootLatch.TryLock() {
			acquireErr = context.DeadlineExceeded
		}
	} else {
		acquireErr = t.rootLatch.Lock(budget.Context())
	}
	if acquireErr != nil {
		return ClearTimedOut, nil
	}
	defer t.rootLatch.Unlock()

	t.root = newLeaf[K, V](t.k)
	atomic.StoreInt64(&t.count, 0)
	atomic.StoreInt32(&t.depth, 1)
	return Cleared, nil
}
