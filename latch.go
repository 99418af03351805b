package latchtree

import (
	"context"

	"github.com/nutella-labs/latchtree/internal/rw"
)

// Intent classifies what a latch chain's holder is about to do to the
// node(s) it locks. *_test intents back the conditional operations
// (try_add, get_or_add, try_remove): they retain the leaf's write
// latch even when the leaf is structurally unsafe, so the caller can
// inspect it atomically before deciding whether a second, pessimistic
// descent is warranted (spec.md §4.2).
type Intent uint8

const (
	IntentRead Intent = iota
	IntentInsert
	IntentDelete
	IntentInsertTest
	IntentDeleteTest
)

func (i Intent) isMutating() bool {
	return i == IntentInsert || i == IntentDelete || i == IntentInsertTest || i == IntentDeleteTest
}

func (i Intent) isTest() bool {
	return i == IntentInsertTest || i == IntentDeleteTest
}

// heldLatch is one entry on a latch chain: a node plus the polarity
// (read/write) its latch was taken with.
type heldLatch[K any, V any] struct {
	n     *node[K, V]
	write bool
}

// latchChain owns the sequence of node latches held by one in-flight
// operation, plus the tree's root-pointer latch. It is a scoped
// resource: every exit path — success, not-found, timeout, or a bug
// caught by the invariant checker — must route through releaseAll (or
// the partial releaseAncestors during crabbing), never leak a latch.
type latchChain[K any, V any] struct {
	tree           *Tree[K, V]
	budget         *rw.Budget
	intent         Intent
	assumeLeafSafe bool
	rootHeld       bool
	rootWrite      bool
	held           []heldLatch[K, V]
}

func newChain[K any, V any](t *Tree[K, V], budget *rw.Budget, intent Intent, assumeLeafSafe bool) *latchChain[K, V] {
	return &latchChain[K, V]{tree: t, budget: budget, intent: intent, assumeLeafSafe: assumeLeafSafe}
}

func (c *latchChain[K, V]) acquire(l *rw.Latch, write bool) error {
	if c.budget.NonBlocking() {
		var ok bool
		if write {
			ok = l.TryLock()
		} else {
			ok = l.TryRLock()
		}
		if !ok {
			return context.DeadlineExceeded
		}
		return nil
	}
	if write {
		return l.Lock(c.budget.Context())
	}
	return l.RLock(c.budget.Context())
}

func (c *latchChain[K, V]) release(l *rw.Latch, write bool) {
	if write {
		l.Unlock()
	} else {
		l.RUnlock()
	}
}

// acquireRoot takes the tree's root-pointer latch.
func (c *latchChain[K, V]) acquireRoot(write bool) error {
	if err := c.acquire(c.tree.rootLatch, write); err != nil {
		return err
	}
	c.rootHeld = true
	c.rootWrite = write
	return nil
}

// acquireNode takes n's latch and pushes it onto the chain.
func (c *latchChain[K, V]) acquireNode(n *node[K, V], write bool) error {
	if err := c.acquire(n.latch, write); err != nil {
		return err
	}
	c.held = append(c.held, heldLatch[K, V]{n: n, write: write})
	return nil
}

// releaseAncestors drops the root-pointer latch, unless keep is the
// current root. Its loop only pops latches pushed after keep; every
// caller passes the node it has just acquired, which is already on
// top, so the node latches of keep's ancestors are not released here
// and stay held until releaseAll.
func (c *latchChain[K, V]) releaseAncestors(keep *node[K, V]) {
	for len(c.held) > 0 && c.held[len(c.held)-1].n != keep {
		top := c.held[len(c.held)-1]
		c.held = c.held[:len(c.held)-1]
		c.release(top.n.latch, top.write)
	}
	if c.rootHeld && keep != c.tree.root {
		c.release(c.tree.rootLatch, c.rootWrite)
		c.rootHeld = false
	}
}

// releaseAll drops every latch this chain holds, in LIFO order,
// finally dropping the root-pointer latch. Idempotent.
func (c *latchChain[K, V]) releaseAll() {
	for len(c.held) > 0 {
		top := c.held[len(c.held)-1]
		c.held = c.held[:len(c.held)-1]
		c.release(top.n.latch, top.write)
	}
	if c.rootHeld {
		c.release(c.tree.rootLatch, c.rootWrite)
		c.rootHeld = false
	}
}

// top returns the most recently acquired node, or nil if none is held.
func (c *latchChain[K, V]) top() *node[K, V] {
	if len(c.held) == 0 {
		return nil
	}
	return c.held[len(c.held)-1].n
}
