// Package latchtree implements a concurrent ordered map backed by a
// B+ tree with per-node reader/writer latching.
// Multiple goroutines may insert, delete, look up, and iterate
// concurrently: lookups and mutations that do not split or merge a node
// hold only read latches above their leaf, so they proceed side by side
// on disjoint leaves. A mutation that falls back to the pessimistic
// descent keeps write latches on every node of its path, the root node
// included, until it completes. Every public operation accepts a
// millisecond-grained timeout on lock acquisition.
//
// The tree holds no file handle, no network connection, and no
// persisted state: it is an in-memory structure only, durable for the
// lifetime of the process. See SPEC_FULL.md for the full module map.
package latchtree

import (
	"sync/atomic"

	"github.com/nutella-labs/latchtree/internal/rw"
)

// InfiniteTimeout and NonBlockingTimeout are the two sentinel
// timeout_ms values spec.md §6 reserves, re-exported so callers never
// need to import internal/rw themselves.
const (
	InfiniteTimeout    = rw.Infinite
	NonBlockingTimeout = rw.NonBlocking
)

// MaxDepth is the deepest the tree may grow, counting the leaf level
// (spec.md §6). A descent therefore latches at most MaxDepth nodes
// (MaxDepth-1 internal levels plus the leaf), and MaxDepth is the
// tree's capacity ceiling: a root split that would exceed it is
// refused with a CapacityError before any root swap is published.
const MaxDepth = 30

// Tree is a concurrent ordered map from K to V. The zero Tree is not
// usable; construct one with New.
type Tree[K any, V any] struct {
	root      *node[K, V]
	rootLatch *rw.Latch
	cmp       CompareFunc[K]
	k         int
	count     int64
	depth     int32
}

// New constructs an empty tree with fan-out k (k >= 3) and the given
// total-order comparator. A smaller k, or a nil comparator, is
// rejected with an ArgumentError, never a panic, matching spec.md §6.
func New[K any, V any](k int, cmp CompareFunc[K]) (*Tree[K, V], error) {
	if k < 3 {
		return nil, argErr("latchtree: k must be >= 3, got %d", k)
	}
	if cmp == nil {
		return nil, argErr("latchtree: comparator must not be nil")
	}
	t := &Tree[K, V]{
		root:      newLeaf[K, V](k),
		rootLatch: rw.New(),
		cmp:       cmp,
		k:         k,
		depth:     1,
	}
	return t, nil
}

// Count returns a best-effort snapshot of the number of stored
// entries. It is consistent with the tree at some instant during the
// call but may be stale by the time the caller observes it.
func (t *Tree[K, V]) Count() int64 { return atomic.LoadInt64(&t.count) }

// IsEmpty is a convenience wrapper around Count() == 0.
func (t *Tree[K, V]) IsEmpty() bool { return t.Count() == 0 }

// Depth returns a best-effort snapshot of the tree's current depth
// (1 for a leaf-only tree).
func (t *Tree[K, V]) Depth() int { return int(atomic.LoadInt32(&t.depth)) }

// K returns the tree's fan-out constant.
func (t *Tree[K, V]) K() int { return t.k }
