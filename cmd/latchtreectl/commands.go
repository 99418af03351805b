package main

import (
	"cmp"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nutella-labs/latchtree"
)

var (
	fanOut      int
	timeoutMs   int
	iterReverse bool
	fillCount   int
)

// newDemoTree builds a fresh, empty string-keyed tree. The fill, iter
// and verify commands then seed it with fillCount random keys (see
// seed) so they have something to show. The core carries
// no persistence (spec.md §1 non-goals), so every invocation of this
// CLI starts from an empty tree.
func newDemoTree() (*latchtree.Tree[string, string], error) {
	return latchtree.New[string, string](fanOut, cmp.Compare[string])
}

func seed(t *latchtree.Tree[string, string], n int) error {
	for i := 0; i < n; i++ {
		key := uuid.NewString()
		if _, err := t.AddOrUpdate(key, key, latchtree.InfiniteTimeout); err != nil {
			return err
		}
	}
	return nil
}

var addCmd = &cobra.Command{
	Use:   "add <key> <value>",
	Short: "Insert a key/value pair into a fresh, empty demo tree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newDemoTree()
		if err != nil {
			return err
		}
		result, err := t.TryAdd(args[0], args[1], timeoutMs)
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Insert a sample value for key, then look it back up",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newDemoTree()
		if err != nil {
			return err
		}
		if _, err := t.AddOrUpdate(args[0], "demo-value", timeoutMs); err != nil {
			return err
		}
		value, result, err := t.TryGet(args[0], timeoutMs)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", result, value)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Insert then remove a key, printing both results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newDemoTree()
		if err != nil {
			return err
		}
		if _, err := t.AddOrUpdate(args[0], "demo-value", timeoutMs); err != nil {
			return err
		}
		result, err := t.TryRemove(args[0], timeoutMs)
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	},
}

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Insert --count random keys and print the resulting count/depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newDemoTree()
		if err != nil {
			return err
		}
		if err := seed(t, fillCount); err != nil {
			return err
		}
		fmt.Printf("count=%d depth=%d\n", t.Count(), t.Depth())
		return nil
	},
}

var iterCmd = &cobra.Command{
	Use:   "iter",
	Short: "Fill a demo tree and print its contents in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newDemoTree()
		if err != nil {
			return err
		}
		if err := seed(t, fillCount); err != nil {
			return err
		}
		var it *latchtree.Iterator[string, string]
		if iterReverse {
			it = t.IterReversed(timeoutMs)
		} else {
			it = t.Iter(timeoutMs)
		}
		n := 0
		for k, _, ok := it.Next(); ok; k, _, ok = it.Next() {
			fmt.Println(k)
			n++
		}
		if err := it.Err(); err != nil {
			return err
		}
		fmt.Printf("%d entries\n", n)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Fill a demo tree and run its debug invariant checker",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newDemoTree()
		if err != nil {
			return err
		}
		if err := seed(t, fillCount); err != nil {
			return err
		}
		if err := t.VerifyInvariants(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}
