// Command latchtreectl is a small interactive client over an
// in-process latchtree.Tree[string, string], used to exercise and
// demo the dictionary operations from a shell. It follows the
// teacher's cobra RootCmd/Execute split (dbcli.RootCmd/dbcli.Execute).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "latchtreectl",
	Short: "CLI for exercising a latchtree.Tree",
	Long:  "A command-line client over an in-memory concurrent B+ tree ordered map, for demos and manual testing.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(iterCmd)
	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(verifyCmd)

	rootCmd.PersistentFlags().IntVar(&fanOut, "k", 32, "tree fan-out")
	rootCmd.PersistentFlags().IntVar(&timeoutMs, "timeout", -1, "lock-acquisition timeout in ms (-1 infinite, 0 non-blocking)")
	iterCmd.Flags().BoolVar(&iterReverse, "reverse", false, "iterate in descending order")
	fillCmd.Flags().IntVar(&fillCount, "count", 1000, "number of random keys to insert")
}
