package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node and edge counts for the graph",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	gateway, err := openGateway(ctx, false)
	if err != nil {
		return err
	}
	defer gateway.Close(ctx)

	stats, err := gateway.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Nodes:")
	printCounts(stats.Nodes)
	fmt.Println("Edges:")
	printCounts(stats.Edges)
	return nil
}

func printCounts(counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	var total int64
	for key, count := range counts {
		keys = append(keys, key)
		total += count
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("  %-12s %d\n", key, counts[key])
	}
	fmt.Printf("  %-12s %d\n", "total", total)
}
