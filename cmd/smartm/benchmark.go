package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartm-app/smartm/internal/benchmark"
)

var benchmarkCmd = &cobra.Command{
	Use:     "benchmark",
	GroupID: "maint",
	Short:   "Compare the SQLite and file storage strategies under load",
	Long: `Seed a scratch equipment collection in each storage strategy and measure
list and update latency with concurrent clients.

Examples:
  smartm benchmark
  smartm benchmark --clients 50 --records 2000 --writes 0.2
  smartm benchmark --json`,
	Run: runBenchmark,
}

func init() {
	defaults := benchmark.DefaultConfig()
	benchmarkCmd.Flags().Int("clients", defaults.Clients, "Number of concurrent clients")
	benchmarkCmd.Flags().Int("records", defaults.Records, "Size of the seeded collection")
	benchmarkCmd.Flags().Int("ops", defaults.OpsPerClient, "Operations per client")
	benchmarkCmd.Flags().Float64("writes", defaults.WritePct, "Share of operations that update a record (0.0-1.0)")
	benchmarkCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchmarkCmd)
}

func runBenchmark(cmd *cobra.Command, args []string) {
	config := benchmark.DefaultConfig()
	config.Clients, _ = cmd.Flags().GetInt("clients")
	config.Records, _ = cmd.Flags().GetInt("records")
	config.OpsPerClient, _ = cmd.Flags().GetInt("ops")
	config.WritePct, _ = cmd.Flags().GetFloat64("writes")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if err := config.Validate(); err != nil {
		fatalf("%v", err)
	}

	if !jsonOutput {
		fmt.Println("Running storage benchmark...")
	}
	result, err := benchmark.Compare(cmd.Context(), config)
	if err != nil {
		fatalf("%v", err)
	}

	if jsonOutput {
		if err := benchmark.WriteJSON(os.Stdout, result); err != nil {
			fatalf("%v", err)
		}
		return
	}
	benchmark.PrintComparison(os.Stdout, result)
}
