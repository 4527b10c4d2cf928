package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ComparisonResult contains the results of running both strategies.
type ComparisonResult struct {
	SQLite Result `json:"sqlite"`
	File   Result `json:"file"`

	// LatencyImprovement is keyed by p50, mean, p95, p99, max. Positive
	// means SQLite was faster.
	LatencyImprovement    map[string]float64 `json:"latency_improvement_pct"`
	ThroughputImprovement float64            `json:"throughput_improvement_pct"`
	Winner                Strategy           `json:"winner"`
}

// Compare runs both strategies with the same configuration.
func Compare(ctx context.Context, config Config) (*ComparisonResult, error) {
	sqlite, err := Run(ctx, StrategySQLite, config)
	if err != nil {
		return nil, fmt.Errorf("sqlite benchmark failed: %w", err)
	}
	file, err := Run(ctx, StrategyFile, config)
	if err != nil {
		return nil, fmt.Errorf("file benchmark failed: %w", err)
	}

	result := &ComparisonResult{
		SQLite: *sqlite,
		File:   *file,
		LatencyImprovement: map[string]float64{
			"p50":  improvement(sqlite.Latency.P50, file.Latency.P50),
			"mean": improvement(sqlite.Latency.Mean, file.Latency.Mean),
			"p95":  improvement(sqlite.Latency.P95, file.Latency.P95),
			"p99":  improvement(sqlite.Latency.P99, file.Latency.P99),
			"max":  improvement(sqlite.Latency.Max, file.Latency.Max),
		},
	}
	if file.Throughput > 0 {
		result.ThroughputImprovement = (sqlite.Throughput - file.Throughput) / file.Throughput * 100
	}

	wins := 0
	for _, v := range result.LatencyImprovement {
		switch {
		case v > 0:
			wins++
		case v < 0:
			wins--
		}
	}
	switch {
	case result.ThroughputImprovement > 0:
		wins++
	case result.ThroughputImprovement < 0:
		wins--
	}
	switch {
	case wins > 0:
		result.Winner = StrategySQLite
	case wins < 0:
		result.Winner = StrategyFile
	default:
		result.Winner = "tie"
	}
	return result, nil
}

// improvement is the percentage by which a beats b. Positive = a is faster.
func improvement(a, b time.Duration) float64 {
	if b == 0 {
		return 0
	}
	return float64(b-a) / float64(b) * 100
}

// PrintComparison writes a formatted comparison report.
func PrintComparison(w io.Writer, result *ComparisonResult) {
	separator := strings.Repeat("=", 64)
	fmt.Fprintf(w, "\n%s\n", separator)
	fmt.Fprintf(w, "STORAGE BENCHMARK: SQLite tables vs JSON file store\n")
	fmt.Fprintf(w, "%s\n\n", separator)

	cfg := result.SQLite.Config
	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Concurrent clients:  %d\n", cfg.Clients)
	fmt.Fprintf(w, "  Records:             %d\n", cfg.Records)
	fmt.Fprintf(w, "  Ops per client:      %d\n", cfg.OpsPerClient)
	fmt.Fprintf(w, "  Writes:              %.0f%%\n\n", cfg.WritePct*100)

	fmt.Fprintf(w, "%-10s | %-12s | %-12s | %s\n", "Latency", "SQLite", "File", "Improvement")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 56))
	rows := []struct {
		name   string
		s, f   time.Duration
		metric string
	}{
		{"P50", result.SQLite.Latency.P50, result.File.Latency.P50, "p50"},
		{"Mean", result.SQLite.Latency.Mean, result.File.Latency.Mean, "mean"},
		{"P95", result.SQLite.Latency.P95, result.File.Latency.P95, "p95"},
		{"P99", result.SQLite.Latency.P99, result.File.Latency.P99, "p99"},
		{"Max", result.SQLite.Latency.Max, result.File.Latency.Max, "max"},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s | %-12s | %-12s | %+.1f%%\n", r.name, FormatDuration(r.s), FormatDuration(r.f), result.LatencyImprovement[r.metric])
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Throughput:\n")
	fmt.Fprintf(w, "  SQLite:  %.2f ops/sec\n", result.SQLite.Throughput)
	fmt.Fprintf(w, "  File:    %.2f ops/sec\n", result.File.Throughput)
	fmt.Fprintf(w, "  Improvement: %+.1f%%\n\n", result.ThroughputImprovement)

	fmt.Fprintf(w, "Setup:   SQLite %s, File %s\n", FormatDuration(result.SQLite.SetupDuration), FormatDuration(result.File.SetupDuration))
	fmt.Fprintf(w, "Memory:  SQLite %s, File %s\n", FormatBytes(result.SQLite.MemoryDelta), FormatBytes(result.File.MemoryDelta))
	fmt.Fprintf(w, "Errors:  SQLite %d, File %d\n\n", result.SQLite.ErrorCount, result.File.ErrorCount)

	fmt.Fprintf(w, "Winner:  %s\n", strings.ToUpper(string(result.Winner)))
	fmt.Fprintf(w, "%s\n\n", separator)
}

// WriteJSON writes the comparison as indented JSON.
func WriteJSON(w io.Writer, result *ComparisonResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
