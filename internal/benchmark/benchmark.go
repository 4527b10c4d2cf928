// Package benchmark compares the two SmartM storage strategies under
// concurrent load: JSON collections in a file store against SQLite tables.
//
// Each run seeds a fresh equipment collection in a scratch directory, then
// lets a number of concurrent clients list the collection (computing
// operability as the app does) and, for a share of operations, change one
// item's status.
package benchmark

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/smartm-app/smartm/internal/db"
	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/repo"
	"github.com/smartm-app/smartm/internal/stats"
	"github.com/smartm-app/smartm/internal/storage"
)

// Strategy names a storage strategy under test.
type Strategy string

const (
	StrategyFile   Strategy = "file"
	StrategySQLite Strategy = "sqlite"
)

// Config defines the parameters for a benchmark run.
type Config struct {
	// Clients is the number of concurrent clients.
	Clients int

	// Records is the size of the seeded equipment collection.
	Records int

	// OpsPerClient is how many operations each client performs.
	OpsPerClient int

	// WritePct is the share of operations that update a record (0.0-1.0).
	WritePct float64

	// Dir holds the scratch store. Empty means a new temp directory.
	Dir string
}

// DefaultConfig returns a benchmark configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Clients:      20,
		Records:      500,
		OpsPerClient: 20,
		WritePct:     0.1,
	}
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	switch {
	case c.Clients <= 0:
		return fmt.Errorf("clients must be positive")
	case c.Records <= 0:
		return fmt.Errorf("records must be positive")
	case c.OpsPerClient <= 0:
		return fmt.Errorf("ops per client must be positive")
	case c.WritePct < 0 || c.WritePct > 1:
		return fmt.Errorf("write share must be between 0.0 and 1.0")
	}
	return nil
}

// Result captures the metrics of one run.
type Result struct {
	Strategy Strategy
	Config   Config

	Latency    LatencyMetrics
	Throughput float64 // operations per second
	TotalOps   int
	Writes     int

	SetupDuration time.Duration
	TotalDuration time.Duration
	MemoryDelta   uint64

	ErrorCount int
	ErrorRate  float64
}

// LatencyMetrics captures operation latency statistics.
type LatencyMetrics struct {
	Min  time.Duration
	P50  time.Duration
	Mean time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
}

// ComputeStats calculates statistics from raw durations.
func ComputeStats(durations []time.Duration) LatencyMetrics {
	if len(durations) == 0 {
		return LatencyMetrics{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyMetrics{
		Min:  sorted[0],
		P50:  sorted[len(sorted)*50/100],
		Mean: sum / time.Duration(len(sorted)),
		P95:  sorted[len(sorted)*95/100],
		P99:  sorted[len(sorted)*99/100],
		Max:  sorted[len(sorted)-1],
	}
}

// Run benchmarks one strategy.
func Run(ctx context.Context, strategy Strategy, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dir := config.Dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "smartm-bench-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		dir = tmp
	}

	memBefore := allocBytes()
	setupStart := time.Now()

	equipment, closeFn, err := open(ctx, strategy, dir)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	seed := make([]model.Equipment, config.Records)
	for i := range seed {
		seed[i] = model.Equipment{
			ID:          i + 1,
			Name:        fmt.Sprintf("Equipment %d", i+1),
			Status:      model.StatusOperational,
			Sensitivity: i%5 + 1,
		}
	}
	if err := equipment.SaveAll(ctx, seed); err != nil {
		return nil, fmt.Errorf("failed to seed %s store: %w", strategy, err)
	}
	setupDuration := time.Since(setupStart)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations = make([]time.Duration, 0, config.Clients*config.OpsPerClient)
		errCount  int
		writes    int
	)

	statuses := []model.EquipmentStatus{model.StatusOperational, model.StatusMaintenance, model.StatusOutOfService}
	benchStart := time.Now()

	for c := 0; c < config.Clients; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			local := make([]time.Duration, 0, config.OpsPerClient)
			localErrs, localWrites := 0, 0
			for j := 0; j < config.OpsPerClient; j++ {
				start := time.Now()
				var err error
				if rand.Float64() < config.WritePct {
					id := rand.IntN(config.Records) + 1
					status := statuses[rand.IntN(len(statuses))]
					err = equipment.Update(ctx, id, func(e *model.Equipment) { e.Status = status })
					localWrites++
				} else {
					var items []model.Equipment
					items, err = equipment.Load(ctx)
					_ = stats.TotalOperability(items)
				}
				local = append(local, time.Since(start))
				if err != nil {
					localErrs++
				}
			}

			mu.Lock()
			durations = append(durations, local...)
			errCount += localErrs
			writes += localWrites
			mu.Unlock()
		}()
	}
	wg.Wait()
	benchDuration := time.Since(benchStart)

	result := &Result{
		Strategy:      strategy,
		Config:        config,
		Latency:       ComputeStats(durations),
		TotalOps:      len(durations),
		Writes:        writes,
		SetupDuration: setupDuration,
		TotalDuration: benchDuration,
		ErrorCount:    errCount,
	}
	if after := allocBytes(); after > memBefore {
		result.MemoryDelta = after - memBefore
	}
	if benchDuration > 0 {
		result.Throughput = float64(result.TotalOps) / benchDuration.Seconds()
	}
	if result.TotalOps > 0 {
		result.ErrorRate = float64(errCount) / float64(result.TotalOps)
	}
	return result, nil
}

func open(ctx context.Context, strategy Strategy, dir string) (repo.Repository[model.Equipment], func(), error) {
	switch strategy {
	case StrategyFile:
		driver, err := storage.NewFileDriver(filepath.Join(dir, "file"))
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewStore(driver, "bench_", nil)
		return repo.NewBlob[model.Equipment](store, repo.KeyEquipment, nil), func() {}, nil

	case StrategySQLite:
		database, err := db.Open(ctx, filepath.Join(dir, "bench.db"))
		if err != nil {
			return nil, nil, err
		}
		return repo.NewSQL(database.RawDB(), repo.EquipmentMapping, nil), func() { _ = database.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown strategy %q", strategy)
}

func allocBytes() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

// FormatBytes formats bytes into a human-readable string.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration into a human-readable string.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
