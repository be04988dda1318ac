package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"xandpulse/logger"
	"xandpulse/models"
	"xandpulse/utils"
)

// SnapshotSource supplies one round of raw snapshots.
type SnapshotSource interface {
	Collect(ctx context.Context) (models.SnapshotBatch, error)
}

// Round is the output of one aggregation pass.
type Round struct {
	Nodes    []models.CanonicalNode
	Stats    models.NetworkStats
	Baseline *models.NetworkAverages // averages the round was scored with; nil on cold start
	Duration time.Duration
}

// DataAggregator runs the transform pipeline over collected snapshots and
// carries the network averages from each round into the next.
type DataAggregator struct {
	source      SnapshotSource
	transformer *utils.Transformer

	mu       sync.Mutex
	baseline *models.NetworkAverages
}

func NewDataAggregator(source SnapshotSource, transformer *utils.Transformer) *DataAggregator {
	return &DataAggregator{
		source:      source,
		transformer: transformer,
	}
}

// Aggregate collects a batch and processes it.
func (da *DataAggregator) Aggregate(ctx context.Context) (*Round, error) {
	batch, err := da.source.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect snapshots: %w", err)
	}
	return da.Process(batch), nil
}

// Process scores batch against the current baseline and replaces the
// baseline with the averages derived from this round.
func (da *DataAggregator) Process(batch models.SnapshotBatch) *Round {
	start := time.Now()

	da.mu.Lock()
	defer da.mu.Unlock()

	baseline := da.baseline
	nodes, stats := da.transformer.ProcessBatch(batch, baseline)

	if len(nodes) > 0 {
		next := stats.Averages
		da.baseline = &next
	}

	round := &Round{
		Nodes:    nodes,
		Stats:    stats,
		Baseline: baseline,
		Duration: time.Since(start),
	}

	logger.Info().
		Int("snapshots", batch.Len()).
		Int("nodes", stats.TotalNodes).
		Int("active", stats.ActiveNodes).
		Int("syncing", stats.SyncingNodes).
		Int("inactive", stats.InactiveNodes).
		Str("storage", fmt.Sprintf("%s / %s", humanize.Bytes(uint64(stats.UsedStorage)), humanize.Bytes(uint64(stats.TotalStorage)))).
		Float64("decentralization", stats.DecentralizationScore).
		Bool("cold_start", baseline == nil).
		Dur("took", round.Duration).
		Msg("aggregated network round")

	return round
}

// Baseline returns a copy of the averages the next round will use.
func (da *DataAggregator) Baseline() (models.NetworkAverages, bool) {
	da.mu.Lock()
	defer da.mu.Unlock()
	if da.baseline == nil {
		return models.NetworkAverages{}, false
	}
	return *da.baseline, true
}

func (da *DataAggregator) SetBaseline(avgs models.NetworkAverages) {
	da.mu.Lock()
	defer da.mu.Unlock()
	da.baseline = &avgs
}

// ResetBaseline makes the next round a cold start.
func (da *DataAggregator) ResetBaseline() {
	da.mu.Lock()
	defer da.mu.Unlock()
	da.baseline = nil
}
