package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"xandpulse/logger"
	"xandpulse/models"
)

var (
	ErrNoSeedNodes = errors.New("no seed nodes configured")
	ErrNoSnapshots = errors.New("no snapshots collected")
)

// NodeClient is the part of PRPCClient the collector needs.
type NodeClient interface {
	GetStats(ctx context.Context, addr string) (*models.StatsResponse, error)
	GetPodsWithStats(ctx context.Context, addr string) (*models.PodsWithStatsResponse, error)
	GetVersion(ctx context.Context, addr string) (*models.VersionResponse, error)
}

// Collector polls every seed node for its own stats and its gossip view.
type Collector struct {
	client NodeClient
	seeds  []string
	limit  int
}

func NewCollector(client NodeClient, seeds []string, concurrency int) *Collector {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Collector{client: client, seeds: seeds, limit: concurrency}
}

type seedResult struct {
	stats *models.StatsSample
	pods  []models.PodWithStats
	err   error
}

// Collect runs one polling round. A failing seed is logged and skipped;
// an error is returned only when no seed yielded anything.
func (c *Collector) Collect(ctx context.Context) (models.SnapshotBatch, error) {
	if len(c.seeds) == 0 {
		return models.SnapshotBatch{}, ErrNoSeedNodes
	}

	results := make([]seedResult, len(c.seeds))

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, seed := range c.seeds {
		g.Go(func() error {
			results[i] = c.pollSeed(ctx, seed)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return models.SnapshotBatch{}, fmt.Errorf("collect canceled: %w", err)
	}

	var batch models.SnapshotBatch
	var errs []error
	var pods []models.PodWithStats
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
		}
		if r.stats != nil {
			batch.Stats = append(batch.Stats, *r.stats)
		}
		pods = append(pods, r.pods...)
	}
	batch.Pods = dedupePods(pods)

	if batch.Len() == 0 {
		if len(errs) == 0 {
			return batch, ErrNoSnapshots
		}
		return batch, fmt.Errorf("%w: %w", ErrNoSnapshots, errors.Join(errs...))
	}
	return batch, nil
}

func (c *Collector) pollSeed(ctx context.Context, seed string) seedResult {
	var r seedResult

	stats, statsErr := c.client.GetStats(ctx, seed)
	if statsErr != nil {
		logger.Warn().Err(statsErr).Str("seed", seed).Msg("get-stats failed")
	} else {
		r.stats = &models.StatsSample{Address: seed, Stats: *stats}
	}

	podsResp, podsErr := c.client.GetPodsWithStats(ctx, seed)
	switch {
	case podsErr == nil:
		r.pods = podsResp.Pods
	case IsMethodNotFound(podsErr):
		logger.Debug().Str("seed", seed).Msg("seed does not serve get-pods-with-stats")
		podsErr = nil
	default:
		logger.Warn().Err(podsErr).Str("seed", seed).Msg("get-pods-with-stats failed")
	}

	// Version is informational; a seed that cannot report it is still polled.
	if ver, err := c.client.GetVersion(ctx, seed); err != nil {
		logger.Debug().Err(err).Str("seed", seed).Msg("get-version failed")
	} else {
		logger.Debug().Str("seed", seed).Str("version", ver.Version).Int("pods", len(r.pods)).Msg("seed polled")
	}

	if statsErr != nil && podsErr != nil {
		r.err = fmt.Errorf("seed %s: %w", seed, errors.Join(statsErr, podsErr))
	} else if statsErr != nil && len(r.pods) == 0 {
		r.err = fmt.Errorf("seed %s: %w", seed, statsErr)
	}
	return r
}

// dedupePods keeps one entry per address, the one seen most recently.
// Order of first appearance is kept. Entries without an address pass
// through so the transformer can report them.
func dedupePods(pods []models.PodWithStats) []models.PodWithStats {
	index := make(map[string]int, len(pods))
	out := make([]models.PodWithStats, 0, len(pods))
	for _, p := range pods {
		if p.Address == "" {
			out = append(out, p)
			continue
		}
		if i, ok := index[p.Address]; ok {
			if p.LastSeenTimestamp > out[i].LastSeenTimestamp {
				out[i] = p
			}
			continue
		}
		index[p.Address] = len(out)
		out = append(out, p)
	}
	return out
}
