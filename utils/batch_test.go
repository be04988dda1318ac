package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/models"
)

func TestProcessBatch(t *testing.T) {
	tr := newTestTransformer(t)
	batch := models.SnapshotBatch{
		Stats: []models.StatsSample{
			{Address: "173.249.36.181:6000", Stats: strongStats()},
			{Address: "192.190.136.36:6000", Stats: models.StatsResponse{Uptime: 100, CurrentIndex: 2}},
		},
		Pods: []models.PodWithStats{
			{Address: "65.108.98.4:9001", Pubkey: "PodKeyOne", Uptime: 7200},
			{Pubkey: "dropped"},
		},
	}

	nodes, stats := tr.ProcessBatch(batch, nil)
	require.Len(t, nodes, 3)

	assert.Equal(t, "173.249.36.181", nodes[0].IPAddress)
	assert.Equal(t, "192.190.136.36", nodes[1].IPAddress)
	assert.Equal(t, "PodKeyOne", nodes[2].PublicKey)

	assert.Equal(t, 3, stats.TotalNodes)
	assert.Equal(t, 2, stats.ActiveNodes)
	assert.Equal(t, 1, stats.SyncingNodes)
	assert.Equal(t, 3, stats.ActiveCountries)
}

func TestProcessBatchFeedsNextRound(t *testing.T) {
	tr := newTestTransformer(t)
	batch := models.SnapshotBatch{
		Stats: []models.StatsSample{{Address: "173.249.36.181", Stats: strongStats()}},
	}

	_, first := tr.ProcessBatch(batch, nil)
	require.NotZero(t, first.Averages.NetAvgStorageUsage)

	nodes, _ := tr.ProcessBatch(batch, &first.Averages)
	require.Len(t, nodes, 1)

	// With the network already at 50% usage the node sits inside the band.
	cold := tr.Scorer.Breakdown(strongStats(), 100, 50, nil, testNow)
	warm := tr.Scorer.Breakdown(strongStats(), 100, 50, &first.Averages, testNow)
	assert.Greater(t, warm.Storage, cold.Storage)
	assert.Greater(t, nodes[0].HealthScore, 70)
}

func TestProcessBatchEmpty(t *testing.T) {
	tr := newTestTransformer(t)
	nodes, stats := tr.ProcessBatch(models.SnapshotBatch{}, nil)
	assert.Empty(t, nodes)
	assert.Zero(t, stats.TotalNodes)
}
