package utils

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/models"
)

func TestDefaultScoringWeightsSumToOne(t *testing.T) {
	w := DefaultScoringConfig().Weights
	assert.InDelta(t, 1.0, w.Uptime+w.CPU+w.Storage+w.Activity+w.Bandwidth+w.Compliance, 1e-9)
}

func TestScoreRangeForStats(t *testing.T) {
	scorer := NewHealthScorer(DefaultScoringConfig())
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 2000; i++ {
		s := models.StatsResponse{
			Uptime:          r.Int64N(10_000_000),
			CPUPercent:      r.Float64() * 100,
			ActiveStreams:   r.IntN(50),
			PacketsReceived: r.Int64N(1e9),
			PacketsSent:     r.Int64N(1e9),
			LastUpdated:     testNow.Unix() - r.Int64N(10_000),
		}
		var avgs *models.NetworkAverages
		if i%2 == 0 {
			avgs = &models.NetworkAverages{
				NetAvgUptime:       r.Float64() * 2_592_000,
				NetAvgStorageUsage: r.Float64() * 100,
				NetAvgActivity:     r.Float64() * 1000,
			}
		}
		score := scorer.Score(s, r.Float64()*100, r.Float64()*100, avgs, testNow)
		require.GreaterOrEqual(t, score, 20)
		require.LessOrEqual(t, score, 100)
	}
}

func graceStats() models.StatsResponse {
	return models.StatsResponse{
		Uptime:      100_000,
		CPUPercent:  40,
		LastUpdated: testNow.Unix() - 1000,
	}
}

func TestGracePeriodBoost(t *testing.T) {
	withBoost := NewHealthScorer(DefaultScoringConfig())
	cfg := DefaultScoringConfig()
	cfg.GraceBoost = 0
	without := NewHealthScorer(cfg)

	b := withBoost.Breakdown(graceStats(), 100, 50, nil, testNow)
	nb := without.Breakdown(graceStats(), 100, 50, nil, testNow)

	assert.InDelta(t, 25.11, b.Weighted, 0.05)
	assert.Equal(t, 25.0, b.GraceBoost)
	assert.Equal(t, b.Weighted, nb.Weighted)
	assert.Equal(t, 50, b.Final)
	assert.Equal(t, 25, nb.Final)
	assert.Equal(t, 25, b.Final-nb.Final)
}

func TestNoGraceBoostAfterThreeDays(t *testing.T) {
	scorer := NewHealthScorer(DefaultScoringConfig())
	s := graceStats()
	s.Uptime = 259_200
	assert.Zero(t, scorer.Breakdown(s, 100, 50, nil, testNow).GraceBoost)
}

func TestScoreFloor(t *testing.T) {
	scorer := NewHealthScorer(DefaultScoringConfig())
	s := models.StatsResponse{Uptime: 400_000, CPUPercent: 100, LastUpdated: 1}
	b := scorer.Breakdown(s, 0, 100, &models.NetworkAverages{NetAvgUptime: 1e9, NetAvgStorageUsage: 1}, testNow)
	assert.Less(t, b.Weighted, 20.0)
	assert.Equal(t, 20, b.Final)
}

func TestSubScores(t *testing.T) {
	scorer := NewHealthScorer(DefaultScoringConfig())

	t.Run("cpu band", func(t *testing.T) {
		for _, cpu := range []float64{20, 40, 60} {
			b := scorer.Breakdown(models.StatsResponse{CPUPercent: cpu}, 0, 0, nil, testNow)
			assert.InDelta(t, 99.33, b.CPU, 0.01, "cpu %v", cpu)
		}
		idle := scorer.Breakdown(models.StatsResponse{CPUPercent: 0}, 0, 0, nil, testNow)
		assert.InDelta(t, 0.669, idle.CPU, 0.001)
		busy := scorer.Breakdown(models.StatsResponse{CPUPercent: 80}, 0, 0, nil, testNow)
		assert.InDelta(t, 73.11, busy.CPU, 0.01)
	})

	t.Run("storage band uses average", func(t *testing.T) {
		avgs := &models.NetworkAverages{NetAvgStorageUsage: 50}
		in := scorer.Breakdown(models.StatsResponse{}, 0, 45, avgs, testNow)
		assert.InDelta(t, 99.33, in.Storage, 0.01)

		// below the band: 10/30*100 = 33.3, floored at 50
		below := scorer.Breakdown(models.StatsResponse{}, 0, 10, avgs, testNow)
		assert.InDelta(t, 50.0, below.Storage, 0.01)

		// a low edge under 1 is still the divisor: 0.3/0.5*100 = 60
		narrow := scorer.Breakdown(models.StatsResponse{}, 0, 0.3, &models.NetworkAverages{NetAvgStorageUsage: 20.5}, testNow)
		assert.InDelta(t, 73.11, narrow.Storage, 0.01)
	})

	t.Run("pod defaults", func(t *testing.T) {
		pod := models.PodWithStats{Address: "1.2.3.4:9001", Version: "1.16.14", Uptime: 90_000, LastSeenTimestamp: testNow.Unix()}
		b := scorer.Breakdown(pod, 100, 0, nil, testNow)
		assert.InDelta(t, 99.33, b.CPU, 0.01)
		assert.InDelta(t, 0.669, b.Activity, 0.001)
		assert.Equal(t, 70.0, b.Compliance)
	})

	t.Run("pod version mismatch", func(t *testing.T) {
		pod := models.PodWithStats{Address: "1.2.3.4:9001", Version: "1.15.2", Uptime: 90_000, LastSeenTimestamp: testNow.Unix()}
		assert.Equal(t, 20.0, scorer.Breakdown(pod, 100, 0, nil, testNow).Compliance)
	})
}

func TestScoringConfigIsImmutable(t *testing.T) {
	cfg := DefaultScoringConfig()
	scorer := NewHealthScorer(cfg)
	cfg.Weights.Uptime = 1
	assert.Equal(t, 0.25, scorer.Config().Weights.Uptime)

	other := cfg.WithCurrentVersion("v2.0.0")
	assert.Equal(t, "v1.16.14", cfg.CurrentVersion)
	assert.Equal(t, "v2.0.0", other.CurrentVersion)
}

func TestEstimateBandwidthMbps(t *testing.T) {
	assert.InDelta(t, 0.0343, EstimateBandwidthMbps(2_000_000, 700_000), 0.0001)
	assert.InDelta(t, 12.0, EstimateBandwidthMbps(1_000, 0), 1e-9)
	assert.Zero(t, EstimateBandwidthMbps(0, 100))
}
