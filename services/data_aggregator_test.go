package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"xandpulse/models"
	"xandpulse/utils"
)

type fakeSource struct {
	batch models.SnapshotBatch
	err   error
	calls int
}

func (f *fakeSource) Collect(context.Context) (models.SnapshotBatch, error) {
	f.calls++
	return f.batch, f.err
}

var aggregatorNow = time.Unix(1_700_000_000, 0)

func testTransformer() *utils.Transformer {
	tr := utils.NewTransformer(nil, nil)
	tr.Now = func() time.Time { return aggregatorNow }
	tr.Rand = func() float64 { return 0.5 }
	tr.Suffix = utils.StableIdentitySuffix
	return tr
}

func sampleBatch() models.SnapshotBatch {
	return models.SnapshotBatch{
		Stats: []models.StatsSample{{
			Address: "173.212.203.145:6000",
			Stats: models.StatsResponse{
				Uptime: 700_000, CPUPercent: 40, ActiveStreams: 3,
				PacketsReceived: 1_000_000, PacketsSent: 1_000_000,
				LastUpdated: aggregatorNow.Unix(), FileSize: 500_000_000_000,
			},
		}},
		Pods: []models.PodWithStats{
			{Address: "192.190.136.36:9001", Pubkey: "PodOne", Version: "1.16.14", Uptime: 90_000, StorageCommitted: 1000, StorageUsed: 100, StorageUsagePercent: 10},
		},
	}
}

type DataAggregatorTestSuite struct {
	suite.Suite
	source *fakeSource
	agg    *DataAggregator
}

func (s *DataAggregatorTestSuite) SetupTest() {
	s.source = &fakeSource{batch: sampleBatch()}
	s.agg = NewDataAggregator(s.source, testTransformer())
}

func (s *DataAggregatorTestSuite) TestColdStartThenBaseline() {
	first, err := s.agg.Aggregate(context.Background())
	s.Require().NoError(err)
	s.Nil(first.Baseline)
	s.Len(first.Nodes, 2)

	baseline, ok := s.agg.Baseline()
	s.Require().True(ok)
	s.Equal(first.Stats.Averages, baseline)

	second, err := s.agg.Aggregate(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(second.Baseline)
	s.Equal(first.Stats.Averages, *second.Baseline)
	s.Equal(2, s.source.calls)
}

func (s *DataAggregatorTestSuite) TestResetBaseline() {
	_, err := s.agg.Aggregate(context.Background())
	s.Require().NoError(err)

	s.agg.ResetBaseline()
	_, ok := s.agg.Baseline()
	s.False(ok)

	round, err := s.agg.Aggregate(context.Background())
	s.Require().NoError(err)
	s.Nil(round.Baseline)
}

func (s *DataAggregatorTestSuite) TestSetBaseline() {
	avgs := models.NetworkAverages{NetAvgUptime: 1000, NetAvgStorageUsage: 40, NetAvgActivity: 50}
	s.agg.SetBaseline(avgs)

	round, err := s.agg.Aggregate(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(round.Baseline)
	s.Equal(avgs, *round.Baseline)
}

func (s *DataAggregatorTestSuite) TestEmptyRoundKeepsBaseline() {
	avgs := models.NetworkAverages{NetAvgUptime: 1000}
	s.agg.SetBaseline(avgs)
	s.source.batch = models.SnapshotBatch{}

	round, err := s.agg.Aggregate(context.Background())
	s.Require().NoError(err)
	s.Empty(round.Nodes)

	got, ok := s.agg.Baseline()
	s.True(ok)
	s.Equal(avgs, got)
}

func (s *DataAggregatorTestSuite) TestSourceError() {
	s.source.err = ErrNoSnapshots
	_, err := s.agg.Aggregate(context.Background())
	s.Require().Error(err)
	s.True(errors.Is(err, ErrNoSnapshots))
}

func TestDataAggregatorTestSuite(t *testing.T) {
	suite.Run(t, new(DataAggregatorTestSuite))
}

func TestIndependentAggregatorsDoNotShareBaseline(t *testing.T) {
	a := NewDataAggregator(&fakeSource{batch: sampleBatch()}, testTransformer())
	b := NewDataAggregator(&fakeSource{batch: sampleBatch()}, testTransformer())

	_, err := a.Aggregate(context.Background())
	require.NoError(t, err)

	_, ok := b.Baseline()
	assert.False(t, ok)
}
