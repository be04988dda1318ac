package models

// SnapshotKind tags which raw schema a Snapshot came from.
type SnapshotKind string

const (
	SnapshotStats SnapshotKind = "stats"
	SnapshotPod   SnapshotKind = "pod"
)

// Snapshot is one raw telemetry read. Only StatsResponse and PodWithStats
// implement it.
type Snapshot interface {
	Kind() SnapshotKind
	snapshot()
}

func (StatsResponse) Kind() SnapshotKind { return SnapshotStats }
func (StatsResponse) snapshot()          {}

func (PodWithStats) Kind() SnapshotKind { return SnapshotPod }
func (PodWithStats) snapshot()          {}

// SnapshotBatch is everything collected in one polling round.
type SnapshotBatch struct {
	Stats []StatsSample  `json:"stats"`
	Pods  []PodWithStats `json:"pods"`
}

// Len returns the number of raw snapshots in the batch.
func (b SnapshotBatch) Len() int {
	return len(b.Stats) + len(b.Pods)
}
