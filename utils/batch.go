package utils

import "xandpulse/models"

// ProcessBatch transforms every snapshot in batch, stats before pods with
// input order kept, and aggregates the result. Pods without an address are
// dropped.
func (t *Transformer) ProcessBatch(batch models.SnapshotBatch, avgs *models.NetworkAverages) ([]models.CanonicalNode, models.NetworkStats) {
	nodes := make([]models.CanonicalNode, 0, batch.Len())

	for _, sample := range batch.Stats {
		nodes = append(nodes, t.TransformStats(sample.Stats, sample.Address, avgs))
	}
	for _, pod := range batch.Pods {
		if node, ok := t.TransformPod(pod, avgs); ok {
			nodes = append(nodes, *node)
		}
	}

	return nodes, AggregateNetwork(nodes, t.Now())
}
