package utils

import (
	"time"

	"xandpulse/models"
)

const (
	NetworkVersion         = "v1.16.14-xandeum"
	baselineWindowSeconds  = 30 * 24 * 3600
	maxDecentralization    = 100
	countryDecentralWeight = 10
	cityDecentralWeight    = 5
)

// AggregateNetwork summarizes a round of canonical nodes and derives the
// averages that seed the next round's scoring.
//
// Uptime seconds are not kept on the canonical record, so the uptime
// baseline is rebuilt from the percentage over a 30 day window. Successive
// rounds drift because of this.
func AggregateNetwork(nodes []models.CanonicalNode, now time.Time) models.NetworkStats {
	stats := models.NetworkStats{
		TotalNodes:     len(nodes),
		NetworkVersion: NetworkVersion,
		LastUpdated:    now,
	}

	countries := make(map[string]struct{})
	cities := make(map[string]struct{})

	var sumUptime, sumLatency, sumBaselineUptime, sumUsage, sumRPS float64
	for _, n := range nodes {
		switch n.Status {
		case models.StatusActive:
			stats.ActiveNodes++
		case models.StatusInactive:
			stats.InactiveNodes++
		case models.StatusSyncing:
			stats.SyncingNodes++
		}

		stats.TotalStorage += n.Storage.Total
		stats.UsedStorage += n.Storage.Used
		stats.TotalBandwidth += n.Performance.BandwidthMbps

		sumUptime += n.Uptime
		sumLatency += n.Performance.AvgLatency
		sumBaselineUptime += n.Uptime / 100 * baselineWindowSeconds
		sumUsage += n.Storage.UsagePercentage
		sumRPS += n.Performance.RequestsPerSecond

		countries[n.Location.CountryCode] = struct{}{}
		cities[n.Location.City] = struct{}{}
	}
	stats.AvailableStorage = stats.TotalStorage - stats.UsedStorage

	denom := float64(len(nodes))
	if denom == 0 {
		denom = 1
	}
	stats.AvgUptime = sumUptime / denom
	stats.AvgLatency = sumLatency / denom
	stats.Averages = models.NetworkAverages{
		NetAvgUptime:       sumBaselineUptime / denom,
		NetAvgStorageUsage: sumUsage / denom,
		NetAvgActivity:     sumRPS / denom,
	}

	stats.ActiveCountries = len(countries)
	stats.DecentralizationScore = DecentralizationScore(len(countries), len(cities))
	return stats
}

// DecentralizationScore rewards geographic spread, capped at 100.
func DecentralizationScore(uniqueCountries, uniqueCities int) float64 {
	score := uniqueCountries*countryDecentralWeight + uniqueCities*cityDecentralWeight
	if score > maxDecentralization {
		score = maxDecentralization
	}
	return float64(score)
}
