package utils

import (
	"time"

	"xandpulse/models"
)

const (
	activeMinUptimeSeconds = 60
	syncingUptimeSeconds   = 3600
	podStaleAfterSeconds   = 300
)

// DetermineStatusFromStats classifies a stats snapshot. The active check
// runs before the syncing check, so a fresh node with streams is active.
func DetermineStatusFromStats(s models.StatsResponse) models.NodeStatus {
	if s.ActiveStreams > 0 && s.Uptime > activeMinUptimeSeconds {
		return models.StatusActive
	}
	if s.Uptime < syncingUptimeSeconds {
		return models.StatusSyncing
	}
	return models.StatusInactive
}

// DetermineStatusFromPod classifies a gossip entry. A stale last-seen
// timestamp wins over any uptime value.
func DetermineStatusFromPod(p models.PodWithStats, now time.Time) models.NodeStatus {
	if p.LastSeenTimestamp > 0 {
		if secondsSince(now, p.LastSeenTimestamp) > podStaleAfterSeconds {
			return models.StatusInactive
		}
	}
	if p.Uptime < syncingUptimeSeconds {
		return models.StatusSyncing
	}
	return models.StatusActive
}

// isActiveLike is the activity test shared by scoring: currently active by
// the streams rule, or still inside the first hour.
func isActiveLike(activeStreams int, uptimeSeconds int64) bool {
	return (activeStreams > 0 && uptimeSeconds > activeMinUptimeSeconds) || uptimeSeconds < syncingUptimeSeconds
}

func secondsSince(now time.Time, unix int64) float64 {
	return float64(now.UnixMilli())/1000 - float64(unix)
}
