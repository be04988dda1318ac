package utils

import (
	"math"
	"time"

	"xandpulse/models"
)

// ScoreWeights are the shares of each sub-score in the final health score.
// They are expected to sum to 1.
type ScoreWeights struct {
	Uptime     float64
	CPU        float64
	Storage    float64
	Activity   float64
	Bandwidth  float64
	Compliance float64
}

// ScoringConfig holds every tunable of the health score. It is passed by
// value; nothing reads it from package state.
type ScoringConfig struct {
	Weights ScoreWeights

	GracePeriodSeconds int64
	GraceBoost         float64

	ExpectedBandwidthMbps float64
	OptimalCPULow         float64
	OptimalCPUHigh        float64
	StorageAdaptiveMargin float64
	SigmoidK              float64
	SigmoidMidpoint       float64

	// CurrentVersion is the release compliance is checked against. Stats
	// snapshots carry no version and are reported as StatsNodeVersion.
	CurrentVersion   string
	StatsNodeVersion string

	// Cold-start baselines used when no network averages are known.
	DefaultAvgUptime       float64
	DefaultAvgStorageUsage float64
	DefaultAvgActivity     float64
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: ScoreWeights{
			Uptime:     0.25,
			CPU:        0.15,
			Storage:    0.20,
			Activity:   0.20,
			Bandwidth:  0.10,
			Compliance: 0.10,
		},
		GracePeriodSeconds:     259200, // 3 days
		GraceBoost:             25,
		ExpectedBandwidthMbps:  100,
		OptimalCPULow:          20,
		OptimalCPUHigh:         60,
		StorageAdaptiveMargin:  20,
		SigmoidK:               0.1,
		SigmoidMidpoint:        50,
		CurrentVersion:         "v1.16.14",
		StatsNodeVersion:       "v1.16.14",
		DefaultAvgUptime:       86400,
		DefaultAvgStorageUsage: 0,
		DefaultAvgActivity:     1,
	}
}

// WithCurrentVersion returns a copy expecting version v.
func (c ScoringConfig) WithCurrentVersion(v string) ScoringConfig {
	c.CurrentVersion = v
	return c
}

const (
	uptimeSaturationSeconds = 7 * 86400
	assumedPacketSizeBytes  = 1500
	moderateCPUPercent      = 50
	minHealthScore          = 20
	maxHealthScore          = 100
)

// ScoreBreakdown exposes every stage of one health score computation.
type ScoreBreakdown struct {
	Uptime     float64 `json:"uptime"`
	CPU        float64 `json:"cpu"`
	Storage    float64 `json:"storage"`
	Activity   float64 `json:"activity"`
	Bandwidth  float64 `json:"bandwidth"`
	Compliance float64 `json:"compliance"`

	Weighted   float64 `json:"weighted"`    // weighted sum of the sub-scores
	GraceBoost float64 `json:"grace_boost"` // added on top of Weighted
	Final      int     `json:"final"`
}

// HealthScorer computes the composite 20-100 health score.
type HealthScorer struct {
	cfg ScoringConfig
}

func NewHealthScorer(cfg ScoringConfig) *HealthScorer {
	return &HealthScorer{cfg: cfg}
}

func (h *HealthScorer) Config() ScoringConfig {
	return h.cfg
}

// signals are the scoring inputs common to both snapshot schemas.
type signals struct {
	uptimeSeconds int64
	cpuPercent    float64
	activeStreams int
	packetsTotal  int64
	lastSeen      int64
	versionMatch  bool
}

func (h *HealthScorer) signalsOf(snap models.Snapshot) signals {
	switch s := snap.(type) {
	case models.StatsResponse:
		return signals{
			uptimeSeconds: s.Uptime,
			cpuPercent:    s.CPUPercent,
			activeStreams: s.ActiveStreams,
			packetsTotal:  s.PacketsReceived + s.PacketsSent,
			lastSeen:      s.LastUpdated,
			versionMatch:  IsCurrentVersion(h.cfg.StatsNodeVersion, h.cfg.CurrentVersion),
		}
	case models.PodWithStats:
		return signals{
			uptimeSeconds: s.Uptime,
			cpuPercent:    moderateCPUPercent,
			lastSeen:      s.LastSeenTimestamp,
			versionMatch:  IsCurrentVersion(s.Version, h.cfg.CurrentVersion),
		}
	}
	return signals{cpuPercent: moderateCPUPercent}
}

func (h *HealthScorer) sigmoid(x float64) float64 {
	return 100 / (1 + math.Exp(-h.cfg.SigmoidK*(x-h.cfg.SigmoidMidpoint)))
}

// Score returns the final health score for snap. uptimePct is accepted for
// symmetry with the record it belongs to; the uptime sub-score works on raw
// seconds.
func (h *HealthScorer) Score(snap models.Snapshot, uptimePct, storagePct float64, avgs *models.NetworkAverages, now time.Time) int {
	return h.Breakdown(snap, uptimePct, storagePct, avgs, now).Final
}

func (h *HealthScorer) Breakdown(snap models.Snapshot, _ float64, storagePct float64, avgs *models.NetworkAverages, now time.Time) ScoreBreakdown {
	sig := h.signalsOf(snap)
	avgUptime, avgStorage, avgActivity := h.baselines(avgs)
	activeLike := isActiveLike(sig.activeStreams, sig.uptimeSeconds)
	uptime := float64(sig.uptimeSeconds)

	var b ScoreBreakdown

	// Uptime
	uptimeBase := 100 * (1 - math.Exp(-uptime/uptimeSaturationSeconds))
	uptimeRelative := math.Min((uptime/avgUptime)*20, 20)
	b.Uptime = h.sigmoid(uptimeBase + uptimeRelative)

	// CPU
	var cpuBase float64
	switch {
	case sig.cpuPercent < h.cfg.OptimalCPULow:
		cpuBase = 100 - (h.cfg.OptimalCPULow-sig.cpuPercent)*5
	case sig.cpuPercent <= h.cfg.OptimalCPUHigh:
		cpuBase = 100
	default:
		cpuBase = 100 - (sig.cpuPercent-h.cfg.OptimalCPUHigh)*2
	}
	b.CPU = h.sigmoid(cpuBase)

	// Storage, banded around the network average
	low := math.Max(avgStorage-h.cfg.StorageAdaptiveMargin, 0)
	high := avgStorage + h.cfg.StorageAdaptiveMargin
	var storageBase float64
	switch {
	case storagePct < low:
		denom := low
		if denom == 0 {
			denom = 1
		}
		storageBase = math.Max((storagePct/denom)*100, 50)
	case storagePct <= high:
		storageBase = 100
	default:
		storageBase = 100 - (storagePct-high)*3
	}
	b.Storage = h.sigmoid(storageBase)

	// Activity
	activityValue := float64(sig.activeStreams)*15 + (float64(sig.packetsTotal)/500_000)*10
	activityBase := math.Min(activityValue, 80)
	if activeLike {
		activityBase += 20
	}
	activityRelative := math.Min((activityValue/avgActivity)*1.2, 1.2)
	b.Activity = h.sigmoid(activityBase * activityRelative)

	// Bandwidth
	mbps := EstimateBandwidthMbps(sig.packetsTotal, sig.uptimeSeconds)
	bandwidthBase := math.Min((mbps/h.cfg.ExpectedBandwidthMbps)*100, 100)
	if mbps > 150 {
		bandwidthBase -= 20
	}
	if mbps < 10 {
		bandwidthBase -= 10
	}
	b.Bandwidth = h.sigmoid(math.Max(bandwidthBase, 0))

	// Compliance is a capped point sum, not smoothed.
	var points float64
	if sig.versionMatch {
		points += 50
	}
	if activeLike {
		points += 30
	}
	if secondsSince(now, sig.lastSeen) < podStaleAfterSeconds {
		points += 20
	}
	b.Compliance = math.Min(points, 100)

	w := h.cfg.Weights
	b.Weighted = b.Uptime*w.Uptime +
		b.CPU*w.CPU +
		b.Storage*w.Storage +
		b.Activity*w.Activity +
		b.Bandwidth*w.Bandwidth +
		b.Compliance*w.Compliance

	if sig.uptimeSeconds < h.cfg.GracePeriodSeconds {
		b.GraceBoost = h.cfg.GraceBoost
	}

	total := b.Weighted + b.GraceBoost
	b.Final = int(math.Round(math.Min(math.Max(total, minHealthScore), maxHealthScore)))
	return b
}

// baselines resolves the network averages, substituting the configured
// defaults for a missing struct or zero fields.
func (h *HealthScorer) baselines(avgs *models.NetworkAverages) (uptime, storage, activity float64) {
	uptime, storage, activity = h.cfg.DefaultAvgUptime, h.cfg.DefaultAvgStorageUsage, h.cfg.DefaultAvgActivity
	if avgs == nil {
		return
	}
	if avgs.NetAvgUptime != 0 {
		uptime = avgs.NetAvgUptime
	}
	if avgs.NetAvgStorageUsage != 0 {
		storage = avgs.NetAvgStorageUsage
	}
	if avgs.NetAvgActivity != 0 {
		activity = avgs.NetAvgActivity
	}
	return
}

// EstimateBandwidthMbps derives throughput from packet counters assuming
// MTU-sized packets. Zero uptime counts as one second.
func EstimateBandwidthMbps(packetsTotal, uptimeSeconds int64) float64 {
	if uptimeSeconds == 0 {
		uptimeSeconds = 1
	}
	totalBytes := float64(packetsTotal) * assumedPacketSizeBytes
	return (totalBytes / float64(uptimeSeconds)) * 8 / 1_000_000
}
