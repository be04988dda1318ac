package models

import "time"

// NetworkAverages are the baselines of one round that feed the scoring of
// the next. A zero field is treated as unknown.
type NetworkAverages struct {
	NetAvgUptime       float64 `json:"net_avg_uptime"`        // seconds
	NetAvgStorageUsage float64 `json:"net_avg_storage_usage"` // percent
	NetAvgActivity     float64 `json:"net_avg_activity"`
}

// NetworkStats represents aggregated network statistics
type NetworkStats struct {
	TotalNodes    int `json:"total_nodes"`
	ActiveNodes   int `json:"active_nodes"`
	InactiveNodes int `json:"inactive_nodes"`
	SyncingNodes  int `json:"syncing_nodes"`

	TotalStorage     float64 `json:"total_storage"` // bytes
	UsedStorage      float64 `json:"used_storage"`
	AvailableStorage float64 `json:"available_storage"`

	AvgUptime      float64 `json:"avg_uptime"`
	AvgLatency     float64 `json:"avg_latency"`
	TotalBandwidth float64 `json:"total_bandwidth"`

	DecentralizationScore float64 `json:"decentralization_score"`
	ActiveCountries       int     `json:"active_countries"`
	NetworkVersion        string  `json:"network_version"`

	Averages NetworkAverages `json:"averages"`

	LastUpdated time.Time `json:"last_updated"`
}
