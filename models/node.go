package models

import "time"

type NodeStatus string

const (
	StatusActive   NodeStatus = "active"
	StatusSyncing  NodeStatus = "syncing"
	StatusInactive NodeStatus = "inactive"
)

// Valid reports whether s is one of the three known statuses.
func (s NodeStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSyncing, StatusInactive:
		return true
	}
	return false
}

// CanonicalNode is the normalized record produced from either raw schema.
type CanonicalNode struct {
	PublicKey     string `json:"public_key"`
	Moniker       string `json:"moniker"`
	IPAddress     string `json:"ip_address"`
	Version       string `json:"version"`
	VersionStatus string `json:"version_status"`

	Status NodeStatus `json:"status"`
	Uptime float64    `json:"uptime"` // percent of estimated lifetime, 0-100

	Storage     NodeStorage     `json:"storage"`
	Performance NodePerformance `json:"performance"`
	Location    NodeLocation    `json:"location"`

	LastSeen    time.Time `json:"last_seen"`
	HealthScore int       `json:"health_score"`
	IsPublic    *bool     `json:"is_public,omitempty"`
}

type NodeStorage struct {
	Used            float64 `json:"used"`
	Total           float64 `json:"total"`
	Available       float64 `json:"available"`
	UsagePercentage float64 `json:"usage_percentage"`
}

type NodePerformance struct {
	AvgLatency        float64 `json:"avg_latency"`   // ms
	SuccessRate       float64 `json:"success_rate"`  // percent
	BandwidthMbps     float64 `json:"bandwidth_mbps"`
	ResponseTime      float64 `json:"response_time"` // ms
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// GeoLocation is what the location resolver returns. Its JSON form is the
// ip-locations dataset format.
type GeoLocation struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type NodeLocation struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Timezone    string  `json:"timezone"`
}

// InUTC attaches the timezone used for every node location.
func (g GeoLocation) InUTC() NodeLocation {
	return NodeLocation{
		Country:     g.Country,
		CountryCode: g.CountryCode,
		City:        g.City,
		Region:      g.Region,
		Lat:         g.Lat,
		Lng:         g.Lng,
		Timezone:    "UTC",
	}
}
