package utils

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"xandpulse/models"
)

//go:embed data/ip-locations.json
var embeddedLocations []byte

// LocationDataset is an exact-match IP -> location table. It is read-only
// once loaded.
type LocationDataset map[string]models.GeoLocation

// DefaultLocationDataset decodes the dataset compiled into the binary, a
// curated subset; GEO_LOCATIONS_PATH points at a fuller table.
func DefaultLocationDataset() (LocationDataset, error) {
	return ParseLocationDataset(embeddedLocations)
}

// LoadLocationDataset reads a dataset file in the ip-locations JSON format.
func LoadLocationDataset(path string) (LocationDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read location dataset: %w", err)
	}
	return ParseLocationDataset(data)
}

func ParseLocationDataset(data []byte) (LocationDataset, error) {
	ds := LocationDataset{}
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode location dataset: %w", err)
	}
	return ds, nil
}

var (
	nuremberg   = models.GeoLocation{Country: "Germany", CountryCode: "DE", City: "Nuremberg", Region: "Bavaria", Lat: 49.4521, Lng: 11.0767}
	montreal    = models.GeoLocation{Country: "Canada", CountryCode: "CA", City: "Montreal", Region: "Quebec", Lat: 45.5017, Lng: -73.5673}
	newYork     = models.GeoLocation{Country: "United States", CountryCode: "US", City: "New York", Region: "New York", Lat: 40.7128, Lng: -74.0060}
	pretoria    = models.GeoLocation{Country: "South Africa", CountryCode: "ZA", City: "Pretoria", Region: "Gauteng", Lat: -25.7479, Lng: 28.2293}
	johannesbrg = models.GeoLocation{Country: "South Africa", CountryCode: "ZA", City: "Johannesburg", Region: "Gauteng", Lat: -26.2041, Lng: 28.0473}
	amsterdam   = models.GeoLocation{Country: "Netherlands", CountryCode: "NL", City: "Amsterdam", Region: "North Holland", Lat: 52.3676, Lng: 4.9041}
	warsaw      = models.GeoLocation{Country: "Poland", CountryCode: "PL", City: "Warsaw", Region: "Masovia", Lat: 52.2297, Lng: 21.0122}
	seattle     = models.GeoLocation{Country: "United States", CountryCode: "US", City: "Seattle", Region: "Washington", Lat: 47.6062, Lng: -122.3321}
)

// knownHosts covers hosting-provider IPs seen on the network that the
// precise dataset does not have.
var knownHosts = map[string]models.GeoLocation{
	// Germany - Hetzner & Contabo
	"173.212.203.145": nuremberg,
	"173.212.220.65":  nuremberg,
	"116.202.103.15":  {Country: "Germany", CountryCode: "DE", City: "Falkenstein", Region: "Saxony", Lat: 50.4779, Lng: 12.3713},

	// Finland - Hetzner
	"161.97.97.41": {Country: "Finland", CountryCode: "FI", City: "Helsinki", Region: "Uusimaa", Lat: 60.1695, Lng: 24.9354},

	// Canada - OVH Montreal
	"192.190.136.36":  montreal,
	"192.190.136.37":  montreal,
	"192.190.136.38":  montreal,
	"192.190.136.28":  montreal,
	"192.190.136.29":  montreal,
	"144.126.137.111": montreal,
	"144.126.147.177": montreal,
	"144.126.159.237": montreal,

	// USA
	"207.244.255.1":   {Country: "United States", CountryCode: "US", City: "Kansas City", Region: "Missouri", Lat: 39.0997, Lng: -94.5786},
	"107.155.122.148": {Country: "United States", CountryCode: "US", City: "Los Angeles", Region: "California", Lat: 34.0522, Lng: -118.2437},
	"144.91.102.180":  newYork,
	"144.91.86.48":    newYork,
	"144.91.90.185":   newYork,

	// South Africa
	"102.90.102.41":  johannesbrg,
	"102.90.99.199":  johannesbrg,
	"105.113.12.48":  {Country: "South Africa", CountryCode: "ZA", City: "Cape Town", Region: "Western Cape", Lat: -33.9249, Lng: 18.4241},
	"105.116.1.203":  pretoria,
	"105.116.12.65":  pretoria,
	"105.116.14.236": pretoria,
	"105.116.3.132":  pretoria,
	"105.116.7.203":  pretoria,
	"105.116.7.80":   pretoria,
	"105.116.9.183":  pretoria,
	"105.116.9.65":   pretoria,

	"109.123.247.212": amsterdam,
	"109.199.96.218":  amsterdam,

	"147.93.152.242": warsaw,
	"147.93.153.46":  warsaw,

	"1.38.164.109": {Country: "Singapore", CountryCode: "SG", City: "Singapore", Region: "Singapore", Lat: 1.3521, Lng: 103.8198},

	// Tailscale (100.x) addresses reported by operators
	"100.78.60.28":   {Country: "United States", CountryCode: "US", City: "San Francisco", Region: "California", Lat: 37.7749, Lng: -122.4194},
	"100.79.135.83":  seattle,
	"100.79.164.124": seattle,
	"100.79.200.164": seattle,
}

var (
	southAfricaRegion  = johannesbrg
	vpnRegion          = models.GeoLocation{Country: "United States", CountryCode: "US", City: "Various", Region: "VPN", Lat: 39.8283, Lng: -98.5795}
	europeRegion       = models.GeoLocation{Country: "Europe", CountryCode: "EU", City: "Various", Region: "Europe", Lat: 50.1109, Lng: 8.6821}
	northAmericaRegion = models.GeoLocation{Country: "North America", CountryCode: "US", City: "Various", Region: "North America", Lat: 37.0902, Lng: -95.7129}
	asiaPacificRegion  = models.GeoLocation{Country: "Asia Pacific", CountryCode: "AP", City: "Various", Region: "Asia", Lat: 34.0479, Lng: 100.6197}
	southAmericaRegion = models.GeoLocation{Country: "South America", CountryCode: "SA", City: "Various", Region: "South America", Lat: -14.2350, Lng: -51.9253}
	localNetworkRegion = models.GeoLocation{Country: "Local Network", CountryCode: "LO", City: "Localhost", Region: "Private", Lat: 0, Lng: 0}
	GlobalLocation     = models.GeoLocation{Country: "Global", CountryCode: "GL", City: "Various", Region: "Global", Lat: 0, Lng: 0}
)

func hasAnyPrefix(ip string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	return false
}

// EstimateLocationFromIP places an address in a coarse region by its
// leading octets. The checks run in order; the first match wins.
func EstimateLocationFromIP(ip string) models.GeoLocation {
	firstOctet := -1
	if head, _, ok := strings.Cut(ip, "."); ok {
		if n, err := strconv.Atoi(head); err == nil {
			firstOctet = n
		}
	}
	between := func(lo, hi int) bool { return firstOctet >= lo && firstOctet <= hi }

	switch {
	case hasAnyPrefix(ip, "102.", "105.", "41."):
		return southAfricaRegion
	case hasAnyPrefix(ip, "100."):
		return vpnRegion
	case hasAnyPrefix(ip, "109.", "116.", "147.", "161.", "173.", "185."):
		return europeRegion
	case hasAnyPrefix(ip, "144.", "192.", "207.", "107."):
		return northAmericaRegion
	case between(1, 2) || between(58, 61) || between(110, 126) || between(202, 203) || between(210, 223):
		return asiaPacificRegion
	case (between(177, 191) && firstOctet != 185) || between(200, 201):
		return southAmericaRegion
	case hasAnyPrefix(ip, "127.", "10.", "192.168.", "172."):
		return localNetworkRegion
	}
	return GlobalLocation
}
