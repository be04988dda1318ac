package utils

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"xandpulse/models"
)

// cityReader is the part of *geoip2.Reader the resolver uses.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// GeoResolver maps an IP to a location through a fixed fallback chain:
// the exact dataset, the static known-host table, MaxMind when configured,
// and finally the prefix heuristic. Hand-maintained entries always win over
// the database. It has no mutable state after construction and is safe for
// concurrent use.
type GeoResolver struct {
	dataset LocationDataset
	db      cityReader
}

// NewGeoResolver creates a resolver over dataset. If dbPath is set, the
// MaxMind City database there is consulted after both static tables miss. When the database
// cannot be opened the returned resolver is still usable without it.
func NewGeoResolver(dataset LocationDataset, dbPath string) (*GeoResolver, error) {
	g := &GeoResolver{dataset: dataset}

	if dbPath != "" {
		db, err := geoip2.Open(dbPath)
		if err != nil {
			return g, fmt.Errorf("failed to open geoip database: %w", err)
		}
		g.db = db
	}

	return g, nil
}

func (g *GeoResolver) Close() {
	if g != nil && g.db != nil {
		g.db.Close()
	}
}

// DatasetSize returns the number of exact-match entries loaded.
func (g *GeoResolver) DatasetSize() int {
	if g == nil {
		return 0
	}
	return len(g.dataset)
}

// Lookup never fails; it is safe to call on a nil GeoResolver.
func (g *GeoResolver) Lookup(ip string) models.GeoLocation {
	if g != nil {
		if loc, ok := g.dataset[ip]; ok {
			return loc
		}
	}

	if loc, ok := knownHosts[ip]; ok {
		return loc
	}

	if g != nil {
		if loc, ok := g.lookupDB(ip); ok {
			return loc
		}
	}

	return EstimateLocationFromIP(ip)
}

func (g *GeoResolver) lookupDB(ipStr string) (models.GeoLocation, bool) {
	if g.db == nil {
		return models.GeoLocation{}, false
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return models.GeoLocation{}, false
	}

	record, err := g.db.City(ip)
	if err != nil || record.Country.IsoCode == "" {
		return models.GeoLocation{}, false
	}

	loc := models.GeoLocation{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Lat:         record.Location.Latitude,
		Lng:         record.Location.Longitude,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	if loc.City == "" {
		loc.City = "Various"
	}
	return loc, true
}
