package utils

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"xandpulse/logger"
	"xandpulse/models"
)

const (
	minEstimatedStorageBytes = 1_000_000_000_000 // 1 TB
	identitySuffixLen        = 8
	unknownVersion           = "unknown"
)

var ipv4Pattern = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)

// IdentitySuffix produces the tail of a synthesized stats public key.
type IdentitySuffix func(ip string, index int) string

// RandomIdentitySuffix returns 8 random base36 characters.
//
// The same snapshot therefore gets a different key on every call. It is
// unclear whether consumers need keys stable across rounds; use
// StableIdentitySuffix when they do.
func RandomIdentitySuffix(_ string, _ int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, identitySuffixLen)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

// StableIdentitySuffix derives the suffix from a hash of ip and index.
func StableIdentitySuffix(ip string, index int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s#%d", ip, index)
	s := strconv.FormatUint(h.Sum64(), 36)
	if len(s) < identitySuffixLen {
		s = strings.Repeat("0", identitySuffixLen-len(s)) + s
	}
	return s[:identitySuffixLen]
}

// Transformer turns raw snapshots into canonical node records. Its fields
// are read-only once built; a Transformer may be shared across goroutines
// as long as Rand and Suffix are safe for concurrent use (the defaults are).
type Transformer struct {
	Resolver *GeoResolver
	Scorer   *HealthScorer
	Versions VersionConfig

	Now    func() time.Time
	Rand   func() float64 // placeholders for pod performance
	Suffix IdentitySuffix
}

func NewTransformer(resolver *GeoResolver, scorer *HealthScorer) *Transformer {
	if scorer == nil {
		scorer = NewHealthScorer(DefaultScoringConfig())
	}
	return &Transformer{
		Resolver: resolver,
		Scorer:   scorer,
		Versions: DefaultVersionConfig,
		Now:      time.Now,
		Rand:     rand.Float64,
		Suffix:   RandomIdentitySuffix,
	}
}

// TransformStats normalizes a stats snapshot read from ip. ip may be a
// full endpoint; the first dotted quad in it is used.
func (t *Transformer) TransformStats(s models.StatsResponse, ip string, avgs *models.NetworkAverages) models.CanonicalNode {
	now := t.Now()

	ipAddress := ip
	if m := ipv4Pattern.FindString(ip); m != "" {
		ipAddress = m
	}

	uptimePct := UptimePercentage(s.Uptime, s.LastUpdated, now)

	used := float64(s.FileSize)
	total := math.Max(used*1.5, minEstimatedStorageBytes)
	usagePct := used / total * 100

	latency := 20 + s.CPUPercent*5
	location := t.Resolver.Lookup(ipAddress)
	nodeVersion := t.Scorer.Config().StatsNodeVersion
	versionStatus, _, _ := CheckVersionStatus(nodeVersion, &t.Versions)

	return models.CanonicalNode{
		PublicKey:     t.statsPublicKey(ipAddress, s.CurrentIndex),
		Moniker:       fmt.Sprintf("pNode-%s-%d", location.City, s.CurrentIndex),
		IPAddress:     ipAddress,
		Version:       nodeVersion,
		VersionStatus: versionStatus,
		Status:        DetermineStatusFromStats(s),
		Uptime:        uptimePct,
		Storage: models.NodeStorage{
			Used:            used,
			Total:           total,
			Available:       total - used,
			UsagePercentage: usagePct,
		},
		Performance: models.NodePerformance{
			AvgLatency:        latency,
			SuccessRate:       math.Min(95+float64(s.ActiveStreams)*2, 99.9),
			BandwidthMbps:     EstimateBandwidthMbps(s.PacketsReceived+s.PacketsSent, s.Uptime),
			ResponseTime:      latency * 1.2,
			RequestsPerSecond: float64(s.ActiveStreams) * 100,
		},
		Location:    location.InUTC(),
		LastSeen:    time.Unix(s.LastUpdated, 0).UTC(),
		HealthScore: t.Scorer.Score(s, uptimePct, usagePct, avgs, now),
	}
}

// TransformPod normalizes a gossip entry. It reports false, and logs, when
// the entry has no address.
func (t *Transformer) TransformPod(p models.PodWithStats, avgs *models.NetworkAverages) (*models.CanonicalNode, bool) {
	if p.Address == "" {
		logger.Warn().Str("pubkey", p.Pubkey).Msg("skipping pod: missing address")
		return nil, false
	}
	now := t.Now()

	ipAddress, _, _ := strings.Cut(p.Address, ":")

	publicKey := p.Pubkey
	if publicKey == "" {
		publicKey = "UnknownNode-" + strings.ReplaceAll(ipAddress, ".", "-")
	}

	lastSeen := p.LastSeenTimestamp
	if lastSeen == 0 {
		lastSeen = now.Unix()
	}
	uptimePct := UptimePercentage(p.Uptime, lastSeen, now)

	total := float64(p.StorageCommitted)
	if total == 0 {
		total = 1
	}
	used := float64(p.StorageUsed)
	usagePct := p.StorageUsagePercent

	// No latency or throughput is gossiped yet; these are placeholders.
	latency := 50 + t.Rand()*100
	bandwidth := 100 + t.Rand()*400
	rps := math.Floor(t.Rand() * 500)

	nodeVersion := p.Version
	if nodeVersion == "" {
		nodeVersion = unknownVersion
	}
	versionStatus, _, _ := CheckVersionStatus(nodeVersion, &t.Versions)

	location := t.Resolver.Lookup(ipAddress)

	return &models.CanonicalNode{
		PublicKey:     publicKey,
		Moniker:       fmt.Sprintf("pNode-%s-%s", location.City, truncate(publicKey, 8)),
		IPAddress:     ipAddress,
		Version:       nodeVersion,
		VersionStatus: versionStatus,
		Status:        DetermineStatusFromPod(p, now),
		Uptime:        uptimePct,
		Storage: models.NodeStorage{
			Used:            used,
			Total:           total,
			Available:       total - used,
			UsagePercentage: usagePct,
		},
		Performance: models.NodePerformance{
			AvgLatency:        latency,
			SuccessRate:       math.Min(95+float64(p.Uptime)/1000, 99.9),
			BandwidthMbps:     bandwidth,
			ResponseTime:      latency * 1.2,
			RequestsPerSecond: rps,
		},
		Location:    location.InUTC(),
		LastSeen:    time.Unix(lastSeen, 0).UTC(),
		HealthScore: t.Scorer.Score(p, uptimePct, usagePct, avgs, now),
		IsPublic:    p.IsPublic,
	}, true
}

func (t *Transformer) statsPublicKey(ip string, index int) string {
	var b strings.Builder
	b.WriteString("pNode")
	fmt.Fprintf(&b, "%04x", index)
	for _, part := range strings.Split(ip, ".") {
		octet, err := strconv.Atoi(part)
		if err != nil || octet < 0 {
			octet = 0
		}
		fmt.Fprintf(&b, "%02x", octet)
	}
	b.WriteString("...")

	suffix := t.Suffix
	if suffix == nil {
		suffix = RandomIdentitySuffix
	}
	b.WriteString(suffix(ip, index))
	return b.String()
}

// UptimePercentage is uptime relative to the node's estimated age: the time
// since lastSeen plus the current uptime. Without a last-seen time the age
// is the uptime itself. The result is in [0,100].
func UptimePercentage(uptimeSeconds, lastSeen int64, now time.Time) float64 {
	uptime := float64(uptimeSeconds)
	age := math.Max(uptime, 1)
	if lastSeen > 0 && uptimeSeconds > 0 {
		age = math.Max(0, secondsSince(now, lastSeen)) + uptime
	}
	pct := math.Min(uptime/age*100, 100)
	return math.Max(pct, 0)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
