package utils

import (
	"strings"

	"github.com/hashicorp/go-version"
)

// VersionConfig holds current version requirements
type VersionConfig struct {
	CurrentStable string
	MinSupported  string
	Deprecated    string
}

var DefaultVersionConfig = VersionConfig{
	CurrentStable: "1.16.14",
	MinSupported:  "1.16.0",
	Deprecated:    "1.15.0",
}

func parseVersion(v string) (*version.Version, error) {
	return version.NewVersion(strings.TrimPrefix(strings.TrimSpace(v), "v"))
}

// IsCurrentVersion reports whether nodeVersion is exactly the expected
// release. Unparseable versions never match.
func IsCurrentVersion(nodeVersion, expected string) bool {
	nodeVer, err := parseVersion(nodeVersion)
	if err != nil {
		return false
	}
	want, err := parseVersion(expected)
	if err != nil {
		return false
	}
	return nodeVer.Equal(want)
}

// CheckVersionStatus determines if a node version needs upgrading
func CheckVersionStatus(nodeVersion string, config *VersionConfig) (status string, needsUpgrade bool, severity string) {
	if config == nil {
		config = &DefaultVersionConfig
	}

	nodeVer, err := parseVersion(nodeVersion)
	if err != nil {
		return "unknown", false, "info"
	}

	current, _ := parseVersion(config.CurrentStable)
	minSupported, _ := parseVersion(config.MinSupported)
	deprecated, _ := parseVersion(config.Deprecated)

	if deprecated != nil && nodeVer.LessThan(deprecated) {
		return "deprecated", true, "critical"
	}

	if minSupported != nil && nodeVer.LessThan(minSupported) {
		return "outdated", true, "warning"
	}

	if current != nil && nodeVer.LessThan(current) {
		return "outdated", true, "info"
	}

	return "current", false, "none"
}
