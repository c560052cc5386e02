package utils

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// firefoxVersion matches upstream version tokens such as 120.0, 115.4.0esr, 121.0b3 and 122.0a1
var firefoxVersion = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?(?:(a|b)(\d+)|esr)?`)

var artifactSuffixes = []string{".tar.bz2", ".tar.xz", ".tar.gz", ".dmg", ".exe"}

// ExtractVersion returns the upstream version token embedded in an artifact filename,
// e.g. "Firefox Setup 115.4.0esr.exe" -> "115.4.0esr". It returns "" when none is found.
func ExtractVersion(filename string) string {
	name := strings.TrimSpace(filename)
	for _, suffix := range artifactSuffixes {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return firefoxVersion.FindString(name)
}

// Normalize converts an upstream version token into a semver string
// Handles: 120.0 -> 120.0.0, 121.0b3 -> 121.0.0-b.3, 122.0a1 -> 122.0.0-a.1, 115.4.0esr -> 115.4.0
func Normalize(version string) string {
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")

	m := firefoxVersion.FindStringSubmatch(version)
	if m == nil || m[0] != version {
		return version
	}

	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	normalized := m[1] + "." + m[2] + "." + patch
	if m[4] != "" {
		normalized += "-" + m[4] + "." + m[5]
	}

	if _, err := semver.StrictNewVersion(normalized); err != nil {
		return version
	}
	return normalized
}
