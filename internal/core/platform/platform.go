// Package platform identifies the host distribution and drives the
// OS-specific engine preference policy.
package platform

import (
	"os"
	"strconv"
	"strings"

	"github.com/stackforge/stackctl/internal/core/resolve"
)

// DefaultOSReleasePath is where os-release metadata lives on most
// distributions.
const DefaultOSReleasePath = "/etc/os-release"

// =============================================================================
// Platform Identification
// =============================================================================

// Platform is the structured distribution identity parsed from os-release.
type Platform struct {
	ID        string
	IDLike    []string
	VersionID string
}

// ParseOSRelease parses os-release content (KEY=value, values optionally
// quoted). Unknown keys are ignored. This is a pure function so the
// preference policy is testable without touching the filesystem.
func ParseOSRelease(content string) Platform {
	var p Platform
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		switch strings.TrimSpace(key) {
		case "ID":
			p.ID = strings.ToLower(value)
		case "ID_LIKE":
			p.IDLike = strings.Fields(strings.ToLower(value))
		case "VERSION_ID":
			p.VersionID = value
		}
	}
	return p
}

// Load reads and parses os-release from path. A missing or unreadable
// file yields a zero Platform, never an error: an unidentifiable host
// just gets no preference override.
func Load(path string) Platform {
	if path == "" {
		path = DefaultOSReleasePath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Platform{}
	}
	return ParseOSRelease(string(data))
}

// MajorVersion returns the leading numeric component of VERSION_ID, or 0
// when it cannot be determined.
func (p Platform) MajorVersion() int {
	major, _, _ := strings.Cut(p.VersionID, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

// isFamily reports whether the platform is, or derives from, the given
// distribution family.
func (p Platform) isFamily(family string) bool {
	if p.ID == family {
		return true
	}
	for _, like := range p.IDLike {
		if like == family {
			return true
		}
	}
	return false
}

// =============================================================================
// Engine Preference Policy
// =============================================================================

// PreferredEngine returns a pinned engine preference for distribution
// families whose system interpreter is too old for the python compose
// implementations. RHEL-family releases up to 7 ship python 2, which
// breaks podman-compose, so docker is pinned there. The pin only applies
// when the docker binary is actually installed; the detector enforces
// that part.
func PreferredEngine(p Platform) (resolve.Engine, bool) {
	if p.MajorVersion() == 0 || p.MajorVersion() > 7 {
		return "", false
	}
	for _, family := range []string{"rhel", "centos", "ol"} {
		if p.isFamily(family) {
			return resolve.EngineDocker, true
		}
	}
	return "", false
}
