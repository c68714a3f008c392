package resolve

// =============================================================================
// Compose Candidates
// =============================================================================

// CandidateKind names one compose implementation in the fallback cascade.
type CandidateKind string

const (
	// CandidateDockerPlugin is the compose plugin shipped with the docker
	// CLI ("docker compose").
	CandidateDockerPlugin CandidateKind = "docker-compose-plugin"
	// CandidateDockerStandalone is the standalone docker-compose binary.
	CandidateDockerStandalone CandidateKind = "docker-compose-standalone"
	// CandidatePodmanPlugin is podman's native compose subcommand
	// ("podman compose").
	CandidatePodmanPlugin CandidateKind = "podman-compose-plugin"
	// CandidatePodmanCompose is the python podman-compose implementation.
	CandidatePodmanCompose CandidateKind = "podman-compose"
)

// Capabilities returns the feature flags implied by a candidate winning
// the cascade. Rootless is not a property of the candidate and is filled
// in by the detector.
func (k CandidateKind) Capabilities() Capabilities {
	switch k {
	case CandidateDockerPlugin:
		return Capabilities{Secrets: SupportFull, Healthcheck: true, Profiles: SupportFull, BuildEngine: true}
	case CandidateDockerStandalone:
		return Capabilities{Secrets: SupportFull, Healthcheck: true, Profiles: SupportFull, BuildEngine: false}
	case CandidatePodmanPlugin:
		return Capabilities{Secrets: SupportLimited, Healthcheck: true, Profiles: SupportLimited, BuildEngine: false}
	case CandidatePodmanCompose:
		return Capabilities{Secrets: SupportNone, Healthcheck: false, Profiles: SupportNone, BuildEngine: false}
	default:
		return Capabilities{Secrets: SupportNone, Profiles: SupportNone}
	}
}

// NativeCandidates returns the ordered candidate list for an engine,
// highest priority first, excluding cross-engine fallbacks.
func NativeCandidates(e Engine) []CandidateKind {
	switch e {
	case EnginePodman:
		return []CandidateKind{CandidatePodmanPlugin, CandidatePodmanCompose}
	default:
		return []CandidateKind{CandidateDockerPlugin, CandidateDockerStandalone}
	}
}

// CrossEngineCandidate returns the other engine family's compose
// implementation to try when every native candidate has failed.
func CrossEngineCandidate(e Engine) CandidateKind {
	if e == EnginePodman {
		return CandidateDockerStandalone
	}
	return CandidatePodmanCompose
}
