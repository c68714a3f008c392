// Package resolve defines the runtime/compose resolution record and its
// lockfile codec. This is pure logic - persistence lives in internal/shell/cache.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// Engine
// =============================================================================

// Engine identifies a container runtime family.
type Engine string

const (
	EngineDocker Engine = "docker"
	EnginePodman Engine = "podman"
)

var ErrUnknownEngine = errors.New("unknown container engine")

// ParseEngine normalizes a user- or cache-supplied engine name.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "docker":
		return EngineDocker, nil
	case "podman":
		return EnginePodman, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
	}
}

// Other returns the opposite engine family, used by the cross-engine
// compose fallback.
func (e Engine) Other() Engine {
	if e == EngineDocker {
		return EnginePodman
	}
	return EngineDocker
}

// =============================================================================
// Capabilities
// =============================================================================

// SupportLevel grades how completely a compose candidate supports a feature.
type SupportLevel string

const (
	SupportFull    SupportLevel = "full"
	SupportLimited SupportLevel = "limited"
	SupportNone    SupportLevel = "none"
)

// Capabilities records what the winning compose candidate can do. The
// flags differ per candidate and are filled in by the resolver.
type Capabilities struct {
	Secrets     SupportLevel
	Healthcheck bool
	Profiles    SupportLevel
	BuildEngine bool
	Rootless    bool
}

// =============================================================================
// Invocation
// =============================================================================

// Invocation is a ready-to-use compose command line: the binary, its fixed
// leading arguments, and any extra environment the candidate needs (for
// example DOCKER_HOST when a cross-engine fallback won).
type Invocation struct {
	Binary string
	Args   []string
	Env    []string
}

// Command returns the binary followed by the fixed arguments.
func (i Invocation) Command() []string {
	out := make([]string, 0, 1+len(i.Args))
	out = append(out, i.Binary)
	return append(out, i.Args...)
}

// String renders the invocation as a single shell-style command line.
func (i Invocation) String() string {
	return strings.Join(i.Command(), " ")
}

func parseInvocation(line string) (Invocation, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Invocation{}, errors.New("empty compose command")
	}
	var args []string
	if len(fields) > 1 {
		args = fields[1:]
	}
	return Invocation{Binary: fields[0], Args: args}, nil
}

// =============================================================================
// Record
// =============================================================================

// SchemaVersion is written into every lockfile so future readers can
// detect and migrate older layouts.
const SchemaVersion = 1

// Lockfile keys. Unknown keys are ignored on read so the format stays
// forward-compatible.
const (
	keySchemaVersion = "SCHEMA_VERSION"
	keyRuntime       = "RUNTIME"
	keyCompose       = "COMPOSE"
	keyComposeEnv    = "COMPOSE_ENV"
	keySecrets       = "SECRETS_SUPPORT"
	keyHealthcheck   = "HEALTHCHECK_SUPPORT"
	keyProfiles      = "PROFILE_SUPPORT"
	keyBuildEngine   = "BUILD_ENGINE_SUPPORT"
	keyRootless      = "ROOTLESS"
)

// Record is the persisted outcome of runtime+compose resolution.
type Record struct {
	SchemaVersion int
	Engine        Engine
	Compose       Invocation
	Capabilities  Capabilities
}

var (
	ErrMissingRuntime = errors.New("lockfile has no RUNTIME key")
	ErrMissingCompose = errors.New("lockfile has no COMPOSE key")
)

// Encode serializes the record as flat KEY=value lines.
func (r Record) Encode() []byte {
	var b strings.Builder
	writeKV := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}

	version := r.SchemaVersion
	if version == 0 {
		version = SchemaVersion
	}
	writeKV(keySchemaVersion, strconv.Itoa(version))
	writeKV(keyRuntime, string(r.Engine))
	writeKV(keyCompose, r.Compose.String())
	if len(r.Compose.Env) > 0 {
		env := append([]string(nil), r.Compose.Env...)
		sort.Strings(env)
		writeKV(keyComposeEnv, strings.Join(env, " "))
	}
	writeKV(keySecrets, string(r.Capabilities.Secrets))
	writeKV(keyHealthcheck, formatBool(r.Capabilities.Healthcheck))
	writeKV(keyProfiles, string(r.Capabilities.Profiles))
	writeKV(keyBuildEngine, formatBool(r.Capabilities.BuildEngine))
	writeKV(keyRootless, formatBool(r.Capabilities.Rootless))

	return []byte(b.String())
}

// Decode parses KEY=value lines back into a Record. Any missing or
// malformed required key yields an error; callers treat every decode
// error as "no cache", never as a hard failure.
func Decode(data []byte) (*Record, error) {
	values := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed lockfile line %q", line)
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	runtime, ok := values[keyRuntime]
	if !ok || runtime == "" {
		return nil, ErrMissingRuntime
	}
	engine, err := ParseEngine(runtime)
	if err != nil {
		return nil, err
	}

	composeLine, ok := values[keyCompose]
	if !ok || composeLine == "" {
		return nil, ErrMissingCompose
	}
	invocation, err := parseInvocation(composeLine)
	if err != nil {
		return nil, err
	}
	if env := values[keyComposeEnv]; env != "" {
		invocation.Env = strings.Fields(env)
	}

	version := SchemaVersion
	if raw, ok := values[keySchemaVersion]; ok {
		version, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed schema version %q", raw)
		}
	}

	return &Record{
		SchemaVersion: version,
		Engine:        engine,
		Compose:       invocation,
		Capabilities: Capabilities{
			Secrets:     parseSupport(values[keySecrets]),
			Healthcheck: parseBool(values[keyHealthcheck]),
			Profiles:    parseSupport(values[keyProfiles]),
			BuildEngine: parseBool(values[keyBuildEngine]),
			Rootless:    parseBool(values[keyRootless]),
		},
	}, nil
}

// Exports returns the environment variables downstream collaborators
// consume instead of re-running resolution.
func (r Record) Exports() map[string]string {
	env := map[string]string{
		"CONTAINER_RUNTIME":             string(r.Engine),
		"COMPOSE_COMMAND":               r.Compose.String(),
		"STACKCTL_SECRETS_SUPPORT":      string(r.Capabilities.Secrets),
		"STACKCTL_HEALTHCHECK_SUPPORT":  formatBool(r.Capabilities.Healthcheck),
		"STACKCTL_PROFILE_SUPPORT":      string(r.Capabilities.Profiles),
		"STACKCTL_BUILD_ENGINE_SUPPORT": formatBool(r.Capabilities.BuildEngine),
		"STACKCTL_ROOTLESS":             formatBool(r.Capabilities.Rootless),
	}
	for _, kv := range r.Compose.Env {
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}
	return env
}

func formatBool(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}

func parseSupport(s string) SupportLevel {
	switch SupportLevel(strings.ToLower(s)) {
	case SupportFull:
		return SupportFull
	case SupportLimited:
		return SupportLimited
	default:
		return SupportNone
	}
}
