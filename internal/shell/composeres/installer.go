package composeres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/stackforge/stackctl/internal/shell/atomic"
)

// =============================================================================
// Remediation Installer
// =============================================================================

// InstallerConfig pins exactly what remediation is allowed to fetch.
// Remediation never runs unless the operator opted in.
type InstallerConfig struct {
	// BaseURL is the release download endpoint, without the version path.
	BaseURL string
	// Version is the pinned release version, e.g. "2.29.7".
	Version string
	// SHA256 is the expected hex digest of the downloaded artifact.
	// Empty skips integrity checking (not recommended).
	SHA256 string
	// Dir is where the binary is placed; it should be on PATH.
	Dir string
}

// Installer performs the one-time remediation install of the standalone
// docker-compose binary when the cross-engine fallback is not installed.
type Installer struct {
	cfg    InstallerConfig
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewInstaller creates an installer with a retrying HTTP client.
func NewInstaller(cfg InstallerConfig, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &Installer{cfg: cfg, client: client, logger: logger}
}

// artifactName maps GOOS/GOARCH to the upstream release artifact naming.
func artifactName() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	return fmt.Sprintf("docker-compose-%s-%s", runtime.GOOS, arch)
}

// Install downloads the pinned release artifact, checks its digest, and
// atomically places it in the install directory marked executable. It
// returns the installed binary path.
func (i *Installer) Install(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/v%s/%s", i.cfg.BaseURL, i.cfg.Version, artifactName())
	i.logger.Info("remediation install of compose fallback",
		"url", url,
		"dir", i.cfg.Dir,
	)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	staging, err := os.CreateTemp("", "docker-compose-download-*")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	stagingPath := staging.Name()
	defer os.Remove(stagingPath)

	digest := sha256.New()
	if _, err := io.Copy(io.MultiWriter(staging, digest), resp.Body); err != nil {
		staging.Close()
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := staging.Close(); err != nil {
		return "", fmt.Errorf("close staging file: %w", err)
	}

	if i.cfg.SHA256 != "" {
		got := hex.EncodeToString(digest.Sum(nil))
		if got != i.cfg.SHA256 {
			return "", fmt.Errorf("artifact digest mismatch: got %s, want %s", got, i.cfg.SHA256)
		}
	}

	if err := os.Chmod(stagingPath, 0o755); err != nil {
		return "", fmt.Errorf("mark staging executable: %w", err)
	}

	dest := filepath.Join(i.cfg.Dir, "docker-compose")
	if err := atomic.WriteFromPath(dest, stagingPath); err != nil {
		return "", fmt.Errorf("place binary: %w", err)
	}

	i.logger.Info("compose fallback installed", "path", dest, "version", i.cfg.Version)
	return dest, nil
}
