package composeres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// syntheticProject is the minimal deployment document candidates must be
// able to parse. Verification exercises a candidate against it instead of
// trusting the candidate's mere presence.
const syntheticProjectName = "stackctl-verify"

func syntheticDocument() ([]byte, error) {
	doc := map[string]any{
		"services": map[string]any{
			"probe": map[string]any{
				"image":   "docker.io/library/busybox:latest",
				"command": []string{"sleep", "1"},
			},
		},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal synthetic compose document: %w", err)
	}
	return data, nil
}

// writeSyntheticDocument stages the document in a fresh scratch directory
// under root and returns the file path. The caller removes the directory.
func writeSyntheticDocument(root string) (string, error) {
	dir := filepath.Join(root, "verify-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	data, err := syntheticDocument()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "compose.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write synthetic compose document: %w", err)
	}
	return path, nil
}

// validateConfigOutput round-trips a candidate's rendered config through
// the compose loader. A candidate whose output the loader rejects did not
// really parse the document, whatever its exit code said.
func validateConfigOutput(ctx context.Context, output string) error {
	if strings.TrimSpace(output) == "" {
		return fmt.Errorf("candidate produced no config output")
	}

	var dict map[string]any
	if err := yaml.Unmarshal([]byte(output), &dict); err != nil {
		return fmt.Errorf("config output is not valid yaml: %w", err)
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{{Filename: "rendered.yaml", Config: dict}},
	}, func(opts *loader.Options) {
		opts.SetProjectName(syntheticProjectName, true)
		opts.SkipValidation = false
	})
	if err != nil {
		return fmt.Errorf("config output rejected by compose loader: %w", err)
	}
	if len(project.Services) == 0 {
		return fmt.Errorf("config output lost the probe service")
	}
	return nil
}
