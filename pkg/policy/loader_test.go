package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test-policy.rego")

	regoContent := `# Rejects internal packages
# outside of CI.
package test.policy

deny contains "internal packages are not allowed" if {
	input.config.distribution == "internal_dev"
}`

	if err := os.WriteFile(policyFile, []byte(regoContent), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	policy, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "test-policy" {
		t.Errorf("Expected name 'test-policy', got '%s'", policy.Name)
	}
	if policy.Rego != regoContent {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected warning severity, got %s", policy.Severity)
	}
	if policy.Description != "Rejects internal packages outside of CI." {
		t.Errorf("Unexpected description: %q", policy.Description)
	}
	if policy.Source != policyFile {
		t.Errorf("Expected source %s, got %s", policyFile, policy.Source)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test-policy.json")

	data, err := json.Marshal(Policy{
		Name:    "test-json-policy",
		Rego:    "package test\n\ndeny contains \"never\" if false",
		Enabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(policyFile, data, 0644); err != nil {
		t.Fatal(err)
	}

	policy, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if policy.Name != "test-json-policy" {
		t.Errorf("Expected name 'test-json-policy', got '%s'", policy.Name)
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected default warning severity, got %s", policy.Severity)
	}
}

func TestLoadFromFile_JSONWithoutName(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))

	policyFile := filepath.Join(t.TempDir(), "anonymous.json")
	if err := os.WriteFile(policyFile, []byte(`{"rego": "package x"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.loadFromFile(policyFile); err == nil {
		t.Error("Expected an error for a policy without a name")
	}
}

func TestLoadFromPaths_Directory(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))

	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "nested")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		filepath.Join(tmpDir, "one.rego"):    "package one\n",
		filepath.Join(nested, "two.rego"):    "package two\n",
		filepath.Join(tmpDir, "README.md"):   "not a policy",
		filepath.Join(tmpDir, "broken.json"): "{",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}
}

func TestLoadFromPaths_Missing(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))

	_, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "missing.rego")})
	if err == nil {
		t.Error("Expected an error for a missing path")
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"# one line\npackage x", "one line"},
		{"package x\n# trailing", "trailing"},
		{"#\n# after blank\n\npackage x", "after blank"},
		{"package x", ""},
	}
	for _, tt := range tests {
		if got := extractDescription(tt.content); got != tt.want {
			t.Errorf("extractDescription(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}
