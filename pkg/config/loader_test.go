package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/openfroyo/imagectl/pkg/engine"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_Formats(t *testing.T) {
	want := map[string]interface{}{
		"os":              "ubuntu20",
		"distribution":    "dev",
		"product_version": "2021.4",
		"device":          []interface{}{"cpu", "gpu"},
		"nightly":         true,
	}

	files := map[string]string{
		"request.cue": `
os:              "ubuntu20"
distribution:    "dev"
product_version: "2021.4"
device: ["cpu", "gpu"]
nightly: true
`,
		"request.yaml": `
os: ubuntu20
distribution: dev
product_version: "2021.4"
device:
  - cpu
  - gpu
nightly: true
`,
		"request.json": `{
  "os": "ubuntu20",
  "distribution": "dev",
  "product_version": "2021.4",
  "device": ["cpu", "gpu"],
  "nightly": true
}`,
	}

	loader := NewLoader()
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			got, err := loader.Load(writeFile(t, name, content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Load() = %#v, want %#v", got, want)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantKind engine.ErrorKind
	}{
		{"unknown key", "r.yaml", "flavour: vanilla\n", engine.KindParse},
		{"bad enum", "r.json", `{"os": "centos7"}`, engine.KindParse},
		{"unquoted version", "r.yaml", "product_version: 2021.4\n", engine.KindParse},
		{"cue syntax", "r.cue", "os: \"ubuntu18\n", engine.KindParse},
		{"yaml syntax", "r.yml", "os: [ubuntu18\n", engine.KindParse},
		{"unsupported format", "r.toml", "os = \"ubuntu18\"\n", engine.KindParse},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := engine.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q (%v)", got, tt.wantKind, err)
			}
			if !engine.IsKind(err, engine.KindParse) {
				return
			}
			var cerr *engine.ConfigError
			if e, ok := err.(*engine.ConfigError); ok {
				cerr = e
			}
			if cerr == nil || cerr.Option != OptConfig {
				t.Errorf("error should name the %s option: %v", OptConfig, err)
			}
		})
	}
}

func TestLoad_EmptyYAML(t *testing.T) {
	got, err := NewLoader().Load(writeFile(t, "empty.yaml", ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want an empty map", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if engine.IsConfigError(err) {
		t.Errorf("an unreadable file is not a configuration error: %v", err)
	}
}
