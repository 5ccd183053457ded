package config

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/imagectl/pkg/engine"
)

// OptConfig is the flag that names a request file; errors about the file carry it.
const OptConfig = "config"

// Loader reads request files and validates them against the request schema.
type Loader struct {
	registry *SchemaRegistry
}

// NewLoader creates a loader with the built-in schemas.
func NewLoader() *Loader {
	return &Loader{registry: NewSchemaRegistry()}
}

// Load reads a .cue, .yaml, .yml or .json request file and returns its option values
// keyed by option name. Scalars are strings, switches are booleans and repeatable
// options are lists of strings.
func (l *Loader) Load(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	val, err := l.compile(path, data)
	if err != nil {
		return nil, err
	}

	if err := l.registry.ValidateValue("request", val); err != nil {
		return nil, engine.NewParseError(OptConfig,
			fmt.Sprintf("invalid request file %s: %s", path, details(err)))
	}

	values := make(map[string]interface{})
	if err := val.Decode(&values); err != nil {
		return nil, engine.NewParseError(OptConfig,
			fmt.Sprintf("cannot decode request file %s", path)).WithCause(err)
	}
	return values, nil
}

// compile turns the file content into a CUE value built by the registry's context.
func (l *Loader) compile(path string, data []byte) (cue.Value, error) {
	var val cue.Value
	switch filepath.Ext(path) {
	case ".cue":
		val = l.registry.ctx.CompileBytes(data, cue.Filename(path))
	case ".yaml", ".yml", ".json":
		// JSON is a subset of YAML.
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cue.Value{}, engine.NewParseError(OptConfig,
				fmt.Sprintf("cannot parse request file %s", path)).WithCause(err)
		}
		if raw == nil {
			raw = map[string]interface{}{}
		}
		val = l.registry.ctx.Encode(raw)
	default:
		return cue.Value{}, engine.NewParseError(OptConfig,
			fmt.Sprintf("unsupported request file format %q, use .cue, .yaml or .json", filepath.Ext(path)))
	}

	if err := val.Err(); err != nil {
		return cue.Value{}, engine.NewParseError(OptConfig,
			fmt.Sprintf("cannot parse request file %s: %s", path, details(err)))
	}
	return val, nil
}

// details flattens a CUE error list into one line per error.
func details(err error) string {
	return cueerrors.Details(err, nil)
}
