// Package versions provides the product version table used to locate packages.
//
// The default table is embedded as a CUE document. A replacement can be loaded
// from a CUE, YAML or JSON file; every table is validated against the #Table
// definition of the embedded document before it is used.
package versions

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed table.cue
var defaultTable string

// Table maps (product version, OS, distribution) to a package locator.
// It implements engine.VersionTable.
type Table struct {
	OCLReleases []string                                `json:"ocl_releases" yaml:"ocl_releases"`
	Releases    map[string]map[string]map[string]string `json:"releases" yaml:"releases"`
}

// Default returns the embedded table.
func Default() (*Table, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(defaultTable, cue.Filename("table.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile embedded version table: %w", err)
	}
	return decode(ctx, val)
}

// Load reads a table from a .cue, .yaml, .yml or .json file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read version table: %w", err)
	}

	ctx := cuecontext.New()
	var val cue.Value
	switch filepath.Ext(path) {
	case ".cue":
		val = ctx.CompileBytes(data, cue.Filename(path))
	case ".yaml", ".yml", ".json":
		// JSON is a subset of YAML.
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse version table %s: %w", path, err)
		}
		val = ctx.Encode(raw)
	default:
		return nil, fmt.Errorf("unsupported version table format: %s", path)
	}
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to load version table %s: %w", path, err)
	}
	return decode(ctx, val)
}

func decode(ctx *cue.Context, val cue.Value) (*Table, error) {
	var t Table
	if err := val.LookupPath(cue.ParsePath("ocl_releases")).Decode(&t.OCLReleases); err != nil {
		return nil, fmt.Errorf("failed to decode ocl_releases: %w", err)
	}
	if err := val.LookupPath(cue.ParsePath("releases")).Decode(&t.Releases); err != nil {
		return nil, fmt.Errorf("failed to decode releases: %w", err)
	}
	if err := validate(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// validate unifies the decoded table with the #Table definition.
func validate(ctx *cue.Context, t *Table) error {
	schemaFile := ctx.CompileString(defaultTable)
	schema := schemaFile.LookupPath(cue.ParsePath("#Table"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("failed to load #Table schema: %w", err)
	}

	unified := schema.Unify(ctx.Encode(t))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid version table: %w", err)
	}
	return nil
}

// Lookup implements engine.VersionTable.
func (t *Table) Lookup(productVersion, os, distribution string) (string, bool) {
	byOS, ok := t.Releases[productVersion]
	if !ok {
		return "", false
	}
	byDist, ok := byOS[os]
	if !ok {
		return "", false
	}
	locator, ok := byDist[distribution]
	return locator, ok && locator != ""
}

// SupportedOCL implements engine.VersionTable.
func (t *Table) SupportedOCL(release string) bool {
	for _, r := range t.OCLReleases {
		if r == release {
			return true
		}
	}
	return false
}

// Versions returns the product versions known to the table, sorted.
func (t *Table) Versions() []string {
	versions := make([]string, 0, len(t.Releases))
	for v := range t.Releases {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
