package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema("request", "#Request", builtinRequestSchema); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema compiles source and registers its definition under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	file := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := file.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	val := file.LookupPath(cue.ParsePath(definition))
	if !val.Exists() {
		return fmt.Errorf("schema %s has no definition %s", name, definition)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(schemaName string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return sr.ValidateValue(schemaName, dataVal)
}

// ValidateValue validates a CUE value against a named schema. The value must have
// been built by this registry's context.
func (sr *SchemaRegistry) ValidateValue(schemaName string, val cue.Value) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// builtinRequestSchema describes a request file. Every key is an option name;
// the definition is closed so unknown keys are rejected.
const builtinRequestSchema = `
#Distribution: "base" | "runtime" | "dev" | "data_dev" | "internal_dev" | "proprietary"
#Device:       "cpu" | "gpu" | "vpu" | "hddl"

#Request: {
	// image
	tags?:            [...string]
	file?:            string
	image_json_path?: string
	sdl_check?:       [...("snyk" | "bench_security")]
	linter_check?:    [...("hadolint" | "dive")]

	// test and deploy
	test_expression?:   string
	nightly?:           bool
	registry?:          string
	nightly_save_path?: string

	// dockerfile
	dockerfile_name?: string
	device?:          [...#Device]
	distribution?:    #Distribution
	source?:          "url" | "local"
	install_type?:    "copy" | "install"
	os?:              "ubuntu18" | "ubuntu20" | "winserver2019"
	python?:          "python36" | "python37" | "python38"
	cmake?:           "cmake34" | "cmake314"
	msbuild?:         "msbuild2019"
	package_url?:     string
	ocl_release?:     "20.03.15346" | "19.41.14441" | "19.04.12237"
	product_version?: =~"^[0-9]{4}\\.[0-9]"

	// template
	layers?:    [...string]
	build_arg?: [...=~"^[^=]+="]
}
`
