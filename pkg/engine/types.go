package engine

import (
	"sort"
	"strings"
)

// Mode is the operation requested on the command line.
type Mode string

const (
	ModeGenDockerfile Mode = "gen_dockerfile"
	ModeBuild         Mode = "build"
	ModeBuildTest     Mode = "build_test"
	ModeTest          Mode = "test"
	ModeDeploy        Mode = "deploy"
	ModeAll           Mode = "all"
)

// Modes lists every mode in the order they are presented to users.
var Modes = []Mode{ModeGenDockerfile, ModeBuild, ModeBuildTest, ModeTest, ModeDeploy, ModeAll}

// RunsEngine reports whether the mode goes through the resolution engine.
func (m Mode) RunsEngine() bool {
	switch m {
	case ModeGenDockerfile, ModeBuild, ModeBuildTest, ModeAll:
		return true
	}
	return false
}

// Distribution values.
const (
	DistBase        = "base"
	DistRuntime     = "runtime"
	DistDev         = "dev"
	DistDataDev     = "data_dev"
	DistInternalDev = "internal_dev"
	DistProprietary = "proprietary"
)

// Device values.
const (
	DeviceCPU  = "cpu"
	DeviceGPU  = "gpu"
	DeviceVPU  = "vpu"
	DeviceHDDL = "hddl"
)

// Package source kinds.
const (
	SourceURL   = "url"
	SourceLocal = "local"
)

// Install types.
const (
	InstallCopy    = "copy"
	InstallInstall = "install"
)

// Option names shared by the schema, the request file and error reporting.
const (
	OptTags            = "tags"
	OptFile            = "file"
	OptImageJSONPath   = "image_json_path"
	OptTestExpression  = "test_expression"
	OptSDLCheck        = "sdl_check"
	OptNightly         = "nightly"
	OptRegistry        = "registry"
	OptNightlySavePath = "nightly_save_path"
	OptDockerfileName  = "dockerfile_name"
	OptDevice          = "device"
	OptDistribution    = "distribution"
	OptSource          = "source"
	OptInstallType     = "install_type"
	OptOS              = "os"
	OptPython          = "python"
	OptCMake           = "cmake"
	OptMSBuild         = "msbuild"
	OptPackageURL      = "package_url"
	OptOCLRelease      = "ocl_release"
	OptProductVersion  = "product_version"
	OptLinterCheck     = "linter_check"
	OptLayers          = "layers"
	OptBuildArg        = "build_arg"
)

// Value is a single option value from the raw request.
type Value struct {
	// List is set for repeatable options.
	List []string
	// Scalar is set for single-valued options.
	Scalar string
	// Bool is set for switches.
	Bool bool
	// Kind tells which of the fields above is meaningful.
	Kind ValueKind
}

// ValueKind classifies a Value.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindList
	KindBool
)

// Strings returns every string carried by the value.
func (v Value) Strings() []string {
	switch v.Kind {
	case KindList:
		return v.List
	case KindScalar:
		return []string{v.Scalar}
	}
	return nil
}

// RawRequest is the as-typed user input: a mode plus the options that were supplied.
type RawRequest struct {
	Mode   Mode
	values map[string]Value
}

// NewRawRequest creates an empty request for the given mode.
func NewRawRequest(mode Mode) *RawRequest {
	return &RawRequest{Mode: mode, values: make(map[string]Value)}
}

// SetScalar records a single-valued option.
func (r *RawRequest) SetScalar(name, value string) {
	r.values[name] = Value{Scalar: value, Kind: KindScalar}
}

// SetList records a repeatable option. The slice is copied.
func (r *RawRequest) SetList(name string, values []string) {
	r.values[name] = Value{List: append([]string(nil), values...), Kind: KindList}
}

// SetBool records a switch.
func (r *RawRequest) SetBool(name string, value bool) {
	r.values[name] = Value{Bool: value, Kind: KindBool}
}

// Has reports whether the option was supplied.
func (r *RawRequest) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Get returns the raw value of an option.
func (r *RawRequest) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Scalar returns a single-valued option, or "" when absent.
func (r *RawRequest) Scalar(name string) string {
	return r.values[name].Scalar
}

// List returns a copy of a repeatable option, or nil when absent.
func (r *RawRequest) List(name string) []string {
	v, ok := r.values[name]
	if !ok || len(v.List) == 0 {
		return nil
	}
	return append([]string(nil), v.List...)
}

// Bool returns a switch, false when absent.
func (r *RawRequest) Bool(name string) bool {
	return r.values[name].Bool
}

// Names returns the supplied option names, sorted.
func (r *RawRequest) Names() []string {
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config is the fully resolved build configuration.
type Config struct {
	Mode Mode `json:"mode" yaml:"mode"`

	OS           string `json:"os,omitempty" yaml:"os,omitempty" validate:"omitempty,oneof=ubuntu18 ubuntu20 winserver2019"`
	Python       string `json:"python,omitempty" yaml:"python,omitempty" validate:"omitempty,oneof=python36 python37 python38"`
	Distribution string `json:"distribution,omitempty" yaml:"distribution,omitempty" validate:"omitempty,oneof=base runtime dev data_dev internal_dev proprietary"`
	Source       string `json:"source,omitempty" yaml:"source,omitempty" validate:"omitempty,oneof=url local"`
	InstallType  string `json:"install_type,omitempty" yaml:"install_type,omitempty" validate:"omitempty,oneof=copy install"`
	CMake        string `json:"cmake,omitempty" yaml:"cmake,omitempty" validate:"omitempty,oneof=cmake34 cmake314"`
	MSBuild      string `json:"msbuild,omitempty" yaml:"msbuild,omitempty" validate:"omitempty,oneof=msbuild2019"`
	OCLRelease   string `json:"ocl_release,omitempty" yaml:"ocl_release,omitempty" validate:"omitempty,oneof=20.03.15346 19.41.14441 19.04.12237"`

	// PackageURL is the package locator: a network URL or a local path.
	PackageURL     string `json:"package_url,omitempty" yaml:"package_url,omitempty"`
	ProductVersion string `json:"product_version,omitempty" yaml:"product_version,omitempty"`
	BuildID        string `json:"build_id,omitempty" yaml:"build_id,omitempty"`

	Devices     []string          `json:"device,omitempty" yaml:"device,omitempty" validate:"omitempty,dive,oneof=cpu gpu vpu hddl"`
	Layers      []string          `json:"layers,omitempty" yaml:"layers,omitempty"`
	BuildArgs   []string          `json:"build_arg,omitempty" yaml:"build_arg,omitempty"`
	BuildArgMap map[string]string `json:"build_args,omitempty" yaml:"build_args,omitempty"`
	LinterCheck []string          `json:"linter_check,omitempty" yaml:"linter_check,omitempty"`
	SDLCheck    []string          `json:"sdl_check,omitempty" yaml:"sdl_check,omitempty"`

	DockerfileName string   `json:"dockerfile_name,omitempty" yaml:"dockerfile_name,omitempty"`
	File           string   `json:"file,omitempty" yaml:"file,omitempty"`
	ImageJSONPath  string   `json:"image_json_path,omitempty" yaml:"image_json_path,omitempty"`
	Tags           []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	TestExpression  string `json:"test_expression,omitempty" yaml:"test_expression,omitempty"`
	Nightly         bool   `json:"nightly,omitempty" yaml:"nightly,omitempty"`
	Registry        string `json:"registry,omitempty" yaml:"registry,omitempty"`
	NightlySavePath string `json:"nightly_save_path,omitempty" yaml:"nightly_save_path,omitempty"`

	Year string `json:"year,omitempty" yaml:"year,omitempty"`
}

// NewConfig seeds a configuration from a raw request. No derivation happens here.
func NewConfig(req *RawRequest) Config {
	return Config{
		Mode:            req.Mode,
		OS:              req.Scalar(OptOS),
		Python:          req.Scalar(OptPython),
		Distribution:    req.Scalar(OptDistribution),
		Source:          req.Scalar(OptSource),
		InstallType:     req.Scalar(OptInstallType),
		CMake:           req.Scalar(OptCMake),
		MSBuild:         req.Scalar(OptMSBuild),
		OCLRelease:      req.Scalar(OptOCLRelease),
		PackageURL:      req.Scalar(OptPackageURL),
		ProductVersion:  req.Scalar(OptProductVersion),
		Devices:         req.List(OptDevice),
		Layers:          req.List(OptLayers),
		BuildArgs:       req.List(OptBuildArg),
		LinterCheck:     req.List(OptLinterCheck),
		SDLCheck:        req.List(OptSDLCheck),
		DockerfileName:  req.Scalar(OptDockerfileName),
		File:            req.Scalar(OptFile),
		ImageJSONPath:   req.Scalar(OptImageJSONPath),
		Tags:            req.List(OptTags),
		TestExpression:  req.Scalar(OptTestExpression),
		Nightly:         req.Bool(OptNightly),
		Registry:        req.Scalar(OptRegistry),
		NightlySavePath: req.Scalar(OptNightlySavePath),
	}
}

// Request converts a resolved configuration back into a fully specified raw request.
// product_version carries the build id when one is known so that re-resolving keeps it.
func (c Config) Request() *RawRequest {
	req := NewRawRequest(c.Mode)
	scalar := func(name, value string) {
		if value != "" {
			req.SetScalar(name, value)
		}
	}
	list := func(name string, values []string) {
		if len(values) > 0 {
			req.SetList(name, values)
		}
	}

	scalar(OptOS, c.OS)
	scalar(OptPython, c.Python)
	scalar(OptDistribution, c.Distribution)
	scalar(OptSource, c.Source)
	scalar(OptInstallType, c.InstallType)
	scalar(OptCMake, c.CMake)
	scalar(OptMSBuild, c.MSBuild)
	scalar(OptOCLRelease, c.OCLRelease)
	scalar(OptPackageURL, c.PackageURL)
	if c.BuildID != "" {
		scalar(OptProductVersion, c.BuildID)
	} else {
		scalar(OptProductVersion, c.ProductVersion)
	}
	list(OptDevice, c.Devices)
	list(OptLayers, c.Layers)
	list(OptBuildArg, c.BuildArgs)
	list(OptLinterCheck, c.LinterCheck)
	list(OptSDLCheck, c.SDLCheck)
	scalar(OptDockerfileName, c.DockerfileName)
	scalar(OptFile, c.File)
	scalar(OptImageJSONPath, c.ImageJSONPath)
	list(OptTags, c.Tags)
	scalar(OptTestExpression, c.TestExpression)
	if c.Nightly {
		req.SetBool(OptNightly, true)
	}
	scalar(OptRegistry, c.Registry)
	scalar(OptNightlySavePath, c.NightlySavePath)
	return req
}

// IsWindows reports whether the target OS is a Windows variant.
func (c Config) IsWindows() bool {
	return strings.Contains(c.OS, "win")
}

// HasDevice reports whether the device list contains d.
func (c Config) HasDevice(d string) bool {
	for _, dev := range c.Devices {
		if dev == d {
			return true
		}
	}
	return false
}

// Version returns the most precise known version: the build id, else the product version.
func (c Config) Version() string {
	if c.BuildID != "" {
		return c.BuildID
	}
	return c.ProductVersion
}

// CheckInvariants verifies the relations every resolved configuration must satisfy.
func (c Config) CheckInvariants() error {
	if c.BuildID != "" && !strings.HasPrefix(c.BuildID, c.ProductVersion) {
		return NewInconsistentConfigError(OptProductVersion,
			"product version "+c.ProductVersion+" is not a prefix of build id "+c.BuildID)
	}
	if c.Mode.RunsEngine() {
		if c.DockerfileName == "" {
			return NewMissingArgumentError(OptDockerfileName, "dockerfile name was not resolved")
		}
		if c.Distribution != "" && len(c.Devices) == 0 {
			return NewMissingArgumentError(OptDevice, "device list was not resolved")
		}
	}
	return nil
}

// ParseBuildArgs parses NAME=VALUE entries. Later entries override earlier ones.
func ParseBuildArgs(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	parsed := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, NewParseError(OptBuildArg, "expected VAR_NAME=VALUE, got "+arg)
		}
		parsed[name] = value
	}
	return parsed, nil
}
