package options

import (
	"github.com/openfroyo/imagectl/pkg/engine"
)

// Group identifies a feature group of options.
type Group string

const (
	GroupImage      Group = "image"
	GroupBuild      Group = "build"
	GroupTest       Group = "test"
	GroupDeploy     Group = "deploy"
	GroupDockerfile Group = "dockerfile"
	GroupTemplate   Group = "template"
)

// Kind is the shape of an option value.
type Kind int

const (
	Scalar Kind = iota
	Repeatable
	Switch
)

// Option declares one command-line option.
type Option struct {
	// Name is the long flag name and the key used in request files.
	Name string

	// Shorthand is the optional one-letter flag.
	Shorthand string

	// Kind is scalar, repeatable or switch.
	Kind Kind

	// Choices is the closed value set; empty means free-form.
	Choices []string

	// Default is applied when the option was not supplied.
	Default string

	// Usage is the help text.
	Usage string

	// Hidden options are accepted but not listed in usage.
	Hidden bool

	// RequiredIn lists the modes in which the option is mandatory.
	RequiredIn []engine.Mode
}

// Required reports whether the option is mandatory in mode.
func (o Option) Required(mode engine.Mode) bool {
	for _, m := range o.RequiredIn {
		if m == mode {
			return true
		}
	}
	return false
}

// Allows reports whether value is acceptable for a closed option.
func (o Option) Allows(value string) bool {
	if len(o.Choices) == 0 {
		return true
	}
	for _, c := range o.Choices {
		if c == value {
			return true
		}
	}
	return false
}

// Schema maps each group to its declared options, in presentation order.
var Schema = map[Group][]Option{
	GroupImage: {
		{
			Name:       engine.OptTags,
			Shorthand:  "t",
			Kind:       Repeatable,
			Usage:      `Source image name and optionally a tag in the "IMAGE_NAME:TAG" format. Default is <os>_<distribution>:<product_version> and latest. Can be repeated.`,
			RequiredIn: []engine.Mode{engine.ModeTest},
		},
	},
	GroupBuild: {
		{
			Name:      engine.OptFile,
			Shorthand: "f",
			Usage:     "Name of the Dockerfile used to build the image.",
		},
		{
			Name:  engine.OptImageJSONPath,
			Usage: "Path to save image data in .json format. By default it is stored in the logs folder.",
		},
	},
	GroupTest: {
		{
			Name:      engine.OptTestExpression,
			Shorthand: "k",
			Usage:     "Run tests which match the given substring expression.",
		},
		{
			Name:  engine.OptSDLCheck,
			Kind:  Repeatable,
			Usage: "Enable SDL check for the docker host and image. Available: snyk, bench_security.",
		},
		{
			Name:   engine.OptNightly,
			Kind:   Switch,
			Usage:  "Set up tests after deploy for regular builds.",
			Hidden: true,
		},
	},
	GroupDeploy: {
		{
			Name:       engine.OptRegistry,
			Shorthand:  "r",
			Usage:      `Registry host and optionally a port in the "host:port" format.`,
			RequiredIn: []engine.Mode{engine.ModeDeploy, engine.ModeAll},
		},
		{
			Name:   engine.OptNightlySavePath,
			Usage:  "Save the docker image as a binary file to this path.",
			Hidden: true,
		},
	},
	GroupDockerfile: {
		{
			Name:  engine.OptDockerfileName,
			Usage: `Name of the Dockerfile generated from templates. Format is "openvino_<devices>_<distribution>_<product_version>.dockerfile".`,
		},
	},
	GroupTemplate: {
		{
			Name:      engine.OptDevice,
			Shorthand: "d",
			Kind:      Repeatable,
			Choices:   []string{engine.DeviceCPU, engine.DeviceGPU, engine.DeviceVPU, engine.DeviceHDDL},
			Usage:     "Target inference hardware: cpu, gpu, vpu, hddl. Default is all. The dockerfile name carries the first letter of each device.",
		},
		{
			Name: engine.OptDistribution,
			Choices: []string{
				engine.DistBase, engine.DistRuntime, engine.DistDev,
				engine.DistDataDev, engine.DistInternalDev, engine.DistProprietary,
			},
			Usage:      "Distribution type. base requires --file with a prebuilt dockerfile.",
			RequiredIn: []engine.Mode{engine.ModeTest},
		},
		{
			Name:      engine.OptSource,
			Shorthand: "s",
			Choices:   []string{engine.SourceURL, engine.SourceLocal},
			Default:   engine.SourceURL,
			Usage:     "Source of the package: external URL or local path relative to the project root.",
		},
		{
			Name:    engine.OptInstallType,
			Choices: []string{engine.InstallCopy, engine.InstallInstall},
			Usage:   `Installation method: "copy" for a plain archive, "install" for an installer.`,
		},
		{
			Name:    engine.OptOS,
			Choices: []string{"ubuntu18", "ubuntu20", "winserver2019"},
			Default: "ubuntu18",
			Usage:   "Operating system of the image.",
		},
		{
			Name:    engine.OptPython,
			Choices: []string{"python36", "python37", "python38"},
			Usage:   "Python interpreter. Default depends on OS: ubuntu18 python36, ubuntu20 python38, winserver2019 python37.",
		},
		{
			Name:    engine.OptCMake,
			Choices: []string{"cmake34", "cmake314"},
			Default: "cmake314",
			Usage:   "CMake for Windows images. Linux images use the OS default.",
		},
		{
			Name:    engine.OptMSBuild,
			Choices: []string{"msbuild2019"},
			Usage:   "MSBuild Tools for Windows images. Do not share images carrying MSBuild 2019 publicly.",
		},
		{
			Name:      engine.OptPackageURL,
			Shorthand: "u",
			Usage:     "Package URL (http://, https://, ftp://) or local path relative to the project root.",
		},
		{
			Name:    engine.OptOCLRelease,
			Choices: []string{"20.03.15346", "19.41.14441", "19.04.12237"},
			Default: "19.41.14441",
			Usage:   "Release of the Graphics Compute Runtime for OpenCL needed for GPU inference.",
		},
		{
			Name:      engine.OptProductVersion,
			Shorthand: "p",
			Usage:     "Product version in format YYYY.U[.BBB], where BBB is an optional build number.",
		},
		{
			Name:  engine.OptLinterCheck,
			Kind:  Repeatable,
			Usage: "Enable linter checks for the image and dockerfile. Available: hadolint, dive.",
		},
		{
			Name:      engine.OptLayers,
			Shorthand: "l",
			Kind:      Repeatable,
			Usage:     "Layer template appended to the end of the product dockerfile.",
		},
		{
			Name:  engine.OptBuildArg,
			Kind:  Repeatable,
			Usage: "Build or template argument for your layer.",
		},
	},
}

// Lookup returns the declaration of an option by name, searching every group.
func Lookup(name string) (Option, bool) {
	for _, group := range allGroups {
		for _, opt := range Schema[group] {
			if opt.Name == name {
				return opt, true
			}
		}
	}
	return Option{}, false
}

// OptionsFor returns every option accepted by mode, in group order.
func OptionsFor(mode engine.Mode) []Option {
	var opts []Option
	for _, group := range GroupsFor(mode) {
		opts = append(opts, Schema[group]...)
	}
	return opts
}
