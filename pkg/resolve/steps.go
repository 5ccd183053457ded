package resolve

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/openfroyo/imagectl/pkg/engine"
	"github.com/openfroyo/imagectl/pkg/sanitize"
)

// Step is one stage of the resolution pipeline. Steps never modify their input in place:
// fields that change are replaced, so a Config passed to a step is still valid afterwards.
type Step struct {
	Name string
	Run  func(engine.Config) (engine.Config, error)
}

// Engine derives every missing field of a configuration.
type Engine struct {
	fs    afero.Fs
	root  string
	table engine.VersionTable
}

// NewEngine creates an engine reading the filesystem through fs. Relative local
// paths are resolved against root.
func NewEngine(fs afero.Fs, root string, table engine.VersionTable) *Engine {
	return &Engine{fs: fs, root: root, table: table}
}

// Steps returns the ordered steps for mode. Each step may read fields written by
// an earlier one; the order must not change.
func (e *Engine) Steps(mode engine.Mode) []Step {
	steps := []Step{
		{"normalize_paths", e.normalizePaths},
	}
	if mode.RunsEngine() {
		steps = append(steps,
			Step{"require_install_or_version", requireInstallOrVersion},
			Step{"check_ocl_release", e.checkOCLRelease},
			Step{"check_package_locator", e.checkPackageLocator},
			Step{"default_python", defaultPython},
			Step{"infer_distribution", inferDistribution},
			Step{"default_devices", defaultDevices},
			Step{"parse_build_args", parseBuildArgs},
			Step{"split_product_version", splitProductVersion},
			Step{"lookup_package", e.lookupPackage(mode != engine.ModeGenDockerfile)},
			Step{"derive_build_id", deriveBuildID},
			Step{"derive_dockerfile_name", deriveDockerfileName},
		)
	}
	steps = append(steps, Step{"derive_tags", deriveTags})
	if mode != engine.ModeTest && mode != engine.ModeDeploy {
		steps = append(steps, Step{"derive_year", deriveYear})
	}
	return steps
}

// Resolve runs every step for cfg.Mode in order and stops at the first error.
func (e *Engine) Resolve(cfg engine.Config) (engine.Config, error) {
	for _, step := range e.Steps(cfg.Mode) {
		next, err := step.Run(cfg)
		if err != nil {
			return engine.Config{}, err
		}
		cfg = next
	}
	return cfg, nil
}

// normalizePaths makes the dockerfile and report paths absolute and converts a
// local package path to forward slashes.
func (e *Engine) normalizePaths(cfg engine.Config) (engine.Config, error) {
	if cfg.PackageURL != "" && cfg.Source == engine.SourceLocal {
		cfg.PackageURL = filepath.ToSlash(cfg.PackageURL)
	}
	if cfg.File != "" {
		cfg.File = sanitize.Abs(e.root, cfg.File)
	}
	if cfg.ImageJSONPath != "" {
		cfg.ImageJSONPath = sanitize.Abs(e.root, cfg.ImageJSONPath)
	}
	return cfg, nil
}

// requireInstallOrVersion needs one of install_type or product_version to pick the
// install method.
func requireInstallOrVersion(cfg engine.Config) (engine.Config, error) {
	if cfg.InstallType == "" && cfg.ProductVersion == "" {
		return cfg, engine.NewMissingArgumentError(engine.OptInstallType,
			"the following argument is required: --install_type")
	}
	return cfg, nil
}

func (e *Engine) checkOCLRelease(cfg engine.Config) (engine.Config, error) {
	if cfg.OCLRelease != "" && !e.table.SupportedOCL(cfg.OCLRelease) {
		return cfg, engine.NewParseError(engine.OptOCLRelease,
			fmt.Sprintf("provided Graphics Compute Runtime for OpenCL release %s is not acceptable", cfg.OCLRelease))
	}
	return cfg, nil
}

// checkPackageLocator validates a locator without a network scheme against the source kind.
func (e *Engine) checkPackageLocator(cfg engine.Config) (engine.Config, error) {
	if cfg.PackageURL == "" || sanitize.HasNetworkScheme(cfg.PackageURL) {
		return cfg, nil
	}

	switch cfg.Source {
	case engine.SourceLocal:
		path := sanitize.Abs(e.root, filepath.FromSlash(cfg.PackageURL))
		exists, err := afero.Exists(e.fs, path)
		if err != nil {
			return cfg, engine.NewLookupError(engine.OptPackageURL, "cannot access local package").WithCause(err)
		}
		if !exists {
			return cfg, engine.NewLookupError(engine.OptPackageURL,
				fmt.Sprintf("local path of the package should be relative to the project root or use an http/https/ftp scheme: %s", cfg.PackageURL))
		}
		if sanitize.IsSymlink(e.fs, path) {
			return cfg, engine.NewSecurityError(engine.OptPackageURL,
				"do not use symlinks or hard links to specify a local package")
		}
	default:
		if cfg.Distribution != engine.DistBase {
			return cfg, engine.NewInconsistentConfigError(engine.OptPackageURL,
				"provided URL is not supported, use http://, https:// or ftp:// access scheme")
		}
	}
	return cfg, nil
}

func defaultPython(cfg engine.Config) (engine.Config, error) {
	if cfg.Python == "" {
		cfg.Python = DefaultPython(cfg.OS)
	}
	return cfg, nil
}

func inferDistribution(cfg engine.Config) (engine.Config, error) {
	if cfg.Distribution != "" || cfg.PackageURL == "" {
		return cfg, nil
	}
	dist, err := InferDistribution(cfg.PackageURL)
	if err != nil {
		return cfg, err
	}
	cfg.Distribution = dist
	return cfg, nil
}

func defaultDevices(cfg engine.Config) (engine.Config, error) {
	if len(cfg.Devices) == 0 {
		cfg.Devices = DefaultDevices(cfg.OS, cfg.Distribution)
	}
	return cfg, nil
}

func parseBuildArgs(cfg engine.Config) (engine.Config, error) {
	parsed, err := engine.ParseBuildArgs(cfg.BuildArgs)
	if err != nil {
		return cfg, err
	}
	cfg.BuildArgMap = parsed
	return cfg, nil
}

// splitProductVersion keeps the supplied version as the build id and narrows the
// product version to YYYY.U.
func splitProductVersion(cfg engine.Config) (engine.Config, error) {
	if cfg.ProductVersion == "" {
		return cfg, nil
	}
	pv, err := ParseProductVersion(cfg.ProductVersion)
	if err != nil {
		return cfg, err
	}
	if !strings.HasPrefix(cfg.ProductVersion, pv) {
		return cfg, engine.NewLookupError(engine.OptProductVersion,
			fmt.Sprintf("product version %q must start with YYYY.U", cfg.ProductVersion))
	}
	cfg.BuildID = cfg.ProductVersion
	cfg.ProductVersion = pv
	return cfg, nil
}

// lookupPackage finds the locator in the version table when none was supplied.
// A non-strict lookup tolerates a missing entry and leaves the locator empty.
func (e *Engine) lookupPackage(strict bool) func(engine.Config) (engine.Config, error) {
	return func(cfg engine.Config) (engine.Config, error) {
		if cfg.PackageURL != "" || cfg.Distribution == engine.DistBase || cfg.Distribution == engine.DistInternalDev {
			return cfg, nil
		}
		if cfg.Distribution == "" || cfg.ProductVersion == "" {
			return cfg, engine.NewMissingArgumentError(engine.OptPackageURL,
				"insufficient arguments. Provide --package_url or --distribution and --product_version arguments")
		}

		locator, ok := e.table.Lookup(cfg.ProductVersion, cfg.OS, cfg.Distribution)
		if !ok {
			if !strict {
				return cfg, nil
			}
			return cfg, engine.NewLookupError(engine.OptPackageURL,
				fmt.Sprintf("cannot find package url for %s version and %s distribution. Please specify --package_url directly",
					cfg.ProductVersion, cfg.Distribution))
		}
		cfg.PackageURL = locator
		return cfg, nil
	}
}

func deriveBuildID(cfg engine.Config) (engine.Config, error) {
	if cfg.PackageURL == "" || cfg.BuildID != "" {
		return cfg, nil
	}
	id, err := ParseBuildID(cfg.PackageURL)
	if err != nil {
		return cfg, err
	}
	cfg.BuildID = id
	cfg.ProductVersion = id[:6]
	return cfg, nil
}

func deriveDockerfileName(cfg engine.Config) (engine.Config, error) {
	if cfg.DockerfileName != "" {
		return cfg, nil
	}
	if len(cfg.Layers) > 0 {
		cfg.DockerfileName = fmt.Sprintf("openvino_%s_%s.dockerfile",
			strings.Join(cfg.Layers, "_"), cfg.ProductVersion)
	} else {
		cfg.DockerfileName = fmt.Sprintf("openvino_%s_%s_%s.dockerfile",
			DeviceInitials(cfg.Devices), cfg.Distribution, cfg.ProductVersion)
	}
	return cfg, nil
}

func deriveTags(cfg engine.Config) (engine.Config, error) {
	if len(cfg.Tags) > 0 {
		return cfg, nil
	}

	var name, version string
	switch {
	case len(cfg.Layers) > 0:
		name = fmt.Sprintf("%s_%s", cfg.OS, strings.Join(cfg.Layers, "_"))
		version = cfg.Version()
	case cfg.Distribution == engine.DistBase:
		name = fmt.Sprintf("%s_base_cpu", cfg.OS)
		version = cfg.ProductVersion
	default:
		name = fmt.Sprintf("%s_%s", cfg.OS, cfg.Distribution)
		version = cfg.Version()
	}
	if version == "" {
		return cfg, engine.NewMissingArgumentError(engine.OptProductVersion,
			"cannot derive image tags without a product version. Please specify --product_version or --tags")
	}

	cfg.Tags = []string{name + ":" + version, name + ":latest"}
	return cfg, nil
}

func deriveYear(cfg engine.Config) (engine.Config, error) {
	version := cfg.Version()
	if len(version) < 4 {
		return cfg, engine.NewMissingArgumentError(engine.OptProductVersion,
			"cannot derive the release year. Please specify --product_version")
	}
	cfg.Year = version[:4]
	return cfg, nil
}
