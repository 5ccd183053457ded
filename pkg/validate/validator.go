// Package validate applies the mode-conditioned cross-field rules to a seeded
// configuration, before any value is derived.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/distribution/reference"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/openfroyo/imagectl/pkg/engine"
	"github.com/openfroyo/imagectl/pkg/sanitize"
)

var (
	sdlChecks    = []string{"snyk", "bench_security"}
	linterChecks = []string{"hadolint", "dive"}
)

// Validator checks the relations between supplied options.
type Validator struct {
	fs       afero.Fs
	root     string
	validate *validator.Validate
}

// New creates a validator. Relative paths are resolved against root and read through fs.
func New(fs afero.Fs, root string) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{fs: fs, root: root, validate: v}
}

// Validate runs every check in order and returns the first failure.
func (v *Validator) Validate(cfg engine.Config) error {
	checks := []func(engine.Config) error{
		v.checkEnums,
		checkBaseDistribution,
		checkDeploy,
		checkTest,
		checkInstallType,
		v.checkPaths,
		checkScanTokens,
		checkTags,
		checkBuildArgs,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

// checkEnums validates every closed option against its allowed values.
func (v *Validator) checkEnums(cfg engine.Config) error {
	err := v.validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("failed to validate configuration: %w", err)
	}
	fe := verrs[0]
	option, _, _ := strings.Cut(fe.Field(), "[")
	return engine.NewParseError(option,
		fmt.Sprintf("invalid choice: %q (choose from %s)", fmt.Sprint(fe.Value()), fe.Param()))
}

func checkBaseDistribution(cfg engine.Config) error {
	if cfg.Distribution != engine.DistBase || !cfg.Mode.RunsEngine() {
		return nil
	}
	if cfg.Mode == engine.ModeGenDockerfile {
		return engine.NewParseError(engine.OptDistribution,
			"generating dockerfile for base distribution is not available. "+
				"Use the prebuilt dockerfiles with the build mode and --file")
	}
	if cfg.File == "" {
		return engine.NewMissingArgumentError(engine.OptFile,
			"the following argument is required with base distribution: -f/--file")
	}
	return nil
}

func checkDeploy(cfg engine.Config) error {
	if cfg.Mode == engine.ModeDeploy && len(cfg.Tags) == 0 {
		return engine.NewMissingArgumentError(engine.OptTags,
			"provide image tags for deployment with -t/--tags")
	}
	return nil
}

func checkTest(cfg engine.Config) error {
	if cfg.Mode != engine.ModeTest {
		return nil
	}
	if len(cfg.Tags) == 0 {
		return engine.NewMissingArgumentError(engine.OptTags,
			"the following argument is required: -t/--tags")
	}
	if cfg.Distribution == "" {
		return engine.NewMissingArgumentError(engine.OptDistribution,
			"the following argument is required: -dist/--distribution")
	}
	if cfg.Distribution == engine.DistRuntime && cfg.PackageURL == "" {
		return engine.NewMissingArgumentError(engine.OptPackageURL,
			"provide --package_url to test a runtime image, the dev package is needed for the tests")
	}
	return nil
}

func checkInstallType(cfg engine.Config) error {
	if cfg.Distribution == engine.DistProprietary && cfg.InstallType == engine.InstallCopy {
		return engine.NewInconsistentConfigError(engine.OptInstallType,
			"proprietary distribution can not be installed with --install_type copy")
	}
	return nil
}

// checkPaths rejects symbolic links in the dockerfile and report paths and requires
// the dockerfile to exist.
func (v *Validator) checkPaths(cfg engine.Config) error {
	if cfg.ImageJSONPath != "" {
		if sanitize.IsSymlink(v.fs, sanitize.Abs(v.root, cfg.ImageJSONPath)) {
			return engine.NewSecurityError(engine.OptImageJSONPath,
				"do not use symlink and hard link for --image_json_path key. It is an insecure way")
		}
	}
	if cfg.File == "" {
		return nil
	}

	path := sanitize.Abs(v.root, cfg.File)
	if sanitize.IsSymlink(v.fs, path) {
		return engine.NewSecurityError(engine.OptFile,
			"do not use symlink and hard link for --file key. It is an insecure way")
	}
	exists, err := afero.Exists(v.fs, path)
	if err != nil {
		return engine.NewLookupError(engine.OptFile, "cannot access dockerfile").WithCause(err)
	}
	if !exists {
		return engine.NewLookupError(engine.OptFile, fmt.Sprintf("cannot find specified dockerfile: %s", cfg.File))
	}
	return nil
}

func checkScanTokens(cfg engine.Config) error {
	if err := checkTokens(engine.OptSDLCheck, cfg.SDLCheck, sdlChecks); err != nil {
		return err
	}
	return checkTokens(engine.OptLinterCheck, cfg.LinterCheck, linterChecks)
}

func checkTokens(option string, tokens, allowed []string) error {
	for _, tok := range tokens {
		if !contains(allowed, tok) {
			return engine.NewParseError(option,
				fmt.Sprintf("incorrect value %q, allowed values: %s", tok, strings.Join(allowed, ", ")))
		}
	}
	return nil
}

// checkTags requires every user-supplied tag to be a valid image reference.
func checkTags(cfg engine.Config) error {
	for _, tag := range cfg.Tags {
		if _, err := reference.Parse(tag); err != nil {
			return engine.NewParseError(engine.OptTags, fmt.Sprintf("invalid image tag %q", tag)).WithCause(err)
		}
	}
	return nil
}

func checkBuildArgs(cfg engine.Config) error {
	_, err := engine.ParseBuildArgs(cfg.BuildArgs)
	return err
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
