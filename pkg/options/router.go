package options

import (
	"fmt"
	"strings"

	"github.com/openfroyo/imagectl/pkg/engine"
)

// DefaultMode is used when no mode token is given.
const DefaultMode = engine.ModeAll

var allGroups = []Group{GroupDockerfile, GroupTemplate, GroupImage, GroupBuild, GroupTest, GroupDeploy}

var modeGroups = map[engine.Mode][]Group{
	engine.ModeGenDockerfile: {GroupDockerfile, GroupTemplate},
	engine.ModeBuild:         {GroupDockerfile, GroupTemplate, GroupImage, GroupBuild},
	engine.ModeBuildTest:     {GroupDockerfile, GroupTemplate, GroupImage, GroupBuild, GroupTest},
	engine.ModeTest:          {GroupTemplate, GroupImage, GroupBuild, GroupTest},
	engine.ModeDeploy:        {GroupImage, GroupDeploy},
	engine.ModeAll:           allGroups,
}

var modeSummaries = map[engine.Mode]string{
	engine.ModeGenDockerfile: "Generate a dockerfile to the dockerfiles/<image_os> folder",
	engine.ModeBuild:         "Build a docker image",
	engine.ModeBuildTest:     "Build and test a docker image",
	engine.ModeTest:          "Test a local docker image",
	engine.ModeDeploy:        "Deploy a docker image",
	engine.ModeAll:           "Build, test and deploy a docker image [default]",
}

// ParseMode converts a mode token.
func ParseMode(token string) (engine.Mode, error) {
	mode := engine.Mode(token)
	if _, ok := modeGroups[mode]; !ok {
		names := make([]string, len(engine.Modes))
		for i, m := range engine.Modes {
			names[i] = string(m)
		}
		return "", engine.NewParseError("mode",
			fmt.Sprintf("invalid choice %q (choose from %s)", token, strings.Join(names, ", ")))
	}
	return mode, nil
}

// GroupsFor returns the option groups accepted by mode.
func GroupsFor(mode engine.Mode) []Group {
	return modeGroups[mode]
}

// HasGroup reports whether mode accepts the options of group.
func HasGroup(mode engine.Mode, group Group) bool {
	for _, g := range modeGroups[mode] {
		if g == group {
			return true
		}
	}
	return false
}

// Summary returns the one-line description of a mode.
func Summary(mode engine.Mode) string {
	return modeSummaries[mode]
}

// WithDefaultMode inserts the default mode when args carry no mode token.
// Flags may come before the mode, so the scan skips flag values: option flags are
// known from the schema, and globalValue reports whether any other flag (long
// name or shorthand) takes a value. The first remaining token is the mode.
// Help and version requests are left alone so the root command can answer them.
func WithDefaultMode(args []string, globalValue func(name string) bool) []string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append([]string{string(DefaultMode)}, args...)
		case arg == "-h" || arg == "--help" || arg == "--version":
			return args
		case !strings.HasPrefix(arg, "-") || arg == "-":
			return args
		case strings.Contains(arg, "="):
			continue
		}

		name := strings.TrimPrefix(arg, "--")
		if name == arg {
			// -pVALUE carries its value inline
			name = arg[1:]
			if len(name) > 1 {
				continue
			}
		}
		if takesValue(name) || (globalValue != nil && globalValue(name)) {
			i++
		}
	}
	return append([]string{string(DefaultMode)}, args...)
}

// takesValue reports whether the option flag name (long or shorthand) expects a value.
func takesValue(name string) bool {
	for _, opt := range OptionsFor(DefaultMode) {
		if opt.Name == name || opt.Shorthand == name {
			return opt.Kind != Switch
		}
	}
	return false
}

// CheckRequired reports the first option that is mandatory for the request's mode
// but absent from it. Only presence counts: an explicitly empty value satisfies it.
func CheckRequired(req *engine.RawRequest) error {
	for _, opt := range OptionsFor(req.Mode) {
		if opt.Required(req.Mode) && !req.Has(opt.Name) {
			return engine.NewMissingArgumentError(opt.Name, "the following argument is required: "+flagLabel(opt))
		}
	}
	return nil
}

// ApplyDefaults checks the mandatory options of the request's mode and fills options
// the request does not carry with their schema defaults.
func ApplyDefaults(req *engine.RawRequest) error {
	if err := CheckRequired(req); err != nil {
		return err
	}
	for _, opt := range OptionsFor(req.Mode) {
		if !req.Has(opt.Name) && opt.Default != "" {
			req.SetScalar(opt.Name, opt.Default)
		}
	}
	return nil
}

// CheckAccepted rejects options that the request's mode does not accept.
func CheckAccepted(req *engine.RawRequest) error {
	accepted := make(map[string]bool)
	for _, opt := range OptionsFor(req.Mode) {
		accepted[opt.Name] = true
	}
	for _, name := range req.Names() {
		if !accepted[name] {
			return engine.NewParseError(name, fmt.Sprintf("option is not accepted by mode %s", req.Mode))
		}
	}
	return nil
}

func flagLabel(opt Option) string {
	if opt.Shorthand != "" {
		return fmt.Sprintf("-%s/--%s", opt.Shorthand, opt.Name)
	}
	return "--" + opt.Name
}
