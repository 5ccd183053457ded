package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openfroyo/imagectl/pkg/engine"
	"github.com/openfroyo/imagectl/pkg/options"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitInternal = 1
	ExitUsage    = 2
)

// Global flag names. They double as viper keys; the environment variable is
// IMAGECTL_ followed by the upper-cased name with dashes replaced by underscores.
const (
	flagConfig        = "config"
	flagRoot          = "root"
	flagVersionsFile  = "versions_file"
	flagPolicy        = "policy"
	flagJSON          = "json"
	flagLogLevel      = "log-level"
	flagLogFormat     = "log-format"
	flagMetricsFile   = "metrics-file"
	flagTraceExporter = "trace-exporter"
	flagTraceEndpoint = "trace-endpoint"
)

// app carries the settings shared by every mode command.
type app struct {
	v       *viper.Viper
	version string
}

// Execute runs imagectl with args and returns the process exit code.
// A missing mode token selects the default mode.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, version, commit, buildDate string) int {
	rootCmd, err := newRootCommand(version, commit, buildDate)
	if err != nil {
		fmt.Fprintf(stderr, "imagectl: %v\n", err)
		return ExitInternal
	}
	args = options.WithDefaultMode(args, globalValue(rootCmd.PersistentFlags()))
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(stderr, "%s: error: %v\n", cmd.CommandPath(), err)
	if !engine.IsConfigError(err) {
		return ExitInternal
	}
	if !helpRequested(args) {
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return ExitUsage
}

func newRootCommand(version, commit, buildDate string) (*cobra.Command, error) {
	a := &app{v: viper.New(), version: version}

	rootCmd := &cobra.Command{
		Use:   "imagectl [mode] [flags]",
		Short: "Resolve OpenVINO docker image build configurations",
		Long: `imagectl turns a sparse build request into a complete, validated configuration
for generating, building, testing and deploying OpenVINO docker images.

Omitted values are derived from the ones supplied: the package URL from the
version table, the distribution and build number from the package name, the
default python, devices, dockerfile name and image tags from the target OS.

Without a mode, "all" is assumed.`,
		Example: `  # Resolve a dev image for Ubuntu 18
  imagectl build --distribution dev --product_version 2021.4

  # Derive everything from a package URL
  imagectl gen_dockerfile --install_type copy \
    --package_url https://host/l_openvino_toolkit_dev_ubuntu18_p_2021.4.582.tgz

  # Replay a request file, overriding one value
  imagectl build --config request.cue --os ubuntu20 --json`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Args:          modeArg,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return engine.NewParseError("", err.Error())
	})

	// Persistent flags available to all modes
	pf := rootCmd.PersistentFlags()
	pf.String(flagConfig, "", "request file (.cue, .yaml or .json) with option values; flags take precedence")
	pf.String(flagRoot, ".", "project root; local paths must stay inside it")
	pf.String(flagVersionsFile, "", "version table replacing the built-in one (.cue, .yaml or .json)")
	pf.StringArray(flagPolicy, nil, "policy file or directory (.rego, .json); can be repeated")
	pf.Bool(flagJSON, false, "print the resolved configuration as JSON instead of YAML")
	pf.String(flagLogLevel, "warn", "log level (trace, debug, info, warn, error)")
	pf.String(flagLogFormat, "console", "log format (console, json)")
	pf.String(flagMetricsFile, "", "write resolution metrics to this file in the Prometheus text format")
	pf.String(flagTraceExporter, "none", "trace exporter (none, stdout, otlp)")
	pf.String(flagTraceEndpoint, "", "OTLP collector endpoint (host:port)")

	a.v.SetEnvPrefix("IMAGECTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(pf); err != nil {
		return nil, fmt.Errorf("failed to bind global flags: %w", err)
	}

	// One subcommand per mode
	for _, mode := range engine.Modes {
		rootCmd.AddCommand(a.newModeCommand(mode))
	}

	return rootCmd, nil
}

// globalValue reports whether a persistent flag, by long name or shorthand, takes a value.
func globalValue(pf *pflag.FlagSet) func(string) bool {
	return func(name string) bool {
		f := pf.Lookup(name)
		if f == nil && len(name) == 1 {
			f = pf.ShorthandLookup(name)
		}
		return f != nil && f.NoOptDefVal == ""
	}
}

// modeArg reports an unknown mode token as a parse error.
func modeArg(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	_, err := options.ParseMode(args[0])
	return err
}

// noArgs rejects positional arguments after the mode token.
func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return engine.NewParseError("", fmt.Sprintf("unrecognized arguments: %s", strings.Join(args, " ")))
	}
	return nil
}

func helpRequested(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}
