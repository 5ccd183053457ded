package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/imagectl/pkg/config"
	"github.com/openfroyo/imagectl/pkg/engine"
	"github.com/openfroyo/imagectl/pkg/options"
	"github.com/openfroyo/imagectl/pkg/policy"
	"github.com/openfroyo/imagectl/pkg/resolve"
	"github.com/openfroyo/imagectl/pkg/telemetry"
	"github.com/openfroyo/imagectl/pkg/versions"
)

func (a *app) newModeCommand(mode engine.Mode) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(mode) + " [flags]",
		Short: options.Summary(mode),
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, mode)
		},
	}
	options.Register(cmd.Flags(), mode)
	return cmd
}

// run resolves the request given to a mode command and prints the configuration.
func (a *app) run(cmd *cobra.Command, mode engine.Mode) (err error) {
	tel, err := a.telemetry()
	if err != nil {
		return err
	}
	defer func() {
		if serr := tel.Shutdown(context.Background()); serr != nil && err == nil {
			err = fmt.Errorf("failed to flush telemetry: %w", serr)
		}
	}()
	ctx := tel.WithContext(cmd.Context())
	logger := tel.Logger.NewComponentLogger("cli").WithMode(string(mode))

	req, err := options.Collect(cmd.Flags(), mode)
	if err != nil {
		return err
	}
	if path := a.v.GetString(flagConfig); path != "" {
		values, err := config.NewLoader().Load(path)
		if err != nil {
			return err
		}
		if err := options.Merge(req, values); err != nil {
			return err
		}
		logger.Debugf("loaded request file %s", path)
	}
	if err := options.ApplyDefaults(req); err != nil {
		return err
	}

	table, err := a.versionTable()
	if err != nil {
		return err
	}
	policies, err := a.policyEngine(ctx, tel)
	if err != nil {
		return err
	}

	r, err := resolve.New(resolve.Options{
		Root:      a.v.GetString(flagRoot),
		Table:     table,
		Policies:  policies,
		Telemetry: tel,
	})
	if err != nil {
		return err
	}

	res, err := r.Resolve(ctx, req)
	if err != nil {
		return err
	}
	return a.print(cmd.OutOrStdout(), res.Config)
}

func (a *app) telemetry() (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = a.version
	cfg.Logging.Level = a.v.GetString(flagLogLevel)
	cfg.Logging.Format = a.v.GetString(flagLogFormat)
	cfg.Metrics.TextfilePath = a.v.GetString(flagMetricsFile)
	cfg.Tracing.Exporter = a.v.GetString(flagTraceExporter)
	cfg.Tracing.Endpoint = a.v.GetString(flagTraceEndpoint)

	if err := cfg.Validate(); err != nil {
		return nil, engine.NewParseError("", "invalid telemetry settings").WithCause(err)
	}
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	return tel, nil
}

func (a *app) versionTable() (*versions.Table, error) {
	if path := a.v.GetString(flagVersionsFile); path != "" {
		return versions.Load(path)
	}
	return versions.Default()
}

// policyEngine returns the built-in policies plus any loaded with --policy.
func (a *app) policyEngine(ctx context.Context, tel *telemetry.Telemetry) (*policy.Engine, error) {
	pe, err := policy.NewEngine(tel.Logger.Zerolog())
	if err != nil {
		return nil, err
	}
	if paths := a.v.GetStringSlice(flagPolicy); len(paths) > 0 {
		if err := pe.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}
	return pe, nil
}

func (a *app) print(w io.Writer, cfg engine.Config) error {
	if a.v.GetBool(flagJSON) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
