// Package resolve turns a sparse build request into a complete configuration.
//
// Resolution is a single synchronous pass: the request is sanitized, the
// supplied options are validated, the missing fields are derived by an ordered
// list of pure steps and the result is checked against the configuration
// invariants and policies. The first failure aborts the pass; no partially
// resolved configuration is ever returned.
package resolve

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/openfroyo/imagectl/pkg/engine"
	"github.com/openfroyo/imagectl/pkg/options"
	"github.com/openfroyo/imagectl/pkg/policy"
	"github.com/openfroyo/imagectl/pkg/sanitize"
	"github.com/openfroyo/imagectl/pkg/telemetry"
	"github.com/openfroyo/imagectl/pkg/validate"
)

// Options configures a Resolver.
type Options struct {
	// Root is the directory path options must stay in. Defaults to the working directory.
	Root string

	// Table is the version table. Required.
	Table engine.VersionTable

	// Fs is the filesystem used for existence and symlink checks. Defaults to the OS filesystem.
	Fs afero.Fs

	// Policies evaluates the resolved configuration. Optional.
	Policies engine.PolicyEvaluator

	// Telemetry receives logs, spans and metrics. Defaults to telemetry.Nop().
	Telemetry *telemetry.Telemetry
}

// Result is a successful resolution.
type Result struct {
	// ID identifies the resolution in logs, spans and policy input.
	ID string

	// Config is the resolved configuration.
	Config engine.Config

	// Policy is the policy outcome, nil when no evaluator is configured.
	Policy *engine.PolicyResult
}

// Resolver runs the resolution pipeline.
type Resolver struct {
	sanitizer *sanitize.Sanitizer
	validator *validate.Validator
	engine    *Engine
	policies  engine.PolicyEvaluator
	tel       *telemetry.Telemetry
}

// New creates a resolver.
func New(opts Options) (*Resolver, error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("a version table is required")
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop()
	}

	s, err := sanitize.New(opts.Root)
	if err != nil {
		return nil, err
	}
	root := s.Root()

	return &Resolver{
		sanitizer: s,
		validator: validate.New(opts.Fs, root),
		engine:    NewEngine(opts.Fs, root, opts.Table),
		policies:  opts.Policies,
		tel:       opts.Telemetry,
	}, nil
}

// Resolve resolves req. The request is expected to carry schema defaults
// already (see options.ApplyDefaults); it is not modified.
func (r *Resolver) Resolve(ctx context.Context, req *engine.RawRequest) (*Result, error) {
	id := uuid.NewString()
	mode := string(req.Mode)

	logger := r.tel.Logger.NewComponentLogger("resolver").WithResolutionID(id).WithMode(mode)
	ctx = logger.WithContext(ctx)
	ctx, span := r.tel.Tracer.StartResolutionSpan(ctx, id, mode)
	defer span.End()

	cfg, pr, err := r.resolve(ctx, req, id)
	if err != nil {
		telemetry.RecordError(span, err)
		kind := engine.KindOf(err)
		if kind != "" {
			span.SetAttributes(telemetry.AttrErrorKind.String(string(kind)))
			r.tel.Metrics.RecordResolution(mode, telemetry.OutcomeRejected)
		} else {
			r.tel.Metrics.RecordResolution(mode, telemetry.OutcomeFailed)
		}
		r.tel.Metrics.RecordError(string(kind))
		logger.WithError(err).Debug("resolution failed")
		return nil, err
	}

	telemetry.RecordSuccess(span)
	r.tel.Metrics.RecordResolution(mode, telemetry.OutcomeResolved)
	logger.Infof("resolved %s", cfg.DockerfileName)

	return &Result{ID: id, Config: cfg, Policy: pr}, nil
}

func (r *Resolver) resolve(ctx context.Context, req *engine.RawRequest, id string) (engine.Config, *engine.PolicyResult, error) {
	err := r.phase(ctx, "check_accepted", func() error {
		if err := options.CheckAccepted(req); err != nil {
			return err
		}
		return options.CheckRequired(req)
	})
	if err != nil {
		return engine.Config{}, nil, err
	}
	if err := r.phase(ctx, "sanitize", func() error { return r.sanitizer.Check(req) }); err != nil {
		return engine.Config{}, nil, err
	}

	cfg := engine.NewConfig(req)
	if err := r.phase(ctx, "validate", func() error { return r.validator.Validate(cfg) }); err != nil {
		return engine.Config{}, nil, err
	}

	for _, step := range r.engine.Steps(cfg.Mode) {
		var next engine.Config
		err := r.phase(ctx, step.Name, func() error {
			var err error
			next, err = step.Run(cfg)
			return err
		})
		if err != nil {
			return engine.Config{}, nil, err
		}
		cfg = next
	}

	if err := cfg.CheckInvariants(); err != nil {
		return engine.Config{}, nil, err
	}

	pr, err := r.evaluatePolicies(ctx, &cfg, id)
	if err != nil {
		return engine.Config{}, nil, err
	}
	return cfg, pr, nil
}

// phase runs fn inside a step span and records its duration.
func (r *Resolver) phase(ctx context.Context, name string, fn func() error) error {
	ctx, span := r.tel.Tracer.StartStepSpan(ctx, name)
	defer span.End()

	timer := telemetry.NewTimer()
	err := fn()
	r.tel.Metrics.RecordStep(name, timer.Duration())

	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	telemetry.FromContext(ctx).Debugf("%s done", name)
	return nil
}

// evaluatePolicies logs every violation and rejects the configuration when a
// blocking one was found.
func (r *Resolver) evaluatePolicies(ctx context.Context, cfg *engine.Config, id string) (*engine.PolicyResult, error) {
	if r.policies == nil {
		return nil, nil
	}

	ic := r.tel.StartOperation(ctx, "policy")
	result, err := r.policies.Evaluate(policy.WithResolutionID(ic.Ctx, id), cfg)
	ic.End(err)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policies: %w", err)
	}

	for _, w := range result.Warnings {
		ic.Logger.Warn(w)
	}
	var blocking *engine.PolicyViolation
	for i, v := range result.Violations {
		r.tel.Metrics.RecordViolation(v.Policy, v.Severity)
		switch policy.Severity(v.Severity) {
		case policy.SeverityInfo:
			ic.Logger.Infof("%s: %s", v.Policy, v.Message)
		case policy.SeverityError, policy.SeverityCritical:
			ic.Logger.Errorf("%s: %s", v.Policy, v.Message)
			if blocking == nil {
				blocking = &result.Violations[i]
			}
		default:
			ic.Logger.Warnf("%s: %s", v.Policy, v.Message)
		}
	}

	if !result.Allowed {
		if blocking == nil {
			return nil, engine.NewInconsistentConfigError("", "configuration rejected by policy")
		}
		return nil, engine.NewInconsistentConfigError(blocking.Option,
			fmt.Sprintf("rejected by policy %s: %s", blocking.Policy, blocking.Message))
	}
	return result, nil
}
