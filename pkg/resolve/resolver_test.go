package resolve

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/openfroyo/imagectl/pkg/engine"
	"github.com/openfroyo/imagectl/pkg/options"
	"github.com/openfroyo/imagectl/pkg/policy"
	"github.com/openfroyo/imagectl/pkg/telemetry"
)

type fakePolicies struct {
	result *engine.PolicyResult
	err    error
	got    *engine.Config
}

func (f *fakePolicies) Evaluate(_ context.Context, cfg *engine.Config) (*engine.PolicyResult, error) {
	f.got = cfg
	return f.result, f.err
}

func newResolver(t *testing.T, fs afero.Fs, opts Options) *Resolver {
	t.Helper()
	opts.Root = projectRoot
	opts.Fs = fs
	if opts.Table == nil {
		opts.Table = testTable()
	}
	r, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func request(t *testing.T, mode engine.Mode, scalars map[string]string, lists map[string][]string) *engine.RawRequest {
	t.Helper()
	req := engine.NewRawRequest(mode)
	for k, v := range scalars {
		req.SetScalar(k, v)
	}
	for k, v := range lists {
		req.SetList(k, v)
	}
	if err := options.ApplyDefaults(req); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	return req
}

func TestNew_RequiresTable(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected an error without a version table")
	}
}

func TestResolver_Idempotent(t *testing.T) {
	tests := []struct {
		name    string
		scalars map[string]string
	}{
		{"product version", map[string]string{"distribution": "dev", "product_version": "2021.4"}},
		{"build id", map[string]string{"distribution": "dev", "product_version": "2021.4.689"}},
		{"package url", map[string]string{"os": "ubuntu20", "install_type": "copy", "package_url": runtimeURL}},
	}

	r := newResolver(t, afero.NewMemMapFs(), Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := r.Resolve(context.Background(), request(t, engine.ModeBuild, tt.scalars, nil))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			second, err := r.Resolve(context.Background(), first.Config.Request())
			if err != nil {
				t.Fatalf("re-resolving the resolved request failed: %v", err)
			}
			if !reflect.DeepEqual(first.Config, second.Config) {
				t.Errorf("resolution is not idempotent:\nfirst  %+v\nsecond %+v", first.Config, second.Config)
			}
			if first.ID == "" || first.ID == second.ID {
				t.Errorf("each resolution needs its own id, got %q and %q", first.ID, second.ID)
			}
		})
	}
}

func TestResolver_RegistryPresence(t *testing.T) {
	r := newResolver(t, afero.NewMemMapFs(), Options{})

	req := engine.NewRawRequest(engine.ModeDeploy)
	req.SetList(engine.OptTags, []string{"ubuntu18_dev:2021.4"})
	_, err := r.Resolve(context.Background(), req)
	if !errors.Is(err, &engine.ConfigError{Kind: engine.KindMissingArgument, Option: engine.OptRegistry}) {
		t.Fatalf("expected a missing registry, got %v", err)
	}

	req.SetScalar(engine.OptRegistry, "")
	res, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("an explicitly empty registry must be accepted, got %v", err)
	}
	if res.Config.Registry != "" || !reflect.DeepEqual(res.Config.Tags, []string{"ubuntu18_dev:2021.4"}) {
		t.Errorf("unexpected config %+v", res.Config)
	}
}

func TestResolver_Errors(t *testing.T) {
	tests := []struct {
		name       string
		mode       engine.Mode
		scalars    map[string]string
		lists      map[string][]string
		wantKind   engine.ErrorKind
		wantOption string
		wantText   string
	}{
		{
			name:       "option of another mode",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "dev", "product_version": "2021.4", "registry": "r:5000"},
			wantKind:   engine.KindParse,
			wantOption: engine.OptRegistry,
		},
		{
			name:       "non-printable value",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "dev", "product_version": "2021.4\x07"},
			wantKind:   engine.KindEncoding,
			wantOption: engine.OptProductVersion,
		},
		{
			name:       "dockerfile outside the root",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "base", "product_version": "2021.4", "file": "../etc/passwd"},
			wantKind:   engine.KindSecurity,
			wantOption: engine.OptFile,
		},
		{
			name:       "unknown device",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "dev", "product_version": "2021.4"},
			lists:      map[string][]string{"device": {"cpu", "fpga"}},
			wantKind:   engine.KindParse,
			wantOption: engine.OptDevice,
			wantText:   "fpga",
		},
		{
			name:       "base dockerfile cannot be generated",
			mode:       engine.ModeGenDockerfile,
			scalars:    map[string]string{"distribution": "base", "product_version": "2021.4"},
			wantKind:   engine.KindParse,
			wantOption: engine.OptDistribution,
		},
		{
			name:       "base without a dockerfile",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "base", "product_version": "2021.4"},
			wantKind:   engine.KindMissingArgument,
			wantOption: engine.OptFile,
		},
		{
			name:       "base dockerfile not found",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "base", "product_version": "2021.4", "file": "Dockerfile"},
			wantKind:   engine.KindLookup,
			wantOption: engine.OptFile,
		},
		{
			name:       "proprietary copy",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "proprietary", "install_type": "copy", "product_version": "2021.4"},
			wantKind:   engine.KindInconsistentConfig,
			wantOption: engine.OptInstallType,
		},
		{
			name:       "unknown sdl check",
			mode:       engine.ModeBuildTest,
			scalars:    map[string]string{"distribution": "dev", "product_version": "2021.4"},
			lists:      map[string][]string{"sdl_check": {"snyk", "foo"}},
			wantKind:   engine.KindParse,
			wantOption: engine.OptSDLCheck,
			wantText:   "foo",
		},
		{
			name:       "unknown linter",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "dev", "product_version": "2021.4"},
			lists:      map[string][]string{"linter_check": {"shellcheck"}},
			wantKind:   engine.KindParse,
			wantOption: engine.OptLinterCheck,
			wantText:   "shellcheck",
		},
		{
			name:       "deploy without tags",
			mode:       engine.ModeDeploy,
			scalars:    map[string]string{"registry": "registry.local:5000"},
			wantKind:   engine.KindMissingArgument,
			wantOption: engine.OptTags,
		},
		{
			name:       "runtime test without the dev package",
			mode:       engine.ModeTest,
			scalars:    map[string]string{"distribution": "runtime"},
			lists:      map[string][]string{"tags": {"ubuntu18_runtime:2021.4"}},
			wantKind:   engine.KindMissingArgument,
			wantOption: engine.OptPackageURL,
		},
		{
			name:       "invalid tag",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "dev", "product_version": "2021.4"},
			lists:      map[string][]string{"tags": {"Ubuntu18_Dev:2021.4"}},
			wantKind:   engine.KindParse,
			wantOption: engine.OptTags,
		},
		{
			name:       "build arg without a value",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "dev", "product_version": "2021.4"},
			lists:      map[string][]string{"build_arg": {"HTTP_PROXY"}},
			wantKind:   engine.KindParse,
			wantOption: engine.OptBuildArg,
		},
		{
			name:       "table miss",
			mode:       engine.ModeBuild,
			scalars:    map[string]string{"distribution": "dev", "product_version": "2019.3"},
			wantKind:   engine.KindLookup,
			wantOption: engine.OptPackageURL,
		},
	}

	r := newResolver(t, afero.NewMemMapFs(), Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), request(t, tt.mode, tt.scalars, tt.lists))
			if err == nil {
				t.Fatalf("expected an error, got %+v", res.Config)
			}
			if res != nil {
				t.Errorf("a failed resolution must not return a result")
			}
			expectError(t, err, tt.wantKind, tt.wantOption)
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q should mention %q", err, tt.wantText)
			}
		})
	}
}

func TestResolver_BaseDistribution(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/project/dockerfiles/ubuntu18/base.dockerfile", []byte("FROM ubuntu:18.04\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := newResolver(t, fs, Options{})
	res, err := r.Resolve(context.Background(), request(t, engine.ModeBuild, map[string]string{
		"distribution":    "base",
		"product_version": "2021.4",
		"file":            "dockerfiles/ubuntu18/base.dockerfile",
	}, nil))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	expect(t, "file", res.Config.File, "/project/dockerfiles/ubuntu18/base.dockerfile")
	expectList(t, "tags", res.Config.Tags, []string{"ubuntu18_base_cpu:2021.4", "ubuntu18_base_cpu:latest"})
}

func TestResolver_Policies(t *testing.T) {
	scalars := map[string]string{"distribution": "dev", "product_version": "2021.4"}

	t.Run("blocking violation", func(t *testing.T) {
		fp := &fakePolicies{result: &engine.PolicyResult{
			Allowed: false,
			Violations: []engine.PolicyViolation{
				{Policy: "notes", Option: "os", Message: "just a note", Severity: "info"},
				{Policy: "no-gpu", Option: "device", Message: "gpu images are frozen", Severity: "error"},
			},
		}}
		r := newResolver(t, afero.NewMemMapFs(), Options{Policies: fp})

		_, err := r.Resolve(context.Background(), request(t, engine.ModeBuild, scalars, nil))
		expectError(t, err, engine.KindInconsistentConfig, engine.OptDevice)
		if !strings.Contains(err.Error(), "no-gpu") {
			t.Errorf("error should name the policy: %v", err)
		}
		if fp.got == nil || fp.got.DockerfileName == "" {
			t.Errorf("policies must see the resolved configuration, got %+v", fp.got)
		}
	})

	t.Run("warnings pass", func(t *testing.T) {
		fp := &fakePolicies{result: &engine.PolicyResult{
			Allowed:    true,
			Violations: []engine.PolicyViolation{{Policy: "p", Message: "m", Severity: "warning"}},
			Warnings:   []string{"policy q evaluation failed"},
		}}
		r := newResolver(t, afero.NewMemMapFs(), Options{Policies: fp})

		res, err := r.Resolve(context.Background(), request(t, engine.ModeBuild, scalars, nil))
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if res.Policy == nil || len(res.Policy.Violations) != 1 {
			t.Errorf("policy result not returned: %+v", res.Policy)
		}
	})

	t.Run("evaluator failure", func(t *testing.T) {
		fp := &fakePolicies{err: errors.New("boom")}
		r := newResolver(t, afero.NewMemMapFs(), Options{Policies: fp})

		_, err := r.Resolve(context.Background(), request(t, engine.ModeBuild, scalars, nil))
		if err == nil || engine.IsConfigError(err) {
			t.Errorf("an evaluator failure is not a configuration error: %v", err)
		}
	})

	t.Run("built-in policies", func(t *testing.T) {
		pe, err := policy.NewEngine(zerolog.Nop())
		if err != nil {
			t.Fatalf("policy.NewEngine() error = %v", err)
		}
		r := newResolver(t, afero.NewMemMapFs(), Options{Policies: pe})

		res, err := r.Resolve(context.Background(), request(t, engine.ModeBuild, map[string]string{
			"os":              "winserver2019",
			"distribution":    "dev",
			"product_version": "2021.4",
		}, map[string][]string{"device": {"cpu", "gpu"}}))
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !res.Policy.Allowed {
			t.Error("warnings must not reject the configuration")
		}
		found := false
		for _, v := range res.Policy.Violations {
			if v.Policy == "windows-devices" && v.Option == engine.OptDevice {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a windows-devices violation, got %+v", res.Policy.Violations)
		}
	})
}

func TestResolver_Metrics(t *testing.T) {
	tel := telemetry.Nop()
	r := newResolver(t, afero.NewMemMapFs(), Options{Telemetry: tel})

	ctx := context.Background()
	if _, err := r.Resolve(ctx, request(t, engine.ModeBuild,
		map[string]string{"distribution": "dev", "product_version": "2021.4"}, nil)); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := r.Resolve(ctx, request(t, engine.ModeBuild,
		map[string]string{"distribution": "dev", "product_version": "2019.3"}, nil)); err == nil {
		t.Fatal("expected a lookup error")
	}

	reg := tel.Metrics.Registry()
	if n, err := testutil.GatherAndCount(reg, "imagectl_resolutions_total"); err != nil || n != 2 {
		t.Errorf("resolutions_total series = %d (%v), want resolved and rejected", n, err)
	}
	if n, err := testutil.GatherAndCount(reg, "imagectl_errors_total"); err != nil || n != 1 {
		t.Errorf("errors_total series = %d (%v), want 1", n, err)
	}
	if n, err := testutil.GatherAndCount(reg, "imagectl_step_duration_seconds"); err != nil || n == 0 {
		t.Errorf("step durations not recorded (%v)", err)
	}
}
