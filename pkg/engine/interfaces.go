package engine

import (
	"context"
	"time"
)

// TextChecker rejects strings that are not printable UTF-8.
type TextChecker interface {
	// CheckText returns an encoding error naming option when value is not printable.
	CheckText(option, value string) error
}

// PathChecker rejects paths that escape the allowed root directory.
type PathChecker interface {
	// CheckPath returns a security error naming option when path escapes the root.
	CheckPath(option, path string) error
}

// VersionTable maps a product version, OS and distribution to a package locator.
type VersionTable interface {
	// Lookup returns the package locator for the key, and false when the key is missing.
	Lookup(productVersion, os, distribution string) (string, bool)

	// SupportedOCL reports whether an OpenCL runtime release can be installed.
	SupportedOCL(release string) bool
}

// PolicyEvaluator checks a resolved configuration against policies.
type PolicyEvaluator interface {
	// Evaluate returns the policy outcome for cfg.
	Evaluate(ctx context.Context, cfg *Config) (*PolicyResult, error)
}

// PolicyResult is the outcome of a policy evaluation.
type PolicyResult struct {
	// Allowed is false when at least one error or critical violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists every violation found.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// Warnings lists policies that could not be evaluated.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the evaluation happened.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// PolicyViolation is a single policy violation.
type PolicyViolation struct {
	// Policy is the violated policy name.
	Policy string `json:"policy"`

	// Option is the option the violation points at, if any.
	Option string `json:"option,omitempty"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// Severity is info, warning, error or critical.
	Severity string `json:"severity"`
}
