// Package engine provides the core types shared by every stage of build-request resolution.
//
// # Overview
//
// imagectl turns a sparse build request into a complete, internally consistent
// configuration for a container image build. Resolution happens in one pass:
//
//  1. Schema - the options a mode accepts and their defaults (package options)
//  2. Sanitize - printable text and path containment checks (package sanitize)
//  3. Validate - mode and distribution conditioned preconditions (package validate)
//  4. Resolve - ordered derivation of every missing field (package resolve)
//  5. Policy - Rego policies over the resolved configuration (package policy)
//
// # Core Types
//
//   - RawRequest: the options the user supplied, keyed by option name
//   - Config: the resolved configuration, built step by step from a RawRequest
//   - ConfigError: a classified, user-facing error; every failure is fatal
//
// # Collaborators
//
// The resolution stages depend on TextChecker, PathChecker, VersionTable and
// PolicyEvaluator rather than on concrete implementations, so the lookup table
// and the safety checks can be replaced in tests.
package engine
