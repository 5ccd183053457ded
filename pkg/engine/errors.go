package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a configuration error. Every kind is a user-input error;
// none of them is retried.
type ErrorKind string

const (
	// KindParse is an unknown mode, unknown flag or a value outside a closed set.
	KindParse ErrorKind = "parse"

	// KindEncoding is a value with non-printable or invalid UTF-8 characters.
	KindEncoding ErrorKind = "encoding"

	// KindSecurity is a path escaping the allowed root or a symbolic link in a path option.
	KindSecurity ErrorKind = "security"

	// KindMissingArgument is an option required by the mode/distribution combination that is absent.
	KindMissingArgument ErrorKind = "missing_argument"

	// KindInconsistentConfig is two supplied options that conflict.
	KindInconsistentConfig ErrorKind = "inconsistent_config"

	// KindLookup is a failed table lookup or pattern extraction.
	KindLookup ErrorKind = "lookup"
)

// ConfigError is a fatal error raised while resolving a build request.
type ConfigError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Option is the option the error is about, if any.
	Option string `json:"option,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Option != "" {
		msg = fmt.Sprintf("%s: %s", e.Option, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches any ConfigError of the same kind, so errors.Is(err, &ConfigError{Kind: KindLookup}) works.
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Option == "" || t.Option == e.Option)
}

// WithCause attaches an underlying error.
func (e *ConfigError) WithCause(err error) *ConfigError {
	e.Err = err
	return e
}

func newConfigError(kind ErrorKind, option, message string) *ConfigError {
	return &ConfigError{Kind: kind, Option: option, Message: message}
}

// NewParseError creates a parse error.
func NewParseError(option, message string) *ConfigError {
	return newConfigError(KindParse, option, message)
}

// NewEncodingError creates an encoding error.
func NewEncodingError(option, message string) *ConfigError {
	return newConfigError(KindEncoding, option, message)
}

// NewSecurityError creates a security error.
func NewSecurityError(option, message string) *ConfigError {
	return newConfigError(KindSecurity, option, message)
}

// NewMissingArgumentError creates a missing-argument error.
func NewMissingArgumentError(option, message string) *ConfigError {
	return newConfigError(KindMissingArgument, option, message)
}

// NewInconsistentConfigError creates an inconsistent-configuration error.
func NewInconsistentConfigError(option, message string) *ConfigError {
	return newConfigError(KindInconsistentConfig, option, message)
}

// NewLookupError creates a lookup error.
func NewLookupError(option, message string) *ConfigError {
	return newConfigError(KindLookup, option, message)
}

// KindOf returns the kind of a ConfigError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *ConfigError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries a ConfigError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsConfigError reports whether err is a user-input error.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}
