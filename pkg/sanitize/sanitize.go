// Package sanitize rejects unsafe raw input before any derivation happens.
package sanitize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/spf13/afero"

	"github.com/openfroyo/imagectl/pkg/engine"
)

// pathOptions are the options whose values must stay inside the root directory.
var pathOptions = []string{engine.OptPackageURL, engine.OptFile, engine.OptImageJSONPath}

// networkSchemes mark a package locator as a URL rather than a local path.
var networkSchemes = []string{"http://", "https://", "ftp://"}

// Sanitizer checks every raw value for printable text and path containment.
type Sanitizer struct {
	root string
}

// New creates a sanitizer confining path options to root.
func New(root string) (*Sanitizer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	return &Sanitizer{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Sanitizer) Root() string {
	return s.root
}

// Check runs the text check on every value and the path check on path options.
func (s *Sanitizer) Check(req *engine.RawRequest) error {
	for _, name := range req.Names() {
		v, _ := req.Get(name)
		for _, str := range v.Strings() {
			if err := s.CheckText(name, str); err != nil {
				return err
			}
		}
	}

	for _, name := range pathOptions {
		value := req.Scalar(name)
		if value == "" {
			continue
		}
		if name == engine.OptPackageURL && HasNetworkScheme(value) {
			continue
		}
		if err := s.CheckPath(name, value); err != nil {
			return err
		}
	}
	return nil
}

// CheckText implements engine.TextChecker.
func (s *Sanitizer) CheckText(option, value string) error {
	if !utf8.ValidString(value) {
		return engine.NewEncodingError(option, "value is not valid UTF-8")
	}
	for i, r := range value {
		if !unicode.IsPrint(r) {
			return engine.NewEncodingError(option,
				fmt.Sprintf("non-printable character %U at offset %d", r, i))
		}
	}
	return nil
}

// CheckPath implements engine.PathChecker. The path is resolved against the root;
// it is rejected when it leaves the root, whether through ".." or a symlink.
// Symlinks are followed on the host filesystem, never through an afero.Fs.
func (s *Sanitizer) CheckPath(option, path string) error {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(s.root, path)
		if err != nil {
			return engine.NewSecurityError(option, "path is outside of the project root").WithCause(err)
		}
		rel = r
	}

	want := filepath.Join(s.root, rel)
	if !within(s.root, want) {
		return engine.NewSecurityError(option, fmt.Sprintf("path %q is outside of the project root", path))
	}

	got, err := securejoin.SecureJoin(s.root, rel)
	if err != nil {
		return engine.NewSecurityError(option, fmt.Sprintf("cannot resolve path %q", path)).WithCause(err)
	}
	if got != want {
		return engine.NewSecurityError(option,
			fmt.Sprintf("path %q resolves to %q, outside of the project root", path, got))
	}
	return nil
}

// HasNetworkScheme reports whether a locator uses one of the supported URL schemes.
func HasNetworkScheme(locator string) bool {
	for _, scheme := range networkSchemes {
		if strings.HasPrefix(locator, scheme) {
			return true
		}
	}
	return false
}

// Abs resolves path against root unless it is already absolute.
func Abs(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// IsSymlink reports whether path is a symbolic link, when fs can tell.
func IsSymlink(fs afero.Fs, path string) bool {
	lst, ok := fs.(afero.Lstater)
	if !ok {
		return false
	}
	info, lstatCalled, err := lst.LstatIfPossible(path)
	if err != nil || !lstatCalled {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

var (
	_ engine.TextChecker = (*Sanitizer)(nil)
	_ engine.PathChecker = (*Sanitizer)(nil)
)
