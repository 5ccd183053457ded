package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/openfroyo/imagectl/pkg/engine"
)

// Register declares the flags of every option accepted by mode on fs.
func Register(fs *pflag.FlagSet, mode engine.Mode) {
	for _, opt := range OptionsFor(mode) {
		usage := opt.Usage
		if len(opt.Choices) > 0 {
			usage = fmt.Sprintf("%s (%s)", usage, strings.Join(opt.Choices, ", "))
		}
		if opt.Default != "" {
			usage = fmt.Sprintf("%s (default %s)", usage, opt.Default)
		}

		switch opt.Kind {
		case Repeatable:
			fs.StringArrayP(opt.Name, opt.Shorthand, nil, usage)
		case Switch:
			fs.BoolP(opt.Name, opt.Shorthand, false, usage)
		default:
			fs.StringP(opt.Name, opt.Shorthand, "", usage)
		}

		if opt.Hidden {
			_ = fs.MarkHidden(opt.Name)
		}
	}
}

// Collect builds a raw request from the flags the user actually set on fs.
// Defaults are not applied here; see ApplyDefaults.
func Collect(fs *pflag.FlagSet, mode engine.Mode) (*engine.RawRequest, error) {
	req := engine.NewRawRequest(mode)
	for _, opt := range OptionsFor(mode) {
		if !fs.Changed(opt.Name) {
			continue
		}
		switch opt.Kind {
		case Repeatable:
			values, err := fs.GetStringArray(opt.Name)
			if err != nil {
				return nil, engine.NewParseError(opt.Name, "invalid value").WithCause(err)
			}
			req.SetList(opt.Name, values)
		case Switch:
			v, err := fs.GetBool(opt.Name)
			if err != nil {
				return nil, engine.NewParseError(opt.Name, "invalid value").WithCause(err)
			}
			req.SetBool(opt.Name, v)
		default:
			v, err := fs.GetString(opt.Name)
			if err != nil {
				return nil, engine.NewParseError(opt.Name, "invalid value").WithCause(err)
			}
			req.SetScalar(opt.Name, v)
		}
	}
	return req, nil
}

// Merge copies values from src into dst for options dst does not carry and
// mode accepts. It is used to layer a request file under command-line flags.
func Merge(dst *engine.RawRequest, src map[string]interface{}) error {
	accepted := make(map[string]Option)
	for _, opt := range OptionsFor(dst.Mode) {
		accepted[opt.Name] = opt
	}

	for name, raw := range src {
		opt, ok := accepted[name]
		if !ok {
			if _, known := Lookup(name); known {
				// Options of other modes are ignored so one file can serve every mode.
				continue
			}
			return engine.NewParseError(name, "unknown option")
		}
		if dst.Has(name) {
			continue
		}

		switch opt.Kind {
		case Repeatable:
			values, err := toStrings(raw)
			if err != nil {
				return engine.NewParseError(name, err.Error())
			}
			dst.SetList(name, values)
		case Switch:
			b, ok := raw.(bool)
			if !ok {
				return engine.NewParseError(name, fmt.Sprintf("expected a boolean, got %T", raw))
			}
			dst.SetBool(name, b)
		default:
			s, ok := raw.(string)
			if !ok {
				return engine.NewParseError(name, fmt.Sprintf("expected a string, got %T", raw))
			}
			dst.SetScalar(name, s)
		}
	}
	return nil
}

func toStrings(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a list of strings, found %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", raw)
}
