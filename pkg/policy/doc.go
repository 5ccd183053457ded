// Package policy provides Open Policy Agent (OPA) checks over resolved configurations.
//
// Policies are Rego modules exposing a deny set. Each element is either a
// string or an object:
//
//	deny contains violation if {
//	    input.config.msbuild
//	    input.config.registry
//	    violation := {"message": "...", "severity": "warning", "option": "msbuild"}
//	}
//
// The input document has two keys: config, the resolved configuration using
// the option names as keys, and context, with the resolution id and timestamp.
//
// # Built-in Policies
//
//   - msbuild-redistribution (warning): MSBuild images must not be shared on a registry
//   - windows-devices (warning): Windows images only support cpu
//   - linux-cmake (info): --cmake has no effect on Linux images
//
// # Custom Policies
//
// Extra policies are loaded from .rego files (named after the file, warning
// severity by default) or .json definitions:
//
//	{
//	  "name": "no-nightly",
//	  "severity": "error",
//	  "enabled": true,
//	  "rego": "package custom.nightly\n\ndeny contains \"nightly builds are disabled\" if input.config.nightly"
//	}
//
// A violation with severity error or critical makes the configuration not allowed.
package policy
