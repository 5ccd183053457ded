// Package config loads request files for imagectl.
//
// A request file holds option values keyed by option name, so a build can be
// described once and replayed:
//
//	// request.cue
//	os:              "ubuntu20"
//	distribution:    "dev"
//	product_version: "2021.4"
//	device: ["cpu", "gpu"]
//
// YAML and JSON files use the same keys. Versions must be quoted in YAML,
// otherwise 2021.4 is read as a number and rejected.
//
// Every file is validated against the CUE #Request schema kept in the
// SchemaRegistry: unknown keys and values outside a closed set are reported as
// parse errors naming the --config option. Values from the file only fill
// options that were not given on the command line.
package config
