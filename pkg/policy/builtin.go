package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		msbuildRedistributionPolicy(),
		windowsDevicesPolicy(),
		linuxCMakePolicy(),
	}
}

// msbuildRedistributionPolicy warns when an image with MSBuild tools is headed for a registry.
func msbuildRedistributionPolicy() Policy {
	return Policy{
		Name:        "msbuild-redistribution",
		Description: "MSBuild Tools are licensed as a supplement to a Visual Studio license and must not be shared",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"windows", "licensing"},
		Rego: `package imagectl.policies.msbuild

deny contains violation if {
	input.config.msbuild
	input.config.registry
	violation := {
		"message": sprintf("image with %s is deployed to %s: do not share images with MSBuild on a public registry", [input.config.msbuild, input.config.registry]),
		"severity": "warning",
		"option": "msbuild",
	}
}
`,
	}
}

// windowsDevicesPolicy warns about accelerator devices requested for Windows images.
func windowsDevicesPolicy() Policy {
	return Policy{
		Name:        "windows-devices",
		Description: "Windows images only support CPU inference",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"windows", "devices"},
		Rego: `package imagectl.policies.devices

deny contains violation if {
	contains(input.config.os, "win")
	some device in input.config.device
	device != "cpu"
	violation := {
		"message": sprintf("device %s is not supported on %s, only cpu is available", [device, input.config.os]),
		"severity": "warning",
		"option": "device",
	}
}
`,
	}
}

// linuxCMakePolicy notes that a non-default CMake choice has no effect on Linux images.
func linuxCMakePolicy() Policy {
	return Policy{
		Name:        "linux-cmake",
		Description: "The --cmake option only applies to Windows images",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"linux"},
		Rego: `package imagectl.policies.cmake

deny contains violation if {
	input.config.cmake
	input.config.cmake != "cmake314"
	not contains(input.config.os, "win")
	violation := {
		"message": sprintf("%s is ignored for %s, the OS default CMake is used", [input.config.cmake, input.config.os]),
		"severity": "info",
		"option": "cmake",
	}
}
`,
	}
}
