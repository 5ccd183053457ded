package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/openfroyo/imagectl/pkg/engine"
)

var (
	// productVersionPattern matches YYYY.U anywhere in a version string.
	productVersionPattern = regexp.MustCompile(`\d{4}\.\d`)

	// buildIDPattern captures YYYY.U.BBB from a package file name such as *_p_2021.4.582.tgz.
	buildIDPattern = regexp.MustCompile(`p_(\d{4}\.\d\.\d{3})`)
)

// distributionMarkers are checked in order; the first marker found in a locator wins.
var distributionMarkers = []struct {
	marker       string
	distribution string
}{
	{"_internal_", engine.DistInternalDev},
	{"_runtime_", engine.DistRuntime},
	{"_data_dev_", engine.DistDataDev},
	{"_dev_", engine.DistDev},
}

// ParseProductVersion extracts the YYYY.U product version from s.
func ParseProductVersion(s string) (string, error) {
	pv := productVersionPattern.FindString(s)
	if pv == "" {
		return "", engine.NewLookupError(engine.OptProductVersion,
			fmt.Sprintf("cannot find a YYYY.U product version in %q", s))
	}
	return pv, nil
}

// ParseBuildID extracts the YYYY.U.BBB build id from a package locator.
func ParseBuildID(locator string) (string, error) {
	m := buildIDPattern.FindStringSubmatch(locator)
	if m == nil {
		return "", engine.NewLookupError(engine.OptPackageURL,
			fmt.Sprintf("cannot get build number from the package URL provided: %s. Please specify --product_version directly", locator))
	}
	return m[1], nil
}

// InferDistribution derives the distribution from markers in a package locator.
func InferDistribution(locator string) (string, error) {
	for _, dm := range distributionMarkers {
		if strings.Contains(locator, dm.marker) {
			return dm.distribution, nil
		}
	}
	return "", engine.NewLookupError(engine.OptDistribution,
		fmt.Sprintf("cannot get distribution type from the package URL provided: %s. Please specify --distribution directly", locator))
}

// DefaultPython returns the interpreter shipped with os.
func DefaultPython(os string) string {
	switch {
	case strings.Contains(os, "ubuntu18"):
		return "python36"
	case strings.Contains(os, "ubuntu20"):
		return "python38"
	default:
		return "python37"
	}
}

// DefaultDevices returns the devices targeted when none were requested.
func DefaultDevices(os, distribution string) []string {
	if strings.Contains(os, "win") || distribution == engine.DistBase {
		return []string{engine.DeviceCPU}
	}
	return []string{engine.DeviceCPU, engine.DeviceGPU, engine.DeviceVPU, engine.DeviceHDDL}
}

// DeviceInitials concatenates the first letter of each device, in order.
func DeviceInitials(devices []string) string {
	var b strings.Builder
	for _, d := range devices {
		if d != "" {
			b.WriteByte(d[0])
		}
	}
	return b.String()
}
