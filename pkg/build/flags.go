// SPDX-License-Identifier: MIT
//
// Package build holds the build metadata embedded into the barviz binary via
// linker flags:
//
//	go build -ldflags "-X barviz/pkg/build.buildName=barviz \
//	    -X barviz/pkg/build.buildVersion=0.3.0 \
//	    -X barviz/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X barviz/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// A plain `go build` sets none of them and gets development defaults. Setting
// only some of them is treated as a broken release build.
package build

import (
	"fmt"
	"strings"
)

// Info is the build metadata exposed to the CLI.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

const description = "Real-time audio spectrum analyzer producing per-band loudness for visual display"

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var buildInfo = devInfo()

func devInfo() *Info {
	return &Info{
		Name:        "barviz",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build info. It returns an
// error naming every missing flag when the flags were only partially set.
func Initialize() error {
	flags := []struct {
		name  string
		value string
	}{
		{"buildName", buildName},
		{"buildTime", buildTime},
		{"buildCommit", buildCommit},
		{"buildVersion", buildVersion},
	}

	var missing []string
	for _, f := range flags {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}

	switch len(missing) {
	case len(flags):
		buildInfo = devInfo()
		return nil
	case 0:
	default:
		return fmt.Errorf("incomplete build flags, missing: %s", strings.Join(missing, ", "))
	}

	buildInfo = &Info{
		Name:        buildName,
		Description: description,
		Time:        buildTime,
		Commit:      buildCommit,
		Version:     buildVersion,
	}
	return nil
}

// GetBuildInfo returns the current build metadata.
func GetBuildInfo() *Info {
	return buildInfo
}

// String formats the info for `barviz --version`.
func (i *Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}
