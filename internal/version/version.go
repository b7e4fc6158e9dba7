// Package version reports the build version of the tools
package version

import (
	"fmt"
	"runtime/debug"
)

// Build information, set by the linker with
// -X github.com/effective-security/pkcs11uri/internal/version.major=...
var (
	major    = "0"
	minor    = "1"
	patch    = "0"
	commit   = ""
	buildRev = ""
)

// Info describes the build
type Info struct {
	Major  string `json:"major"`
	Minor  string `json:"minor"`
	Patch  string `json:"patch"`
	Commit string `json:"commit,omitempty"`
}

// Current returns the build version
func Current() Info {
	v := Info{
		Major:  major,
		Minor:  minor,
		Patch:  patch,
		Commit: commit,
	}
	if v.Commit == "" {
		v.Commit = vcsRevision()
	}
	return v
}

// String returns major.minor.patch[-commit]
func (v Info) String() string {
	s := fmt.Sprintf("%s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Commit != "" {
		s += "-" + v.Commit
	}
	return s
}

func vcsRevision() string {
	if buildRev != "" {
		return buildRev
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}
