package version

import (
	"fmt"
	"runtime/debug"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/2Fake/devolo-plc-api/internal/version.Version=v1.4.0 \
//	                   -X github.com/2Fake/devolo-plc-api/internal/version.Commit=abc123"
//
// Otherwise they are filled from the module build info.
var (
	// Version is the semantic version of the library
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

const modulePath = "github.com/2Fake/devolo-plc-api"

func init() {
	if Version == "" || Commit == "" {
		populateFromBuildInfo()
	}

	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// populateFromBuildInfo reads the module version when the library is used as a
// dependency and the VCS revision when the command is built from a checkout.
func populateFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "" {
		Version = moduleVersion(info)
	}

	var vcsRevision, vcsModified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			vcsRevision = setting.Value
		case "vcs.modified":
			vcsModified = setting.Value
		}
	}

	if Commit == "" && vcsRevision != "" {
		if len(vcsRevision) > 7 {
			Commit = vcsRevision[:7]
		} else {
			Commit = vcsRevision
		}
		if vcsModified == "true" {
			Commit += "-dirty"
		}
	}
}

func moduleVersion(info *debug.BuildInfo) string {
	if info.Main.Path == modulePath && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			return dep.Version
		}
	}
	return ""
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is sent with every request to a device.
func UserAgent() string {
	return "devolo-plc-api/" + Version
}
