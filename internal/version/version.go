package version

import "runtime/debug"

var (
	// Version is the current version of the service.
	// It is intended to be set at build time using -ldflags.
	// Falls back to the module version embedded by go install.
	Version = "0.1.0-dev"

	// Commit is the VCS revision, filled from build info when available.
	Commit = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "0.1.0-dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && Commit == "" {
			Commit = s.Value
		}
	}
}
