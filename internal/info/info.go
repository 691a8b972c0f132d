package info

import "runtime/debug"

var (
	// Version is the app version, set at build time with ldflags.
	Version = ""
)

const modulePath = "github.com/mlolab/mloeval"

func init() {
	if Version != "" {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if ok {
		// Installed with `go install`.
		if info.Main.Path == modulePath && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
			return
		}

		// Imported as a dependency of another module.
		for _, d := range info.Deps {
			if d.Path == modulePath {
				Version = d.Version
				return
			}
		}
	}

	Version = "dev"
}
