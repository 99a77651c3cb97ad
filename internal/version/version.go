package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "orbyte.systems/orbyte"

// buildVersion is set via -ldflags "-X orbyte.systems/orbyte/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Version  string
	Revision string
	Time     time.Time
	Dirty    bool
}

// Module returns the main module path from build info when available.
func Module() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

// Current returns the best available version string.
func Current() string {
	return Build().Version
}

// Build collects the version and VCS details, preferring the linker
// override, then the embedded module version, then a pseudo-version
// derived from the VCS stamp.
func Build() Info {
	out := Info{Version: "v0.0.0-unknown"}
	info, ok := debug.ReadBuildInfo()
	if ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				if ts, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					out.Time = ts.UTC()
				}
			case "vcs.modified":
				out.Dirty = setting.Value == "true"
			}
		}
	}
	if v := strings.TrimSpace(buildVersion); v != "" {
		out.Version = strings.TrimSuffix(v, "+dirty")
		return out
	}
	if ok {
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			out.Version = v
		} else if v := pseudoVersion(out.Revision, out.Time); v != "" {
			out.Version = v
		}
	}
	return out
}

func pseudoVersion(revision string, ts time.Time) string {
	if revision == "" || ts.IsZero() {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return "v0.0.0-" + ts.UTC().Format("20060102150405") + "-" + revision
}
