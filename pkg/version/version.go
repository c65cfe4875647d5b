// Package version reports the sheetrelay build.
package version

import (
	"runtime/debug"
	"sync"
)

// version is overridden at link time:
//
//	go build -ldflags "-X github.com/vinodismyname/sheetrelay/pkg/version.version=v1.2.0"
var version = "dev"

var resolved = sync.OnceValue(func() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return version
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return version + "+" + rev
})

// Version returns the linked version, the module version from build info, or
// dev plus the VCS revision for local builds.
func Version() string {
	return resolved()
}
