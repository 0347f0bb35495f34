// Package buildinfo carries version data stamped at link time, e.g.
//
//	go build -ldflags "-X cvrpplan/internal/buildinfo.Version=v1.2.0"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}

// String formats the build data for -version output.
func String() string {
	s := Version
	if Commit != "" {
		s += fmt.Sprintf(" (%s)", Commit)
	}
	if BuiltAt != "" {
		s += " built " + BuiltAt
	}
	return s
}
