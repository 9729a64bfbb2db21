// Package version holds build identification for the gateway.
package version

import (
	"fmt"
	"runtime"
)

var (
	appName        = "soulvan-gateway"
	Version string = "2.0.0"
	Commit  string = "dev"
)

// UserAgent is sent with every upstream request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s.%s", appName, Version, Commit)
}

// String is the long form printed by the version command.
func String() string {
	return fmt.Sprintf("Soulvan Gateway %s (%s) %s", Version, Commit, runtime.Version())
}
