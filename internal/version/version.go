// Package version negotiates the command-API version a client requests
// against the versions this build of the engine supports.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Current is the command-API version implemented by this build.
const Current = "1.0.0"

// Supported is the range of client-requested versions this build accepts.
var Supported = mustConstraint("^1.0.0")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(fmt.Sprintf("version: invalid constraint %q: %v", c, err))
	}
	return constraint
}

// Negotiate parses a client-supplied version string and reports whether it
// satisfies Supported.
func Negotiate(clientVersion string) (bool, error) {
	v, err := semver.NewVersion(clientVersion)
	if err != nil {
		return false, fmt.Errorf("version: parse %q: %w", clientVersion, err)
	}
	return Supported.Check(v), nil
}
