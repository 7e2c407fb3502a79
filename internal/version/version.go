// Package version carries the engine version and the persisted-run format
// version, plus the compatibility rule between them.
package version

import (
	"github.com/Masterminds/semver/v3"

	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// Version is the engine release version. Overridden at build time via
// -ldflags.
var Version = "0.1.0"

// FormatVersion is the version of the persisted BacktestRun layout. Bump the
// major on any breaking change to the stored schema or JSON contract.
const FormatVersion = "1.0.0"

// CheckFormat reports whether a persisted run written with storedVersion can
// be read by this engine. Same major means compatible.
func CheckFormat(storedVersion string) error {
	stored, err := semver.NewVersion(storedVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeIncompatibleVersion, err, "unparseable format version %q", storedVersion)
	}

	current := semver.MustParse(FormatVersion)
	if stored.Major() != current.Major() {
		return errors.Newf(errors.ErrCodeIncompatibleVersion,
			"run format %s is incompatible with engine format %s", storedVersion, FormatVersion)
	}

	return nil
}
