// ABOUTME: Tests for version information
// ABOUTME: Checks the display string and the release version shape
package version

import (
	"regexp"
	"testing"
)

func TestString(t *testing.T) {
	if got, want := String(), "Resonate Spatial "+Version; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestVersionIsSemver(t *testing.T) {
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.]+)?$`)
	if !semver.MatchString(Version) {
		t.Errorf("Version %q is not major.minor.patch", Version)
	}
}
