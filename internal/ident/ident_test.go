// ABOUTME: Tests for identifier generation
// ABOUTME: Checks length, alphabet and uniqueness over many draws
package ident

import (
	"regexp"
	"testing"
)

var pattern = regexp.MustCompile(`^[a-z0-9]{8}$`)

func TestNewFormat(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := New()
		if !pattern.MatchString(id) {
			t.Fatalf("identifier %q does not match %s", id, pattern)
		}
	}
}

func TestNewDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate identifier %q after %d draws", id, i)
		}
		seen[id] = true
	}
}
