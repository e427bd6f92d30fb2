// ABOUTME: Random identifiers for sound sources
// ABOUTME: Produces short lowercase alphanumeric tokens
package ident

import (
	"math/rand/v2"
)

// Length is the number of characters in an identifier
const Length = 8

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// New returns a random identifier of Length characters from [a-z0-9].
// Identifiers are not checked against live sources; collisions overwrite.
func New() string {
	b := make([]byte, Length)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}
