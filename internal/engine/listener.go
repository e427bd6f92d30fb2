// ABOUTME: Listener state and distance models
// ABOUTME: Holds the position, orientation and attenuation settings of the listener
package engine

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
)

// DistanceModel selects how gain falls off with distance
type DistanceModel int

const (
	DistanceInverse DistanceModel = iota
	DistanceLinear
	DistanceExponent
	DistanceNone
)

func (m DistanceModel) String() string {
	switch m {
	case DistanceInverse:
		return "inverse"
	case DistanceLinear:
		return "linear"
	case DistanceExponent:
		return "exponent"
	case DistanceNone:
		return "none"
	default:
		return fmt.Sprintf("DistanceModel(%d)", int(m))
	}
}

// ParseDistanceModel parses a model name as used in configuration
func ParseDistanceModel(s string) (DistanceModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inverse":
		return DistanceInverse, nil
	case "linear":
		return DistanceLinear, nil
	case "exponent", "exponential":
		return DistanceExponent, nil
	case "none":
		return DistanceNone, nil
	default:
		return 0, fmt.Errorf("unknown distance model %q", s)
	}
}

// ListenerState is a snapshot of the listener
type ListenerState struct {
	Position      audio.Vec3
	Velocity      audio.Vec3
	Forward       audio.Vec3
	Up            audio.Vec3
	MetersPerUnit float32
	DistanceModel DistanceModel

	// DopplerFactor is stored for hosts that read it back. Sources have no
	// velocity, so it never shifts pitch.
	DopplerFactor float32
}

// DefaultListener returns the listener at the origin facing +Z with +Y up
func DefaultListener(config Config) ListenerState {
	return ListenerState{
		Position:      audio.Vec3{0, 0, 0},
		Velocity:      audio.Vec3{0, 0, 0},
		Forward:       audio.Vec3{0, 0, 1},
		Up:            audio.Vec3{0, 1, 0},
		MetersPerUnit: config.MetersPerUnit,
		DistanceModel: config.DistanceModel,
		DopplerFactor: config.DopplerFactor,
	}
}

// Right returns the unit vector to the listener's right, or zero when
// forward and up are parallel
func (l ListenerState) Right() audio.Vec3 {
	return l.Forward.Cross(l.Up).Normalize()
}
