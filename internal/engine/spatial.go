// ABOUTME: Distance attenuation and stereo panning
// ABOUTME: Turns a source position into left and right channel gains
package engine

import (
	"math"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
)

const (
	referenceDistance = 1.0
	rolloffFactor     = 1.0

	// maxDistance is where the linear model reaches silence
	maxDistance = 100.0
)

// attenuation returns the distance gain for a source d meters away.
// Distances inside the reference distance play at full gain.
func attenuation(model DistanceModel, d float64) float64 {
	if d < referenceDistance {
		d = referenceDistance
	}

	switch model {
	case DistanceInverse:
		return referenceDistance / (referenceDistance + rolloffFactor*(d-referenceDistance))
	case DistanceLinear:
		if d > maxDistance {
			d = maxDistance
		}
		g := 1 - rolloffFactor*(d-referenceDistance)/(maxDistance-referenceDistance)
		return math.Max(0, g)
	case DistanceExponent:
		return math.Pow(d/referenceDistance, -rolloffFactor)
	default:
		return 1
	}
}

// panning returns equal-power channel gains for pan in [-1, 1],
// where -1 is hard left and 1 is hard right
func panning(pan float64) (left, right float64) {
	p := (pan + 1) / 2
	p = math.Max(0, math.Min(1, p))
	return math.Sqrt(1 - p), math.Sqrt(p)
}

// spatialize computes the stereo gains for a source at position with the
// given voice gain
func spatialize(l ListenerState, position audio.Vec3, gain float32) (left, right float32) {
	rel := position.Sub(l.Position)
	d := float64(rel.Len()) * float64(l.MetersPerUnit)

	var pan float64
	if rel.Len() > 0 {
		pan = float64(rel.Normalize().Dot(l.Right()))
	}

	g := attenuation(l.DistanceModel, d) * float64(gain)
	lg, rg := panning(pan)
	return float32(lg * g), float32(rg * g)
}
