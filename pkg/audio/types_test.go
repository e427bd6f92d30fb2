// ABOUTME: Tests for audio types
// ABOUTME: Tests vector math and sample conversion functions
package audio

import (
	"math"
	"testing"
)

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"half", 16384, 0.5},
		{"negative half", -16384, -0.5},
		{"min", -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"full scale", 1, 32767},
		{"negative full scale", -1, -32767},
		{"clipped high", 4, 32767},
		{"clipped low", -4, -32767},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleFromInt(t *testing.T) {
	tests := []struct {
		name     string
		sample   int32
		bitDepth int
		expected float32
	}{
		{"16 bit half", 16384, 16, 0.5},
		{"24 bit half", 4194304, 24, 0.5},
		{"24 bit min", -8388608, 24, -1},
		{"8 bit", 64, 8, 0.5},
		{"invalid depth", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt(tt.sample, tt.bitDepth)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestVec3Cross(t *testing.T) {
	// Default listener: forward +Z, up +Y
	right := Vec3{0, 0, 1}.Cross(Vec3{0, 1, 0})
	if right != (Vec3{-1, 0, 0}) {
		t.Errorf("expected (-1,0,0), got %v", right)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 0, 4}.Normalize()
	if math.Abs(float64(v.Len())-1) > 1e-6 {
		t.Errorf("expected unit length, got %v", v.Len())
	}

	zero := Vec3{}.Normalize()
	if zero != (Vec3{}) {
		t.Errorf("zero vector should stay zero, got %v", zero)
	}
}

func TestVec3Len(t *testing.T) {
	if l := (Vec3{3, 4, 0}).Len(); l != 5 {
		t.Errorf("expected 5, got %v", l)
	}
	if d := (Vec3{1, 2, 3}).Sub(Vec3{1, 2, 3}).Len(); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}
