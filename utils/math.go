// Package utils contains small numeric and timing helpers shared by the navigation packages.
package utils

import (
	"math"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// AngleDiffDeg returns the closest difference from the two given
// angles. The arguments are commutative.
func AngleDiffDeg(a1, a2 float64) float64 {
	return float64(180) - math.Abs(math.Abs(ModAngDeg(a1)-ModAngDeg(a2))-float64(180))
}

// ModAngDeg maps an angle into [0, 360).
func ModAngDeg(ang float64) float64 {
	return math.Mod(math.Mod(ang, 360)+360, 360)
}

// WrapDeg90 maps an undirected line angle into (-90, 90].
func WrapDeg90(ang float64) float64 {
	wrapped := math.Mod(math.Mod(ang, 180)+180, 180)
	if wrapped > 90 {
		wrapped -= 180
	}
	return wrapped
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AbsInt returns |n|.
func AbsInt(n int) int {
	if n < 0 {
		return -1 * n
	}
	return n
}

// SignInt returns -1 when v is negative and 1 otherwise.
func SignInt(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
