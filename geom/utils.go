package geom

import "math"

func Abs(v Element) Element {
	return Element(math.Abs(float64(v)))
}

// WrapDegrees shifts deg by whole turns so that |deg - ref| <= 180.
func WrapDegrees(deg, ref float64) float64 {
	for deg-ref > 180 {
		deg -= 360
	}
	for deg-ref < -180 {
		deg += 360
	}
	return deg
}
