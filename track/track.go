// Package track resamples sparse keyframe curves onto a fixed-rate timeline.
package track

import (
	"math"
	"sort"

	"github.com/binzume/rigconv/geom"
)

type Interpolation int

const (
	Linear Interpolation = iota
	Bezier
	Stepped
)

func (i Interpolation) String() string {
	switch i {
	case Bezier:
		return "bezier"
	case Stepped:
		return "stepped"
	default:
		return "linear"
	}
}

// Curve holds the two inner control points of a unit-square cubic bezier
// running from (0,0) to (1,1).
type Curve struct {
	X0, Y0, X1, Y1 float32
}

type Key[T any] struct {
	Time          float32
	Value         T
	Interpolation Interpolation
	Curve         Curve
}

// LerpFunc blends a towards b by t in [0,1].
type LerpFunc[T any] func(a, b T, t float32) T

// SampleCount returns ceil(duration*rate)+1.
func SampleCount(duration, rate float32) int {
	if duration <= 0 || rate <= 0 {
		return 1
	}
	return int(math.Ceil(float64(duration*rate))) + 1
}

// Sample evaluates keys at i/rate for every output sample. def is returned
// for times before the first key; the last key is held after the end.
// keys must be sorted by time.
func Sample[T any](def T, keys []Key[T], duration, rate float32, lerp LerpFunc[T]) []T {
	out := make([]T, SampleCount(duration, rate))
	for i := range out {
		out[i] = Evaluate(def, keys, float32(i)/rate, lerp)
	}
	return out
}

// Evaluate returns the curve value at time t.
func Evaluate[T any](def T, keys []Key[T], t float32, lerp LerpFunc[T]) T {
	next := sort.Search(len(keys), func(i int) bool { return keys[i].Time > t })
	if next == 0 {
		return def
	}
	if next == len(keys) {
		return keys[len(keys)-1].Value
	}
	k0, k1 := &keys[next-1], &keys[next]
	if k0.Interpolation == Stepped {
		return k0.Value
	}
	span := k1.Time - k0.Time
	if span <= 0 {
		return k1.Value
	}
	u := (t - k0.Time) / span
	if k0.Interpolation == Bezier {
		u = Ease(k0.Curve, u)
	}
	return lerp(k0.Value, k1.Value, u)
}

func LerpFloat(a, b float32, t float32) float32 {
	return a + (b-a)*t
}

func LerpVector3(a, b geom.Vector3, t float32) geom.Vector3 {
	return *a.Lerp(&b, t)
}

// LerpVector4 blends component-wise; used for colors.
func LerpVector4(a, b geom.Vector4, t float32) geom.Vector4 {
	return *a.Lerp(&b, t)
}

// LerpQuaternion blends rotations component-wise along the shorter arc and
// renormalizes.
func LerpQuaternion(a, b geom.Quaternion, t float32) geom.Quaternion {
	return *a.Nlerp(&b, t)
}

// Hold never blends; for values that can only change at keys.
func Hold[T any](a, _ T, _ float32) T {
	return a
}
