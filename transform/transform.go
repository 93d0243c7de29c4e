// Package transform normalizes matrix, per-axis and composite source
// channels into sampled position / rotation / scale component tracks.
package transform

import (
	"math"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/track"
)

// Bind is the rest transform used before the first key of a channel.
type Bind struct {
	Position geom.Vector3
	Rotation geom.Quaternion
	Scale    geom.Vector3
}

func IdentityBind() Bind {
	return Bind{Rotation: geom.Quaternion{W: 1}, Scale: geom.Vector3{X: 1, Y: 1, Z: 1}}
}

// Components holds dense sampled arrays. A nil slice means the source had
// no keys for that property.
type Components struct {
	Positions []geom.Vector3
	Rotations []geom.Quaternion
	Scale     []geom.Vector3
}

func (c *Components) Empty() bool {
	return c.Positions == nil && c.Rotations == nil && c.Scale == nil
}

// Timeline is the shared fixed-rate output timeline.
type Timeline struct {
	Duration   float32
	SampleRate float32
}

func (tl Timeline) SampleCount() int {
	return track.SampleCount(tl.Duration, tl.SampleRate)
}

// AxisChannels are independently keyed scalar channels of one property.
// A nil axis falls back to the bind value.
type AxisChannels struct {
	X, Y, Z []track.Key[float32]
}

func (a *AxisChannels) Empty() bool {
	return len(a.X) == 0 && len(a.Y) == 0 && len(a.Z) == 0
}

// SRTKeys are composite keys that already carry vector / quaternion values.
type SRTKeys struct {
	Positions []track.Key[geom.Vector3]
	Rotations []track.Key[geom.Quaternion]
	Scale     []track.Key[geom.Vector3]
}

// FromMatrices decomposes matrix keys into translation and rotation.
// Scale is not taken from the matrices: every scale sample is (1,1,1).
func FromMatrices(keys []track.Key[geom.Matrix4], bind Bind, tl Timeline) Components {
	if len(keys) == 0 {
		return Components{}
	}
	posKeys := make([]track.Key[geom.Vector3], len(keys))
	rotKeys := make([]track.Key[geom.Quaternion], len(keys))
	for i := range keys {
		pos, rot, _ := keys[i].Value.Decompose()
		posKeys[i] = track.Key[geom.Vector3]{Time: keys[i].Time, Value: *pos, Interpolation: keys[i].Interpolation, Curve: keys[i].Curve}
		rotKeys[i] = track.Key[geom.Quaternion]{Time: keys[i].Time, Value: *rot, Interpolation: keys[i].Interpolation, Curve: keys[i].Curve}
	}
	AlignQuaternionKeys(rotKeys)

	scale := make([]geom.Vector3, tl.SampleCount())
	for i := range scale {
		scale[i] = geom.Vector3{X: 1, Y: 1, Z: 1}
	}
	return Components{
		Positions: track.Sample(bind.Position, posKeys, tl.Duration, tl.SampleRate, track.LerpVector3),
		Rotations: alignSamples(track.Sample(bind.Rotation, rotKeys, tl.Duration, tl.SampleRate, track.LerpQuaternion)),
		Scale:     scale,
	}
}

// FromSRT resamples composite keys directly.
func FromSRT(keys SRTKeys, bind Bind, tl Timeline) Components {
	var c Components
	if len(keys.Positions) > 0 {
		c.Positions = track.Sample(bind.Position, keys.Positions, tl.Duration, tl.SampleRate, track.LerpVector3)
	}
	if len(keys.Rotations) > 0 {
		rot := append([]track.Key[geom.Quaternion](nil), keys.Rotations...)
		AlignQuaternionKeys(rot)
		c.Rotations = alignSamples(track.Sample(bind.Rotation, rot, tl.Duration, tl.SampleRate, track.LerpQuaternion))
	}
	if len(keys.Scale) > 0 {
		c.Scale = track.Sample(bind.Scale, keys.Scale, tl.Duration, tl.SampleRate, track.LerpVector3)
	}
	return c
}

// FromAxisVectors samples each axis of a translation or scale property on
// its own, then packs the three arrays into vectors.
func FromAxisVectors(ch AxisChannels, bind geom.Vector3, tl Timeline) []geom.Vector3 {
	if ch.Empty() {
		return nil
	}
	xs := sampleAxis(ch.X, bind.X, tl)
	ys := sampleAxis(ch.Y, bind.Y, tl)
	zs := sampleAxis(ch.Z, bind.Z, tl)
	out := make([]geom.Vector3, len(xs))
	for i := range out {
		out[i] = geom.Vector3{X: xs[i], Y: ys[i], Z: zs[i]}
	}
	return out
}

// FromEulerChannels converts per-axis rotation channels in degrees into
// quaternion samples. Every axis is unwrapped on its sparse keys, then
// sampled on the shared timeline, and only then combined per sample index.
// bind holds the rest angles in degrees.
func FromEulerChannels(ch AxisChannels, bind geom.Vector3, order geom.RotationOrder, tl Timeline) []geom.Quaternion {
	if ch.Empty() {
		return nil
	}
	xs := sampleAxis(UnwrapDegrees(ch.X), bind.X, tl)
	ys := sampleAxis(UnwrapDegrees(ch.Y), bind.Y, tl)
	zs := sampleAxis(UnwrapDegrees(ch.Z), bind.Z, tl)
	out := make([]geom.Quaternion, len(xs))
	for i := range out {
		out[i] = *geom.NewEulerFromDegrees(xs[i], ys[i], zs[i], order).ToQuaternion()
	}
	return alignSamples(out)
}

// BindEulerDegrees returns the rest rotation as Euler degrees in order.
func BindEulerDegrees(q *geom.Quaternion, order geom.RotationOrder) geom.Vector3 {
	e := geom.NewEulerFromQuaternion(q, order)
	const r2d = 180 / math.Pi
	return geom.Vector3{X: e.X * r2d, Y: e.Y * r2d, Z: e.Z * r2d}
}

func sampleAxis(keys []track.Key[float32], def float32, tl Timeline) []float32 {
	if len(keys) == 0 {
		out := make([]float32, tl.SampleCount())
		for i := range out {
			out[i] = def
		}
		return out
	}
	return track.Sample(def, keys, tl.Duration, tl.SampleRate, track.LerpFloat)
}

// UnwrapDegrees returns a copy of keys where every angle is shifted by whole
// turns so that it is within 180 degrees of the preceding adjusted key.
func UnwrapDegrees(keys []track.Key[float32]) []track.Key[float32] {
	if len(keys) == 0 {
		return keys
	}
	out := append([]track.Key[float32](nil), keys...)
	for i := 1; i < len(out); i++ {
		out[i].Value = float32(geom.WrapDegrees(float64(out[i].Value), float64(out[i-1].Value)))
	}
	return out
}

// AlignQuaternionKeys flips keys in place so that each key lies in the same
// hemisphere as its predecessor.
func AlignQuaternionKeys(keys []track.Key[geom.Quaternion]) {
	for i := 1; i < len(keys); i++ {
		if keys[i].Value.Dot(&keys[i-1].Value) < 0 {
			keys[i].Value = *keys[i].Value.Scale(-1)
		}
	}
}

func alignSamples(qs []geom.Quaternion) []geom.Quaternion {
	for i := 1; i < len(qs); i++ {
		if qs[i].Dot(&qs[i-1]) < 0 {
			qs[i] = *qs[i].Scale(-1)
		}
	}
	return qs
}
