package transform

import (
	"math"
	"testing"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zAngle(q geom.Quaternion) float64 {
	return 2 * math.Atan2(float64(q.Z), float64(q.W)) * 180 / math.Pi
}

func TestUnwrapDegrees(t *testing.T) {
	t.Run("Should unwind a forward step across 360", func(t *testing.T) {
		keys := []track.Key[float32]{{Time: 0, Value: 350}, {Time: 1, Value: 10}}
		out := UnwrapDegrees(keys)
		assert.Equal(t, float32(350), out[0].Value)
		assert.Equal(t, float32(370), out[1].Value)
		assert.Equal(t, float32(10), keys[1].Value, "input must not be modified")
	})

	t.Run("Should chain adjustments on already adjusted keys", func(t *testing.T) {
		keys := []track.Key[float32]{{Value: 0}, {Time: 1, Value: 170}, {Time: 2, Value: -20}, {Time: 3, Value: 150}}
		out := UnwrapDegrees(keys)
		assert.Equal(t, []float32{0, 170, 340, 510}, []float32{out[0].Value, out[1].Value, out[2].Value, out[3].Value})
	})

	t.Run("Should sample monotonically after unwinding", func(t *testing.T) {
		keys := UnwrapDegrees([]track.Key[float32]{{Time: 0, Value: 350}, {Time: 1, Value: 10}})
		out := track.Sample(350, keys, 1, 10, track.LerpFloat)
		for i := 1; i < len(out); i++ {
			assert.Greater(t, out[i], out[i-1])
		}
		assert.InDelta(t, 360, out[5], 1e-4)
	})
}

func TestFromEulerChannels(t *testing.T) {
	tl := Timeline{Duration: 1, SampleRate: 10}

	t.Run("Should rotate the short way through the seam", func(t *testing.T) {
		ch := AxisChannels{Z: []track.Key[float32]{{Time: 0, Value: 350}, {Time: 1, Value: 10}}}
		qs := FromEulerChannels(ch, geom.Vector3{}, geom.RotationOrderZYX, tl)
		require.Len(t, qs, 11)
		// the middle sample is exactly at the seam
		seam := math.Mod(math.Abs(zAngle(qs[5])), 360)
		assert.InDelta(t, 0, math.Min(seam, 360-seam), 1e-3)
		for i := 1; i < len(qs); i++ {
			d := zAngle(*qs[i].Mul(qs[i-1].Inverse()))
			assert.InDelta(t, 2, d, 1e-2, "sample %d", i)
		}
	})

	t.Run("Should combine axes only after sampling each one", func(t *testing.T) {
		ch := AxisChannels{
			X: []track.Key[float32]{{Time: 0, Value: 0}, {Time: 1, Value: 90}},
			Z: []track.Key[float32]{{Time: 0, Value: 0}, {Time: 0.5, Value: 40}},
		}
		qs := FromEulerChannels(ch, geom.Vector3{}, geom.RotationOrderZYX, tl)
		require.Len(t, qs, 11)
		want := geom.NewEulerFromDegrees(45, 0, 40, geom.RotationOrderZYX).ToQuaternion()
		assert.InDelta(t, 0, qs[5].Sub(want).Len(), 1e-5)
	})

	t.Run("Should return nil without channels", func(t *testing.T) {
		assert.Nil(t, FromEulerChannels(AxisChannels{}, geom.Vector3{}, geom.RotationOrderXYZ, tl))
	})
}

func TestFromMatrices(t *testing.T) {
	tl := Timeline{Duration: 1, SampleRate: 2}
	rot := geom.NewQuaternionFromAxisAngle(geom.NewVector3(0, 1, 0), math.Pi/2)
	keys := []track.Key[geom.Matrix4]{
		{Time: 0, Value: *geom.NewTRSMatrix4(geom.NewVector3(0, 0, 0), geom.NewQuaternion(0, 0, 0, 1), geom.NewVector3(2, 2, 2))},
		{Time: 1, Value: *geom.NewTRSMatrix4(geom.NewVector3(2, 4, 6), rot, geom.NewVector3(2, 2, 2))},
	}

	c := FromMatrices(keys, IdentityBind(), tl)
	require.Len(t, c.Positions, 3)
	require.Len(t, c.Rotations, 3)
	require.Len(t, c.Scale, 3)

	t.Run("Should extract translation", func(t *testing.T) {
		assert.InDelta(t, 0, c.Positions[1].Sub(geom.NewVector3(1, 2, 3)).Len(), 1e-5)
	})
	t.Run("Should extract rotation", func(t *testing.T) {
		assert.InDelta(t, 0, c.Rotations[2].Sub(rot).Len(), 1e-5)
	})
	t.Run("Should force unit scale", func(t *testing.T) {
		for _, s := range c.Scale {
			assert.Equal(t, geom.Vector3{X: 1, Y: 1, Z: 1}, s)
		}
	})
}

func TestFromSRT(t *testing.T) {
	tl := Timeline{Duration: 2, SampleRate: 30}
	bind := IdentityBind()

	t.Run("Should omit arrays without keys", func(t *testing.T) {
		c := FromSRT(SRTKeys{Positions: []track.Key[geom.Vector3]{{Time: 0, Value: geom.Vector3{X: 1}}}}, bind, tl)
		assert.Len(t, c.Positions, 61)
		assert.Nil(t, c.Rotations)
		assert.Nil(t, c.Scale)
	})

	t.Run("Should keep rotation samples in one hemisphere", func(t *testing.T) {
		q := geom.NewQuaternionFromAxisAngle(geom.NewVector3(1, 0, 0), 0.2)
		keys := SRTKeys{Rotations: []track.Key[geom.Quaternion]{
			{Time: 0, Value: geom.Quaternion{W: 1}},
			{Time: 1, Value: *q.Scale(-1)},
		}}
		c := FromSRT(keys, bind, tl)
		for i := 1; i < len(c.Rotations); i++ {
			assert.GreaterOrEqual(t, c.Rotations[i].Dot(&c.Rotations[i-1]), float32(0))
		}
	})
}

func TestFromAxisVectors(t *testing.T) {
	tl := Timeline{Duration: 1, SampleRate: 1}
	ch := AxisChannels{Y: []track.Key[float32]{{Time: 0, Value: 0}, {Time: 1, Value: 10}}}
	out := FromAxisVectors(ch, geom.Vector3{X: 1, Y: 2, Z: 3}, tl)
	assert.Equal(t, []geom.Vector3{{X: 1, Y: 0, Z: 3}, {X: 1, Y: 10, Z: 3}}, out)
}
