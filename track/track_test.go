package track

import (
	"testing"

	"github.com/binzume/rigconv/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleCount(t *testing.T) {
	t.Run("Should be ceil(duration*rate)+1", func(t *testing.T) {
		assert.Equal(t, 61, SampleCount(2.0, 30.0))
		assert.Equal(t, 31, SampleCount(1.0, 30.0))
		assert.Equal(t, 2, SampleCount(0.01, 30.0))
	})
	t.Run("Should emit a single sample for empty clips", func(t *testing.T) {
		assert.Equal(t, 1, SampleCount(0, 30))
	})
}

func TestSample(t *testing.T) {
	t.Run("Should hold a single default-equal key for the whole clip", func(t *testing.T) {
		keys := []Key[float32]{{Time: 0, Value: 3}}
		out := Sample(3, keys, 2.0, 30.0, LerpFloat)
		require.Len(t, out, 61)
		for i, v := range out {
			assert.Equal(t, float32(3), v, "sample %d", i)
		}
	})

	t.Run("Should use default before the first key and hold after the last", func(t *testing.T) {
		keys := []Key[float32]{{Time: 0.5, Value: 10}, {Time: 1, Value: 20}}
		out := Sample(-1, keys, 2, 4, LerpFloat)
		require.Len(t, out, 9)
		assert.Equal(t, []float32{-1, -1, 10, 15, 20, 20, 20, 20, 20}, out)
	})

	t.Run("Should hold stepped keys until the next key", func(t *testing.T) {
		keys := []Key[float32]{
			{Time: 0, Value: 1, Interpolation: Stepped},
			{Time: 1, Value: 5},
		}
		out := Sample(0, keys, 1, 4, LerpFloat)
		assert.Equal(t, []float32{1, 1, 1, 1, 5}, out)
	})

	t.Run("Should blend vectors component-wise", func(t *testing.T) {
		keys := []Key[geom.Vector3]{
			{Time: 0, Value: geom.Vector3{X: 0, Y: 0, Z: 0}},
			{Time: 1, Value: geom.Vector3{X: 2, Y: 4, Z: -2}},
		}
		out := Sample(geom.Vector3{}, keys, 1, 2, LerpVector3)
		require.Len(t, out, 3)
		assert.Equal(t, geom.Vector3{X: 1, Y: 2, Z: -1}, out[1])
	})

	t.Run("Should apply bezier easing between keys", func(t *testing.T) {
		easeIn := Curve{X0: 0.5, Y0: 0, X1: 1, Y1: 0.5}
		keys := []Key[float32]{
			{Time: 0, Value: 0, Interpolation: Bezier, Curve: easeIn},
			{Time: 1, Value: 100},
		}
		out := Sample(0, keys, 1, 10, LerpFloat)
		require.Len(t, out, 11)
		assert.Equal(t, float32(0), out[0])
		assert.Equal(t, float32(100), out[10])
		assert.Less(t, out[5], float32(50))
		for i := 1; i < len(out); i++ {
			assert.GreaterOrEqual(t, out[i], out[i-1])
		}
	})

	t.Run("Should hold non-blendable values", func(t *testing.T) {
		keys := []Key[bool]{{Time: 0, Value: true}, {Time: 0.5, Value: false}}
		out := Sample(true, keys, 1, 4, Hold[bool])
		assert.Equal(t, []bool{true, true, false, false, false}, out)
	})
}

func TestEase(t *testing.T) {
	t.Run("Should be identity for a linear control polygon", func(t *testing.T) {
		linear := Curve{X0: 1.0 / 3, Y0: 1.0 / 3, X1: 2.0 / 3, Y1: 2.0 / 3}
		for _, u := range []float32{0, 0.1, 0.25, 0.5, 0.9, 1} {
			assert.InDelta(t, u, Ease(linear, u), 1e-5)
		}
	})

	t.Run("Should keep end points fixed", func(t *testing.T) {
		c := Curve{X0: 0.25, Y0: 0.1, X1: 0.25, Y1: 1}
		assert.Equal(t, float32(0), Ease(c, 0))
		assert.Equal(t, float32(1), Ease(c, 1))
	})

	t.Run("Should solve x(s)=u before evaluating y", func(t *testing.T) {
		c := Curve{X0: 0.42, Y0: 0, X1: 0.58, Y1: 1}
		// symmetric ease-in-out passes through the center
		assert.InDelta(t, 0.5, Ease(c, 0.5), 1e-5)
		assert.Less(t, Ease(c, 0.2), float32(0.2))
		assert.Greater(t, Ease(c, 0.8), float32(0.8))
	})
}

func TestQuaternionLerp(t *testing.T) {
	a := *geom.NewQuaternion(0, 0, 0, 1)
	b := *geom.NewQuaternionFromAxisAngle(geom.NewVector3(0, 1, 0), 1)
	q := LerpQuaternion(a, b, 0.5)
	assert.InDelta(t, 1, q.Len(), 1e-6)
}
