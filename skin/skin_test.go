package skin

import (
	"testing"

	"github.com/binzume/rigconv/rig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("Should keep the four heaviest influences without renormalizing", func(t *testing.T) {
		s, err := Resolve([]Influence{{0, 0.5}, {1, 0.1}, {2, 0.2}, {3, 0.3}, {4, 0.4}}, nil)
		require.NoError(t, err)
		assert.Equal(t, [4]uint16{0, 4, 3, 2}, s.Bones)
		assert.Equal(t, [4]float32{0.5, 0.4, 0.3, 0.2}, s.Weights)
		assert.InDelta(t, 1.4, s.Sum(), 1e-6)
	})

	t.Run("Should pad unused slots with bone 0 weight 0", func(t *testing.T) {
		s, err := Resolve([]Influence{{0, 0.25}}, nil)
		require.NoError(t, err)
		assert.Equal(t, [4]uint16{0, 0, 0, 0}, s.Bones)
		assert.Equal(t, [4]float32{0.25, 0, 0, 0}, s.Weights)
	})

	t.Run("Should bind vertices without influences to bone 0", func(t *testing.T) {
		s, err := Resolve(nil, []int{0, 1})
		require.NoError(t, err)
		assert.Equal(t, [4]uint16{0, 0, 0, 0}, s.Bones)
		assert.Equal(t, [4]float32{1, 0, 0, 0}, s.Weights)
	})

	t.Run("Should keep source order for equal weights", func(t *testing.T) {
		s, err := Resolve([]Influence{{5, 0.2}, {3, 0.2}, {4, 0.6}, {1, 0.2}, {2, 0.2}}, nil)
		require.NoError(t, err)
		assert.Equal(t, [4]uint16{4, 5, 3, 1}, s.Bones)
	})

	t.Run("Should remap bones to canonical indices", func(t *testing.T) {
		remap := []int{2, 0, 1}
		s, err := Resolve([]Influence{{0, 0.3}, {2, 0.7}}, remap)
		require.NoError(t, err)
		assert.Equal(t, [4]uint16{1, 2, 0, 0}, s.Bones)
		assert.Equal(t, [4]float32{0.7, 0.3, 0, 0}, s.Weights)
	})

	t.Run("Should reject bones outside the remap table", func(t *testing.T) {
		_, err := Resolve([]Influence{{3, 1}}, []int{0, 1})
		assert.ErrorIs(t, err, rig.ErrUnknownBoneReference)
	})

	t.Run("Should not modify the source slice", func(t *testing.T) {
		src := []Influence{{0, 0.1}, {1, 0.9}}
		_, err := Resolve(src, nil)
		require.NoError(t, err)
		assert.Equal(t, []Influence{{0, 0.1}, {1, 0.9}}, src)
	})

	t.Run("Should write slots into a vertex", func(t *testing.T) {
		s, err := Resolve([]Influence{{1, 1}}, nil)
		require.NoError(t, err)
		var v rig.Vertex
		s.Apply(&v)
		assert.Equal(t, uint16(1), v.Bones[0])
		assert.Equal(t, float32(1), v.Weights[0])
	})
}
