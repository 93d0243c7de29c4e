package hierarchy

import (
	"testing"

	"github.com/binzume/rigconv/rig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("Should number bones in pre-order with siblings in authoring order", func(t *testing.T) {
		//       root(0)
		//      /       \
		//    a(1)      b(2)
		//   /   \        \
		//  c(3) e(5)     d(4)
		parents := []int{NoParent, 0, 0, 1, 2, 1}
		o, err := Normalize(parents)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 3, 5, 2, 4}, o.Canonical)
		assert.Equal(t, []int{0, 1, 4, 2, 5, 3}, o.Remap)
	})

	t.Run("Should place parents before children for any authoring order", func(t *testing.T) {
		parents := []int{2, 4, 4, NoParent, 3, 0}
		o, err := Normalize(parents)
		require.NoError(t, err)
		assert.Equal(t, 0, o.Remap[3], "root must be index 0")
		for i := 1; i < len(parents); i++ {
			p := o.Parent(parents, i)
			assert.Less(t, p, i)
			assert.GreaterOrEqual(t, p, 0)
		}
		assert.Equal(t, NoParent, o.Parent(parents, 0))
	})

	t.Run("Should accept a root-only skeleton", func(t *testing.T) {
		o, err := Normalize([]int{NoParent})
		require.NoError(t, err)
		assert.Equal(t, []int{0}, o.Canonical)
		assert.Equal(t, []int{0}, o.Remap)
	})

	t.Run("Should reject cycles", func(t *testing.T) {
		_, err := Normalize([]int{NoParent, 2, 1})
		assert.ErrorIs(t, err, rig.ErrMalformedHierarchy)
	})

	t.Run("Should reject a tree without a root", func(t *testing.T) {
		_, err := Normalize([]int{1, 0})
		assert.ErrorIs(t, err, rig.ErrMalformedHierarchy)
	})

	t.Run("Should reject unresolvable parents", func(t *testing.T) {
		_, err := Normalize([]int{NoParent, 7})
		assert.ErrorIs(t, err, rig.ErrMalformedHierarchy)
		_, err = Normalize([]int{NoParent, 1})
		assert.ErrorIs(t, err, rig.ErrMalformedHierarchy)
	})

	t.Run("Should reject multiple roots", func(t *testing.T) {
		_, err := Normalize([]int{NoParent, NoParent})
		assert.ErrorIs(t, err, rig.ErrMalformedHierarchy)
	})
}
