package rig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	t.Run("Should be stable and distinct", func(t *testing.T) {
		assert.Equal(t, HashString("root"), HashString("root"))
		assert.NotEqual(t, HashString("root"), HashString("spine"))
		assert.Zero(t, HashString(""))
	})

	t.Run("Should normalize unicode composition", func(t *testing.T) {
		composed := "caf\u00e9"
		decomposed := "cafe\u0301"
		assert.Equal(t, HashString(composed), HashString(decomposed))
	})
}

func TestSkeletonLookup(t *testing.T) {
	s := &Skeleton{Bones: []Bone{{ID: HashString("a")}, {ID: HashString("b")}}}
	assert.Equal(t, 1, s.BoneIndex(HashString("b")))
	assert.Equal(t, -1, s.BoneIndex(HashString("c")))

	l := &BoneList{IDs: []uint64{3, 5}}
	assert.Equal(t, 1, l.IndexOf(5))
	assert.Equal(t, -1, l.IndexOf(7))
}
