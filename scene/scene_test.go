package scene

import (
	"strings"
	"testing"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScene = `
nodes:
  - name: Armature
    joint: false
  - name: hips
    parent: Armature
    translation: [0, 1, 0]
  - name: spine
    parent: hips
    translation: [0, 0.5, 0]
    rotation: [0, 0, 0.7071068, 0.7071068]
  - name: mesh
    joint: false
geometries:
  - name: body
    positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
    uvs: [[0, 0], [1, 0], [0, 1]]
    primitives:
      - stride: 2
        position: 0
        uv: 1
        indices: [0, 0, 1, 1, 2, 2]
    skin:
      joints: [hips, spine]
      influences:
        - [[0, 1]]
        - [[0, 0.5], [1, 0.5]]
        - [[1, 1]]
animations:
  - name: wave
    channels:
      - target: spine/rotationZ
        input: [0, 1]
        output: [350, 10]
      - target: hips/translation
        input: [0, 0.5]
        output: [0, 1, 0, 0, 2, 0]
        interpolation: [step]
`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleScene))
	require.NoError(t, err)

	t.Run("Should resolve nodes and parents", func(t *testing.T) {
		require.Len(t, s.Nodes, 4)
		assert.Equal(t, "Y", s.UpAxis)
		assert.False(t, s.Nodes[0].Joint)
		assert.True(t, s.Nodes[1].Joint)
		assert.Equal(t, 0, s.Nodes[1].Parent)
		assert.Equal(t, 1, s.Nodes[2].Parent)
		assert.Equal(t, NoParent, s.Nodes[3].Parent)
		assert.Equal(t, NoParent, s.JointParent(1))
		assert.Equal(t, 1, s.JointParent(2))
	})

	t.Run("Should compose node transforms", func(t *testing.T) {
		pos, rot, _ := s.Nodes[2].Transform.Decompose()
		assert.InDelta(t, 0.5, pos.Y, 1e-6)
		assert.InDelta(t, 0.7071068, rot.Z, 1e-5)
	})

	t.Run("Should decode geometry and skin", func(t *testing.T) {
		require.Len(t, s.Geometries, 1)
		g := s.Geometries[0]
		assert.Len(t, g.Positions, 3)
		require.Len(t, g.Primitives, 1)
		assert.Equal(t, 3, g.Primitives[0].CornerCount())
		assert.Equal(t, -1, g.Primitives[0].NormalOffset)
		require.NotNil(t, g.Skin)
		assert.Equal(t, []Influence{{0, 0.5}, {1, 0.5}}, g.Skin.Influences[1])
		assert.Equal(t, *geom.NewMatrix4(), g.Skin.BindShape)
	})

	t.Run("Should decode channels", func(t *testing.T) {
		require.Len(t, s.Animations, 1)
		chs := s.Animations[0].Channels
		require.Len(t, chs, 2)
		node, prop := chs[0].Split()
		assert.Equal(t, "spine", node)
		assert.Equal(t, PropRotationZ, prop)
		assert.NoError(t, chs[0].Validate())
		assert.Equal(t, track.Stepped, chs[1].Interpolation(1))

		keys := Keys(chs[1], DecodeVector3)
		require.Len(t, keys, 2)
		assert.Equal(t, geom.Vector3{X: 0, Y: 2, Z: 0}, keys[1].Value)
		assert.Equal(t, float32(0.5), chs[1].Duration())
	})
}

func TestParseErrors(t *testing.T) {
	t.Run("Should reject unresolvable parents", func(t *testing.T) {
		_, err := Parse(strings.NewReader("nodes:\n  - name: a\n    parent: missing\n"))
		assert.ErrorIs(t, err, rig.ErrMalformedHierarchy)
	})

	t.Run("Should reject out of range indices", func(t *testing.T) {
		src := "geometries:\n  - name: g\n    positions: [[0,0,0]]\n    primitives:\n      - indices: [0, 1, 0]\n"
		_, err := Parse(strings.NewReader(src))
		assert.ErrorIs(t, err, rig.ErrInvalidSource)
	})

	t.Run("Should reject unknown interpolation", func(t *testing.T) {
		src := "animations:\n  - channels:\n      - target: a/rotationX\n        input: [0]\n        output: [0]\n        interpolation: [cubic]\n"
		_, err := Parse(strings.NewReader(src))
		assert.ErrorIs(t, err, rig.ErrInvalidSource)
	})
}

func TestChannelValidate(t *testing.T) {
	t.Run("Should require input times", func(t *testing.T) {
		c := &Channel{Target: "a/translation", Output: []float32{1, 2, 3}}
		assert.ErrorIs(t, c.Validate(), rig.ErrMissingRequiredChannel)
	})

	t.Run("Should reject mismatched outputs", func(t *testing.T) {
		c := &Channel{Target: "a/matrix", Input: []float32{0}, Output: []float32{1, 2, 3}}
		assert.ErrorIs(t, c.Validate(), rig.ErrInvalidSource)
	})

	t.Run("Should reject unknown properties", func(t *testing.T) {
		c := &Channel{Target: "a/visibility", Input: []float32{0}, Output: []float32{1}}
		assert.ErrorIs(t, c.Validate(), rig.ErrInvalidSource)
	})

	t.Run("Should broadcast a single interpolation", func(t *testing.T) {
		c := &Channel{Interpolations: []track.Interpolation{track.Bezier}}
		assert.Equal(t, track.Bezier, c.Interpolation(5))
		assert.Equal(t, track.Linear, (&Channel{}).Interpolation(0))
	})
}
