package spine

import (
	"strings"
	"testing"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "skeleton": {"spine": "3.8.99"},
  "bones": [
    {"name": "root"},
    {"name": "hip", "parent": "root", "y": 10, "rotation": 90, "length": 5},
    {"name": "thigh", "parent": "hip", "x": 2, "scaleX": 2, "transform": "noScale"},
    {"name": "foot", "parent": "root"}
  ],
  "ik": [{"name": "leg", "bones": ["hip", "thigh"], "target": "foot", "bendPositive": false}],
  "slots": [
    {"name": "body", "bone": "hip", "attachment": "torso", "color": "ff000080"},
    {"name": "leg", "bone": "thigh"}
  ],
  "skins": {
    "default": {
      "body": {
        "torso": {"x": 1, "y": 2, "width": 4, "height": 6},
        "torso2": {"type": "mesh", "uvs": [0, 0, 1, 0, 0, 1], "triangles": [0, 1, 2], "vertices": [0, 0, 4, 0, 0, 4]}
      },
      "leg": {
        "shin": {"type": "mesh", "path": "legs/shin", "uvs": [0, 0, 1, 0, 0, 1], "triangles": [0, 1, 2],
          "vertices": [1, 2, 0, 0, 1, 2, 1, 4, 0, 0.5, 2, 0, 0, 0.5, 1, 3, 0, 4, 1]}
      }
    },
    "armored": {"body": {"torso": {"name": "armor"}}}
  },
  "events": {"step": {"int": 1, "string": "left"}},
  "animations": {
    "walk": {
      "bones": {
        "hip": {
          "rotate": [{"time": 0, "angle": 350, "curve": "stepped"}, {"time": 1, "angle": 10, "curve": [0.25, 0, 0.75, 1]}],
          "translate": [{"time": 0.5, "x": 3}]
        },
        "thigh": {"scale": [{"time": 0, "x": 2, "curve": 0.1, "c2": 0.2, "c3": 0.3, "c4": 0.4}]}
      },
      "ik": {"leg": [{"time": 0, "mix": 0.5}, {"time": 1, "bendPositive": false}]},
      "slots": {"body": {"attachment": [{"time": 0.2, "name": null}], "color": [{"time": 0, "color": "00ff00ff"}]}},
      "drawOrder": [{"time": 0.3, "offsets": [{"slot": "body", "offset": 1}]}],
      "events": [{"time": 0.4, "name": "step", "float": 2.5}]
    },
    "idle": {}
  }
}`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	t.Run("Should read bones with defaults", func(t *testing.T) {
		require.Len(t, doc.Bones, 4)
		assert.Equal(t, "", doc.Bones[0].Parent)
		assert.Equal(t, float32(1), doc.Bones[0].ScaleX)
		assert.True(t, doc.Bones[0].InheritScale)
		assert.Equal(t, float32(90), doc.Bones[1].Rotation)
		assert.Equal(t, float32(5), doc.Bones[1].Length)
		assert.False(t, doc.Bones[2].InheritScale)
		assert.Equal(t, 2, doc.BoneIndex("thigh"))
	})

	t.Run("Should read ik and slots", func(t *testing.T) {
		require.Len(t, doc.IKs, 1)
		assert.Equal(t, []string{"hip", "thigh"}, doc.IKs[0].Bones)
		assert.False(t, doc.IKs[0].BendPositive)
		assert.Equal(t, float32(1), doc.IKs[0].Mix)
		require.Len(t, doc.Slots, 2)
		assert.InDelta(t, 1, doc.Slots[0].Color.X, 1e-6)
		assert.InDelta(t, 128.0/255, doc.Slots[0].Color.W, 1e-6)
		assert.Equal(t, geom.Vector4{X: 1, Y: 1, Z: 1, W: 1}, doc.Slots[1].Color)
	})

	t.Run("Should keep skins and attachments in document order", func(t *testing.T) {
		require.Len(t, doc.Skins, 2)
		assert.Equal(t, "default", doc.Skins[0].Name)
		assert.Equal(t, "armored", doc.Skins[1].Name)
		atts := doc.Skins[0].Attachments
		require.Len(t, atts, 3)
		assert.Equal(t, "torso", atts[0].Name)
		assert.Equal(t, Region, atts[0].Type)
		assert.Equal(t, "torso", atts[0].Path)
		assert.Equal(t, Mesh, atts[1].Type)
		assert.Equal(t, WeightedMesh, atts[2].Type)
		assert.Equal(t, "legs/shin", atts[2].Path)
		assert.Equal(t, "armor", doc.Skins[1].Attachment("body", "torso").Path)
		assert.Nil(t, doc.Skins[1].Attachment("leg", "shin"))
	})

	t.Run("Should decode weighted vertices", func(t *testing.T) {
		ws, err := doc.Skins[0].Attachment("leg", "shin").Weights()
		require.NoError(t, err)
		require.Len(t, ws, 3)
		assert.Equal(t, []BoneWeight{{Bone: 2, X: 0, Y: 0, Weight: 1}}, ws[0])
		require.Len(t, ws[1], 2)
		assert.Equal(t, BoneWeight{Bone: 1, X: 4, Y: 0, Weight: 0.5}, ws[1][0])
		assert.Equal(t, []BoneWeight{{Bone: 3, X: 0, Y: 4, Weight: 1}}, ws[2])
	})

	t.Run("Should read animations with curves", func(t *testing.T) {
		require.Len(t, doc.Animations, 2)
		walk := doc.Animations[0]
		assert.Equal(t, "walk", walk.Name)
		require.Len(t, walk.Bones, 2)
		rot := walk.Bones[0].Rotate
		require.Len(t, rot, 2)
		assert.Equal(t, track.Stepped, rot[0].Interpolation)
		assert.Equal(t, track.Bezier, rot[1].Interpolation)
		assert.Equal(t, track.Curve{X0: 0.25, Y0: 0, X1: 0.75, Y1: 1}, rot[1].Curve)
		assert.Equal(t, geom.Vector2{X: 3, Y: 0}, walk.Bones[0].Translate[0].Value)

		sc := walk.Bones[1].Scale[0]
		assert.Equal(t, geom.Vector2{X: 2, Y: 1}, sc.Value)
		assert.Equal(t, track.Curve{X0: 0.1, Y0: 0.2, X1: 0.3, Y1: 0.4}, sc.Curve)

		require.Len(t, walk.IKs, 1)
		assert.Equal(t, float32(1), walk.IKs[0].Mix[1].Value)
		assert.False(t, walk.IKs[0].BendPositive[1].Value)

		require.Len(t, walk.Slots, 1)
		assert.Equal(t, "", walk.Slots[0].Attachment[0].Value)
		assert.InDelta(t, 1, walk.Slots[0].Color[0].Value.Y, 1e-6)

		require.Len(t, walk.DrawOrder, 1)
		assert.Equal(t, []SlotOffset{{Slot: "body", Offset: 1}}, walk.DrawOrder[0].Offsets)

		require.Len(t, walk.Events, 1)
		ev := walk.Events[0]
		assert.Equal(t, int32(1), ev.Int)
		assert.Equal(t, float32(2.5), ev.Float)
		assert.Equal(t, "left", ev.String)
		assert.Equal(t, float32(1), walk.Duration())
		assert.Equal(t, float32(0), doc.Animations[1].Duration())
	})
}

func TestParseErrors(t *testing.T) {
	t.Run("Should reject malformed json", func(t *testing.T) {
		_, err := Parse(strings.NewReader(`{"bones": [`))
		assert.ErrorIs(t, err, rig.ErrInvalidSource)
	})

	t.Run("Should reject documents without bones", func(t *testing.T) {
		_, err := Parse(strings.NewReader(`{"slots": []}`))
		assert.ErrorIs(t, err, rig.ErrInvalidSource)
	})

	t.Run("Should reject bad colors", func(t *testing.T) {
		_, err := Parse(strings.NewReader(`{"bones": [{"name": "root"}], "slots": [{"name": "s", "bone": "root", "color": "zz"}]}`))
		assert.ErrorIs(t, err, rig.ErrInvalidSource)
	})

	t.Run("Should reject out of range triangles", func(t *testing.T) {
		src := `{"bones": [{"name": "root"}], "skins": {"default": {"s": {"m": {"type": "mesh", "uvs": [0, 0], "vertices": [0, 0], "triangles": [0, 0, 3]}}}}}`
		_, err := Parse(strings.NewReader(src))
		assert.ErrorIs(t, err, rig.ErrInvalidSource)
	})
}

func TestAtlasMapUV(t *testing.T) {
	atlas := Atlas{
		"head":  {U: 0, V: 0, U2: 0.5, V2: 0.5},
		"torso": {U: 0.5, V: 0, U2: 1, V2: 0.5, Rotate: true},
	}
	assert.Equal(t, geom.Vector2{X: 0.25, Y: 0.5}, atlas.MapUV("head", geom.Vector2{X: 0.5, Y: 1}))
	assert.Equal(t, geom.Vector2{X: 0.5, Y: 0}, atlas.MapUV("torso", geom.Vector2{X: 1, Y: 0}))
	assert.Equal(t, geom.Vector2{X: 0.3, Y: 0.7}, atlas.MapUV("missing", geom.Vector2{X: 0.3, Y: 0.7}))
}
