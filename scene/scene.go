// Package scene is the in-memory form of a node-tree source scene: joints,
// skinned geometry and animation channels addressed as "<node>/<property>".
package scene

import (
	"fmt"
	"strings"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/track"
)

// Animated properties.
const (
	PropMatrix       = "matrix"
	PropTranslation  = "translation"
	PropRotation     = "rotation"
	PropScale        = "scale"
	PropTranslationX = "translation.X"
	PropTranslationY = "translation.Y"
	PropTranslationZ = "translation.Z"
	PropScaleX       = "scale.X"
	PropScaleY       = "scale.Y"
	PropScaleZ       = "scale.Z"
	PropRotationX    = "rotationX"
	PropRotationY    = "rotationY"
	PropRotationZ    = "rotationZ"
)

// NoParent marks a top-level node.
const NoParent = -1

type Scene struct {
	UpAxis     string
	Nodes      []*Node
	Geometries []*Geometry
	Animations []*Animation
}

type Node struct {
	ID     string
	Name   string
	Parent int
	Joint  bool
	// Transform is the local bind transform, column-major.
	Transform geom.Matrix4
}

type Geometry struct {
	Name       string
	Positions  []geom.Vector3
	Normals    []geom.Vector3
	UVs        []geom.Vector2
	Primitives []*Primitive
	Skin       *Skin
}

// Primitive is a triangle list. Each corner occupies Stride consecutive
// entries of Indices; the offsets select the entry that indexes each source
// array, or -1 when the attribute is absent.
type Primitive struct {
	Stride         int
	PositionOffset int
	NormalOffset   int
	UVOffset       int
	Indices        []int
}

func (p *Primitive) CornerCount() int {
	if p.Stride <= 0 {
		return 0
	}
	return len(p.Indices) / p.Stride
}

type Influence struct {
	Joint  int
	Weight float32
}

type Skin struct {
	// Joints are node IDs. Influence.Joint indexes this list.
	Joints    []string
	BindShape geom.Matrix4
	// Influences holds the influences of each position.
	Influences [][]Influence
}

type Animation struct {
	Name     string
	Channels []*Channel
}

type Channel struct {
	Target string
	Input  []float32
	Output []float32
	// Interpolations is per key. A single entry applies to every key and an
	// empty list means linear.
	Interpolations []track.Interpolation
	// Curves holds bezier control points per key.
	Curves [][4]float32
}

// NodeIndex returns the index of the node with the given ID (or name when
// no ID matches), or -1.
func (s *Scene) NodeIndex(id string) int {
	for i, n := range s.Nodes {
		if n.ID == id {
			return i
		}
	}
	for i, n := range s.Nodes {
		if n.Name == id {
			return i
		}
	}
	return -1
}

// JointParent returns the nearest joint ancestor of node i, or NoParent.
func (s *Scene) JointParent(i int) int {
	seen := 0
	for p := s.Nodes[i].Parent; p != NoParent; p = s.Nodes[p].Parent {
		if p < 0 || p >= len(s.Nodes) || seen > len(s.Nodes) {
			return NoParent
		}
		if s.Nodes[p].Joint {
			return p
		}
		seen++
	}
	return NoParent
}

// Split returns the node path and property of the channel target.
func (c *Channel) Split() (string, string) {
	i := strings.LastIndex(c.Target, "/")
	if i < 0 {
		return "", c.Target
	}
	return c.Target[:i], c.Target[i+1:]
}

// PropertyStride returns the number of output values per key for prop, or 0
// for unknown properties.
func PropertyStride(prop string) int {
	switch prop {
	case PropMatrix:
		return 16
	case PropRotation:
		return 4
	case PropTranslation, PropScale:
		return 3
	case PropTranslationX, PropTranslationY, PropTranslationZ,
		PropScaleX, PropScaleY, PropScaleZ,
		PropRotationX, PropRotationY, PropRotationZ:
		return 1
	}
	return 0
}

// Validate checks that the channel has input times and a consistent output
// array.
func (c *Channel) Validate() error {
	_, prop := c.Split()
	stride := PropertyStride(prop)
	if stride == 0 {
		return fmt.Errorf("%w: channel %q has unknown property %q", rig.ErrInvalidSource, c.Target, prop)
	}
	if len(c.Input) == 0 {
		return fmt.Errorf("%w: channel %q has no input times", rig.ErrMissingRequiredChannel, c.Target)
	}
	if len(c.Output) != len(c.Input)*stride {
		return fmt.Errorf("%w: channel %q has %d outputs for %d keys", rig.ErrInvalidSource, c.Target, len(c.Output), len(c.Input))
	}
	for i := 1; i < len(c.Input); i++ {
		if c.Input[i] < c.Input[i-1] {
			return fmt.Errorf("%w: channel %q input times are not sorted", rig.ErrInvalidSource, c.Target)
		}
	}
	return nil
}

// Duration returns the time of the last key.
func (c *Channel) Duration() float32 {
	if len(c.Input) == 0 {
		return 0
	}
	return c.Input[len(c.Input)-1]
}

func (c *Channel) Interpolation(i int) track.Interpolation {
	switch {
	case len(c.Interpolations) == 0:
		return track.Linear
	case len(c.Interpolations) == 1:
		return c.Interpolations[0]
	case i < len(c.Interpolations):
		return c.Interpolations[i]
	}
	return track.Linear
}

func (c *Channel) Curve(i int) track.Curve {
	if i >= len(c.Curves) {
		return track.Curve{X0: 0, Y0: 0, X1: 1, Y1: 1}
	}
	v := c.Curves[i]
	return track.Curve{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
}

// Keys converts the channel into typed keys, decoding each stride-sized
// output window with decode.
func Keys[T any](c *Channel, decode func(v []float32) T) []track.Key[T] {
	_, prop := c.Split()
	stride := PropertyStride(prop)
	if stride == 0 {
		return nil
	}
	keys := make([]track.Key[T], len(c.Input))
	for i, t := range c.Input {
		keys[i] = track.Key[T]{
			Time:          t,
			Value:         decode(c.Output[i*stride : (i+1)*stride]),
			Interpolation: c.Interpolation(i),
			Curve:         c.Curve(i),
		}
	}
	return keys
}

func DecodeFloat(v []float32) float32 { return v[0] }

func DecodeVector3(v []float32) geom.Vector3 { return *geom.NewVector3FromSlice(v) }

func DecodeQuaternion(v []float32) geom.Quaternion {
	return *geom.NewQuaternion(v[0], v[1], v[2], v[3]).Normalize()
}

func DecodeMatrix(v []float32) geom.Matrix4 { return *geom.NewMatrix4FromSlice(v) }
