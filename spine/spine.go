// Package spine holds a flat 2D skeleton document: bones, IK constraints,
// slots, skins with region and mesh attachments, events and animations.
package spine

import (
	"fmt"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/track"
)

type Document struct {
	Bones      []*Bone
	IKs        []*IK
	Slots      []*Slot
	Skins      []*Skin
	Events     []*Event
	Animations []*Animation
}

type Bone struct {
	Name     string
	Parent   string
	X, Y     float32
	Rotation float32 // degrees
	ScaleX   float32
	ScaleY   float32
	Length   float32

	InheritScale bool
}

type IK struct {
	Name         string
	Bones        []string
	Target       string
	BendPositive bool
	Mix          float32
}

type Slot struct {
	Name       string
	Bone       string
	Attachment string
	Color      geom.Vector4
}

type AttachmentType int

const (
	Region AttachmentType = iota
	Mesh
	WeightedMesh
)

func (t AttachmentType) String() string {
	switch t {
	case Mesh:
		return "mesh"
	case WeightedMesh:
		return "weightedmesh"
	}
	return "region"
}

type Attachment struct {
	Slot string
	Name string
	// Path is the atlas lookup key. It defaults to Name.
	Path  string
	Type  AttachmentType
	Color geom.Vector4

	// region
	X, Y           float32
	Rotation       float32
	ScaleX, ScaleY float32
	Width, Height  float32

	// mesh
	UVs       []float32
	Triangles []int
	Vertices  []float32
}

// VertexCount returns the number of vertices of the attachment.
func (a *Attachment) VertexCount() int {
	if a.Type == Region {
		return 4
	}
	return len(a.UVs) / 2
}

// BoneWeight is one influence of a weighted mesh vertex: a position offset
// in the space of bone Bone, and its weight.
type BoneWeight struct {
	Bone   int
	X, Y   float32
	Weight float32
}

// Weights decodes the vertices of a weighted mesh. Each vertex is encoded
// as count followed by count (bone, x, y, weight) tuples.
func (a *Attachment) Weights() ([][]BoneWeight, error) {
	if a.Type != WeightedMesh {
		return nil, fmt.Errorf("%w: attachment %q is not weighted", rig.ErrInvalidSource, a.Name)
	}
	n := a.VertexCount()
	out := make([][]BoneWeight, 0, n)
	v := a.Vertices
	for i := 0; i < len(v); {
		count := int(v[i])
		i++
		if count < 0 || i+count*4 > len(v) {
			return nil, fmt.Errorf("%w: attachment %q has truncated vertex data", rig.ErrInvalidSource, a.Name)
		}
		ws := make([]BoneWeight, count)
		for j := range ws {
			ws[j] = BoneWeight{Bone: int(v[i]), X: v[i+1], Y: v[i+2], Weight: v[i+3]}
			i += 4
		}
		out = append(out, ws)
	}
	if len(out) != n {
		return nil, fmt.Errorf("%w: attachment %q has %d weighted vertices for %d uvs", rig.ErrInvalidSource, a.Name, len(out), n)
	}
	return out, nil
}

type Skin struct {
	Name        string
	Attachments []*Attachment
}

// Attachment returns the attachment of a skin by slot and name, or nil.
func (s *Skin) Attachment(slot, name string) *Attachment {
	for _, a := range s.Attachments {
		if a.Slot == slot && a.Name == name {
			return a
		}
	}
	return nil
}

type Event struct {
	Name   string
	Int    int32
	Float  float32
	String string
}

type Animation struct {
	Name      string
	Bones     []*BoneTimeline
	IKs       []*IKTimeline
	Slots     []*SlotTimeline
	DrawOrder []DrawOrderKey
	Events    []EventKey
}

// BoneTimeline keys are relative to the bone setup pose: rotate adds
// degrees, translate adds an offset and scale multiplies.
type BoneTimeline struct {
	Bone      string
	Rotate    []track.Key[float32]
	Translate []track.Key[geom.Vector2]
	Scale     []track.Key[geom.Vector2]
}

type IKTimeline struct {
	IK           string
	Mix          []track.Key[float32]
	BendPositive []track.Key[bool]
}

type SlotTimeline struct {
	Slot string
	// Attachment keys are stepped; an empty name hides the slot.
	Attachment []track.Key[string]
	Color      []track.Key[geom.Vector4]
}

type SlotOffset struct {
	Slot   string
	Offset int
}

type DrawOrderKey struct {
	Time    float32
	Offsets []SlotOffset
}

type EventKey struct {
	Time float32
	Event
}

// Duration returns the time of the last key of any timeline.
func (a *Animation) Duration() float32 {
	var d float32
	last := func(t float32) {
		if t > d {
			d = t
		}
	}
	for _, b := range a.Bones {
		if n := len(b.Rotate); n > 0 {
			last(b.Rotate[n-1].Time)
		}
		if n := len(b.Translate); n > 0 {
			last(b.Translate[n-1].Time)
		}
		if n := len(b.Scale); n > 0 {
			last(b.Scale[n-1].Time)
		}
	}
	for _, ik := range a.IKs {
		if n := len(ik.Mix); n > 0 {
			last(ik.Mix[n-1].Time)
		}
	}
	for _, s := range a.Slots {
		if n := len(s.Attachment); n > 0 {
			last(s.Attachment[n-1].Time)
		}
		if n := len(s.Color); n > 0 {
			last(s.Color[n-1].Time)
		}
	}
	for _, k := range a.DrawOrder {
		last(k.Time)
	}
	for _, k := range a.Events {
		last(k.Time)
	}
	return d
}

func (d *Document) BoneIndex(name string) int {
	for i, b := range d.Bones {
		if b.Name == name {
			return i
		}
	}
	return -1
}

func (d *Document) SlotIndex(name string) int {
	for i, s := range d.Slots {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (d *Document) IKIndex(name string) int {
	for i, ik := range d.IKs {
		if ik.Name == name {
			return i
		}
	}
	return -1
}

func (d *Document) Event(name string) *Event {
	for _, e := range d.Events {
		if e.Name == name {
			return e
		}
	}
	return nil
}
