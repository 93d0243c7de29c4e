// Package rig defines the canonical runtime records produced by the compiler:
// skeleton, mesh groups, animation sets and bone cross-reference lists.
package rig

import (
	"github.com/binzume/rigconv/geom"
)

// RootParent is the parent index stored for the root bone.
const RootParent uint16 = 0xFFFF

// InfluenceCount is the fixed number of bone influences per vertex.
const InfluenceCount = 4

type Bone struct {
	ID       uint64
	Name     string `yaml:"-"`
	Parent   uint16
	Position geom.Vector3
	Rotation geom.Quaternion
	Scale    geom.Vector3
	Length   float32
	// Axis is the unit direction of the bone in its local space.
	Axis         geom.Vector3
	InheritScale bool
}

type IK struct {
	ID       uint64
	Parent   uint16
	Child    uint16
	Target   uint16
	Positive bool
	Mix      float32
}

type Skeleton struct {
	Bones []Bone
	IKs   []IK
}

// BoneIndex returns the index of the bone with the given id, or -1.
func (s *Skeleton) BoneIndex(id uint64) int {
	for i := range s.Bones {
		if s.Bones[i].ID == id {
			return i
		}
	}
	return -1
}

type Vertex struct {
	Position geom.Vector3
	UV       geom.Vector2
	Bones    [InfluenceCount]uint16
	Weights  [InfluenceCount]float32
}

type Mesh struct {
	ID        uint64
	SlotIndex int
	DrawOrder int
	Visible   bool
	Color     geom.Vector4
	Vertices  []Vertex
	// Normals is either empty or parallel to Vertices.
	Normals []geom.Vector3
	Indices []uint32
}

// MeshSet is a named group of meshes (a skin).
type MeshSet struct {
	ID        uint64
	Meshes    []Mesh
	SlotCount int
}

type Track struct {
	BoneIndex uint32
	// Component arrays are nil when the source has no keys for them.
	Positions []geom.Vector3
	Rotations []geom.Quaternion
	Scale     []geom.Vector3
}

type IKTrack struct {
	IKIndex  uint32
	Mix      []float32
	Positive []bool
}

type SlotTrack struct {
	SlotIndex   uint32
	Attachments []uint64
	Colors      []geom.Vector4
	DrawOrder   []int32
}

type EventKey struct {
	T       float32
	Integer int32
	Float   float32
	String  uint64
}

type EventTrack struct {
	ID   uint64
	Keys []EventKey
}

type Clip struct {
	ID          uint64
	Name        string `yaml:"-"`
	Duration    float32
	SampleRate  float32
	SampleCount int
	Tracks      []Track
	IKTracks    []IKTrack
	SlotTracks  []SlotTrack
	EventTracks []EventTrack
}

type AnimationSet struct {
	Clips []Clip
}

// BoneList cross-references bone indices between independently compiled
// mesh and animation records of the same asset.
type BoneList struct {
	IDs []uint64
}

func (l *BoneList) IndexOf(id uint64) int {
	for i, v := range l.IDs {
		if v == id {
			return i
		}
	}
	return -1
}

type Result struct {
	Skeleton       *Skeleton
	MeshSets       []MeshSet
	Animations     *AnimationSet
	MeshBones      *BoneList
	AnimationBones *BoneList
}
