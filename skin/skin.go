// Package skin selects the fixed set of bone influences stored per vertex.
package skin

import (
	"fmt"
	"sort"

	"github.com/binzume/rigconv/rig"
)

// Influence is one source (authoring-order bone, weight) pair.
type Influence struct {
	Bone   int
	Weight float32
}

// Slots is the resolved influence set of a vertex, in canonical bone indices.
type Slots struct {
	Bones   [rig.InfluenceCount]uint16
	Weights [rig.InfluenceCount]float32
}

// Resolve keeps the rig.InfluenceCount heaviest influences sorted by weight,
// descending. Equal weights keep their source order. Retained weights are
// emitted as-is and are not rescaled, so they may not sum to 1. Unused slots
// are (0, 0). A vertex without influences is bound fully to bone 0.
//
// remap translates authoring bone indices to canonical ones; a nil remap
// keeps the indices unchanged.
func Resolve(src []Influence, remap []int) (Slots, error) {
	var s Slots
	if len(src) == 0 {
		s.Weights[0] = 1
		return s, nil
	}

	sorted := make([]Influence, len(src))
	copy(sorted, src)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})
	if len(sorted) > rig.InfluenceCount {
		sorted = sorted[:rig.InfluenceCount]
	}

	for i, inf := range sorted {
		b := inf.Bone
		if remap != nil {
			if b < 0 || b >= len(remap) {
				return s, fmt.Errorf("%w: influence bone %d", rig.ErrUnknownBoneReference, b)
			}
			b = remap[b]
		}
		if b < 0 || b > int(rig.RootParent-1) {
			return s, fmt.Errorf("%w: influence bone %d", rig.ErrUnknownBoneReference, inf.Bone)
		}
		s.Bones[i] = uint16(b)
		s.Weights[i] = inf.Weight
	}
	return s, nil
}

// Apply copies the slots into a vertex.
func (s Slots) Apply(v *rig.Vertex) {
	v.Bones = s.Bones
	v.Weights = s.Weights
}

// Sum returns the total retained weight.
func (s Slots) Sum() float32 {
	var t float32
	for _, w := range s.Weights {
		t += w
	}
	return t
}
