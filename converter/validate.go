package converter

import (
	"fmt"

	"github.com/binzume/rigconv/rig"
)

// Validate cross-checks compiled records. Mesh vertices must reference
// skeleton bones and the mesh bone list must match the skeleton. Animation
// bone ids missing from the mesh bone list are an error in strict mode and
// a warning otherwise.
func Validate(ctx *CompilationContext, res *rig.Result) error {
	skel := res.Skeleton
	if skel == nil || len(skel.Bones) == 0 {
		return fmt.Errorf("%w: empty skeleton", rig.ErrMalformedHierarchy)
	}
	for i, b := range skel.Bones {
		if i == 0 {
			if b.Parent != rig.RootParent {
				return fmt.Errorf("%w: bone 0 is not the root", rig.ErrMalformedHierarchy)
			}
			continue
		}
		if int(b.Parent) >= i {
			return fmt.Errorf("%w: bone %q precedes its parent", rig.ErrMalformedHierarchy, b.Name)
		}
	}
	for _, ik := range skel.IKs {
		n := uint16(len(skel.Bones))
		if ik.Parent >= n || ik.Child >= n || ik.Target >= n {
			return fmt.Errorf("%w: ik constraint %d", rig.ErrUnknownBoneReference, ik.ID)
		}
	}

	if res.MeshBones == nil || len(res.MeshBones.IDs) != len(skel.Bones) {
		return fmt.Errorf("%w: mesh bone list does not match the skeleton", rig.ErrUnknownBoneReference)
	}
	for i, id := range res.MeshBones.IDs {
		if skel.Bones[i].ID != id {
			return fmt.Errorf("%w: mesh bone %d does not match the skeleton", rig.ErrUnknownBoneReference, i)
		}
	}
	for _, set := range res.MeshSets {
		for _, m := range set.Meshes {
			for vi, v := range m.Vertices {
				for _, b := range v.Bones {
					if int(b) >= len(skel.Bones) {
						return fmt.Errorf("%w: mesh %d vertex %d uses bone %d", rig.ErrUnknownBoneReference, m.ID, vi, b)
					}
				}
			}
			for _, idx := range m.Indices {
				if int(idx) >= len(m.Vertices) {
					return fmt.Errorf("%w: mesh %d index %d out of range", rig.ErrInvalidSource, m.ID, idx)
				}
			}
		}
	}

	if res.AnimationBones == nil || res.Animations == nil {
		return nil
	}
	for i, id := range res.AnimationBones.IDs {
		if res.MeshBones.IndexOf(id) >= 0 {
			continue
		}
		if ctx.StrictBoneReferences {
			return fmt.Errorf("%w: animation bone %d (%016x) is not in the skeleton", rig.ErrUnknownBoneReference, i, id)
		}
		ctx.Log.Warn("animation bone is not in the skeleton", "index", i, "id", fmt.Sprintf("%016x", id))
	}
	for _, clip := range res.Animations.Clips {
		for i, t := range clip.Tracks {
			if int(t.BoneIndex) >= len(res.AnimationBones.IDs) {
				return fmt.Errorf("%w: clip %q track %d bone index %d", rig.ErrUnknownBoneReference, clip.Name, i, t.BoneIndex)
			}
			if i > 0 && t.BoneIndex < clip.Tracks[i-1].BoneIndex {
				return fmt.Errorf("%w: clip %q tracks are not ordered by bone", rig.ErrInvalidSource, clip.Name)
			}
		}
		for _, t := range clip.IKTracks {
			if int(t.IKIndex) >= len(skel.IKs) {
				return fmt.Errorf("%w: clip %q ik track %d", rig.ErrUnknownBoneReference, clip.Name, t.IKIndex)
			}
		}
	}
	return nil
}
