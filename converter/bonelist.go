package converter

import (
	"sort"

	"github.com/binzume/rigconv/rig"
)

// MeshBoneList lists every skeleton bone in canonical order.
func MeshBoneList(skel *rig.Skeleton) *rig.BoneList {
	l := &rig.BoneList{IDs: make([]uint64, len(skel.Bones))}
	for i, b := range skel.Bones {
		l.IDs[i] = b.ID
	}
	return l
}

// pendingTrack is a bone track whose index into the animation bone list is
// not known until every clip has been compiled.
type pendingTrack struct {
	bone  int // canonical index, or -1 when unresolved
	name  string
	track rig.Track
}

// animBoneList collects the bones that carry animation tracks. Resolved
// bones are listed in canonical order, followed by unresolved names in the
// order they were first referenced.
type animBoneList struct {
	tracked    []bool
	unresolved []string
	canonical  map[int]uint32
	names      map[string]uint32
}

func (l *animBoneList) reset(boneCount int) {
	l.tracked = make([]bool, boneCount)
	l.unresolved = nil
	l.canonical = nil
	l.names = nil
}

func (l *animBoneList) add(p *pendingTrack) {
	if p.bone >= 0 {
		l.tracked[p.bone] = true
		return
	}
	for _, n := range l.unresolved {
		if n == p.name {
			return
		}
	}
	l.unresolved = append(l.unresolved, p.name)
}

func (l *animBoneList) build(skel *rig.Skeleton) *rig.BoneList {
	out := &rig.BoneList{}
	l.canonical = map[int]uint32{}
	l.names = map[string]uint32{}
	for i, t := range l.tracked {
		if t {
			l.canonical[i] = uint32(len(out.IDs))
			out.IDs = append(out.IDs, skel.Bones[i].ID)
		}
	}
	for _, n := range l.unresolved {
		l.names[n] = uint32(len(out.IDs))
		out.IDs = append(out.IDs, rig.HashString(n))
	}
	return out
}

func (l *animBoneList) index(p *pendingTrack) uint32 {
	if p.bone >= 0 {
		return l.canonical[p.bone]
	}
	return l.names[p.name]
}

// resolveTracks assigns animation bone list indices to the pending tracks
// of every clip and orders each clip's tracks by bone index.
func (c *CompilationContext) resolveTracks(skel *rig.Skeleton, clips []rig.Clip, pending [][]pendingTrack) *rig.BoneList {
	c.animList.reset(len(skel.Bones))
	for _, ps := range pending {
		for i := range ps {
			c.animList.add(&ps[i])
		}
	}
	list := c.animList.build(skel)
	for ci, ps := range pending {
		tracks := make([]rig.Track, len(ps))
		for i := range ps {
			tracks[i] = ps[i].track
			tracks[i].BoneIndex = c.animList.index(&ps[i])
		}
		sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].BoneIndex < tracks[j].BoneIndex })
		clips[ci].Tracks = tracks
	}
	return list
}

// sortClips orders clips by name, keeping pending tracks aligned.
func sortClips(clips []rig.Clip, pending [][]pendingTrack) {
	idx := make([]int, len(clips))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return clips[idx[a]].Name < clips[idx[b]].Name })
	sc := make([]rig.Clip, len(clips))
	sp := make([][]pendingTrack, len(clips))
	for i, j := range idx {
		sc[i], sp[i] = clips[j], pending[j]
	}
	copy(clips, sc)
	copy(pending, sp)
}
