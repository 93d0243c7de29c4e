package converter

import (
	"fmt"
	"sort"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/hierarchy"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/skin"
	"github.com/binzume/rigconv/spine"
	"github.com/binzume/rigconv/track"
	"github.com/binzume/rigconv/transform"
)

type spineToRig struct {
	*CompilationContext
	src *spine.Document

	parents  []int
	order    *hierarchy.Order
	skel     *rig.Skeleton
	world    []*geom.Matrix4 // by authoring bone index
	ikIndex  []int           // document ik -> skeleton ik, -1 when dropped
	slotBone []int           // authoring bone index of each slot
}

func NewSpineToRigConverter(ctx *CompilationContext) *spineToRig {
	return &spineToRig{CompilationContext: ctx}
}

// CompileSpine compiles a flat 2D skeleton document into runtime records.
func CompileSpine(ctx *CompilationContext, src *spine.Document) (*rig.Result, error) {
	return NewSpineToRigConverter(ctx).Convert(src)
}

func (c *spineToRig) Convert(src *spine.Document) (*rig.Result, error) {
	c.src = src
	if err := c.buildSkeleton(); err != nil {
		return nil, err
	}
	c.setBones(c.skel)
	if err := c.buildConstraints(); err != nil {
		return nil, err
	}

	var meshSets []rig.MeshSet
	for _, s := range src.Skins {
		set, err := c.convertSkin(s)
		if err != nil {
			return nil, err
		}
		meshSets = append(meshSets, *set)
	}

	clips := make([]rig.Clip, 0, len(src.Animations))
	pending := make([][]pendingTrack, 0, len(src.Animations))
	for _, a := range src.Animations {
		clip, tracks, err := c.convertAnimation(a)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
		pending = append(pending, tracks)
	}
	sortClips(clips, pending)

	res := &rig.Result{
		Skeleton:       c.skel,
		MeshSets:       meshSets,
		Animations:     &rig.AnimationSet{Clips: clips},
		MeshBones:      MeshBoneList(c.skel),
		AnimationBones: c.resolveTracks(c.skel, clips, pending),
	}
	c.Log.Debug("compiled skeleton", "bones", len(c.skel.Bones), "skins", len(meshSets), "clips", len(clips))
	return res, Validate(c.CompilationContext, res)
}

func rotationZ(deg float32) *geom.Quaternion {
	return geom.NewEulerFromDegrees(0, 0, deg, geom.RotationOrderXYZ).ToQuaternion()
}

func (c *spineToRig) buildSkeleton() error {
	bones := c.src.Bones
	c.parents = make([]int, len(bones))
	for i, b := range bones {
		c.parents[i] = hierarchy.NoParent
		if b.Parent == "" {
			continue
		}
		p := c.src.BoneIndex(b.Parent)
		if p < 0 {
			return fmt.Errorf("%w: bone %q has unresolvable parent %q", rig.ErrMalformedHierarchy, b.Name, b.Parent)
		}
		c.parents[i] = p
	}
	order, err := hierarchy.Normalize(c.parents)
	if err != nil {
		return err
	}
	c.order = order

	c.skel = &rig.Skeleton{Bones: make([]rig.Bone, len(bones))}
	c.world = make([]*geom.Matrix4, len(bones))
	for i, a := range order.Canonical {
		b := bones[a]
		pos := &geom.Vector3{X: b.X, Y: b.Y}
		rot := rotationZ(b.Rotation)
		scale := &geom.Vector3{X: b.ScaleX, Y: b.ScaleY, Z: 1}
		bone := rig.Bone{
			ID:           rig.HashString(b.Name),
			Name:         b.Name,
			Parent:       rig.RootParent,
			Position:     *pos,
			Rotation:     *rot,
			Scale:        *scale,
			Length:       b.Length,
			Axis:         geom.Vector3{X: 1},
			InheritScale: b.InheritScale,
		}

		local := geom.NewTRSMatrix4(pos, rot, scale)
		c.world[a] = local
		if p := c.parents[a]; p != hierarchy.NoParent {
			bone.Parent = uint16(order.Remap[p])
			parent := c.world[p]
			if !b.InheritScale {
				pp, pr, _ := parent.Decompose()
				parent = geom.NewTRSMatrix4(pp, pr, &geom.Vector3{X: 1, Y: 1, Z: 1})
			}
			c.world[a] = parent.Mul(local)
		}
		c.skel.Bones[i] = bone
	}
	return nil
}

func (c *spineToRig) buildConstraints() error {
	c.ikIndex = make([]int, len(c.src.IKs))
	for i, ik := range c.src.IKs {
		c.ikIndex[i] = -1
		if len(ik.Bones) == 0 {
			return fmt.Errorf("%w: ik %q has no bones", rig.ErrInvalidSource, ik.Name)
		}
		refs := append([]string{ik.Bones[0], ik.Bones[len(ik.Bones)-1]}, ik.Target)
		idx := make([]int, len(refs))
		ok := true
		for j, name := range refs {
			if idx[j] = c.boneByName(name); idx[j] < 0 {
				if err := c.unknownBone(fmt.Sprintf("ik %q", ik.Name), name); err != nil {
					return err
				}
				ok = false
			}
		}
		if !ok {
			continue
		}
		c.ikIndex[i] = len(c.skel.IKs)
		c.skel.IKs = append(c.skel.IKs, rig.IK{
			ID:       rig.HashString(ik.Name),
			Parent:   uint16(idx[0]),
			Child:    uint16(idx[1]),
			Target:   uint16(idx[2]),
			Positive: ik.BendPositive,
			Mix:      ik.Mix,
		})
	}

	root := c.order.Canonical[0]
	c.slotBone = make([]int, len(c.src.Slots))
	for i, s := range c.src.Slots {
		c.slotBone[i] = c.src.BoneIndex(s.Bone)
		if c.slotBone[i] < 0 {
			if err := c.unknownBone(fmt.Sprintf("slot %q", s.Name), s.Bone); err != nil {
				return err
			}
			c.slotBone[i] = root
		}
	}
	return nil
}

func (c *spineToRig) convertSkin(s *spine.Skin) (*rig.MeshSet, error) {
	set := &rig.MeshSet{ID: rig.HashString(s.Name), SlotCount: len(c.src.Slots)}
	for _, a := range s.Attachments {
		si := c.src.SlotIndex(a.Slot)
		if si < 0 {
			return nil, fmt.Errorf("%w: skin %q uses unknown slot %q", rig.ErrInvalidSource, s.Name, a.Slot)
		}
		slot := c.src.Slots[si]
		mesh := rig.Mesh{
			ID:        rig.HashString(a.Name),
			SlotIndex: si,
			DrawOrder: si,
			Visible:   slot.Attachment == a.Name,
			Color:     slot.Color,
		}
		var err error
		switch a.Type {
		case spine.Region:
			err = c.regionVertices(&mesh, a, c.slotBone[si])
		case spine.Mesh:
			err = c.meshVertices(&mesh, a, c.slotBone[si])
		case spine.WeightedMesh:
			err = c.weightedVertices(&mesh, a)
		}
		if err != nil {
			return nil, fmt.Errorf("skin %q attachment %q: %w", s.Name, a.Name, err)
		}
		set.Meshes = append(set.Meshes, mesh)
	}
	return set, nil
}

func (c *spineToRig) boundVertex(pos *geom.Vector3, uv geom.Vector2, path string, bone int) (rig.Vertex, error) {
	v := rig.Vertex{Position: *pos, UV: c.Atlas.MapUV(path, uv)}
	slots, err := skin.Resolve([]skin.Influence{{Bone: bone, Weight: 1}}, c.order.Remap)
	if err != nil {
		return v, err
	}
	slots.Apply(&v)
	return v, nil
}

func (c *spineToRig) regionVertices(mesh *rig.Mesh, a *spine.Attachment, bone int) error {
	hw, hh := a.Width/2, a.Height/2
	corners := [4]geom.Vector3{{X: -hw, Y: -hh}, {X: hw, Y: -hh}, {X: hw, Y: hh}, {X: -hw, Y: hh}}
	uvs := [4]geom.Vector2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	m := c.world[bone].Mul(geom.NewTRSMatrix4(
		&geom.Vector3{X: a.X, Y: a.Y},
		rotationZ(a.Rotation),
		&geom.Vector3{X: a.ScaleX, Y: a.ScaleY, Z: 1},
	))
	for i := range corners {
		v, err := c.boundVertex(m.ApplyTo(&corners[i]), uvs[i], a.Path, bone)
		if err != nil {
			return err
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}
	mesh.Indices = []uint32{0, 1, 2, 2, 3, 0}
	return nil
}

func (c *spineToRig) meshVertices(mesh *rig.Mesh, a *spine.Attachment, bone int) error {
	for i := 0; i < a.VertexCount(); i++ {
		p := c.world[bone].ApplyTo(&geom.Vector3{X: a.Vertices[i*2], Y: a.Vertices[i*2+1]})
		v, err := c.boundVertex(p, geom.Vector2{X: a.UVs[i*2], Y: a.UVs[i*2+1]}, a.Path, bone)
		if err != nil {
			return err
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}
	mesh.Indices = triangleIndices(a.Triangles)
	return nil
}

func (c *spineToRig) weightedVertices(mesh *rig.Mesh, a *spine.Attachment) error {
	weights, err := a.Weights()
	if err != nil {
		return err
	}
	for i, ws := range weights {
		var pos geom.Vector3
		infs := make([]skin.Influence, len(ws))
		for j, w := range ws {
			if w.Bone < 0 || w.Bone >= len(c.world) {
				return fmt.Errorf("%w: vertex %d uses bone %d", rig.ErrUnknownBoneReference, i, w.Bone)
			}
			p := c.world[w.Bone].ApplyTo(&geom.Vector3{X: w.X, Y: w.Y})
			pos = *pos.Add(p.Scale(w.Weight))
			infs[j] = skin.Influence{Bone: w.Bone, Weight: w.Weight}
		}
		v := rig.Vertex{Position: pos, UV: c.Atlas.MapUV(a.Path, geom.Vector2{X: a.UVs[i*2], Y: a.UVs[i*2+1]})}
		slots, err := skin.Resolve(infs, c.order.Remap)
		if err != nil {
			return err
		}
		slots.Apply(&v)
		mesh.Vertices = append(mesh.Vertices, v)
	}
	mesh.Indices = triangleIndices(a.Triangles)
	return nil
}

func triangleIndices(tris []int) []uint32 {
	out := make([]uint32, len(tris))
	for i, t := range tris {
		out[i] = uint32(t)
	}
	return out
}

func (c *spineToRig) convertAnimation(a *spine.Animation) (rig.Clip, []pendingTrack, error) {
	duration := a.Duration()
	tl := transform.Timeline{Duration: duration, SampleRate: c.SampleRate}
	clip := rig.Clip{
		ID:          rig.HashString(a.Name),
		Name:        a.Name,
		Duration:    duration,
		SampleRate:  c.SampleRate,
		SampleCount: tl.SampleCount(),
	}
	what := fmt.Sprintf("animation %q", a.Name)

	var tracks []pendingTrack
	for _, bt := range a.Bones {
		p := pendingTrack{bone: c.boneByName(bt.Bone), name: bt.Bone}
		setup := &spine.Bone{ScaleX: 1, ScaleY: 1}
		if p.bone >= 0 {
			setup = c.src.Bones[c.order.Canonical[p.bone]]
		} else if err := c.unknownBone(what, bt.Bone); err != nil {
			return clip, nil, err
		}
		comps := boneComponents(bt, setup, tl)
		if comps.Empty() {
			continue
		}
		p.track = rig.Track{Positions: comps.Positions, Rotations: comps.Rotations, Scale: comps.Scale}
		tracks = append(tracks, p)
	}

	for _, it := range a.IKs {
		di := c.src.IKIndex(it.IK)
		if di < 0 || c.ikIndex[di] < 0 {
			if di < 0 {
				if err := c.unknownBone(what, it.IK); err != nil {
					return clip, nil, err
				}
			}
			continue
		}
		ik := c.skel.IKs[c.ikIndex[di]]
		t := rig.IKTrack{IKIndex: uint32(c.ikIndex[di])}
		if len(it.Mix) > 0 {
			t.Mix = track.Sample(ik.Mix, it.Mix, tl.Duration, tl.SampleRate, track.LerpFloat)
		}
		if len(it.BendPositive) > 0 {
			t.Positive = track.Sample(ik.Positive, it.BendPositive, tl.Duration, tl.SampleRate, track.Hold[bool])
		}
		clip.IKTracks = append(clip.IKTracks, t)
	}

	slotTracks, err := c.slotTracks(a, tl)
	if err != nil {
		return clip, nil, err
	}
	clip.SlotTracks = slotTracks
	clip.EventTracks = eventTracks(a)
	return clip, tracks, nil
}

// boneComponents applies timeline keys on top of the setup pose: rotate
// adds degrees, translate adds an offset and scale multiplies.
func boneComponents(bt *spine.BoneTimeline, setup *spine.Bone, tl transform.Timeline) transform.Components {
	bind := transform.Bind{
		Position: geom.Vector3{X: setup.X, Y: setup.Y},
		Rotation: *rotationZ(setup.Rotation),
		Scale:    geom.Vector3{X: setup.ScaleX, Y: setup.ScaleY, Z: 1},
	}

	var srt transform.SRTKeys
	for _, k := range bt.Translate {
		srt.Positions = append(srt.Positions, track.Key[geom.Vector3]{
			Time:          k.Time,
			Value:         geom.Vector3{X: setup.X + k.Value.X, Y: setup.Y + k.Value.Y},
			Interpolation: k.Interpolation,
			Curve:         k.Curve,
		})
	}
	for _, k := range bt.Scale {
		srt.Scale = append(srt.Scale, track.Key[geom.Vector3]{
			Time:          k.Time,
			Value:         geom.Vector3{X: setup.ScaleX * k.Value.X, Y: setup.ScaleY * k.Value.Y, Z: 1},
			Interpolation: k.Interpolation,
			Curve:         k.Curve,
		})
	}
	comps := transform.FromSRT(srt, bind, tl)

	if len(bt.Rotate) > 0 {
		keys := make([]track.Key[float32], len(bt.Rotate))
		for i, k := range bt.Rotate {
			keys[i] = k
			keys[i].Value = setup.Rotation + k.Value
		}
		comps.Rotations = transform.FromEulerChannels(
			transform.AxisChannels{Z: keys},
			geom.Vector3{Z: setup.Rotation},
			geom.RotationOrderXYZ,
			tl,
		)
	}
	return comps
}

func (c *spineToRig) slotTracks(a *spine.Animation, tl transform.Timeline) ([]rig.SlotTrack, error) {
	bySlot := map[int]*rig.SlotTrack{}
	get := func(si int) *rig.SlotTrack {
		t, ok := bySlot[si]
		if !ok {
			t = &rig.SlotTrack{SlotIndex: uint32(si)}
			bySlot[si] = t
		}
		return t
	}

	for _, st := range a.Slots {
		si := c.src.SlotIndex(st.Slot)
		if si < 0 {
			return nil, fmt.Errorf("%w: animation %q uses unknown slot %q", rig.ErrInvalidSource, a.Name, st.Slot)
		}
		slot := c.src.Slots[si]
		t := get(si)
		if len(st.Attachment) > 0 {
			keys := make([]track.Key[uint64], len(st.Attachment))
			for i, k := range st.Attachment {
				keys[i] = track.Key[uint64]{Time: k.Time, Value: rig.HashString(k.Value), Interpolation: track.Stepped}
			}
			t.Attachments = track.Sample(rig.HashString(slot.Attachment), keys, tl.Duration, tl.SampleRate, track.Hold[uint64])
		}
		if len(st.Color) > 0 {
			t.Colors = track.Sample(slot.Color, st.Color, tl.Duration, tl.SampleRate, track.LerpVector4)
		}
	}

	// Draw order keys list only the slots that move; every other slot is at
	// offset 0 for that key.
	moved := make([]bool, len(c.src.Slots))
	for _, k := range a.DrawOrder {
		for _, o := range k.Offsets {
			si := c.src.SlotIndex(o.Slot)
			if si < 0 {
				return nil, fmt.Errorf("%w: draw order uses unknown slot %q", rig.ErrInvalidSource, o.Slot)
			}
			moved[si] = true
		}
	}
	for si, m := range moved {
		if !m {
			continue
		}
		name := c.src.Slots[si].Name
		keys := make([]track.Key[int32], len(a.DrawOrder))
		for i, k := range a.DrawOrder {
			keys[i] = track.Key[int32]{Time: k.Time, Interpolation: track.Stepped}
			for _, o := range k.Offsets {
				if o.Slot == name {
					keys[i].Value = int32(o.Offset)
				}
			}
		}
		get(si).DrawOrder = track.Sample(0, keys, tl.Duration, tl.SampleRate, track.Hold[int32])
	}

	out := make([]rig.SlotTrack, 0, len(bySlot))
	for _, t := range bySlot {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out, nil
}

// eventTracks groups event keys by event name in order of first use.
func eventTracks(a *spine.Animation) []rig.EventTrack {
	var out []rig.EventTrack
	index := map[string]int{}
	for _, k := range a.Events {
		i, ok := index[k.Name]
		if !ok {
			i = len(out)
			index[k.Name] = i
			out = append(out, rig.EventTrack{ID: rig.HashString(k.Name)})
		}
		out[i].Keys = append(out[i].Keys, rig.EventKey{
			T:       k.Time,
			Integer: k.Int,
			Float:   k.Float,
			String:  rig.HashString(k.String),
		})
	}
	return out
}
