package converter

import (
	"fmt"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/hierarchy"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/scene"
	"github.com/binzume/rigconv/skin"
	"github.com/binzume/rigconv/track"
	"github.com/binzume/rigconv/transform"
)

// SyntheticRootName names the bone inserted above several top-level joints.
const SyntheticRootName = "root"

var white = geom.Vector4{X: 1, Y: 1, Z: 1, W: 1}

type sceneToRig struct {
	*CompilationContext
	src *scene.Scene

	world   []*geom.Matrix4
	// joint node index -> transform from its node parent space to bone space
	offsets map[int]*geom.Matrix4
	joints  []int       // authoring bone index -> node index, -1 for a synthetic root
	jointOf map[int]int // node index -> authoring bone index
	parents []int
	order   *hierarchy.Order
	skel    *rig.Skeleton
}

func NewSceneToRigConverter(ctx *CompilationContext) *sceneToRig {
	return &sceneToRig{CompilationContext: ctx}
}

// CompileScene compiles a node-tree scene into runtime records.
func CompileScene(ctx *CompilationContext, src *scene.Scene) (*rig.Result, error) {
	return NewSceneToRigConverter(ctx).Convert(src)
}

func (c *sceneToRig) Convert(src *scene.Scene) (*rig.Result, error) {
	c.src = src
	if err := c.computeWorld(); err != nil {
		return nil, err
	}
	if err := c.buildSkeleton(); err != nil {
		return nil, err
	}
	c.setBones(c.skel)

	meshSets, err := c.buildMeshes()
	if err != nil {
		return nil, err
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
	c.Log.Debug("compiled scene", "bones", len(c.skel.Bones), "clips", len(clips))
	return res, Validate(c.CompilationContext, res)
}

func (c *sceneToRig) computeWorld() error {
	nodes := c.src.Nodes
	c.world = make([]*geom.Matrix4, len(nodes))
	state := make([]int8, len(nodes))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case 1:
			return fmt.Errorf("%w: node %q is part of a parent cycle", rig.ErrMalformedHierarchy, nodes[i].ID)
		case 2:
			return nil
		}
		state[i] = 1
		n := nodes[i]
		m := n.Transform.Clone()
		if n.Parent != scene.NoParent {
			if n.Parent < 0 || n.Parent >= len(nodes) {
				return fmt.Errorf("%w: node %q has unresolvable parent %d", rig.ErrMalformedHierarchy, n.ID, n.Parent)
			}
			if err := visit(n.Parent); err != nil {
				return err
			}
			m = c.world[n.Parent].Mul(m)
		}
		c.world[i] = m
		state[i] = 2
		return nil
	}
	for i := range nodes {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

func (c *sceneToRig) buildSkeleton() error {
	c.joints = nil
	for i, n := range c.src.Nodes {
		if n.Joint {
			c.joints = append(c.joints, i)
		}
	}
	if len(c.joints) == 0 {
		return fmt.Errorf("%w: scene has no joints", rig.ErrMalformedHierarchy)
	}

	roots := 0
	c.parents = make([]int, len(c.joints))
	c.jointOf = map[int]int{}
	for b, n := range c.joints {
		c.jointOf[n] = b
	}
	for b, n := range c.joints {
		c.parents[b] = hierarchy.NoParent
		if p := c.src.JointParent(n); p != scene.NoParent {
			c.parents[b] = c.jointOf[p]
		} else {
			roots++
		}
	}
	if roots > 1 {
		c.joints = append([]int{-1}, c.joints...)
		parents := []int{hierarchy.NoParent}
		for _, p := range c.parents {
			parents = append(parents, p+1)
		}
		c.parents = parents
		for n, b := range c.jointOf {
			c.jointOf[n] = b + 1
		}
		c.Log.Debug("inserted synthetic root", "roots", roots)
	}

	order, err := hierarchy.Normalize(c.parents)
	if err != nil {
		return err
	}
	c.order = order

	c.offsets = map[int]*geom.Matrix4{}
	local := make([]*geom.Matrix4, len(c.joints))
	for b, n := range c.joints {
		if n < 0 {
			local[b] = geom.NewMatrix4()
			continue
		}
		local[b] = c.src.Nodes[n].Transform.Clone()
		if off := c.bindOffset(b, n); off != nil {
			c.offsets[n] = off
			local[b] = off.Mul(local[b])
		}
	}

	firstChild := make([]int, len(c.joints))
	for b := range firstChild {
		firstChild[b] = -1
	}
	for b, p := range c.parents {
		if p != hierarchy.NoParent && firstChild[p] < 0 {
			firstChild[p] = b
		}
	}

	c.skel = &rig.Skeleton{Bones: make([]rig.Bone, len(c.joints))}
	names := map[string]bool{}
	for i, b := range order.Canonical {
		name := SyntheticRootName
		if n := c.joints[b]; n >= 0 {
			name = c.src.Nodes[n].Name
		}
		if names[name] {
			return fmt.Errorf("%w: several joints are named %q", rig.ErrInvalidSource, name)
		}
		names[name] = true
		pos, rot, scale := local[b].Decompose()
		bone := rig.Bone{
			ID:           rig.HashString(name),
			Name:         name,
			Parent:       rig.RootParent,
			Position:     *pos,
			Rotation:     *rot,
			Scale:        *scale,
			Axis:         geom.Vector3{X: 1},
			InheritScale: true,
		}
		if p := order.Parent(c.parents, i); p != hierarchy.NoParent {
			bone.Parent = uint16(p)
		}
		if ch := firstChild[b]; ch >= 0 {
			tip := geom.Vector3{X: local[ch][12], Y: local[ch][13], Z: local[ch][14]}
			bone.Length = tip.Len()
			if bone.Length == 0 {
				c.Log.Debug("degenerate bone axis", "bone", name)
			}
			bone.Axis = *tip.Normalize()
		}
		c.skel.Bones[i] = bone
	}
	return nil
}

// bindOffset maps the parent space of node n into the space of its bone's
// parent joint. It is nil when the node parent is that joint, or when n is a
// top-level node.
func (c *sceneToRig) bindOffset(b, n int) *geom.Matrix4 {
	p := c.src.Nodes[n].Parent
	if p == scene.NoParent {
		return nil
	}
	jp := -1
	if c.parents[b] != hierarchy.NoParent {
		jp = c.joints[c.parents[b]]
	}
	switch {
	case p == jp:
		return nil
	case jp < 0:
		return c.world[p].Clone()
	default:
		return c.world[jp].Inverse().Mul(c.world[p])
	}
}

// toBoneSpace re-expresses node-local samples in bone space. Scale is
// multiplied component-wise, which is exact for uniformly scaled parents.
func toBoneSpace(comps *transform.Components, off *geom.Matrix4) {
	_, rot, scale := off.Decompose()
	for i := range comps.Positions {
		comps.Positions[i] = *off.ApplyTo(&comps.Positions[i])
	}
	for i := range comps.Rotations {
		comps.Rotations[i] = *rot.Mul(&comps.Rotations[i]).Normalize()
	}
	for i := range comps.Scale {
		comps.Scale[i] = *scale.Mul(&comps.Scale[i])
	}
}

func (c *sceneToRig) buildMeshes() ([]rig.MeshSet, error) {
	if n := len(c.src.Geometries); n != 1 {
		return nil, fmt.Errorf("%w: scene has %d geometries, want 1", rig.ErrUnsupportedGeometryCount, n)
	}
	g := c.src.Geometries[0]

	var jointBones []int
	bindShape := geom.NewMatrix4()
	if g.Skin != nil {
		bindShape = &g.Skin.BindShape
		for _, j := range g.Skin.Joints {
			b, ok := c.jointOf[c.src.NodeIndex(j)]
			if !ok {
				return nil, fmt.Errorf("%w: skin joint %q is not a joint node", rig.ErrUnknownBoneReference, j)
			}
			jointBones = append(jointBones, b)
		}
	}

	name := g.Name
	if name == "" {
		name = c.Asset
	}
	set := rig.MeshSet{ID: rig.HashString(name), SlotCount: len(g.Primitives)}
	for pi, p := range g.Primitives {
		mesh, err := c.convertPrimitive(g, p, bindShape, jointBones)
		if err != nil {
			return nil, err
		}
		mesh.ID = rig.HashString(fmt.Sprintf("%s#%d", name, pi))
		mesh.SlotIndex = pi
		mesh.DrawOrder = pi
		set.Meshes = append(set.Meshes, *mesh)
	}
	return []rig.MeshSet{set}, nil
}

func cornerIndex(p *scene.Primitive, corner, offset int) int {
	if offset < 0 {
		return -1
	}
	return p.Indices[corner*p.Stride+offset]
}

func (c *sceneToRig) convertPrimitive(g *scene.Geometry, p *scene.Primitive, bindShape *geom.Matrix4, jointBones []int) (*rig.Mesh, error) {
	type corner struct{ pos, nrm, uv int }
	mesh := &rig.Mesh{Visible: true, Color: white}
	seen := map[corner]uint32{}
	for ci := 0; ci < p.CornerCount(); ci++ {
		k := corner{
			pos: cornerIndex(p, ci, p.PositionOffset),
			nrm: cornerIndex(p, ci, p.NormalOffset),
			uv:  cornerIndex(p, ci, p.UVOffset),
		}
		if vi, ok := seen[k]; ok {
			mesh.Indices = append(mesh.Indices, vi)
			continue
		}
		if k.pos < 0 || k.pos >= len(g.Positions) || k.nrm >= len(g.Normals) || k.uv >= len(g.UVs) {
			return nil, fmt.Errorf("%w: geometry %q corner %d is out of range", rig.ErrInvalidSource, g.Name, ci)
		}

		v := rig.Vertex{Position: *bindShape.ApplyTo(&g.Positions[k.pos])}
		if k.uv >= 0 {
			v.UV = g.UVs[k.uv]
		}
		slots, err := c.resolveInfluences(g, k.pos, jointBones)
		if err != nil {
			return nil, err
		}
		slots.Apply(&v)

		vi := uint32(len(mesh.Vertices))
		seen[k] = vi
		mesh.Vertices = append(mesh.Vertices, v)
		if k.nrm >= 0 {
			mesh.Normals = append(mesh.Normals, *bindShape.ApplyToDirection(&g.Normals[k.nrm]).Normalize())
		}
		mesh.Indices = append(mesh.Indices, vi)
	}
	if len(mesh.Normals) != len(mesh.Vertices) {
		mesh.Normals = nil
	}
	return mesh, nil
}

func (c *sceneToRig) resolveInfluences(g *scene.Geometry, pos int, jointBones []int) (skin.Slots, error) {
	if g.Skin == nil || pos >= len(g.Skin.Influences) {
		return skin.Resolve(nil, c.order.Remap)
	}
	src := g.Skin.Influences[pos]
	infs := make([]skin.Influence, len(src))
	for i, inf := range src {
		if inf.Joint < 0 || inf.Joint >= len(jointBones) {
			return skin.Slots{}, fmt.Errorf("%w: influence joint %d of geometry %q", rig.ErrUnknownBoneReference, inf.Joint, g.Name)
		}
		infs[i] = skin.Influence{Bone: jointBones[inf.Joint], Weight: inf.Weight}
	}
	return skin.Resolve(infs, c.order.Remap)
}

// nodeChannels groups the channels that animate one node.
type nodeChannels struct {
	node        string
	matrix      *scene.Channel
	translation *scene.Channel
	rotation    *scene.Channel
	scale       *scene.Channel
	translate   [3]*scene.Channel
	rotate      [3]*scene.Channel
	scaleAxes   [3]*scene.Channel
}

func (n *nodeChannels) set(prop string, ch *scene.Channel) {
	switch prop {
	case scene.PropMatrix:
		n.matrix = ch
	case scene.PropTranslation:
		n.translation = ch
	case scene.PropRotation:
		n.rotation = ch
	case scene.PropScale:
		n.scale = ch
	case scene.PropTranslationX:
		n.translate[0] = ch
	case scene.PropTranslationY:
		n.translate[1] = ch
	case scene.PropTranslationZ:
		n.translate[2] = ch
	case scene.PropRotationX:
		n.rotate[0] = ch
	case scene.PropRotationY:
		n.rotate[1] = ch
	case scene.PropRotationZ:
		n.rotate[2] = ch
	case scene.PropScaleX:
		n.scaleAxes[0] = ch
	case scene.PropScaleY:
		n.scaleAxes[1] = ch
	case scene.PropScaleZ:
		n.scaleAxes[2] = ch
	}
}

func anyChannel(chs [3]*scene.Channel) bool {
	return chs[0] != nil || chs[1] != nil || chs[2] != nil
}

func floatKeys(ch *scene.Channel) []track.Key[float32] {
	if ch == nil {
		return nil
	}
	return scene.Keys(ch, scene.DecodeFloat)
}

func axisChannels(chs [3]*scene.Channel) transform.AxisChannels {
	return transform.AxisChannels{X: floatKeys(chs[0]), Y: floatKeys(chs[1]), Z: floatKeys(chs[2])}
}

func (c *sceneToRig) convertAnimation(a *scene.Animation) (rig.Clip, []pendingTrack, error) {
	name := a.Name
	if name == "" {
		name = "default"
	}

	var groups []*nodeChannels
	byNode := map[string]*nodeChannels{}
	var duration float32
	for _, ch := range a.Channels {
		if err := ch.Validate(); err != nil {
			return rig.Clip{}, nil, fmt.Errorf("animation %q: %w", name, err)
		}
		node, prop := ch.Split()
		g, ok := byNode[node]
		if !ok {
			g = &nodeChannels{node: node}
			byNode[node] = g
			groups = append(groups, g)
		}
		g.set(prop, ch)
		if d := ch.Duration(); d > duration {
			duration = d
		}
	}

	tl := transform.Timeline{Duration: duration, SampleRate: c.SampleRate}
	clip := rig.Clip{
		ID:          rig.HashString(name),
		Name:        name,
		Duration:    duration,
		SampleRate:  c.SampleRate,
		SampleCount: tl.SampleCount(),
	}

	var tracks []pendingTrack
	for _, g := range groups {
		p := pendingTrack{bone: -1, name: g.node}
		bind := transform.IdentityBind()
		n := c.src.NodeIndex(g.node)
		if b, ok := c.jointOf[n]; ok && n >= 0 {
			p.name = c.src.Nodes[n].Name
			p.bone = c.order.Remap[b]
		}
		off := c.offsets[n]
		switch {
		case p.bone < 0:
			if err := c.unknownBone(fmt.Sprintf("animation %q", name), g.node); err != nil {
				return rig.Clip{}, nil, err
			}
		case off != nil:
			// channels animate the node in its own parent space
			pos, rot, scale := c.src.Nodes[n].Transform.Decompose()
			bind = transform.Bind{Position: *pos, Rotation: *rot, Scale: *scale}
		default:
			b := &c.skel.Bones[p.bone]
			bind = transform.Bind{Position: b.Position, Rotation: b.Rotation, Scale: b.Scale}
		}

		comps := c.convertNode(g, bind, tl)
		if comps.Empty() {
			continue
		}
		if p.bone >= 0 && off != nil {
			toBoneSpace(&comps, off)
		}
		p.track = rig.Track{Positions: comps.Positions, Rotations: comps.Rotations, Scale: comps.Scale}
		tracks = append(tracks, p)
	}
	return clip, tracks, nil
}

func (c *sceneToRig) convertNode(g *nodeChannels, bind transform.Bind, tl transform.Timeline) transform.Components {
	if g.matrix != nil {
		if g.translation != nil || g.rotation != nil || g.scale != nil ||
			anyChannel(g.translate) || anyChannel(g.rotate) || anyChannel(g.scaleAxes) {
			c.Log.Warn("matrix channel overrides other channels", "node", g.node)
		}
		return transform.FromMatrices(scene.Keys(g.matrix, scene.DecodeMatrix), bind, tl)
	}

	var comps transform.Components
	var srt transform.SRTKeys
	if g.translation != nil {
		srt.Positions = scene.Keys(g.translation, scene.DecodeVector3)
	}
	if g.rotation != nil {
		srt.Rotations = scene.Keys(g.rotation, scene.DecodeQuaternion)
	}
	if g.scale != nil {
		srt.Scale = scene.Keys(g.scale, scene.DecodeVector3)
	}
	composite := transform.FromSRT(srt, bind, tl)

	comps.Positions = composite.Positions
	if comps.Positions == nil {
		comps.Positions = transform.FromAxisVectors(axisChannels(g.translate), bind.Position, tl)
	} else if anyChannel(g.translate) {
		c.Log.Warn("composite translation overrides per-axis channels", "node", g.node)
	}

	comps.Rotations = composite.Rotations
	if comps.Rotations == nil {
		bindDeg := transform.BindEulerDegrees(&bind.Rotation, c.RotationOrder)
		comps.Rotations = transform.FromEulerChannels(axisChannels(g.rotate), bindDeg, c.RotationOrder, tl)
	} else if anyChannel(g.rotate) {
		c.Log.Warn("composite rotation overrides per-axis channels", "node", g.node)
	}

	comps.Scale = composite.Scale
	if comps.Scale == nil {
		comps.Scale = transform.FromAxisVectors(axisChannels(g.scaleAxes), bind.Scale, tl)
	} else if anyChannel(g.scaleAxes) {
		c.Log.Warn("composite scale overrides per-axis channels", "node", g.node)
	}
	return comps
}
