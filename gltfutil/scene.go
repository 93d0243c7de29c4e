package gltfutil

import (
	"fmt"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/logger"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/scene"
	"github.com/binzume/rigconv/track"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// LoadScene reads a .gltf or .glb file as a node-tree scene.
func LoadScene(path string, log logger.Logger) (*scene.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	s, err := SceneFromDocument(doc, log)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s", path)
	}
	return s, nil
}

type importer struct {
	doc *gltf.Document
	log logger.Logger
	s   *scene.Scene
}

// SceneFromDocument converts glTF nodes, skinned meshes and TRS animation
// channels. Joints are the nodes listed by any skin.
func SceneFromDocument(doc *gltf.Document, log logger.Logger) (*scene.Scene, error) {
	if log == nil {
		log = logger.Nop()
	}
	imp := &importer{doc: doc, log: log, s: &scene.Scene{UpAxis: "Y"}}
	if err := imp.convertNodes(); err != nil {
		return nil, err
	}
	if err := imp.applyBindPose(); err != nil {
		return nil, err
	}
	if err := imp.convertMeshes(); err != nil {
		return nil, err
	}
	for _, a := range doc.Animations {
		anim, err := imp.convertAnimation(a)
		if err != nil {
			return nil, err
		}
		imp.s.Animations = append(imp.s.Animations, anim)
	}
	return imp.s, nil
}

func nodeID(doc *gltf.Document, i int) string {
	name := doc.Nodes[i].Name
	if name == "" {
		return fmt.Sprintf("node_%d", i)
	}
	for j, n := range doc.Nodes {
		if j != i && n.Name == name {
			return fmt.Sprintf("%s_%d", name, i)
		}
	}
	return name
}

var identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func nodeMatrix(n *gltf.Node) *geom.Matrix4 {
	if n.Matrix != ([16]float32{}) && n.Matrix != identityMatrix {
		return geom.NewMatrix4FromSlice(n.Matrix[:])
	}
	rot := geom.NewQuaternionFromArray(n.Rotation)
	if n.Rotation == [4]float32{} {
		rot = geom.NewQuaternion(0, 0, 0, 1)
	}
	scale := geom.NewVector3FromArray(n.Scale)
	if n.Scale == [3]float32{} {
		scale = geom.NewVector3(1, 1, 1)
	}
	return geom.NewTRSMatrix4(geom.NewVector3FromArray(n.Translation), rot, scale)
}

func (imp *importer) convertNodes() error {
	doc := imp.doc
	joints := map[uint32]bool{}
	for _, skin := range doc.Skins {
		for _, j := range skin.Joints {
			joints[j] = true
		}
	}
	for i, n := range doc.Nodes {
		id := nodeID(doc, i)
		name := n.Name
		if name == "" {
			name = id
		}
		imp.s.Nodes = append(imp.s.Nodes, &scene.Node{
			ID:        id,
			Name:      name,
			Parent:    scene.NoParent,
			Joint:     joints[uint32(i)],
			Transform: *nodeMatrix(n),
		})
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) >= len(imp.s.Nodes) {
				return fmt.Errorf("%w: node %d has unresolvable child %d", rig.ErrMalformedHierarchy, i, c)
			}
			child := imp.s.Nodes[c]
			if child.Parent != scene.NoParent {
				return fmt.Errorf("%w: node %q has several parents", rig.ErrMalformedHierarchy, child.ID)
			}
			child.Parent = i
		}
	}
	return nil
}

// bindWorlds reads the skins' inverse bind matrices as joint world
// transforms. The first skin listing a joint wins.
func (imp *importer) bindWorlds() (map[int]*geom.Matrix4, error) {
	doc := imp.doc
	bind := map[int]*geom.Matrix4{}
	for _, skin := range doc.Skins {
		if skin.InverseBindMatrices == nil {
			continue
		}
		if int(*skin.InverseBindMatrices) >= len(doc.Accessors) {
			return nil, fmt.Errorf("%w: skin %q has missing inverse bind matrices", rig.ErrInvalidSource, skin.Name)
		}
		data, err := modeler.ReadAccessor(doc, doc.Accessors[*skin.InverseBindMatrices], nil)
		if err != nil {
			return nil, errors.Wrap(err, "read inverse bind matrices")
		}
		mats, ok := data.([][4][4]float32)
		if !ok || len(mats) != len(skin.Joints) {
			return nil, fmt.Errorf("%w: skin %q inverse bind matrices do not match its joints", rig.ErrInvalidSource, skin.Name)
		}
		for i, j := range skin.Joints {
			if _, ok := bind[int(j)]; ok {
				continue
			}
			var m geom.Matrix4
			for c := range mats[i] {
				copy(m[c*4:c*4+4], mats[i][c][:])
			}
			if m.Det() == 0 {
				imp.log.Warn("singular inverse bind matrix", "joint", j)
				continue
			}
			bind[int(j)] = m.Inverse()
		}
	}
	return bind, nil
}

// applyBindPose replaces the rest transforms of skinned joints with the bind
// pose given by the inverse bind matrices, so that each joint's world
// transform equals its bind world in mesh space. Other nodes keep their
// local transforms.
func (imp *importer) applyBindPose() error {
	bind, err := imp.bindWorlds()
	if err != nil || len(bind) == 0 {
		return err
	}
	nodes := imp.s.Nodes
	world := make([]*geom.Matrix4, len(nodes))
	var visit func(i int, depth int) *geom.Matrix4
	visit = func(i int, depth int) *geom.Matrix4 {
		if world[i] != nil {
			return world[i]
		}
		var parent *geom.Matrix4
		if p := nodes[i].Parent; p != scene.NoParent && depth < len(nodes) {
			parent = visit(p, depth+1)
		}
		if b, ok := bind[i]; ok {
			world[i] = b
			if parent != nil {
				nodes[i].Transform = *parent.Inverse().Mul(b)
			} else {
				nodes[i].Transform = *b
			}
		} else if parent != nil {
			world[i] = parent.Mul(&nodes[i].Transform)
		} else {
			world[i] = nodes[i].Transform.Clone()
		}
		return world[i]
	}
	for i := range nodes {
		visit(i, 0)
	}
	return nil
}

// convertMeshes imports the meshes of skinned nodes, or of every mesh node
// when nothing is skinned.
func (imp *importer) convertMeshes() error {
	doc := imp.doc
	var nodes []int
	for i, n := range doc.Nodes {
		if n.Mesh != nil && n.Skin != nil {
			nodes = append(nodes, i)
		}
	}
	if len(nodes) == 0 {
		for i, n := range doc.Nodes {
			if n.Mesh != nil {
				nodes = append(nodes, i)
			}
		}
	}
	for _, i := range nodes {
		n := doc.Nodes[i]
		if int(*n.Mesh) >= len(doc.Meshes) {
			return fmt.Errorf("%w: node %d has missing mesh %d", rig.ErrInvalidSource, i, *n.Mesh)
		}
		g, err := imp.convertMesh(doc.Meshes[*n.Mesh])
		if err != nil {
			return err
		}
		if g.Name == "" {
			g.Name = imp.s.Nodes[i].ID
		}
		if n.Skin != nil {
			g.Skin.Joints = nil
			if int(*n.Skin) >= len(doc.Skins) {
				return fmt.Errorf("%w: node %d has missing skin %d", rig.ErrInvalidSource, i, *n.Skin)
			}
			for _, j := range doc.Skins[*n.Skin].Joints {
				if int(j) >= len(imp.s.Nodes) {
					return fmt.Errorf("%w: skin joint %d is not a node", rig.ErrUnknownBoneReference, j)
				}
				g.Skin.Joints = append(g.Skin.Joints, imp.s.Nodes[j].ID)
			}
		} else {
			g.Skin = nil
		}
		imp.s.Geometries = append(imp.s.Geometries, g)
	}
	return nil
}

func (imp *importer) convertMesh(m *gltf.Mesh) (*scene.Geometry, error) {
	doc := imp.doc
	g := &scene.Geometry{Name: m.Name, Skin: &scene.Skin{BindShape: *geom.NewMatrix4()}}
	for _, p := range m.Primitives {
		a, ok := p.Attributes["POSITION"]
		if !ok {
			continue
		}
		pos, err := modeler.ReadPosition(doc, doc.Accessors[a], nil)
		if err != nil {
			return nil, errors.Wrap(err, "read POSITION")
		}
		prim := &scene.Primitive{Stride: 3, PositionOffset: 0, NormalOffset: -1, UVOffset: -1}
		posBase, nrmBase, uvBase := len(g.Positions), len(g.Normals), len(g.UVs)
		for _, v := range pos {
			g.Positions = append(g.Positions, *geom.NewVector3FromArray(v))
		}

		if a, ok := p.Attributes["NORMAL"]; ok {
			nrm, err := modeler.ReadNormal(doc, doc.Accessors[a], nil)
			if err != nil {
				return nil, errors.Wrap(err, "read NORMAL")
			}
			if len(nrm) == len(pos) {
				prim.NormalOffset = 1
				for _, v := range nrm {
					g.Normals = append(g.Normals, *geom.NewVector3FromArray(v))
				}
			}
		}
		if a, ok := p.Attributes["TEXCOORD_0"]; ok {
			uv, err := modeler.ReadTextureCoord(doc, doc.Accessors[a], nil)
			if err != nil {
				return nil, errors.Wrap(err, "read TEXCOORD_0")
			}
			if len(uv) == len(pos) {
				prim.UVOffset = 2
				for _, v := range uv {
					g.UVs = append(g.UVs, geom.Vector2{X: v[0], Y: v[1]})
				}
			}
		}

		infs, err := imp.readInfluences(p, len(pos))
		if err != nil {
			return nil, err
		}
		g.Skin.Influences = append(g.Skin.Influences, infs...)

		var indices []uint32
		if p.Indices != nil {
			indices, err = modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
			if err != nil {
				return nil, errors.Wrap(err, "read indices")
			}
		} else {
			for i := range pos {
				indices = append(indices, uint32(i))
			}
		}
		for _, i := range indices {
			if int(i) >= len(pos) {
				return nil, fmt.Errorf("%w: mesh %q index %d out of range", rig.ErrInvalidSource, m.Name, i)
			}
			prim.Indices = append(prim.Indices, posBase+int(i), nrmBase+int(i), uvBase+int(i))
		}
		if prim.CornerCount()%3 != 0 {
			return nil, fmt.Errorf("%w: mesh %q is not a triangle list", rig.ErrInvalidSource, m.Name)
		}
		g.Primitives = append(g.Primitives, prim)
	}
	return g, nil
}

// readInfluences reads JOINTS_n / WEIGHTS_n pairs. Zero weights are dropped.
func (imp *importer) readInfluences(p *gltf.Primitive, count int) ([][]scene.Influence, error) {
	doc := imp.doc
	out := make([][]scene.Influence, count)
	for set := 0; ; set++ {
		ja, ok1 := p.Attributes[fmt.Sprintf("JOINTS_%d", set)]
		wa, ok2 := p.Attributes[fmt.Sprintf("WEIGHTS_%d", set)]
		if !ok1 || !ok2 {
			break
		}
		joints, err := modeler.ReadJoints(doc, doc.Accessors[ja], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "read JOINTS_%d", set)
		}
		weights, err := modeler.ReadWeights(doc, doc.Accessors[wa], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "read WEIGHTS_%d", set)
		}
		if len(joints) != count || len(weights) != count {
			return nil, fmt.Errorf("%w: JOINTS_%d / WEIGHTS_%d count mismatch", rig.ErrInvalidSource, set, set)
		}
		for v := range out {
			for k := 0; k < 4; k++ {
				if weights[v][k] > 0 {
					out[v] = append(out[v], scene.Influence{Joint: int(joints[v][k]), Weight: weights[v][k]})
				}
			}
		}
	}
	return out, nil
}

func (imp *importer) convertAnimation(a *gltf.Animation) (*scene.Animation, error) {
	doc := imp.doc
	anim := &scene.Animation{Name: a.Name}
	for _, ch := range a.Channels {
		if ch.Sampler == nil || ch.Target.Node == nil || int(*ch.Sampler) >= len(a.Samplers) {
			continue
		}
		if int(*ch.Target.Node) >= len(imp.s.Nodes) {
			return nil, fmt.Errorf("%w: animation %q targets missing node %d", rig.ErrInvalidSource, a.Name, *ch.Target.Node)
		}
		var prop string
		switch ch.Target.Path {
		case gltf.TRSTranslation:
			prop = scene.PropTranslation
		case gltf.TRSRotation:
			prop = scene.PropRotation
		case gltf.TRSScale:
			prop = scene.PropScale
		default:
			imp.log.Debug("skipping animation channel", "path", ch.Target.Path)
			continue
		}
		sampler := a.Samplers[*ch.Sampler]
		out := &scene.Channel{Target: imp.s.Nodes[*ch.Target.Node].ID + "/" + prop}

		if sampler.Input != nil {
			input, err := modeler.ReadAccessor(doc, doc.Accessors[*sampler.Input], nil)
			if err != nil {
				return nil, errors.Wrap(err, "read animation input")
			}
			times, ok := input.([]float32)
			if !ok {
				return nil, fmt.Errorf("%w: animation input is %T", rig.ErrInvalidSource, input)
			}
			out.Input = times
		}
		if sampler.Output != nil {
			values, err := modeler.ReadAccessor(doc, doc.Accessors[*sampler.Output], nil)
			if err != nil {
				return nil, errors.Wrap(err, "read animation output")
			}
			if out.Output, err = flatten(values); err != nil {
				return nil, err
			}
		}

		switch sampler.Interpolation {
		case gltf.InterpolationStep:
			out.Interpolations = []track.Interpolation{track.Stepped}
		case gltf.InterpolationCubicSpline:
			imp.log.Warn("cubic spline keys sampled linearly", "target", out.Target)
			out.Output = splineValues(out.Output, scene.PropertyStride(prop))
		}
		anim.Channels = append(anim.Channels, out)
	}
	return anim, nil
}

// splineValues keeps the value of each (in-tangent, value, out-tangent)
// triple of a cubic spline output.
func splineValues(v []float32, stride int) []float32 {
	n := len(v) / (stride * 3)
	out := make([]float32, 0, n*stride)
	for i := 0; i < n; i++ {
		out = append(out, v[(i*3+1)*stride:(i*3+2)*stride]...)
	}
	return out
}

func flatten(values any) ([]float32, error) {
	var out []float32
	switch v := values.(type) {
	case []float32:
		out = v
	case [][3]float32:
		for _, e := range v {
			out = append(out, e[:]...)
		}
	case [][4]float32:
		for _, e := range v {
			out = append(out, e[:]...)
		}
	case [][4]int8:
		for _, e := range v {
			for _, c := range e {
				out = append(out, max(float32(c)/127, -1))
			}
		}
	case [][4]uint8:
		for _, e := range v {
			for _, c := range e {
				out = append(out, float32(c)/255)
			}
		}
	case [][4]int16:
		for _, e := range v {
			for _, c := range e {
				out = append(out, max(float32(c)/32767, -1))
			}
		}
	case [][4]uint16:
		for _, e := range v {
			for _, c := range e {
				out = append(out, float32(c)/65535)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported animation output %T", rig.ErrInvalidSource, values)
	}
	return out, nil
}
