package gltfutil

import (
	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/rig"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

type previewWriter struct {
	*gltf.Document
	res       *rig.Result
	boneNodes []uint32
	skin      *uint32
}

// BuildPreview renders a compiled rig as a glTF document: one node per bone,
// one skinned mesh per mesh set and one animation per clip.
func BuildPreview(res *rig.Result) (*gltf.Document, error) {
	if res == nil || res.Skeleton == nil || len(res.Skeleton.Bones) == 0 {
		return nil, errors.Wrap(rig.ErrInvalidSource, "empty skeleton")
	}
	w := &previewWriter{Document: gltf.NewDocument(), res: res}
	w.Scenes = []*gltf.Scene{{Name: "preview"}}
	w.Scene = gltf.Index(0)

	w.addBoneNodes()
	w.addSkin()
	for i := range res.MeshSets {
		w.addMeshSet(&res.MeshSets[i])
	}
	if res.Animations != nil {
		for i := range res.Animations.Clips {
			w.addClip(&res.Animations.Clips[i])
		}
	}
	return w.Document, nil
}

// WritePreview saves BuildPreview output as a binary glTF file.
func WritePreview(res *rig.Result, path string) error {
	doc, err := BuildPreview(res)
	if err != nil {
		return err
	}
	return errors.Wrapf(gltf.SaveBinary(doc, path), "write %s", path)
}

func (w *previewWriter) addMatrices(mat [][4][4]float32) uint32 {
	a := make([][4]float32, len(mat)*4)
	for i, m := range mat {
		a[i*4+0] = m[0]
		a[i*4+1] = m[1]
		a[i*4+2] = m[2]
		a[i*4+3] = m[3]
	}
	acc := modeler.WriteTangent(w.Document, a)
	w.Accessors[acc].Type = gltf.AccessorMat4
	w.Accessors[acc].Count /= 4
	w.BufferViews[*w.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

func (w *previewWriter) addBoneNodes() {
	bones := w.res.Skeleton.Bones
	w.boneNodes = make([]uint32, len(bones))
	for i, b := range bones {
		node := &gltf.Node{
			Name:     b.Name,
			Rotation: [4]float32{b.Rotation.X, b.Rotation.Y, b.Rotation.Z, b.Rotation.W},
			Scale:    [3]float32{b.Scale.X, b.Scale.Y, b.Scale.Z},
		}
		b.Position.ToArray(node.Translation[:])
		w.Nodes = append(w.Nodes, node)
		w.boneNodes[i] = uint32(len(w.Nodes) - 1)
		if b.Parent == rig.RootParent {
			w.Scenes[0].Nodes = append(w.Scenes[0].Nodes, w.boneNodes[i])
		} else {
			parent := w.Nodes[w.boneNodes[b.Parent]]
			parent.Children = append(parent.Children, w.boneNodes[i])
		}
	}
}

func (w *previewWriter) addSkin() {
	bones := w.res.Skeleton.Bones
	world := make([]*geom.Matrix4, len(bones))
	invmats := make([][4][4]float32, len(bones))
	for i, b := range bones {
		local := geom.NewTRSMatrix4(&b.Position, &b.Rotation, &b.Scale)
		if b.Parent == rig.RootParent {
			world[i] = local
		} else {
			world[i] = world[b.Parent].Mul(local)
		}
		var a [16]float32
		world[i].Inverse().ToArray(a[:])
		for c := 0; c < 4; c++ {
			copy(invmats[i][c][:], a[c*4:c*4+4])
		}
	}
	w.Skins = append(w.Skins, &gltf.Skin{
		Name:                "skeleton",
		Joints:              w.boneNodes,
		Skeleton:            gltf.Index(w.boneNodes[0]),
		InverseBindMatrices: gltf.Index(w.addMatrices(invmats)),
	})
	w.skin = gltf.Index(uint32(len(w.Skins) - 1))
}

func (w *previewWriter) addMeshSet(set *rig.MeshSet) {
	mesh := &gltf.Mesh{}
	for i := range set.Meshes {
		m := &set.Meshes[i]
		if len(m.Vertices) == 0 || len(m.Indices) == 0 {
			continue
		}
		pos := make([][3]float32, len(m.Vertices))
		uvs := make([][2]float32, len(m.Vertices))
		joints := make([][4]uint16, len(m.Vertices))
		weights := make([][4]float32, len(m.Vertices))
		for v, vert := range m.Vertices {
			vert.Position.ToArray(pos[v][:])
			uvs[v] = [2]float32{vert.UV.X, vert.UV.Y}
			joints[v] = vert.Bones
			weights[v] = vert.Weights
		}
		attributes := map[string]uint32{
			"POSITION":   modeler.WritePosition(w.Document, pos),
			"TEXCOORD_0": modeler.WriteTextureCoord(w.Document, uvs),
			"JOINTS_0":   modeler.WriteJoints(w.Document, joints),
			"WEIGHTS_0":  modeler.WriteWeights(w.Document, weights),
		}
		if len(m.Normals) == len(m.Vertices) {
			nrm := make([][3]float32, len(m.Normals))
			for v := range m.Normals {
				m.Normals[v].ToArray(nrm[v][:])
			}
			attributes["NORMAL"] = modeler.WriteNormal(w.Document, nrm)
		}
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Attributes: attributes,
			Indices:    gltf.Index(modeler.WriteIndices(w.Document, m.Indices)),
		})
	}
	if len(mesh.Primitives) == 0 {
		return
	}
	w.Meshes = append(w.Meshes, mesh)
	w.Nodes = append(w.Nodes, &gltf.Node{
		Mesh: gltf.Index(uint32(len(w.Meshes) - 1)),
		Skin: w.skin,
	})
	w.Scenes[0].Nodes = append(w.Scenes[0].Nodes, uint32(len(w.Nodes)-1))
}

func (w *previewWriter) addClip(clip *rig.Clip) {
	if clip.SampleCount == 0 || clip.SampleRate <= 0 {
		return
	}
	keys := make([]float32, clip.SampleCount)
	for i := range keys {
		keys[i] = float32(i) / clip.SampleRate
	}
	keysAcc := modeler.WriteAccessor(w.Document, gltf.TargetArrayBuffer, keys)
	a := &gltf.Animation{Name: clip.Name}

	addChannel := func(node uint32, path gltf.TRSProperty, output uint32) {
		a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(keysAcc),
			Output:        gltf.Index(output),
			Interpolation: gltf.InterpolationLinear,
		})
		a.Channels = append(a.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(node),
				Path: path,
			},
		})
	}

	for _, tr := range clip.Tracks {
		if w.res.AnimationBones == nil || int(tr.BoneIndex) >= len(w.res.AnimationBones.IDs) {
			continue
		}
		bone := w.res.Skeleton.BoneIndex(w.res.AnimationBones.IDs[tr.BoneIndex])
		if bone < 0 {
			continue
		}
		node := w.boneNodes[bone]
		if len(tr.Positions) > 0 {
			addChannel(node, gltf.TRSTranslation, modeler.WriteAccessor(w.Document, gltf.TargetArrayBuffer, vectors(tr.Positions)))
		}
		if len(tr.Rotations) > 0 {
			rot := make([][4]float32, len(tr.Rotations))
			for i, q := range tr.Rotations {
				rot[i] = [4]float32{q.X, q.Y, q.Z, q.W}
			}
			addChannel(node, gltf.TRSRotation, modeler.WriteTangent(w.Document, rot))
		}
		if len(tr.Scale) > 0 {
			addChannel(node, gltf.TRSScale, modeler.WriteAccessor(w.Document, gltf.TargetArrayBuffer, vectors(tr.Scale)))
		}
	}
	if len(a.Channels) > 0 {
		w.Animations = append(w.Animations, a)
	}
}

func vectors(v []geom.Vector3) [][3]float32 {
	out := make([][3]float32, len(v))
	for i := range v {
		v[i].ToArray(out[i][:])
	}
	return out
}
