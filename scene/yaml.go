package scene

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/track"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type yamlScene struct {
	UpAxis     string          `yaml:"upAxis"`
	Nodes      []yamlNode      `yaml:"nodes"`
	Geometries []yamlGeometry  `yaml:"geometries"`
	Animations []yamlAnimation `yaml:"animations"`
}

type yamlNode struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Parent      string    `yaml:"parent"`
	Joint       *bool     `yaml:"joint"`
	Matrix      []float32 `yaml:"matrix"`
	Translation []float32 `yaml:"translation"`
	Rotation    []float32 `yaml:"rotation"`
	Scale       []float32 `yaml:"scale"`
}

type yamlPrimitive struct {
	Stride   int   `yaml:"stride"`
	Position *int  `yaml:"position"`
	Normal   *int  `yaml:"normal"`
	UV       *int  `yaml:"uv"`
	Indices  []int `yaml:"indices"`
}

type yamlSkin struct {
	Joints     []string      `yaml:"joints"`
	BindShape  []float32     `yaml:"bindShape"`
	Influences [][][]float32 `yaml:"influences"`
}

type yamlGeometry struct {
	Name       string          `yaml:"name"`
	Positions  [][]float32     `yaml:"positions"`
	Normals    [][]float32     `yaml:"normals"`
	UVs        [][]float32     `yaml:"uvs"`
	Primitives []yamlPrimitive `yaml:"primitives"`
	Skin       *yamlSkin       `yaml:"skin"`
}

type yamlChannel struct {
	Target        string      `yaml:"target"`
	Input         []float32   `yaml:"input"`
	Output        []float32   `yaml:"output"`
	Interpolation []string    `yaml:"interpolation"`
	Curves        [][]float32 `yaml:"curves"`
}

type yamlAnimation struct {
	Name     string        `yaml:"name"`
	Channels []yamlChannel `yaml:"channels"`
}

// Load reads a YAML scene description file.
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open scene")
	}
	defer f.Close()
	s, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return s, nil
}

// Parse decodes a YAML scene description.
func Parse(r io.Reader) (*Scene, error) {
	var src yamlScene
	if err := yaml.NewDecoder(r).Decode(&src); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	s := &Scene{UpAxis: src.UpAxis}
	if s.UpAxis == "" {
		s.UpAxis = "Y"
	}
	for _, n := range src.Nodes {
		node, err := n.toNode()
		if err != nil {
			return nil, err
		}
		s.Nodes = append(s.Nodes, node)
	}
	for i, n := range src.Nodes {
		if n.Parent == "" {
			continue
		}
		p := s.NodeIndex(n.Parent)
		if p < 0 {
			return nil, fmt.Errorf("%w: node %q has unresolvable parent %q", rig.ErrMalformedHierarchy, s.Nodes[i].ID, n.Parent)
		}
		s.Nodes[i].Parent = p
	}

	for _, g := range src.Geometries {
		geo, err := g.toGeometry()
		if err != nil {
			return nil, err
		}
		s.Geometries = append(s.Geometries, geo)
	}

	for _, a := range src.Animations {
		anim := &Animation{Name: a.Name}
		for _, c := range a.Channels {
			ch, err := c.toChannel()
			if err != nil {
				return nil, err
			}
			anim.Channels = append(anim.Channels, ch)
		}
		s.Animations = append(s.Animations, anim)
	}
	return s, nil
}

func (n *yamlNode) toNode() (*Node, error) {
	node := &Node{ID: n.ID, Name: n.Name, Parent: NoParent, Joint: n.Joint == nil || *n.Joint}
	if node.ID == "" {
		node.ID = node.Name
	}
	if node.Name == "" {
		node.Name = node.ID
	}
	if node.ID == "" {
		return nil, fmt.Errorf("%w: node without id or name", rig.ErrInvalidSource)
	}

	if n.Matrix != nil {
		if len(n.Matrix) != 16 {
			return nil, fmt.Errorf("%w: node %q matrix needs 16 values", rig.ErrInvalidSource, node.ID)
		}
		node.Transform = *geom.NewMatrix4FromSlice(n.Matrix)
		return node, nil
	}

	pos := geom.NewVector3(0, 0, 0)
	rot := geom.NewQuaternion(0, 0, 0, 1)
	scale := geom.NewVector3(1, 1, 1)
	var err error
	if pos, err = vec3(n.Translation, pos, node.ID); err != nil {
		return nil, err
	}
	if scale, err = vec3(n.Scale, scale, node.ID); err != nil {
		return nil, err
	}
	if n.Rotation != nil {
		if len(n.Rotation) != 4 {
			return nil, fmt.Errorf("%w: node %q rotation needs 4 values", rig.ErrInvalidSource, node.ID)
		}
		rot = geom.NewQuaternion(n.Rotation[0], n.Rotation[1], n.Rotation[2], n.Rotation[3]).Normalize()
	}
	node.Transform = *geom.NewTRSMatrix4(pos, rot, scale)
	return node, nil
}

func vec3(v []float32, def *geom.Vector3, id string) (*geom.Vector3, error) {
	if v == nil {
		return def, nil
	}
	if len(v) != 3 {
		return nil, fmt.Errorf("%w: %q needs 3 values", rig.ErrInvalidSource, id)
	}
	return geom.NewVector3FromSlice(v), nil
}

func optOffset(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

func (g *yamlGeometry) toGeometry() (*Geometry, error) {
	geo := &Geometry{Name: g.Name}
	for _, p := range g.Positions {
		if len(p) != 3 {
			return nil, fmt.Errorf("%w: geometry %q position needs 3 values", rig.ErrInvalidSource, g.Name)
		}
		geo.Positions = append(geo.Positions, *geom.NewVector3FromSlice(p))
	}
	for _, p := range g.Normals {
		if len(p) != 3 {
			return nil, fmt.Errorf("%w: geometry %q normal needs 3 values", rig.ErrInvalidSource, g.Name)
		}
		geo.Normals = append(geo.Normals, *geom.NewVector3FromSlice(p))
	}
	for _, p := range g.UVs {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: geometry %q uv needs 2 values", rig.ErrInvalidSource, g.Name)
		}
		geo.UVs = append(geo.UVs, geom.Vector2{X: p[0], Y: p[1]})
	}

	for _, p := range g.Primitives {
		prim := &Primitive{
			Stride:         p.Stride,
			PositionOffset: optOffset(p.Position),
			NormalOffset:   optOffset(p.Normal),
			UVOffset:       optOffset(p.UV),
			Indices:        p.Indices,
		}
		if prim.Stride == 0 {
			prim.Stride = 1
			if prim.PositionOffset < 0 {
				prim.PositionOffset = 0
			}
		}
		if err := prim.validate(geo); err != nil {
			return nil, err
		}
		geo.Primitives = append(geo.Primitives, prim)
	}

	if g.Skin != nil {
		skin := &Skin{Joints: g.Skin.Joints, BindShape: *geom.NewMatrix4()}
		if g.Skin.BindShape != nil {
			if len(g.Skin.BindShape) != 16 {
				return nil, fmt.Errorf("%w: geometry %q bind shape needs 16 values", rig.ErrInvalidSource, g.Name)
			}
			skin.BindShape = *geom.NewMatrix4FromSlice(g.Skin.BindShape)
		}
		for _, infs := range g.Skin.Influences {
			var vi []Influence
			for _, inf := range infs {
				if len(inf) != 2 {
					return nil, fmt.Errorf("%w: geometry %q influence needs joint and weight", rig.ErrInvalidSource, g.Name)
				}
				vi = append(vi, Influence{Joint: int(inf[0]), Weight: inf[1]})
			}
			skin.Influences = append(skin.Influences, vi)
		}
		geo.Skin = skin
	}
	return geo, nil
}

func (p *Primitive) validate(g *Geometry) error {
	if p.PositionOffset < 0 || p.PositionOffset >= p.Stride {
		return fmt.Errorf("%w: geometry %q primitive has no position offset", rig.ErrInvalidSource, g.Name)
	}
	if len(p.Indices)%p.Stride != 0 || p.CornerCount()%3 != 0 {
		return fmt.Errorf("%w: geometry %q primitive is not a triangle list", rig.ErrInvalidSource, g.Name)
	}
	check := func(off, n int, attr string) error {
		if off < 0 {
			return nil
		}
		if off >= p.Stride {
			return fmt.Errorf("%w: geometry %q %s offset %d exceeds stride", rig.ErrInvalidSource, g.Name, attr, off)
		}
		for c := 0; c < p.CornerCount(); c++ {
			if i := p.Indices[c*p.Stride+off]; i < 0 || i >= n {
				return fmt.Errorf("%w: geometry %q %s index %d out of range", rig.ErrInvalidSource, g.Name, attr, i)
			}
		}
		return nil
	}
	if err := check(p.PositionOffset, len(g.Positions), "position"); err != nil {
		return err
	}
	if err := check(p.NormalOffset, len(g.Normals), "normal"); err != nil {
		return err
	}
	return check(p.UVOffset, len(g.UVs), "uv")
}

// ParseInterpolation accepts linear, step / stepped and bezier.
func ParseInterpolation(s string) (track.Interpolation, error) {
	switch strings.ToLower(s) {
	case "", "linear":
		return track.Linear, nil
	case "step", "stepped":
		return track.Stepped, nil
	case "bezier":
		return track.Bezier, nil
	}
	return track.Linear, fmt.Errorf("%w: unknown interpolation %q", rig.ErrInvalidSource, s)
}

func (c *yamlChannel) toChannel() (*Channel, error) {
	ch := &Channel{Target: c.Target, Input: c.Input, Output: c.Output}
	for _, s := range c.Interpolation {
		ip, err := ParseInterpolation(s)
		if err != nil {
			return nil, err
		}
		ch.Interpolations = append(ch.Interpolations, ip)
	}
	for _, v := range c.Curves {
		if len(v) != 4 {
			return nil, fmt.Errorf("%w: channel %q curve needs 4 values", rig.ErrInvalidSource, c.Target)
		}
		ch.Curves = append(ch.Curves, [4]float32{v[0], v[1], v[2], v[3]})
	}
	return ch, nil
}
