package spine

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/track"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var white = geom.Vector4{X: 1, Y: 1, Z: 1, W: 1}

// Load reads a skeleton JSON document.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open skeleton")
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return doc, nil
}

// Parse decodes a skeleton JSON document. Object members are visited in
// document order, which fixes the order of skins, attachments and
// timelines.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read skeleton")
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", rig.ErrInvalidSource)
	}
	root := gjson.ParseBytes(data)
	doc := &Document{}

	root.Get("bones").ForEach(func(_, v gjson.Result) bool {
		doc.Bones = append(doc.Bones, parseBone(v))
		return true
	})
	root.Get("ik").ForEach(func(_, v gjson.Result) bool {
		ik := &IK{
			Name:         v.Get("name").String(),
			Target:       v.Get("target").String(),
			BendPositive: boolOr(v.Get("bendPositive"), true),
			Mix:          floatOr(v.Get("mix"), 1),
		}
		v.Get("bones").ForEach(func(_, b gjson.Result) bool {
			ik.Bones = append(ik.Bones, b.String())
			return true
		})
		doc.IKs = append(doc.IKs, ik)
		return true
	})

	var perr error
	root.Get("slots").ForEach(func(_, v gjson.Result) bool {
		s := &Slot{
			Name:       v.Get("name").String(),
			Bone:       v.Get("bone").String(),
			Attachment: v.Get("attachment").String(),
		}
		s.Color, perr = colorOr(v.Get("color"), white)
		doc.Slots = append(doc.Slots, s)
		return perr == nil
	})
	if perr != nil {
		return nil, perr
	}

	skins := root.Get("skins")
	if skins.IsArray() {
		skins.ForEach(func(_, v gjson.Result) bool {
			var skin *Skin
			skin, perr = parseSkin(v.Get("name").String(), v.Get("attachments"))
			doc.Skins = append(doc.Skins, skin)
			return perr == nil
		})
	} else {
		skins.ForEach(func(k, v gjson.Result) bool {
			var skin *Skin
			skin, perr = parseSkin(k.String(), v)
			doc.Skins = append(doc.Skins, skin)
			return perr == nil
		})
	}
	if perr != nil {
		return nil, perr
	}

	root.Get("events").ForEach(func(k, v gjson.Result) bool {
		doc.Events = append(doc.Events, &Event{
			Name:   k.String(),
			Int:    int32(v.Get("int").Int()),
			Float:  float32(v.Get("float").Float()),
			String: v.Get("string").String(),
		})
		return true
	})

	root.Get("animations").ForEach(func(k, v gjson.Result) bool {
		var a *Animation
		a, perr = parseAnimation(doc, k.String(), v)
		doc.Animations = append(doc.Animations, a)
		return perr == nil
	})
	if perr != nil {
		return nil, perr
	}

	if len(doc.Bones) == 0 {
		return nil, fmt.Errorf("%w: document has no bones", rig.ErrInvalidSource)
	}
	return doc, nil
}

func parseBone(v gjson.Result) *Bone {
	b := &Bone{
		Name:         v.Get("name").String(),
		Parent:       v.Get("parent").String(),
		X:            float32(v.Get("x").Float()),
		Y:            float32(v.Get("y").Float()),
		Rotation:     float32(v.Get("rotation").Float()),
		ScaleX:       floatOr(v.Get("scaleX"), 1),
		ScaleY:       floatOr(v.Get("scaleY"), 1),
		Length:       float32(v.Get("length").Float()),
		InheritScale: boolOr(v.Get("inheritScale"), true),
	}
	if t := v.Get("transform"); t.Exists() {
		switch t.String() {
		case "noScale", "noScaleOrReflection", "onlyTranslation":
			b.InheritScale = false
		}
	}
	return b
}

func parseSkin(name string, slots gjson.Result) (*Skin, error) {
	skin := &Skin{Name: name}
	var err error
	slots.ForEach(func(slot, atts gjson.Result) bool {
		atts.ForEach(func(k, v gjson.Result) bool {
			var a *Attachment
			a, err = parseAttachment(slot.String(), k.String(), v)
			if err == nil {
				skin.Attachments = append(skin.Attachments, a)
			}
			return err == nil
		})
		return err == nil
	})
	return skin, err
}

func parseAttachment(slot, key string, v gjson.Result) (*Attachment, error) {
	a := &Attachment{
		Slot:     slot,
		Name:     key,
		Path:     v.Get("path").String(),
		X:        float32(v.Get("x").Float()),
		Y:        float32(v.Get("y").Float()),
		Rotation: float32(v.Get("rotation").Float()),
		ScaleX:   floatOr(v.Get("scaleX"), 1),
		ScaleY:   floatOr(v.Get("scaleY"), 1),
		Width:    float32(v.Get("width").Float()),
		Height:   float32(v.Get("height").Float()),
		UVs:      floats(v.Get("uvs")),
		Vertices: floats(v.Get("vertices")),
	}
	if n := v.Get("name"); n.Exists() && a.Path == "" {
		a.Path = n.String()
	}
	if a.Path == "" {
		a.Path = key
	}
	var err error
	if a.Color, err = colorOr(v.Get("color"), white); err != nil {
		return nil, err
	}
	v.Get("triangles").ForEach(func(_, t gjson.Result) bool {
		a.Triangles = append(a.Triangles, int(t.Int()))
		return true
	})

	switch typ := v.Get("type").String(); typ {
	case "", "region":
		a.Type = Region
		return a, nil
	case "mesh":
		a.Type = Mesh
		if len(a.Vertices) > len(a.UVs) {
			a.Type = WeightedMesh
		}
	case "weightedmesh", "skinnedmesh":
		a.Type = WeightedMesh
	default:
		return nil, fmt.Errorf("%w: attachment %q has unsupported type %q", rig.ErrInvalidSource, key, typ)
	}

	if len(a.UVs)%2 != 0 || len(a.Triangles)%3 != 0 {
		return nil, fmt.Errorf("%w: attachment %q has malformed mesh arrays", rig.ErrInvalidSource, key)
	}
	if a.Type == Mesh && len(a.Vertices) != len(a.UVs) {
		return nil, fmt.Errorf("%w: attachment %q has %d vertex values for %d uvs", rig.ErrInvalidSource, key, len(a.Vertices), len(a.UVs))
	}
	for _, t := range a.Triangles {
		if t < 0 || t >= a.VertexCount() {
			return nil, fmt.Errorf("%w: attachment %q triangle index %d out of range", rig.ErrInvalidSource, key, t)
		}
	}
	return a, nil
}

func parseAnimation(doc *Document, name string, v gjson.Result) (*Animation, error) {
	a := &Animation{Name: name}
	var err error

	v.Get("bones").ForEach(func(k, tl gjson.Result) bool {
		bt := &BoneTimeline{Bone: k.String()}
		tl.Get("rotate").ForEach(func(_, key gjson.Result) bool {
			angle := key.Get("angle")
			if !angle.Exists() {
				angle = key.Get("value")
			}
			bt.Rotate = append(bt.Rotate, newKey(key, float32(angle.Float())))
			return true
		})
		tl.Get("translate").ForEach(func(_, key gjson.Result) bool {
			bt.Translate = append(bt.Translate, newKey(key, geom.Vector2{
				X: float32(key.Get("x").Float()),
				Y: float32(key.Get("y").Float()),
			}))
			return true
		})
		tl.Get("scale").ForEach(func(_, key gjson.Result) bool {
			bt.Scale = append(bt.Scale, newKey(key, geom.Vector2{
				X: floatOr(key.Get("x"), 1),
				Y: floatOr(key.Get("y"), 1),
			}))
			return true
		})
		a.Bones = append(a.Bones, bt)
		return true
	})

	v.Get("ik").ForEach(func(k, tl gjson.Result) bool {
		it := &IKTimeline{IK: k.String()}
		tl.ForEach(func(_, key gjson.Result) bool {
			it.Mix = append(it.Mix, newKey(key, floatOr(key.Get("mix"), 1)))
			it.BendPositive = append(it.BendPositive, track.Key[bool]{
				Time:          float32(key.Get("time").Float()),
				Value:         boolOr(key.Get("bendPositive"), true),
				Interpolation: track.Stepped,
			})
			return true
		})
		a.IKs = append(a.IKs, it)
		return true
	})

	v.Get("slots").ForEach(func(k, tl gjson.Result) bool {
		st := &SlotTimeline{Slot: k.String()}
		tl.Get("attachment").ForEach(func(_, key gjson.Result) bool {
			st.Attachment = append(st.Attachment, track.Key[string]{
				Time:          float32(key.Get("time").Float()),
				Value:         key.Get("name").String(),
				Interpolation: track.Stepped,
			})
			return true
		})
		tl.Get("color").ForEach(func(_, key gjson.Result) bool {
			var c geom.Vector4
			c, err = colorOr(key.Get("color"), white)
			st.Color = append(st.Color, newKey(key, c))
			return err == nil
		})
		a.Slots = append(a.Slots, st)
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	order := v.Get("drawOrder")
	if !order.Exists() {
		order = v.Get("draworder")
	}
	order.ForEach(func(_, key gjson.Result) bool {
		dk := DrawOrderKey{Time: float32(key.Get("time").Float())}
		key.Get("offsets").ForEach(func(_, o gjson.Result) bool {
			dk.Offsets = append(dk.Offsets, SlotOffset{Slot: o.Get("slot").String(), Offset: int(o.Get("offset").Int())})
			return true
		})
		a.DrawOrder = append(a.DrawOrder, dk)
		return true
	})

	v.Get("events").ForEach(func(_, key gjson.Result) bool {
		ek := EventKey{Time: float32(key.Get("time").Float())}
		ek.Name = key.Get("name").String()
		if def := doc.Event(ek.Name); def != nil {
			ek.Event = *def
		}
		if r := key.Get("int"); r.Exists() {
			ek.Int = int32(r.Int())
		}
		if r := key.Get("float"); r.Exists() {
			ek.Float = float32(r.Float())
		}
		if r := key.Get("string"); r.Exists() {
			ek.String = r.String()
		}
		a.Events = append(a.Events, ek)
		return true
	})
	return a, nil
}

func newKey[T any](key gjson.Result, v T) track.Key[T] {
	k := track.Key[T]{Time: float32(key.Get("time").Float()), Value: v}
	k.Interpolation, k.Curve = parseCurve(key)
	return k
}

// parseCurve reads the curve of a key: "stepped", a [cx1,cy1,cx2,cy2]
// array, or the scalar form curve,c2,c3,c4.
func parseCurve(key gjson.Result) (track.Interpolation, track.Curve) {
	c := key.Get("curve")
	switch {
	case !c.Exists():
	case c.Type == gjson.String && c.String() == "stepped":
		return track.Stepped, track.Curve{}
	case c.IsArray():
		v := floats(c)
		if len(v) >= 4 {
			return track.Bezier, track.Curve{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
		}
	case c.Type == gjson.Number:
		return track.Bezier, track.Curve{
			X0: float32(c.Float()),
			Y0: float32(key.Get("c2").Float()),
			X1: floatOr(key.Get("c3"), 1),
			Y1: floatOr(key.Get("c4"), 1),
		}
	}
	return track.Linear, track.Curve{}
}

func floats(v gjson.Result) []float32 {
	if !v.IsArray() {
		return nil
	}
	arr := v.Array()
	out := make([]float32, len(arr))
	for i, f := range arr {
		out[i] = float32(f.Float())
	}
	return out
}

func floatOr(v gjson.Result, def float32) float32 {
	if !v.Exists() {
		return def
	}
	return float32(v.Float())
}

func boolOr(v gjson.Result, def bool) bool {
	if !v.Exists() {
		return def
	}
	return v.Bool()
}

// colorOr parses an RRGGBBAA (or RRGGBB) hex color.
func colorOr(v gjson.Result, def geom.Vector4) (geom.Vector4, error) {
	if !v.Exists() {
		return def, nil
	}
	s := v.String()
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return def, fmt.Errorf("%w: bad color %q", rig.ErrInvalidSource, v.String())
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return def, fmt.Errorf("%w: bad color %q", rig.ErrInvalidSource, v.String())
	}
	return geom.Vector4{
		X: float32(n>>24&0xff) / 255,
		Y: float32(n>>16&0xff) / 255,
		Z: float32(n>>8&0xff) / 255,
		W: float32(n&0xff) / 255,
	}, nil
}
