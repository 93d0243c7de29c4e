package spine

import (
	"os"

	"github.com/binzume/rigconv/geom"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// AtlasRegion is the placement of an attachment image inside a texture page,
// in normalized texture coordinates.
type AtlasRegion struct {
	U      float32 `yaml:"u"`
	V      float32 `yaml:"v"`
	U2     float32 `yaml:"u2"`
	V2     float32 `yaml:"v2"`
	Rotate bool    `yaml:"rotate"`
}

// Atlas maps attachment paths to their regions.
type Atlas map[string]AtlasRegion

// LoadAtlas reads a YAML atlas file:
//
//	head: {u: 0, v: 0, u2: 0.5, v2: 0.5}
//	torso: {u: 0.5, v: 0, u2: 1, v2: 0.5, rotate: true}
func LoadAtlas(path string) (Atlas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read atlas")
	}
	atlas := Atlas{}
	if err := yaml.Unmarshal(data, &atlas); err != nil {
		return nil, errors.Wrapf(err, "decode atlas %s", path)
	}
	return atlas, nil
}

// MapUV maps an attachment-local uv into the atlas page. Unknown paths
// keep the local uv.
func (a Atlas) MapUV(path string, uv geom.Vector2) geom.Vector2 {
	r, ok := a[path]
	if !ok {
		return uv
	}
	if r.Rotate {
		uv = geom.Vector2{X: uv.Y, Y: 1 - uv.X}
	}
	return geom.Vector2{
		X: r.U + uv.X*(r.U2-r.U),
		Y: r.V + uv.Y*(r.V2-r.V),
	}
}
