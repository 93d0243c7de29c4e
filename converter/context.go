package converter

import (
	"fmt"

	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/logger"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/spine"
)

type Options struct {
	SampleRate float32 // Default: 30

	// StrictBoneReferences fails the asset when an animation track, slot or
	// IK constraint names a bone missing from the skeleton. When false the
	// reference is kept in the animation bone list and reported as a warning.
	StrictBoneReferences bool // Default: true

	// RotationOrder combines per-axis Euler channels of node-tree scenes.
	RotationOrder geom.RotationOrder // Default: ZYX
	Atlas         spine.Atlas
}

const defaultSampleRate = 30

func DefaultOptions() *Options {
	return &Options{
		SampleRate:           defaultSampleRate,
		StrictBoneReferences: true,
		RotationOrder:        geom.RotationOrderZYX,
	}
}

// CompilationContext carries the per-asset state shared by every stage.
type CompilationContext struct {
	*Options
	Log   logger.Logger
	Asset string

	bones    []boneEntry
	animList *animBoneList
}

type boneEntry struct {
	name string
	id   uint64
}

func NewCompilationContext(asset string, options *Options, log logger.Logger) *CompilationContext {
	if options == nil {
		options = DefaultOptions()
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("asset", asset)
	if !(options.SampleRate > 0) {
		log.Warn("invalid sample rate, using default", "rate", options.SampleRate, "default", defaultSampleRate)
		o := *options
		o.SampleRate = defaultSampleRate
		options = &o
	}
	return &CompilationContext{
		Options:  options,
		Log:      log,
		Asset:    asset,
		animList: &animBoneList{},
	}
}

func (c *CompilationContext) setBones(skel *rig.Skeleton) {
	c.bones = make([]boneEntry, len(skel.Bones))
	for i, b := range skel.Bones {
		c.bones[i] = boneEntry{name: b.Name, id: b.ID}
	}
}

// boneByName returns the canonical index of a bone, or -1.
func (c *CompilationContext) boneByName(name string) int {
	id := rig.HashString(name)
	for i, b := range c.bones {
		if b.id == id && b.name == name {
			return i
		}
	}
	return -1
}

// unknownBone applies the unknown bone reference policy. It returns an
// error in strict mode and logs a warning otherwise.
func (c *CompilationContext) unknownBone(what, name string) error {
	if c.StrictBoneReferences {
		return fmt.Errorf("%w: %s references bone %q", rig.ErrUnknownBoneReference, what, name)
	}
	c.Log.Warn("unknown bone reference", "from", what, "bone", name)
	return nil
}
