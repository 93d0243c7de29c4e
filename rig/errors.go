package rig

import "errors"

var (
	// ErrMalformedHierarchy: cyclic or unresolvable parent reference.
	ErrMalformedHierarchy = errors.New("malformed hierarchy")
	// ErrUnsupportedGeometryCount: a source without exactly one primary geometry.
	ErrUnsupportedGeometryCount = errors.New("unsupported geometry count")
	// ErrMissingRequiredChannel: an animation channel without its time input.
	ErrMissingRequiredChannel = errors.New("missing required channel")
	// ErrUnknownBoneReference: a track, slot or vertex references a bone that does not exist.
	ErrUnknownBoneReference = errors.New("unknown bone reference")
	// ErrInvalidSource: structurally broken source data.
	ErrInvalidSource = errors.New("invalid source")
)
