package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/binzume/rigconv/converter"
	"github.com/binzume/rigconv/gltfutil"
	"github.com/binzume/rigconv/rig"
	"github.com/binzume/rigconv/scene"
	"github.com/binzume/rigconv/spine"
)

func assetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// compileFile loads one asset by extension and compiles it.
func compileFile(path string, ctx *converter.CompilationContext) (*rig.Result, error) {
	var (
		res *rig.Result
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var doc *spine.Document
		if doc, err = spine.Load(path); err != nil {
			return nil, err
		}
		res, err = converter.CompileSpine(ctx, doc)
	case ".gltf", ".glb":
		var s *scene.Scene
		if s, err = gltfutil.LoadScene(path, ctx.Log); err != nil {
			return nil, err
		}
		res, err = converter.CompileScene(ctx, s)
	case ".yaml", ".yml":
		var s *scene.Scene
		if s, err = scene.Load(path); err != nil {
			return nil, err
		}
		res, err = converter.CompileScene(ctx, s)
	default:
		return nil, fmt.Errorf("unsupported input type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
