package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/binzume/rigconv/rig"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"
)

type compileResult struct {
	Input  string
	Output string
	Err    error
}

func CompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [inputs...]",
		Short: "Compile assets and write <name>.rig.yaml records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			inputs, err := expandInputs(args)
			if err != nil {
				return err
			}
			results := s.compileAll(inputs)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", r.Input, r.Err)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "OK   %s -> %s\n", r.Input, r.Output)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d assets failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", ".", "output directory")
	cmd.Flags().Int("workers", 4, "number of assets compiled in parallel")
	return cmd
}

// expandInputs resolves glob patterns. Duplicate matches are dropped.
func expandInputs(patterns []string) ([]string, error) {
	var inputs []string
	seen := map[string]bool{}
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %q", p)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no input matches %q", p)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				inputs = append(inputs, m)
			}
		}
	}
	return inputs, nil
}

// compileAll compiles every input independently. A failing asset is recorded
// in its result and never stops the others.
func (s *session) compileAll(inputs []string) []compileResult {
	results := make([]compileResult, len(inputs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			out, err := s.compileOne(in)
			results[i] = compileResult{Input: in, Output: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *session) compileOne(input string) (string, error) {
	ctx := s.context(input)
	res, err := compileFile(input, ctx)
	if err != nil {
		ctx.Log.Error("compile failed", "error", err)
		return "", err
	}
	if err := os.MkdirAll(s.cfg.Output, 0o755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	out := filepath.Join(s.cfg.Output, assetName(input)+".rig.yaml")
	if err := writeRecords(res, out); err != nil {
		return "", err
	}
	ctx.Log.Info("compiled", "output", out)
	return out, nil
}

func writeRecords(res *rig.Result, path string) error {
	data, err := yaml.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "encode records")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}
