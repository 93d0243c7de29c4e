package main

import (
	"github.com/binzume/rigconv/gltfutil"
	"github.com/spf13/cobra"
)

func PreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview input",
		Short: "Compile an asset and write a glTF preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			ctx := s.context(args[0])
			res, err := compileFile(args[0], ctx)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = assetName(args[0]) + ".preview.glb"
			}
			if err := gltfutil.WritePreview(res, out); err != nil {
				return err
			}
			ctx.Log.Info("preview written", "output", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output .glb file")
	return cmd
}
