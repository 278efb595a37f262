package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-xeo/internal/log"
	"github.com/teslashibe/go-xeo/pkg/gaze"
)

func newCropCmd(root *rootOptions) *cobra.Command {
	var (
		x, y, radius float64
		out          string
	)
	cmd := &cobra.Command{
		Use:   "crop <image>",
		Short: "Cut the region around a gaze point out of a screenshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("radius") {
				radius = cfg.Crop.Radius
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			img, format, err := gaze.DecodeImage(data)
			if err != nil {
				return err
			}

			pt := gaze.Point{X: x, Y: y}
			crop, box, err := gaze.Crop(img, pt, radius)
			if err != nil {
				return err
			}
			path, err := gaze.NewSaver(cfg.Crop.Dir, log.L()).Save(crop, pt, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d box=%v -> %s\n",
				format, img.Bounds().Dx(), img.Bounds().Dy(), box.Array(), path)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&x, "x", "x", 0.5, "gaze x in [0,1]")
	cmd.Flags().Float64VarP(&y, "y", "y", 0.5, "gaze y in [0,1]")
	cmd.Flags().Float64VarP(&radius, "radius", "r", gaze.DefaultRadius, "radius as a fraction of the shorter side")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: auto-named under crop.dir)")
	return cmd
}
