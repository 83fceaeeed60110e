package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taigrr/showroom/pkg/viewer"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Display model information",
		Long:  "Display information about a model file: format, size, vertex, triangle, material and texture counts, grounded bounds and the camera frame.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(os.Stderr); err != nil {
				return err
			}
			defer a.close()

			cfg := a.cfg.Viewer()
			cfg.LoadDelay = 0
			session := viewer.New(cfg, a.log)
			defer session.Close()
			if _, err := session.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), session)
		},
	}
}

func printInfo(w io.Writer, s *viewer.Session) error {
	st := s.Status()
	stats := s.Stats()
	frame := s.Frame()
	box := s.Model().WorldBox()
	size, center := box.Size(), box.Center()

	animated := "no"
	if st.State == viewer.StateAnimated {
		animated = "yes"
	}

	_, err := fmt.Fprintf(w, `File:       %s
Format:     %s
Size:       %s

Vertices:   %d
Triangles:  %d
Materials:  %d
Textures:   %d
Animated:   %s

Bounds Min: (%.3f, %.3f, %.3f)
Bounds Max: (%.3f, %.3f, %.3f)
Dimensions: %.3f x %.3f x %.3f
Center:     (%.3f, %.3f, %.3f)

Camera:     (%.3f, %.3f, %.3f) looking at (%.3f, %.3f, %.3f)
Distance:   %.3f
Fog:        %.3f to %.3f
`,
		filepath.Base(st.File), st.Format, st.Size,
		stats.Vertices, stats.Triangles, stats.Materials, stats.Textures, animated,
		box.Min.X, box.Min.Y, box.Min.Z,
		box.Max.X, box.Max.Y, box.Max.Z,
		size.X, size.Y, size.Z,
		center.X, center.Y, center.Z,
		frame.Position.X, frame.Position.Y, frame.Position.Z,
		frame.Target.X, frame.Target.Y, frame.Target.Z,
		frame.Distance, frame.FogNear, frame.FogFar,
	)
	return err
}
