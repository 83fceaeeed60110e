package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/viewer"
)

type snapshotOptions struct {
	output    string
	width     int
	height    int
	wireframe bool
	yaw       float64
}

func newSnapshotCmd(a *app) *cobra.Command {
	opts := snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot <file>",
		Short: "Render a model to an image",
		Long:  "Load a model, frame it and write one rendered frame as WebP or PNG (chosen by the output extension).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(os.Stderr); err != nil {
				return err
			}
			defer a.close()
			return runSnapshot(cmd, a, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output image (.webp or .png)")
	cmd.Flags().IntVar(&opts.width, "width", 800, "image width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", 600, "image height in pixels")
	cmd.Flags().BoolVar(&opts.wireframe, "wireframe", false, "render in wireframe")
	cmd.Flags().Float64Var(&opts.yaw, "yaw", 0, "spin the camera around the model before rendering (radians per frame, decaying)")
	cmd.MarkFlagRequired("output")
	return cmd
}

func runSnapshot(cmd *cobra.Command, a *app, path string, opts snapshotOptions) error {
	if _, err := render.FormatForPath(opts.output); err != nil {
		return err
	}
	if opts.width <= 0 || opts.height <= 0 {
		return errors.New("width and height must be positive")
	}

	cfg := a.cfg.Viewer()
	cfg.LoadDelay = 0
	cfg.AutoRotate = false
	session := viewer.New(cfg, a.log)
	defer session.Close()

	if _, err := session.Load(cmd.Context(), path); err != nil {
		return err
	}
	if opts.wireframe {
		if err := session.SetWireframe(true); err != nil {
			return err
		}
	}
	if opts.yaw != 0 {
		session.Orbit(opts.yaw, 0)
		// Let the glide settle.
		for range 10 * cfg.FPS {
			if !session.Update(0) {
				break
			}
		}
	}
	session.Update(0)

	fb := render.NewFramebuffer(opts.width, opts.height)
	r := render.NewRenderer(fb, session.Camera(), render.NewTextureCache(a.cfg.Render.TextureMaxSize))
	session.Resize(r, opts.width, opts.height, 1)
	session.Render(r)
	if err := fb.Save(opts.output); err != nil {
		return err
	}
	a.log.Info("snapshot written",
		zap.String("file", opts.output),
		zap.Int("triangles", r.Stats.Triangles),
	)
	fmt.Fprintln(cmd.OutOrStdout(), opts.output)
	return nil
}
