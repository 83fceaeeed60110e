package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/showroom/pkg/shell"
	"github.com/taigrr/showroom/pkg/viewer"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve the viewer to a browser",
		Long: `Serve the viewer over HTTP. Drop a model onto the page to load it;
load status is pushed over a websocket and frames are streamed as WebP.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(os.Stderr); err != nil {
				return err
			}
			defer a.close()

			session := viewer.New(a.cfg.Viewer(), a.log)
			defer session.Close()
			srv := shell.New(session, shell.Options{
				MaxUploadBytes: a.cfg.Server.MaxUploadMB << 20,
				FrameWidth:     a.cfg.Server.FrameWidth,
				FrameHeight:    a.cfg.Server.FrameHeight,
				TextureMaxSize: a.cfg.Render.TextureMaxSize,
			}, a.log)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
			})
			g.Go(func() error {
				return srv.Animate(ctx, a.cfg.Render.FPS)
			})
			if len(args) == 1 {
				path := args[0]
				g.Go(func() error {
					// A failed initial load leaves the server usable.
					if _, err := session.Load(ctx, path); err != nil && !errors.Is(err, viewer.ErrSuperseded) {
						a.log.Warn("initial load failed", zap.String("file", path), zap.Error(err))
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
}
