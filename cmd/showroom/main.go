// showroom - 3D model viewer
// View FBX, glTF/GLB, OBJ and STL files in the terminal or a browser.
//
// Commands:
//
//	view <file>...     - Terminal viewer (half-block rendering)
//	serve [file]       - Browser viewer with drag-and-drop upload
//	info <file>        - Model statistics and bounds
//	snapshot <file>    - Render one frame to WebP or PNG
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/showroom/internal/config"
	"github.com/taigrr/showroom/internal/logger"
)

var version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	flags *config.Flags
	cfg   *config.Config
	log   *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "showroom",
		Short: "3D model viewer",
		Long: `showroom - 3D model viewer

Loads FBX, glTF, GLB, OBJ and STL models, centers them on the ground,
frames the camera around them and plays their first animation.`,
		SilenceUsage: true,
	}
	a.flags = config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newViewCmd(a),
		newServeCmd(a),
		newInfoCmd(a),
		newSnapshotCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger. console receives
// log output in addition to the configured file; nil keeps the terminal
// clean.
func (a *app) setup(console io.Writer) error {
	cfg, err := config.Load(a.flags.Config, a.flags)
	if err != nil {
		return err
	}
	a.cfg = cfg
	opts := cfg.Logger()
	opts.Console = console
	a.log = logger.New(opts)
	a.log.Debug("configuration loaded",
		zap.String("level", cfg.Logging.Level),
		zap.Int("fps", cfg.Render.FPS),
	)
	return nil
}

func (a *app) close() {
	if a.log != nil {
		logger.Sync(a.log)
	}
}
