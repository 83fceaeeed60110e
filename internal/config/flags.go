package config

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/taigrr/showroom/internal/logger"
	"github.com/taigrr/showroom/pkg/scene"
)

// Flags are command-line overrides. Only flags the user actually set
// override the file.
type Flags struct {
	fs *pflag.FlagSet

	Config     string
	Debug      bool
	LogFile    string
	Background string
	FPS        int
	Addr       string
	AutoRotate bool
	Margin     float64
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.Config, "config", "c", "", "path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "write logs to this file")
	fs.StringVar(&f.Background, "bg", "", "background color (#rrggbb)")
	fs.IntVar(&f.FPS, "fps", 0, "target frames per second")
	fs.StringVar(&f.Addr, "addr", "", "listen address for serve")
	fs.BoolVar(&f.AutoRotate, "auto-rotate", false, "orbit the model continuously")
	fs.Float64Var(&f.Margin, "margin", 0, "camera framing margin")
	return f
}

func (f *Flags) changed(name string) bool {
	if f.fs == nil {
		return false
	}
	flag := f.fs.Lookup(name)
	return flag != nil && flag.Changed
}

// apply applies the flags the user set to cfg.
func (f *Flags) apply(cfg *Config) error {
	if f.changed("debug") && f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.changed("log-file") {
		cfg.Logging.File.Path = f.LogFile
		if cfg.Logging.File.MaxSizeMB == 0 {
			cfg.Logging.File = logger.DefaultFileConfig(f.LogFile)
		}
	}
	if f.changed("bg") {
		c, err := scene.ParseColor(f.Background)
		if err != nil {
			return fmt.Errorf("--bg: %w", err)
		}
		cfg.View.Background = c
	}
	if f.changed("fps") {
		cfg.Render.FPS = f.FPS
	}
	if f.changed("addr") {
		cfg.Server.Addr = f.Addr
	}
	if f.changed("auto-rotate") {
		cfg.View.AutoRotate = f.AutoRotate
	}
	if f.changed("margin") {
		cfg.View.FrameMargin = f.Margin
	}
	return nil
}
