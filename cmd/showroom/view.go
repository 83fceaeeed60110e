package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/viewer"
)

const viewHelp = `Controls:
  Mouse drag   - Orbit (right button pans)
  Scroll, +/-  - Zoom in/out
  W/S/A/D      - Orbit with the keyboard
  R            - Reset camera to the framed view
  X            - Toggle wireframe
  Space        - Toggle auto-rotate
  G            - Toggle grid
  [ / ]        - Dim/brighten lights
  N / P        - Next/previous file
  ?            - Toggle HUD
  Esc, Q       - Quit`

const (
	orbitStep  = 0.05
	zoomStep   = 0.1
	dragOrbit  = 0.03
	dragPan    = 0.004
	lightStep  = 0.1
	maxLight   = 3.0
	maxFrameDt = 0.1
)

func newViewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view <file>...",
		Short: "View models in the terminal",
		Long:  "Render models in the terminal with half-block pixels.\n\n" + viewHelp,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(nil); err != nil {
				return err
			}
			defer a.close()
			return runView(cmd.Context(), a, args)
		},
	}
}

// terminalView is the state of the terminal viewer loop.
type terminalView struct {
	term     *uv.Terminal
	session  *viewer.Session
	renderer *render.Renderer
	log      *zap.Logger

	files []string
	index int

	width, height int
	showHUD       bool
	grid          bool
	light         float64

	drag      bool
	pan       bool
	lastX     int
	lastY     int
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

func runView(ctx context.Context, a *app, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("cannot access file: %w", err)
		}
	}

	term := uv.DefaultTerminal()
	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Any-event mouse tracking with SGR coordinates.
	fmt.Fprint(os.Stdout, "\x1b[?1003h")
	fmt.Fprint(os.Stdout, "\x1b[?1006h")
	defer func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()

	vcfg := a.cfg.Viewer()
	session := viewer.New(vcfg, a.log)
	defer session.Close()

	fb := render.NewFramebuffer(width, height*2)
	v := &terminalView{
		term:     term,
		session:  session,
		renderer: render.NewRenderer(fb, session.Camera(), render.NewTextureCache(a.cfg.Render.TextureMaxSize)),
		log:      a.log,
		files:    files,
		width:    width,
		height:   height,
		showHUD:  true,
		grid:     vcfg.Grid.Visible,
		light:    vcfg.Main.Intensity,
		fpsTime:  time.Now(),
	}
	session.Resize(v.renderer, width, height*2, 1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v.load(ctx)

	ticker := time.NewTicker(time.Second / time.Duration(max(vcfg.FPS, 1)))
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-term.Events():
			if v.handle(ctx, ev) {
				return nil
			}
		case now := <-ticker.C:
			dt := math.Min(now.Sub(last).Seconds(), maxFrameDt)
			last = now
			session.Update(dt)
			if err := v.draw(); err != nil {
				return fmt.Errorf("draw: %w", err)
			}
		}
	}
}

// load starts loading the current file in the background. A newer load
// supersedes it.
func (v *terminalView) load(ctx context.Context) {
	path := v.files[v.index]
	go func() {
		_, err := v.session.Load(ctx, path)
		if err != nil && !errors.Is(err, viewer.ErrSuperseded) && !errors.Is(err, viewer.ErrClosed) {
			v.log.Warn("view load failed", zap.String("file", path), zap.Error(err))
		}
	}()
}

// handle applies one input event. It reports whether the viewer should quit.
func (v *terminalView) handle(ctx context.Context, ev uv.Event) bool {
	s := v.session
	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		v.width, v.height = ev.Width, ev.Height
		v.term.Erase()
		v.term.Resize(v.width, v.height)
		s.Resize(v.renderer, v.width, v.height*2, 1)

	case uv.KeyPressEvent:
		switch {
		case ev.MatchString("escape", "ctrl+c", "q"):
			return true
		case ev.MatchString("w", "up"):
			s.Orbit(0, -orbitStep)
		case ev.MatchString("s", "down"):
			s.Orbit(0, orbitStep)
		case ev.MatchString("a", "left"):
			s.Orbit(-orbitStep, 0)
		case ev.MatchString("d", "right"):
			s.Orbit(orbitStep, 0)
		case ev.MatchString("+", "="):
			s.Zoom(-zoomStep)
		case ev.MatchString("-", "_"):
			s.Zoom(zoomStep)
		case ev.MatchString("r"):
			s.ResetCamera()
		case ev.MatchString("x"):
			s.ToggleWireframe()
		case ev.MatchString("space"):
			s.ToggleAutoRotate()
		case ev.MatchString("g"):
			v.grid = !v.grid
			s.SetGridVisible(v.grid)
		case ev.MatchString("["):
			v.light = math.Max(0, v.light-lightStep)
			s.SetLightIntensity(v.light)
		case ev.MatchString("]"):
			v.light = math.Min(maxLight, v.light+lightStep)
			s.SetLightIntensity(v.light)
		case ev.MatchString("n"):
			v.index = (v.index + 1) % len(v.files)
			v.load(ctx)
		case ev.MatchString("p"):
			v.index = (v.index + len(v.files) - 1) % len(v.files)
			v.load(ctx)
		case ev.MatchString("?"), ev.MatchString("shift+/"):
			v.showHUD = !v.showHUD
		}

	case uv.MouseClickEvent:
		v.drag = true
		v.pan = ev.Button == uv.MouseRight
		v.lastX, v.lastY = ev.X, ev.Y

	case uv.MouseReleaseEvent:
		v.drag = false

	case uv.MouseMotionEvent:
		if !v.drag {
			break
		}
		dx := float64(ev.X - v.lastX)
		dy := float64(ev.Y - v.lastY)
		v.lastX, v.lastY = ev.X, ev.Y
		if v.pan {
			s.Pan(-dx*dragPan, dy*dragPan*2)
		} else {
			s.Orbit(dx*dragOrbit, dy*dragOrbit)
		}

	case uv.MouseWheelEvent:
		switch ev.Button {
		case uv.MouseWheelUp:
			s.Zoom(-zoomStep)
		case uv.MouseWheelDown:
			s.Zoom(zoomStep)
		}
	}
	return false
}

func (v *terminalView) draw() error {
	v.session.Render(v.renderer)
	area := uv.Rect(0, 0, v.width, v.height)
	v.renderer.Framebuffer().Draw(v.term, area)

	v.fpsFrames++
	if elapsed := time.Since(v.fpsTime); elapsed >= time.Second {
		v.fps = float64(v.fpsFrames) / elapsed.Seconds()
		v.fpsFrames = 0
		v.fpsTime = time.Now()
	}
	if v.showHUD {
		v.drawHUD()
	}
	return v.term.Display()
}

var (
	hudFg     = color.RGBA{230, 230, 230, 255}
	hudAccent = color.RGBA{255, 170, 0, 255}
	hudBg     = color.RGBA{0, 0, 0, 255}
)

func (v *terminalView) drawHUD() {
	st := v.session.Status()
	name := filepath.Base(v.files[v.index])
	if len(v.files) > 1 {
		name = fmt.Sprintf("%s (%d/%d)", name, v.index+1, len(v.files))
	}
	v.text(0, 0, fmt.Sprintf(" %.0f FPS ", v.fps), hudAccent)
	v.text(max((v.width-len(name)-2)/2, 0), 0, " "+name+" ", hudFg)

	if stats := v.session.Stats(); st.State == viewer.StateReady || st.State == viewer.StateAnimated {
		polys := fmt.Sprintf(" %d tris ", stats.Triangles)
		v.text(max(v.width-len(polys), 0), 0, polys, hudFg)
	}

	line := " " + st.Message()
	if st.State == viewer.StateLoading && st.Size != "" {
		line += fmt.Sprintf(" [%s %s]", st.Format, st.Size)
	}
	wire := "[ ]"
	if v.session.Wireframe() {
		wire = "[x]"
	}
	spin := "[ ]"
	if v.session.AutoRotate() {
		spin = "[x]"
	}
	line += fmt.Sprintf("  %s wireframe  %s rotate  light %.1f ", wire, spin, v.light)
	v.text(0, v.height-1, line, hudFg)
}

// text writes s on row y starting at column x, clipped to the screen.
func (v *terminalView) text(x, y int, s string, fg color.Color) {
	if y < 0 || y >= v.height {
		return
	}
	for _, r := range s {
		if x >= v.width {
			return
		}
		if x >= 0 {
			v.term.SetCell(x, y, &uv.Cell{
				Content: string(r),
				Width:   1,
				Style:   uv.Style{Fg: fg, Bg: hudBg},
			})
		}
		x++
	}
}
