// Package shell serves the viewer to a browser: an upload endpoint that
// feeds the replacement pipeline, a websocket that streams load status,
// rendered frames as WebP, and the environment controls.
package shell

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/viewer"
)

//go:embed index.html
var indexHTML []byte

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	FrameWidth     int
	FrameHeight    int
	TextureMaxSize int
	// UploadDir holds uploaded files while they load. Empty means the
	// system temp directory.
	UploadDir string
}

// Server is the browser front end of a viewer.Session.
type Server struct {
	session  *viewer.Session
	log      *zap.Logger
	opts     Options
	upgrader websocket.Upgrader

	renderMu sync.Mutex
	renderer *render.Renderer

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

// New creates a Server for session. log may be nil.
func New(session *viewer.Session, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.FrameWidth <= 0 {
		opts.FrameWidth = 640
	}
	if opts.FrameHeight <= 0 {
		opts.FrameHeight = 480
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 512 << 20
	}
	fb := render.NewFramebuffer(opts.FrameWidth, opts.FrameHeight)
	r := render.NewRenderer(fb, session.Camera(), render.NewTextureCache(opts.TextureMaxSize))
	session.Resize(r, opts.FrameWidth, opts.FrameHeight, 1)
	return &Server{
		session: session,
		log:     log.Named("shell"),
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		renderer: r,
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the routes served by s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.serveHome)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("GET /api/frame.webp", s.handleFrame)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/wireframe", s.handleWireframe)
	mux.HandleFunc("POST /api/autorotate", s.handleAutoRotate)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/light", s.handleLight)
	mux.HandleFunc("POST /api/background", s.handleBackground)
	mux.HandleFunc("POST /api/grid", s.handleGrid)
	mux.HandleFunc("POST /api/orbit", s.handleOrbit)
	mux.HandleFunc("POST /api/zoom", s.handleZoom)
	mux.HandleFunc("POST /api/pan", s.handlePan)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and closes open websockets.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Animate advances the session at fps frames per second until ctx is done.
func (s *Server) Animate(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.session.Update(now.Sub(last).Seconds())
			last = now
		}
	}
}

func (s *Server) serveHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(s.clients, conn)
	}
}
