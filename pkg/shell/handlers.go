package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/taigrr/showroom/pkg/models"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/scene"
	"github.com/taigrr/showroom/pkg/viewer"
)

const maxFrameSide = 4096

type uploadResponse struct {
	Status viewer.Status `json:"status"`
	Stats  viewer.Stats  `json:"stats"`
}

type statsResponse struct {
	Status     viewer.Status `json:"status"`
	Message    string        `json:"message"`
	Stats      viewer.Stats  `json:"stats"`
	Frame      viewer.Frame  `json:"frame"`
	Wireframe  bool          `json:"wireframe"`
	AutoRotate bool          `json:"autoRotate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleUpload stores the "model" file, plus any "assets" it references,
// and runs it through the session. The files are removed once the load
// finishes.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Errorf("upload of %d bytes exceeds limit of %d", r.ContentLength, s.opts.MaxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["model"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("missing model file"))
		return
	}

	dir, err := os.MkdirTemp(s.opts.UploadDir, "showroom-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(dir)

	path, err := saveUpload(dir, files[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, fh := range r.MultipartForm.File["assets"] {
		if _, err := saveUpload(dir, fh); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	stats, err := s.session.Load(r.Context(), path)
	if err != nil {
		code := loadErrorCode(err)
		if code >= http.StatusInternalServerError {
			s.log.Error("upload failed", zap.String("file", files[0].Filename), zap.Error(err))
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Status: s.session.Status(), Stats: stats})
}

func saveUpload(dir string, fh *multipart.FileHeader) (string, error) {
	name := filepath.Base(fh.Filename)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", fh.Filename)
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", name, err)
	}
	defer src.Close()

	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store upload %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("store upload %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("store upload %s: %w", name, err)
	}
	return path, nil
}

func loadErrorCode(err error) int {
	switch {
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, viewer.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, viewer.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusUnprocessableEntity
	}
}

// handleFrame renders the scene and returns it as WebP, or PNG with
// ?format=png. ?w= and ?h= resize the frame.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := render.FormatWebP
	if f := q.Get("format"); f != "" {
		var err error
		if format, err = render.FormatForPath("frame." + f); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	fb := s.renderer.Framebuffer()
	width, err := frameSide(q.Get("w"), fb.Width)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	height, err := frameSide(q.Get("h"), fb.Height)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if width != fb.Width || height != fb.Height {
		s.session.Resize(s.renderer, width, height, 1)
	}

	s.session.Render(s.renderer)
	var buf bytes.Buffer
	if err := fb.Encode(&buf, format); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/"+string(format))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func frameSide(v string, current int) (int, error) {
	if v == "" {
		return current, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxFrameSide {
		return 0, fmt.Errorf("frame size %q: must be 1..%d", v, maxFrameSide)
	}
	return n, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	writeJSON(w, http.StatusOK, statsResponse{
		Status:     st,
		Message:    st.Message(),
		Stats:      s.session.Stats(),
		Frame:      s.session.Frame(),
		Wireframe:  s.session.Wireframe(),
		AutoRotate: s.session.AutoRotate(),
	})
}

func (s *Server) handleWireframe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On *bool `json:"on"`
	}
	if !decode(w, r, &req) {
		return
	}
	var err error
	on := false
	if req.On == nil {
		on, err = s.session.ToggleWireframe()
	} else {
		on = *req.On
		err = s.session.SetWireframe(on)
	}
	if errors.Is(err, viewer.ErrNoModel) {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"wireframe": on})
}

func (s *Server) handleAutoRotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On *bool `json:"on"`
	}
	if !decode(w, r, &req) {
		return
	}
	var on bool
	if req.On == nil {
		on = s.session.ToggleAutoRotate()
	} else {
		on = *req.On
		s.session.SetAutoRotate(on)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"autoRotate": on})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session.ResetCamera()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *float64 `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Value == nil || *req.Value < 0 {
		writeError(w, http.StatusBadRequest, errors.New("value must be a non-negative number"))
		return
	}
	s.session.SetLightIntensity(*req.Value)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Color string `json:"color"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := scene.ParseColor(req.Color)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.session.SetBackground(c)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Visible *bool `json:"visible"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Visible == nil {
		writeError(w, http.StatusBadRequest, errors.New("missing visible"))
		return
	}
	s.session.SetGridVisible(*req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOrbit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Yaw   float64 `json:"yaw"`
		Pitch float64 `json:"pitch"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.session.Orbit(req.Yaw, req.Pitch)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.session.Zoom(req.Amount)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.session.Pan(req.DX, req.DY)
	w.WriteHeader(http.StatusNoContent)
}

// decode reads an optional JSON body into v. It writes a 400 and returns
// false on malformed input.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
