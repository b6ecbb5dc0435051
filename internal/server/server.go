package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"mobiletrackpad/internal/clients"
	"mobiletrackpad/internal/filestore"
	t "mobiletrackpad/internal/types"
)

const (
	DefaultMaxUploadBytes = 50_000_000
	DefaultReadTimeout    = 60 * time.Second

	maxMessageBytes = 8 << 20
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	StaticDir      string
	MaxUploadBytes int64
	// ReadTimeout is extended on every pong. Zero disables it.
	ReadTimeout time.Duration
	// MetricsPath of "" disables the Prometheus endpoint.
	MetricsPath string
	Gatherer    prometheus.Gatherer
}

type Server struct {
	cfg      Config
	mgr      *clients.Manager
	files    *filestore.Store
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func New(cfg Config, mgr *clients.Manager, files *filestore.Store, logger *slog.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		mgr:      mgr,
		files:    files,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.HandleWS)
	mux.HandleFunc("POST /upload", s.HandleUpload)
	mux.HandleFunc("GET /files", s.HandleFiles)
	mux.HandleFunc("GET /download/{id}", s.HandleDownload)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.MetricsPath != "" {
		mux.Handle("GET "+s.cfg.MetricsPath, promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.cfg.StaticDir != "" {
		mux.HandleFunc("GET /clipboard", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "clipboard.html"))
		})
		files := http.FileServer(http.Dir(s.cfg.StaticDir))
		mux.Handle("GET /static/", http.StripPrefix("/static/", files))
		mux.Handle("GET /", files)
	}
	return mux
}

// HandleWS upgrades the request and runs the session until it closes.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade error", "remote", r.RemoteAddr, "err", err)
		return
	}

	ws.SetReadLimit(maxMessageBytes)
	if s.cfg.ReadTimeout > 0 {
		ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	s.logger.Info("new websocket connection", "remote", r.RemoteAddr)
	_ = s.mgr.Serve(r.Context(), ws)
}

// HandleUpload stores the first multipart part named "file".
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, t.ErrorReply{Error: "File too large"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		s.uploadError(w, err)
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusOK, t.ErrorReply{Error: "No file uploaded"})
			return
		}
		if err != nil {
			s.uploadError(w, err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			s.uploadError(w, err)
			return
		}
		rec, err := s.files.Put(part.FileName(), data)
		if err != nil {
			s.logger.Error("store upload", "err", err)
			writeJSON(w, http.StatusInternalServerError, t.ErrorReply{Error: "Failed to store file"})
			return
		}
		writeJSON(w, http.StatusOK, t.UploadResult{ID: rec.ID, Filename: rec.Filename})
		return
	}
}

func (s *Server) uploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, t.ErrorReply{Error: "File too large"})
		return
	}
	s.logger.Debug("bad upload", "err", err)
	writeJSON(w, http.StatusBadRequest, t.ErrorReply{Error: "Invalid multipart body"})
}

// HandleFiles lists live uploads.
func (s *Server) HandleFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.files.List())
}

// HandleDownload streams a blob back with its original filename.
func (s *Server) HandleDownload(w http.ResponseWriter, r *http.Request) {
	rec, rc, err := s.files.Open(r.PathValue("id"))
	if errors.Is(err, filestore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("open download", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Filename}))
	w.Header().Set("Content-Length", strconv.FormatUint(rec.Size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug("download interrupted", "id", rec.ID, "err", err)
	}
}

// Listen binds addr, capping concurrent connections when maxConns > 0.
func Listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts down
// gracefully. Live sessions are closed as part of shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler()}
	srv.RegisterOnShutdown(s.mgr.CloseAll)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
