// Package server serves the sign-up page: the document on GET /, the live
// websocket on /ws, the form-post fallback on POST / and the embedded
// client assets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/livetemplate/signup"
	"github.com/livetemplate/signup/internal/api"
	"github.com/livetemplate/signup/internal/assets"
	"github.com/livetemplate/signup/internal/config"
	"github.com/livetemplate/signup/internal/runtime"
	"github.com/livetemplate/signup/internal/view"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// RegistrarFactory builds the users API client for a new page.
type RegistrarFactory func(cfg *config.Config) runtime.Registrar

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithRegistrar replaces the users API client used by new pages.
func WithRegistrar(f RegistrarFactory) Option {
	return func(s *Server) {
		s.registrar = f
	}
}

// WithDevAPI mounts h at the users API path.
func WithDevAPI(h http.Handler) Option {
	return func(s *Server) {
		s.devAPI = h
	}
}

// Server is the sign-up page server.
type Server struct {
	live      *config.Live
	log       *logrus.Entry
	registrar RegistrarFactory
	devAPI    http.Handler
	sessions  *Sessions
	handler   http.Handler

	stopLimiter context.CancelFunc
	limiterDone <-chan struct{}

	connMu      sync.Mutex
	connections map[*pageConn]struct{}

	watcher *Watcher
}

// New creates a server for cfg.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		live:        config.NewLive(cfg),
		log:         logrus.WithField("component", "server"),
		registrar:   defaultRegistrar,
		sessions:    NewSessions(cfg.Server.GetSessionTTL()),
		connections: make(map[*pageConn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes(cfg)
	return s
}

func defaultRegistrar(cfg *config.Config) runtime.Registrar {
	return api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.GetTimeout()),
		api.WithLogger(logrus.WithField("component", "api")))
}

func (s *Server) routes(cfg *config.Config) http.Handler {
	ctx, cancel := context.WithCancel(context.Background())
	limit, done := RateLimitMiddleware(ctx,
		cfg.Server.GetRateLimitRPS(),
		cfg.Server.GetRateLimitBurst(),
		cfg.Server.GetRateLimitMaxIPs(),
		s.log.WithField("component", "ratelimit"))
	s.stopLimiter = cancel
	s.limiterDone = done

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", limit(WithCompression(http.HandlerFunc(s.servePage))))
	mux.Handle("POST /{$}", limit(http.HandlerFunc(s.serveForm)))
	mux.Handle("GET /ws", limit(&WebSocketHandler{server: s}))
	mux.Handle("GET /assets/", WithCompression(http.StripPrefix("/assets/", http.HandlerFunc(s.serveAsset))))
	mux.HandleFunc("GET /healthz", s.serveHealth)
	if s.devAPI != nil {
		mux.Handle("POST "+signup.UsersPath, s.devAPI)
	}

	var h http.Handler = mux
	h = RequestLogMiddleware(s.log.WithField("component", "http"))(h)
	h = SecurityHeadersMiddleware()(h)
	return h
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Config returns the configuration in effect.
func (s *Server) Config() *config.Config {
	return s.live.Get()
}

// Reload swaps the configuration used by pages mounted from now on. Pages
// already mounted keep their API client and failure policy. Listener and
// rate limit settings need a restart.
func (s *Server) Reload(cfg *config.Config) {
	s.live.Set(cfg)
	s.log.WithFields(logrus.Fields{
		"api":            cfg.API.BaseURL,
		"failure_policy": cfg.API.GetFailurePolicy(),
	}).Info("config reloaded")
}

// NewPage mounts a page with the current configuration.
func (s *Server) NewPage() *runtime.Controller {
	cfg := s.live.Get()
	return runtime.New(s.registrar(cfg),
		runtime.WithFailurePolicy(cfg.API.GetFailurePolicy()),
		runtime.WithLogger(s.log.WithField("component", "runtime")))
}

// Sessions exposes the page store.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	page := s.NewPage()
	id := s.sessions.Put(page)
	s.render(w, id, page.Snapshot())
}

// serveForm is the no-script path: the posted fields are applied as edits
// and the form is submitted before the page is rendered again.
func (s *Server) serveForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	id := r.PostForm.Get("session")
	page, ok := s.sessions.Get(id)
	if !ok {
		page = s.NewPage()
		id = s.sessions.Put(page)
	}
	log := s.log.WithField("session", id)

	for _, f := range signup.Fields {
		values, present := r.PostForm[string(f)]
		if !present || len(values) == 0 {
			continue
		}
		if err := page.Edit(f, values[0]); err != nil {
			log.WithError(err).Warn("failed to apply posted field")
		}
	}

	err := page.Submit(r.Context())
	switch {
	case err == nil:
		log.Info("sign-up accepted")
	case errors.Is(err, runtime.ErrSubmitDisabled):
		log.Debug("submit disabled, re-rendering")
	default:
		log.WithError(err).Debug("sign-up not accepted")
	}

	s.render(w, id, page.Snapshot())
}

func (s *Server) render(w http.ResponseWriter, session string, snap runtime.Snapshot) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := view.Render(w, view.Page{Session: session, Snapshot: snap}); err != nil {
		s.log.WithError(err).Error("failed to render page")
	}
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	var (
		data        []byte
		err         error
		contentType string
	)
	switch r.URL.Path {
	case assets.ClientJSName:
		data, err = assets.GetClientJS()
		contentType = "application/javascript"
	case assets.ClientCSSName:
		data, err = assets.GetClientCSS()
		contentType = "text/css"
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	s.connMu.Lock()
	live := len(s.connections)
	s.connMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"sessions":    s.sessions.Len(),
		"connections": live,
	})
}

// registerConnection tracks a live page connection.
func (s *Server) registerConnection(pc *pageConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connections[pc] = struct{}{}
	s.log.WithField("connections", len(s.connections)).Debug("connection registered")
}

// unregisterConnection stops tracking a connection.
func (s *Server) unregisterConnection(pc *pageConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.connections, pc)
	s.log.WithField("connections", len(s.connections)).Debug("connection unregistered")
}

// closeConnections ends every live page. Hijacked websocket connections are
// not closed by http.Server.Shutdown.
func (s *Server) closeConnections() {
	s.connMu.Lock()
	conns := make([]*pageConn, 0, len(s.connections))
	for pc := range s.connections {
		conns = append(conns, pc)
	}
	s.connMu.Unlock()

	for _, pc := range conns {
		pc.close()
	}
}

// EnableWatch reloads the config file at path whenever it is written. load
// must return the fully resolved configuration (file, environment, flags).
func (s *Server) EnableWatch(path string, load func(path string) (*config.Config, error)) error {
	watcher, err := NewWatcher(path, func(p string) error {
		cfg, err := load(p)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		s.Reload(cfg)
		return nil
	}, s.log.WithField("component", "watch"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.watcher = watcher
	s.watcher.Start()
	s.log.WithField("file", path).Info("watching config")
	return nil
}

// Close stops background work and unmounts every page.
func (s *Server) Close() error {
	var err error
	if s.watcher != nil {
		err = s.watcher.Stop()
		s.watcher = nil
	}
	s.closeConnections()
	s.stopLimiter()
	<-s.limiterDone
	s.sessions.Close()
	return err
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Config().Server.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.closeConnections)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
