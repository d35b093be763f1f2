// Package portal serves the configuration web page while the device is in
// access-point mode.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sweeney/datatracker/internal/config"
	"github.com/sweeney/datatracker/internal/logging"
	"github.com/sweeney/datatracker/internal/status"
	"github.com/sweeney/datatracker/internal/wifi"
	"go.uber.org/zap"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":80"

	// DefaultRestartDelay is how long after a successful save the restart fires.
	DefaultRestartDelay = time.Second

	maxBodyBytes    = 4096
	shutdownTimeout = 2 * time.Second
)

// ScanSource provides the cached scan results.
type ScanSource interface {
	Networks() []wifi.Network
}

// ConfigUpdater persists a configuration change.
type ConfigUpdater interface {
	Update(fn func(*config.Config)) error
}

// StatusSource provides the device snapshot for /status.
type StatusSource interface {
	Snapshot() status.Snapshot
}

// Options configures a Server.
type Options struct {
	Addr    string
	APName  func() string
	Scans   ScanSource
	Store   ConfigUpdater
	Status  StatusSource
	Restart func()

	RestartDelay time.Duration
	// AfterFunc schedules the restart. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func())
}

// Server serves the configuration portal over HTTP.
type Server struct {
	opts       Options
	httpServer *http.Server

	mu      sync.Mutex
	ln      net.Listener
	serving chan struct{}
}

// saveRequest is the /save body. Any JSON document is accepted: absent or
// null fields are empty, scalars keep their JSON text, and a document that
// is not an object leaves every field empty.
type saveRequest struct {
	SSID     string
	Password string
	Module   string
}

func parseSaveRequest(body []byte) (saveRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return saveRequest{}, err
	}
	obj, _ := doc.(map[string]any)
	return saveRequest{
		SSID:     fieldString(obj["ssid"]),
		Password: fieldString(obj["password"]),
		Module:   fieldString(obj["module"]),
	}, nil
}

func fieldString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// New creates a Server. It does not listen until Start is called.
func New(o Options) *Server {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.RestartDelay == 0 {
		o.RestartDelay = DefaultRestartDelay
	}
	if o.AfterFunc == nil {
		o.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	s := &Server{opts: o}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/scan", s.handleScan)
	mux.HandleFunc("/save", s.handleSave)
	mux.HandleFunc("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              o.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the portal's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.ln = ln
	s.serving = make(chan struct{})

	go func(hs *http.Server, done chan struct{}) {
		defer close(done)
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("portal server failed", zap.Error(err))
		}
	}(s.httpServer, s.serving)

	logging.Info("portal listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.opts.Addr
}

// Stop gracefully shuts down the server. http.Server cannot be reused
// after Shutdown, so a stopped portal is rebuilt with a fresh http.Server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	<-s.serving

	s.ln = nil
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.httpServer.Handler,
		ReadHeaderTimeout: s.httpServer.ReadHeaderTimeout,
	}
	if err != nil {
		return fmt.Errorf("shutdown portal: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	apName := ""
	if s.opts.APName != nil {
		apName = s.opts.APName()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, apName)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	networks := s.opts.Scans.Networks()
	data, err := json.Marshal(networks)
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		http.Error(w, "No data", http.StatusBadRequest)
		return
	}

	req, err := parseSaveRequest(body)
	if err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	err = s.opts.Store.Update(func(c *config.Config) {
		c.WiFi.SSID = req.SSID
		c.WiFi.Password = req.Password
		c.Device.ActiveModule = req.Module
	})
	if err != nil {
		logging.Error("save configuration failed", zap.Error(err))
		http.Error(w, "Save failed", http.StatusInternalServerError)
		return
	}

	logging.Info("configuration saved, restarting",
		zap.String("ssid", req.SSID),
		zap.String("module", req.Module),
		zap.Duration("delay", s.opts.RestartDelay))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))

	if s.opts.Restart != nil {
		s.opts.AfterFunc(s.opts.RestartDelay, s.opts.Restart)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Status == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.opts.Status.Snapshot()))
}
