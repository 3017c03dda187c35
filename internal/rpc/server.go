package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sheacoding/browser-agent-extension/internal/config"
	"github.com/sheacoding/browser-agent-extension/internal/idutil"
	"github.com/sheacoding/browser-agent-extension/internal/web"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 75 * time.Second
	writeWait    = 10 * time.Second
)

// Server owns the loopback HTTP listener: the /ws upgrade endpoint the
// browser client connects to, plus health and status.
type Server struct {
	cfg      *config.RuntimeConfig
	bridge   *Bridge
	version  string
	ids      *idutil.Manager
	started  time.Time
	upgrader websocket.Upgrader

	http *http.Server
}

func NewServer(cfg *config.RuntimeConfig, bridge *Bridge, version string) *Server {
	s := &Server{
		cfg:     cfg,
		bridge:  bridge,
		version: version,
		ids:     idutil.NewManager(),
		started: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     allowedOrigin,
	}
	s.http = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	return RequestID(Logging(mux))
}

// Start binds the configured address and serves in the background.
// A bind failure is returned synchronously; it is the one startup
// error worth dying for.
func (s *Server) Start() error {
	addr := s.cfg.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	slog.Info("bridge listening", "addr", addr)

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("bridge server", "err", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !loopbackRemote(r.RemoteAddr) {
		slog.Warn("rejected non-loopback client", "remote", r.RemoteAddr)
		web.Error(w, http.StatusForbidden, fmt.Errorf("loopback connections only"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	connID := s.ids.ConnID(r.RemoteAddr)
	s.bridge.RegisterPeer(conn, connID)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go s.pingLoop(conn, done)

	s.readLoop(conn, connID)
	close(done)

	s.bridge.Disconnect(conn)
	conn.Close()
}

// pingLoop keeps the connection probed. Control frames may be written
// concurrently with data frames, so no write lock is needed here.
func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn, connID string) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("browser client read", "client", connID, "err", err)
			}
			return
		}
		switch env.Type {
		case TypeResponse:
			s.bridge.HandleResponse(&env)
		default:
			slog.Debug("ignoring frame", "client", connID, "type", env.Type)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"client": s.bridge.Connected(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, http.StatusOK, map[string]any{
		"version": s.version,
		"client": map[string]any{
			"connected": s.bridge.Connected(),
			"id":        s.bridge.PeerID(),
		},
		"pending":  s.bridge.PendingCount(),
		"requests": s.bridge.Stats(),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"addr":     s.cfg.ListenAddr(),
	})
}

// allowedOrigin admits the browser client: extension pages, loopback
// HTTP origins, and clients that send no Origin at all.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme == "chrome-extension" {
		return true
	}
	return isLoopbackHost(u.Hostname())
}

func loopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	return isLoopbackIP(host) || isLoopbackHost(host)
}

func isLoopbackHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	return h == "localhost" || h == "127.0.0.1" || h == "[::1]" || h == "::1"
}

func isLoopbackIP(ip string) bool {
	if ip == "::1" || strings.HasPrefix(ip, "::ffff:127.") {
		return true
	}
	return strings.HasPrefix(ip, "127.")
}
