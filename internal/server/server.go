// Package server runs the WebSocket front end: it accepts browser
// connections and wires each one to a fresh link transport and game session
// pair. Binary frames drive the bridge facade, text frames carry JSON
// commands, and session events flow back as JSON.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/webgb/bgbridge/internal/config"
	"github.com/webgb/bgbridge/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts browser WebSocket connections for the bridge.
type Server struct {
	cfg *config.Config
	log zerolog.Logger
}

// New creates a Server for the given configuration.
func New(cfg *config.Config) *Server {
	return &Server{cfg: cfg, log: util.ComponentLogger("server")}
}

// Run listens on the configured WebSocket port and serves connections until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.WSAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.WSAddr(), err)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})

	s.log.Info().Str("addr", s.cfg.WSAddr()).Msg("WebSocket server listening")

	err = http.Serve(listener, mux)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer wsConn.Close()

	s.log.Info().Str("peer", wsConn.RemoteAddr().String()).Msg("browser connected")
	s.serveConn(ctx, wsConn)
	s.log.Info().Str("peer", wsConn.RemoteAddr().String()).Msg("browser disconnected")
}
