package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/webgb/bgbridge/internal/bridge"
	"github.com/webgb/bgbridge/internal/game"
	"github.com/webgb/bgbridge/internal/link"
)

// Channel capacities for the per-connection command inbox and event outbox.
const (
	commandBuffer = 16
	eventBuffer   = 32
)

// serveConn wires one browser connection to a fresh transport/session pair
// and blocks until either side goes away. Nothing survives the connection:
// the whole pair is torn down on exit.
func (s *Server) serveConn(ctx context.Context, ws *websocket.Conn) {
	tr, err := link.Dial(s.cfg.BGBHost, s.cfg.BGBPort, &s.cfg.Verbose)
	if err != nil {
		s.log.Error().Err(err).Msg("BGB connect failed")
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "BGB unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer tr.Close()

	cmds := make(chan game.Command, commandBuffer)
	events := make(chan game.Event, eventBuffer)
	session := game.NewSession(tr, cmds, events)

	sessionDone := make(chan struct{})
	go func() {
		session.Run()
		close(sessionDone)
	}()

	// WS writes come from two goroutines (event pump and read loop replies),
	// so they are serialized behind a mutex.
	var writeMu sync.Mutex

	// Event pump: session events → browser.
	go func() {
		for {
			select {
			case ev := <-events:
				writeMu.Lock()
				err := ws.WriteJSON(ev)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-sessionDone:
				return
			}
		}
	}()

	// A terminal link disconnection or a server shutdown is an implicit
	// Stop: closing the WS connection unblocks the read loop below.
	go func() {
		select {
		case <-tr.Done():
			s.log.Warn().Err(tr.Err()).Msg("BGB link terminated")
			ws.Close()
		case <-ctx.Done():
			ws.Close()
		case <-sessionDone:
		}
	}()

	br := bridge.New(tr)

readLoop:
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			resp, err := br.HandleMessage(data)
			if err != nil {
				s.log.Error().Err(err).Msg("bridge exchange failed")
				break readLoop
			}
			writeMu.Lock()
			err = ws.WriteMessage(websocket.BinaryMessage, resp)
			writeMu.Unlock()
			if err != nil {
				break readLoop
			}

		case websocket.TextMessage:
			cmd, err := parseCommand(data)
			if err != nil {
				s.log.Warn().Err(err).Msg("rejecting browser command")
				continue
			}
			select {
			case cmds <- cmd:
			default:
				s.log.Warn().Msg("command inbox full, dropping")
			}
		}
	}

	// Inbox closure counts as a Stop; wait for the session to wind down
	// before the deferred transport close.
	close(cmds)
	<-sessionDone
}
