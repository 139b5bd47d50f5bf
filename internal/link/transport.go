// Package link implements the BGB side of the bridge: a TCP transport that
// speaks the clocked serial-exchange protocol and exposes a blocking
// byte-exchange primitive. All packet handling runs on a single background
// goroutine per transport; callers only see Exchange, Done and Close.
package link

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/webgb/bgbridge/internal/protocol"
	"github.com/webgb/bgbridge/internal/util"
)

// Tuning constants.
const (
	ExchangeTimeout  = 5 * time.Second      // bound on a single Exchange call
	handshakeTimeout = 5 * time.Second      // bound on the version handshake
	pollInterval     = 1 * time.Millisecond // loop read deadline, doubles as idle sleep
)

var (
	// ErrHandshake reports an unexpected response during the version handshake.
	ErrHandshake = errors.New("link: handshake failed")

	// ErrExchangeTimeout reports a single exchange exceeding its bound.
	// It is recoverable: the slot is freed and the next Exchange may proceed.
	ErrExchangeTimeout = errors.New("link: exchange timed out")

	// ErrPeerDisconnect reports BGB requesting a disconnect.
	ErrPeerDisconnect = errors.New("link: peer requested disconnect")

	// ErrClosed reports a transport torn down by its owner.
	ErrClosed = errors.New("link: transport closed")
)

type exchangeResult struct {
	value byte
	err   error
}

type exchangeRequest struct {
	send     byte
	resultCh chan exchangeResult
}

// Transport owns the TCP connection to BGB and the link clock. It is alive
// from a successful Dial until Close or the first I/O error, after which
// Done is closed and Err reports the terminal cause exactly once.
type Transport struct {
	conn    net.Conn
	log     zerolog.Logger
	verbose *atomic.Bool

	clock uint32 // link clock, touched only by the loop goroutine

	reqCh chan exchangeRequest // unbuffered: the loop accepts one request at a time

	termOnce sync.Once
	termErr  error
	done     chan struct{}
}

// Dial connects to BGB at host:port, disables send coalescing, and performs
// the version handshake. verbose is an externally-owned flag read atomically
// for per-packet debug logging; nil means never verbose.
func Dial(host string, port int, verbose *atomic.Bool) (*Transport, error) {
	if verbose == nil {
		verbose = new(atomic.Bool)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to BGB at %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	t := &Transport{
		conn:    conn,
		log:     util.ComponentLogger("link"),
		verbose: verbose,
		reqCh:   make(chan exchangeRequest),
		done:    make(chan struct{}),
	}

	if err := t.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	t.log.Info().Str("addr", addr).Msg("BGB link established")
	go t.loop()
	return t, nil
}

// handshake sends our version packet, requires a version packet back, then
// declares the local side running so BGB starts clocking the link.
func (t *Transport) handshake() error {
	err := t.writePacket(protocol.Packet{
		Command: protocol.CmdVersion,
		Data:    protocol.VersionLocal,
		Extra1:  protocol.VersionMax,
	})
	if err != nil {
		return fmt.Errorf("handshake send: %w", err)
	}

	t.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var raw [protocol.PacketSize]byte
	if _, err := io.ReadFull(t.conn, raw[:]); err != nil {
		return fmt.Errorf("handshake read: %w", err)
	}
	t.conn.SetReadDeadline(time.Time{})

	resp := protocol.Decode(raw)
	if resp.Command != protocol.CmdVersion {
		return fmt.Errorf("%w: expected version packet (cmd=%d), got cmd=%d",
			ErrHandshake, protocol.CmdVersion, resp.Command)
	}

	return t.writePacket(protocol.Packet{
		Command: protocol.CmdStatus,
		Data:    protocol.StatusRunning,
	})
}

// Exchange sends one byte across the link cable and returns the byte the
// peer clocked back. It blocks until the transfer resolves, the timeout
// expires, or the transport is torn down.
//
// Callers must not overlap Exchange calls: at most one exchange may be
// outstanding at a time. The unbuffered request channel makes an accidental
// second caller wait rather than corrupt state, but serialization is the
// caller's contract, not something the transport queues for.
func (t *Transport) Exchange(b byte) (byte, error) {
	req := exchangeRequest{send: b, resultCh: make(chan exchangeResult, 1)}

	select {
	case t.reqCh <- req:
	case <-t.done:
		return 0, t.Err()
	}

	select {
	case res := <-req.resultCh:
		return res.value, res.err
	case <-t.done:
		return 0, t.Err()
	}
}

// Done returns a channel closed when the transport is torn down, either by
// Close or by a terminal link error.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Err returns the terminal cause after Done is closed, nil before.
func (t *Transport) Err() error {
	select {
	case <-t.done:
		if t.termErr != nil {
			return t.termErr
		}
		return ErrClosed
	default:
		return nil
	}
}

// Close tears the transport down. Closing the socket makes the background
// loop's next read fail, which finishes the shutdown.
func (t *Transport) Close() error {
	t.fail(ErrClosed)
	return t.conn.Close()
}

// fail records the terminal cause and closes done, exactly once.
func (t *Transport) fail(err error) {
	t.termOnce.Do(func() {
		t.termErr = err
		close(t.done)
	})
}

// writePacket encodes and writes one packet to the socket.
func (t *Transport) writePacket(pkt protocol.Packet) error {
	raw := protocol.Encode(pkt)
	if _, err := t.conn.Write(raw[:]); err != nil {
		return err
	}
	util.Stats.AddPacketOut()
	return nil
}
