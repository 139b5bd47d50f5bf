package link

import (
	"fmt"
	"net"
	"time"

	"github.com/webgb/bgbridge/internal/protocol"
	"github.com/webgb/bgbridge/internal/util"
)

// pendingExchange is the single in-flight transfer. At most one exists per
// transport at any instant; that is the central ordering invariant.
type pendingExchange struct {
	resultCh chan<- exchangeResult
	sent     byte
	deadline time.Time
}

// loop is the transport's background goroutine. It alternates between a
// non-blocking pickup of a newly requested exchange and a short-deadline
// read that reassembles 8-byte packets in arrival order. The read deadline
// doubles as the idle sleep, so an idle loop wakes about once a millisecond.
func (t *Transport) loop() {
	defer t.conn.Close()

	var pending *pendingExchange
	var buf []byte
	rd := make([]byte, 256)

	// Whoever is waiting on an abandoned exchange gets the terminal cause.
	defer func() {
		if pending != nil {
			pending.resultCh <- exchangeResult{err: t.Err()}
		}
	}()

	for {
		select {
		case <-t.done:
			return
		default:
		}

		if pending == nil {
			select {
			case req := <-t.reqCh:
				pending = &pendingExchange{
					resultCh: req.resultCh,
					sent:     req.send,
					deadline: time.Now().Add(ExchangeTimeout),
				}
				util.Stats.AddExchange()
				err := t.writePacket(protocol.Packet{
					Command:   protocol.CmdSync1,
					Data:      req.send,
					Extra1:    protocol.ControlMaster,
					Timestamp: t.tick(),
				})
				if err != nil {
					t.fail(fmt.Errorf("link: send sync1: %w", err))
					return
				}
				if t.verbose.Load() {
					t.log.Debug().Uint8("byte", req.send).Msg("transfer offered")
				}
			default:
			}
		} else if time.Now().After(pending.deadline) {
			// Free the slot; a response that arrives later is stale.
			util.Stats.AddTimeout()
			t.log.Warn().Uint8("byte", pending.sent).Msg("exchange timed out")
			pending.resultCh <- exchangeResult{err: ErrExchangeTimeout}
			pending = nil
		}

		t.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := t.conn.Read(rd)
		if n > 0 {
			buf = append(buf, rd[:n]...)
			for len(buf) >= protocol.PacketSize {
				var raw [protocol.PacketSize]byte
				copy(raw[:], buf[:protocol.PacketSize])
				// Shift the remainder to the buffer front.
				buf = buf[:copy(buf, buf[protocol.PacketSize:])]

				if terminate := t.handlePacket(protocol.Decode(raw), &pending); terminate {
					return
				}
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			t.fail(fmt.Errorf("link: read: %w", err))
			return
		}
	}
}

// handlePacket applies the protocol rules for one inbound packet. It returns
// true when the loop must terminate.
func (t *Transport) handlePacket(pkt protocol.Packet, pending **pendingExchange) bool {
	util.Stats.AddPacketIn()
	if t.verbose.Load() {
		t.log.Debug().
			Uint8("cmd", pkt.Command).
			Uint8("data", pkt.Data).
			Uint32("ts", pkt.Timestamp).
			Msg("packet received")
	}

	switch pkt.Command {
	case protocol.CmdSync1:
		if p := *pending; p != nil {
			// Both sides offered a transfer at once. Answer with the byte
			// we already sent and take the peer's byte as our result.
			util.Stats.AddCollision()
			if !t.reply(protocol.Packet{
				Command:   protocol.CmdSync2,
				Data:      p.sent,
				Extra1:    protocol.ControlSlave,
				Timestamp: pkt.Timestamp,
			}) {
				return true
			}
			p.resultCh <- exchangeResult{value: pkt.Data}
			*pending = nil
		} else {
			// Unsolicited peer transfer: acknowledge with a null byte.
			if !t.reply(protocol.Packet{
				Command:   protocol.CmdSync2,
				Extra1:    protocol.ControlSlave,
				Timestamp: pkt.Timestamp,
			}) {
				return true
			}
		}

	case protocol.CmdSync2:
		p := *pending
		if p == nil {
			// Stale response for a transfer that already timed out.
			t.log.Debug().Uint8("data", pkt.Data).Msg("stale sync2 discarded")
			return false
		}
		p.resultCh <- exchangeResult{value: pkt.Data}
		*pending = nil

	case protocol.CmdSync3:
		// Keepalive acknowledgement, echoed back verbatim.
		return !t.reply(pkt)

	case protocol.CmdStatus:
		return !t.reply(protocol.Packet{
			Command:   protocol.CmdStatus,
			Data:      protocol.StatusRunning,
			Timestamp: pkt.Timestamp,
		})

	case protocol.CmdDisconnect:
		t.log.Info().Msg("peer requested disconnect")
		t.fail(ErrPeerDisconnect)
		return true

	default:
		t.log.Debug().Uint8("cmd", pkt.Command).Msg("ignoring unrecognized command")
	}
	return false
}

// reply writes a packet from inside the loop; on write failure it records
// the terminal cause and reports false so the loop can exit.
func (t *Transport) reply(pkt protocol.Packet) bool {
	if err := t.writePacket(pkt); err != nil {
		t.fail(fmt.Errorf("link: write: %w", err))
		return false
	}
	return true
}
