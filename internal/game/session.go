package game

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/webgb/bgbridge/internal/util"
)

// Exchanger is the byte-exchange primitive the session drives. It is
// satisfied by *link.Transport and mocked in tests.
type Exchanger interface {
	Exchange(b byte) (byte, error)
}

// Phase is the session's active state.
type Phase uint8

const (
	PhaseWaitingForGame Phase = iota
	PhaseProbing
	PhaseMusicSelect
	PhaseWaitingForStart
	PhaseGameStarting
	PhaseInGame
)

func (p Phase) String() string {
	switch p {
	case PhaseWaitingForGame:
		return "WaitingForGame"
	case PhaseProbing:
		return "Probing"
	case PhaseMusicSelect:
		return "MusicSelect"
	case PhaseWaitingForStart:
		return "WaitingForStart"
	case PhaseGameStarting:
		return "GameStarting"
	case PhaseInGame:
		return "InGame"
	default:
		return "Unknown"
	}
}

// Protocol bytes of the Tetris link protocol.
const (
	probeByte        = 0x29 // detects a ready opponent
	probeAck         = 0x55 // opponent's acknowledgement
	musicConfirmByte = 0x50 // locks in the music selection
	defaultMusicByte = 0x1C // A-Type music
	screenFillAck    = 0x43 // queued after the post-loss screen fill

	heightLimit      = 20   // replies below this are stack heights
	linesMin         = 0x80 // garbage lines signal range
	linesMax         = 0x85
	winByte          = 0x77 // opponent reached 30 lines
	loseByte         = 0xAA // opponent topped out
	screenFilledByte = 0xFF
)

// Loop timing.
const (
	idleInterval     = 50 * time.Millisecond
	musicInterval    = 100 * time.Millisecond
	gameTickInterval = 100 * time.Millisecond
	probeRetryWait   = 500 * time.Millisecond  // unexpected probe reply
	probeErrorWait   = 1000 * time.Millisecond // probe exchange error

	// Topped-out signals inside this window after game start are noise
	// from the opening exchanges and are suppressed.
	loseSuppressWindow = 3000 * time.Millisecond
)

// Session is the phase-based sequencer for one browser connection. All of
// its state is owned by the goroutine running Run; commands and events are
// the only way in and out.
type Session struct {
	ex     Exchanger
	cmds   <-chan Command
	events chan<- Event
	log    zerolog.Logger

	phase          Phase
	musicByte      byte
	opponentHeight byte
	queue          []byte
	startedAt      time.Time
}

// NewSession creates a session reading commands from cmds and emitting
// semantic events on events. The session holds a reference to ex but does
// not own its lifetime.
func NewSession(ex Exchanger, cmds <-chan Command, events chan<- Event) *Session {
	return &Session{
		ex:        ex,
		cmds:      cmds,
		events:    events,
		log:       util.ComponentLogger("game"),
		phase:     PhaseWaitingForGame,
		musicByte: defaultMusicByte,
	}
}

// Run executes the session loop until a Stop command arrives or the command
// inbox is closed. Every iteration drains the inbox before running the
// active phase's action.
func (s *Session) Run() {
	s.log.Info().Msg("game session started")

	for {
		if s.processCommands() {
			s.log.Info().Msg("game session stopped")
			return
		}

		switch s.phase {
		case PhaseWaitingForGame, PhaseWaitingForStart, PhaseGameStarting:
			time.Sleep(idleInterval)
		case PhaseProbing:
			s.probe()
		case PhaseMusicSelect:
			// Keepalive push of the current selection; the reply is noise.
			s.exchangeQuiet(s.musicByte)
			time.Sleep(musicInterval)
		case PhaseInGame:
			s.gameTick()
			time.Sleep(gameTickInterval)
		}
	}
}

// processCommands drains all pending commands without blocking. It reports
// true when the session must stop; a closed inbox counts as a Stop.
func (s *Session) processCommands() bool {
	for {
		select {
		case cmd, ok := <-s.cmds:
			if !ok {
				s.log.Info().Msg("command inbox closed, stopping")
				return true
			}
			if s.apply(cmd) {
				return true
			}
		default:
			return false
		}
	}
}

// apply handles one command. It reports true for Stop.
func (s *Session) apply(cmd Command) bool {
	switch c := cmd.(type) {
	case SetGame:
		s.log.Info().Str("game", c.Name).Msg("game selected, probing link")
		s.phase = PhaseProbing

	case SetMusic:
		s.musicByte = c.Byte

	case ConfirmMusic:
		s.log.Info().Uint8("music", s.musicByte).Msg("music confirmed")
		s.exchangeQuiet(musicConfirmByte)
		s.phase = PhaseWaitingForStart

	case StartGame:
		s.runStartSequence(c)

	case SetHeight:
		s.opponentHeight = c.Byte

	case QueueCommand:
		s.queue = append(s.queue, c.Byte)

	case Stop:
		return true
	}
	return false
}

// probe sends the probe byte once and retries with backoff until the
// opponent acknowledges. There is no retry limit; only Stop ends it.
func (s *Session) probe() {
	resp, err := s.ex.Exchange(probeByte)
	if err != nil {
		s.log.Warn().Err(err).Msg("probe failed, retrying")
		time.Sleep(probeErrorWait)
		return
	}
	if resp != probeAck {
		s.log.Debug().Uint8("resp", resp).Msg("unexpected probe reply, retrying")
		time.Sleep(probeRetryWait)
		return
	}

	s.log.Info().Msg("probe acknowledged, opponent ready")
	s.emit(Event{Type: EventConnected})
	s.phase = PhaseMusicSelect
}

// gameTick runs one steady-state iteration: pick the byte to send (queued
// commands take priority over the opponent height), exchange it, and
// classify the reply.
func (s *Session) gameTick() {
	b := s.opponentHeight
	if len(s.queue) > 0 {
		b = s.queue[0]
		s.queue = s.queue[1:]
	}

	resp, err := s.ex.Exchange(b)
	if err != nil {
		s.log.Warn().Err(err).Msg("game tick exchange failed")
		return
	}
	s.classify(resp)
}

// classify translates one steady-state reply byte into a semantic event.
func (s *Session) classify(v byte) {
	switch {
	case v < heightLimit:
		s.emit(Event{Type: EventHeight, Value: v})

	case v >= linesMin && v <= linesMax:
		s.emit(Event{Type: EventLines, Value: v})

	case v == winByte:
		s.log.Info().Msg("Game Boy reports win (30 lines)")
		s.emit(Event{Type: EventWin})

	case v == loseByte:
		if time.Since(s.startedAt) < loseSuppressWindow {
			s.log.Debug().Msg("ignoring topped-out signal, game just started")
			return
		}
		s.log.Info().Msg("Game Boy reports topped out")
		s.emit(Event{Type: EventLose})

	case v == screenFilledByte:
		s.emit(Event{Type: EventScreenFilled})
		s.queue = append(s.queue, screenFillAck)
	}
}

// emit delivers an event without blocking the session loop.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Str("event", string(ev.Type)).Msg("event outbox full, dropping")
	}
}

// exchangeQuiet exchanges one byte and absorbs any error into the log.
func (s *Session) exchangeQuiet(b byte) {
	if _, err := s.ex.Exchange(b); err != nil {
		s.log.Warn().Err(err).Uint8("byte", b).Msg("exchange failed")
	}
}
