package game

import "time"

// scriptStep is one byte exchange followed by a fixed wait. The bytes and
// delays are game-mandated timing: the Game Boy ROM expects them exactly,
// so changing any step desynchronizes the peer.
type scriptStep struct {
	b     byte
	delay time.Duration
}

// Opening for the first game of a match.
var firstGameOpening = []scriptStep{
	{0x60, 150 * time.Millisecond},
	{0x29, 4 * time.Millisecond},
}

// Opening for a rematch: the link has to be talked back into game mode first.
var rematchOpening = []scriptStep{
	{0x60, 70 * time.Millisecond},
	{0x02, 70 * time.Millisecond},
	{0x02, 70 * time.Millisecond},
	{0x02, 70 * time.Millisecond},
	{0x79, 330 * time.Millisecond},
	{0x60, 150 * time.Millisecond},
	{0x29, 70 * time.Millisecond},
}

// Closing played after the payload bytes; the final 0x20 starts the game.
var gameClosing = []scriptStep{
	{0x30, 70 * time.Millisecond},
	{0x00, 70 * time.Millisecond},
	{0x02, 70 * time.Millisecond},
	{0x02, 70 * time.Millisecond},
	{0x20, 70 * time.Millisecond},
}

const (
	payloadSpacing = 4 * time.Millisecond // between garbage and tile bytes
	resyncByte     = 0x29                 // re-synchronization between payload blocks
	resyncSpacing  = 8 * time.Millisecond
)

// runStartSequence plays the scripted game-start exchange: opening script,
// garbage lines, resync, tile data, closing script. On completion the start
// time is recorded and the session enters the steady-state game loop.
func (s *Session) runStartSequence(c StartGame) {
	s.phase = PhaseGameStarting
	s.queue = s.queue[:0]
	s.opponentHeight = 0

	s.log.Info().
		Bool("first", c.IsFirst).
		Int("garbage", len(c.Garbage)).
		Int("tiles", len(c.Tiles)).
		Msg("running game start sequence")

	opening := rematchOpening
	if c.IsFirst {
		opening = firstGameOpening
	}
	s.playScript(opening)

	for _, g := range c.Garbage {
		s.exchangeTimed(g, payloadSpacing)
	}
	s.exchangeTimed(resyncByte, resyncSpacing)
	for _, tb := range c.Tiles {
		s.exchangeTimed(tb, payloadSpacing)
	}

	s.playScript(gameClosing)

	s.startedAt = time.Now()
	s.phase = PhaseInGame
	s.log.Info().Msg("start sequence complete, entering game loop")
}

func (s *Session) playScript(steps []scriptStep) {
	for _, st := range steps {
		s.exchangeTimed(st.b, st.delay)
	}
}

func (s *Session) exchangeTimed(b byte, delay time.Duration) {
	s.exchangeQuiet(b)
	if delay > 0 {
		time.Sleep(delay)
	}
}
