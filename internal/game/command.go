// Package game drives a specific game's link protocol on top of the byte
// exchange primitive: probing the opponent, pushing the music selection,
// playing the scripted game-start sequence, and running the steady-state
// polling loop. The current target is Game Boy Tetris two-player mode.
package game

// Command is the closed union of browser-originated commands. Raw payloads
// are validated and converted into these types at the system boundary; the
// session never inspects untyped data.
type Command interface {
	isCommand()
}

// SetGame tells the session which game to play and starts probing the link.
type SetGame struct {
	Name string
}

// SetMusic updates the music selection byte pushed during MusicSelect.
type SetMusic struct {
	Byte byte
}

// ConfirmMusic locks in the music selection and waits for the game start.
type ConfirmMusic struct{}

// StartGame plays the scripted game-start sequence with the given initial
// garbage lines and tile data.
type StartGame struct {
	Garbage []byte
	Tiles   []byte
	IsFirst bool // first game of the match or a rematch
}

// SetHeight updates the opponent stack height sent on idle game ticks.
type SetHeight struct {
	Byte byte
}

// QueueCommand appends a win/lose/lines acknowledgement byte to the queue.
type QueueCommand struct {
	Byte byte
}

// Stop terminates the session loop.
type Stop struct{}

func (SetGame) isCommand()      {}
func (SetMusic) isCommand()     {}
func (ConfirmMusic) isCommand() {}
func (StartGame) isCommand()    {}
func (SetHeight) isCommand()    {}
func (QueueCommand) isCommand() {}
func (Stop) isCommand()         {}

// EventType identifies a semantic event produced by the session.
type EventType string

const (
	EventConnected    EventType = "connected"     // probe acknowledged, opponent ready
	EventHeight       EventType = "height"        // stack height read from the Game Boy
	EventLines        EventType = "lines"         // garbage lines signal (0x80..0x85)
	EventWin          EventType = "win"           // Game Boy reached 30 lines
	EventLose         EventType = "lose"          // Game Boy topped out
	EventScreenFilled EventType = "screen_filled" // post-loss screen fill finished
)

// Event is one semantic event for the front end. Log lines are routed
// through the structured logger instead, never through the event stream.
type Event struct {
	Type  EventType `json:"event"`
	Value byte      `json:"value"`
}
