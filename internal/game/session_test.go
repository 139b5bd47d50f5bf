package game

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockExchanger records every exchanged byte, replies from a script, and
// fails the test if two exchanges ever overlap.
type mockExchanger struct {
	t *testing.T

	mu      sync.Mutex
	calls   []byte
	script  []byte // responses consumed in order; empty → defaultResp
	defResp byte

	inFlight atomic.Int32
}

func newMockExchanger(t *testing.T) *mockExchanger {
	return &mockExchanger{t: t}
}

func (m *mockExchanger) Exchange(b byte) (byte, error) {
	if !m.inFlight.CompareAndSwap(0, 1) {
		m.t.Error("overlapping exchange: a second Exchange was issued before the first resolved")
	}
	defer m.inFlight.Store(0)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, b)
	if len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		return resp, nil
	}
	return m.defResp, nil
}

func (m *mockExchanger) sent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.calls))
	copy(out, m.calls)
	return out
}

// newTestSession builds a session with buffered channels suitable for
// driving it directly or through Run.
func newTestSession(t *testing.T) (*Session, chan Command, chan Event, *mockExchanger) {
	ex := newMockExchanger(t)
	cmds := make(chan Command, 16)
	events := make(chan Event, 16)
	return NewSession(ex, cmds, events), cmds, events, ex
}

func waitEvent(t *testing.T, events <-chan Event, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev := <-events:
		return ev, true
	case <-time.After(timeout):
		return Event{}, false
	}
}

// TestProbeConnects runs the session through probing: the first reply is
// not the acknowledgement and must produce no event; the second is 0x55 and
// must produce exactly one Connected event and the MusicSelect phase.
func TestProbeConnects(t *testing.T) {
	s, cmds, events, ex := newTestSession(t)
	ex.script = []byte{0x00, probeAck}
	ex.defResp = 0x00 // music keepalives after connecting

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	cmds <- SetGame{Name: "tetris"}

	ev, ok := waitEvent(t, events, 3*time.Second)
	if !ok {
		t.Fatal("no Connected event after probe acknowledgement")
	}
	if ev.Type != EventConnected {
		t.Fatalf("expected Connected, got %q", ev.Type)
	}

	cmds <- Stop{}
	<-done

	if s.phase != PhaseMusicSelect {
		t.Errorf("phase after probe: got %s, want MusicSelect", s.phase)
	}

	sent := ex.sent()
	if len(sent) < 2 || sent[0] != probeByte || sent[1] != probeByte {
		t.Errorf("probe should retry with the probe byte, sent %x", sent)
	}

	select {
	case ev := <-events:
		if ev.Type == EventConnected {
			t.Error("Connected emitted more than once")
		}
	default:
	}
}

// TestProbeRetriesOnUnexpectedByte verifies that a non-acknowledgement reply
// leaves the session probing with no event emitted.
func TestProbeRetriesOnUnexpectedByte(t *testing.T) {
	s, _, events, ex := newTestSession(t)
	s.phase = PhaseProbing
	ex.defResp = 0x13

	s.probe()

	if s.phase != PhaseProbing {
		t.Errorf("phase: got %s, want Probing", s.phase)
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected event %q during failed probe", ev.Type)
	default:
	}
}

// TestStartSequenceFirstGame pins the exact exchange order of the
// first-game opening, payload, resync and closing scripts.
func TestStartSequenceFirstGame(t *testing.T) {
	s, _, _, ex := newTestSession(t)
	s.phase = PhaseWaitingForStart

	s.apply(StartGame{Garbage: []byte{0x01, 0x02}, Tiles: []byte{0x10}, IsFirst: true})

	want := []byte{
		0x60, 0x29, // first-game opening
		0x01, 0x02, // garbage
		0x29,       // resync
		0x10,       // tiles
		0x30, 0x00, 0x02, 0x02, 0x20, // closing
	}
	got := ex.sent()
	if len(got) != len(want) {
		t.Fatalf("exchange count: got %d (%x), want %d (%x)", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("exchange %d: got 0x%02X, want 0x%02X (full: %x)", i, got[i], want[i], want)
		}
	}

	if s.phase != PhaseInGame {
		t.Errorf("phase after start sequence: got %s, want InGame", s.phase)
	}
	if s.startedAt.IsZero() {
		t.Error("start time not recorded")
	}
}

// TestStartSequenceRematch pins the rematch opening script.
func TestStartSequenceRematch(t *testing.T) {
	s, _, _, ex := newTestSession(t)
	s.phase = PhaseWaitingForStart
	s.queue = []byte{0xAB} // must be cleared by the start sequence
	s.opponentHeight = 9   // must be zeroed

	s.apply(StartGame{Garbage: nil, Tiles: nil, IsFirst: false})

	want := []byte{
		0x60, 0x02, 0x02, 0x02, 0x79, 0x60, 0x29, // rematch opening
		0x29,                         // resync
		0x30, 0x00, 0x02, 0x02, 0x20, // closing
	}
	got := ex.sent()
	if len(got) != len(want) {
		t.Fatalf("exchange count: got %d (%x), want %d (%x)", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("exchange %d: got 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}

	if len(s.queue) != 0 {
		t.Error("command queue not cleared by start sequence")
	}
	if s.opponentHeight != 0 {
		t.Error("opponent height not zeroed by start sequence")
	}
}

// TestQueuePriority verifies that an in-game tick sends the queue head
// instead of the opponent height and removes exactly one entry.
func TestQueuePriority(t *testing.T) {
	s, _, _, ex := newTestSession(t)
	s.phase = PhaseInGame
	s.startedAt = time.Now()
	s.opponentHeight = 0x05
	s.queue = []byte{0x43, 0x44}

	s.gameTick()
	s.gameTick()
	s.gameTick()

	want := []byte{0x43, 0x44, 0x05}
	got := ex.sent()
	if len(got) != len(want) {
		t.Fatalf("sent %x, want %x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tick %d sent 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
	if len(s.queue) != 0 {
		t.Errorf("queue should be drained, %d entries left", len(s.queue))
	}
}

// TestLoseSuppression verifies the startup-noise window: a topped-out
// signal inside 3 s of game start is suppressed, after it yields exactly
// one Lose event.
func TestLoseSuppression(t *testing.T) {
	s, _, events, _ := newTestSession(t)

	s.startedAt = time.Now()
	s.classify(loseByte)
	select {
	case ev := <-events:
		t.Errorf("suppression window leaked event %q", ev.Type)
	default:
	}

	s.startedAt = time.Now().Add(-4 * time.Second)
	s.classify(loseByte)
	ev, ok := waitEvent(t, events, time.Second)
	if !ok || ev.Type != EventLose {
		t.Fatalf("expected one Lose event, got %+v (ok=%v)", ev, ok)
	}
	select {
	case ev := <-events:
		t.Errorf("extra event %q after Lose", ev.Type)
	default:
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name      string
		value     byte
		wantType  EventType
		wantEvent bool
	}{
		{"height zero", 0x00, EventHeight, true},
		{"height nineteen", 0x13, EventHeight, true},
		{"twenty is not a height", 0x14, "", false},
		{"lines low", 0x80, EventLines, true},
		{"lines high", 0x85, EventLines, true},
		{"above lines range", 0x86, "", false},
		{"win", 0x77, EventWin, true},
		{"screen filled", 0xFF, EventScreenFilled, true},
		{"plain noise", 0x42, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, events, _ := newTestSession(t)
			s.startedAt = time.Now().Add(-time.Minute)

			s.classify(tc.value)

			select {
			case ev := <-events:
				if !tc.wantEvent {
					t.Fatalf("unexpected event %q for 0x%02X", ev.Type, tc.value)
				}
				if ev.Type != tc.wantType {
					t.Errorf("event type: got %q, want %q", ev.Type, tc.wantType)
				}
				if (tc.wantType == EventHeight || tc.wantType == EventLines) && ev.Value != tc.value {
					t.Errorf("event value: got 0x%02X, want 0x%02X", ev.Value, tc.value)
				}
			default:
				if tc.wantEvent {
					t.Fatalf("no event for 0x%02X, want %q", tc.value, tc.wantType)
				}
			}
		})
	}
}

// TestScreenFilledQueuesAck verifies the fixed follow-up byte is queued.
func TestScreenFilledQueuesAck(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	s.startedAt = time.Now().Add(-time.Minute)

	s.classify(screenFilledByte)

	if len(s.queue) != 1 || s.queue[0] != screenFillAck {
		t.Errorf("queue after screen fill: got %x, want [%02X]", s.queue, screenFillAck)
	}
}

// TestStateCommands verifies that SetMusic, SetHeight and QueueCommand only
// update session state and never change phase.
func TestStateCommands(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	s.phase = PhaseMusicSelect

	s.apply(SetMusic{Byte: 0x1D})
	s.apply(SetHeight{Byte: 0x07})
	s.apply(QueueCommand{Byte: 0x43})

	if s.phase != PhaseMusicSelect {
		t.Errorf("state commands changed phase to %s", s.phase)
	}
	if s.musicByte != 0x1D || s.opponentHeight != 0x07 {
		t.Errorf("state not updated: music=0x%02X height=0x%02X", s.musicByte, s.opponentHeight)
	}
	if len(s.queue) != 1 || s.queue[0] != 0x43 {
		t.Errorf("queue: got %x", s.queue)
	}
}

// TestConfirmMusicSendsConfirmation verifies the 0x50 confirmation exchange
// happens before the phase moves to WaitingForStart.
func TestConfirmMusicSendsConfirmation(t *testing.T) {
	s, _, _, ex := newTestSession(t)
	s.phase = PhaseMusicSelect

	s.apply(ConfirmMusic{})

	sent := ex.sent()
	if len(sent) != 1 || sent[0] != musicConfirmByte {
		t.Errorf("confirmation exchange: got %x, want [%02X]", sent, musicConfirmByte)
	}
	if s.phase != PhaseWaitingForStart {
		t.Errorf("phase: got %s, want WaitingForStart", s.phase)
	}
}

// TestInboxClosedStops verifies a closed command inbox behaves like Stop.
func TestInboxClosedStops(t *testing.T) {
	s, cmds, _, _ := newTestSession(t)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	close(cmds)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on closed inbox")
	}
}
