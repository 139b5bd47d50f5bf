package link

// Link clock parameters. BGB timestamps count emulated 2 MiHz cycles and are
// 31-bit: the top bit must stay 0.
const (
	clockStep = 2048       // cycles credited per initiated transfer
	clockMask = 0x7FFFFFFF // keep the counter in 31 bits
)

// tick advances the link clock by one fixed step and returns the new value.
//
// The clock self-advances per initiated transfer instead of sampling wall
// time. Declaring ourselves the clock source with timestamps that are always
// already "in the past" means BGB can process every transfer immediately,
// so real-time jitter never throttles the link.
func (t *Transport) tick() uint32 {
	t.clock = (t.clock + clockStep) & clockMask
	return t.clock
}
