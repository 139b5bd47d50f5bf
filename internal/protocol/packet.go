// Package protocol defines the 8-byte BGB link-cable packet format.
package protocol

// Command constants of the BGB link protocol.
const (
	CmdVersion    uint8 = 1   // version handshake
	CmdSync1      uint8 = 104 // offered transfer (master)
	CmdSync2      uint8 = 105 // transfer response (slave)
	CmdSync3      uint8 = 106 // acknowledgement / timestamp keepalive
	CmdStatus     uint8 = 108 // status query / report
	CmdDisconnect uint8 = 109 // peer requests disconnect
)

// Serial-control values carried in Extra1 of sync packets. Bit 7 marks an
// active transfer; bit 0 marks the sender as the clock source.
const (
	ControlMaster uint8 = 0x81 // local side supplies the serial clock
	ControlSlave  uint8 = 0x80 // responding side, clocked by the peer
)

// Version handshake values: we speak protocol version 1 and accept up to 4.
const (
	VersionLocal uint8 = 1
	VersionMax   uint8 = 4
)

// StatusRunning is the Data value of a status packet declaring the emulator
// is running and able to exchange bytes.
const StatusRunning uint8 = 1

// PacketSize is the fixed wire size of every packet.
const PacketSize = 8

// Packet is one BGB link protocol packet. Any 8-byte buffer decodes to a
// valid Packet — unknown Command values are legal and must be tolerated.
type Packet struct {
	Command   uint8  // selects the packet meaning (CmdVersion, CmdSync1, ...)
	Data      uint8  // payload byte
	Extra1    uint8  // auxiliary, meaning depends on Command
	Extra2    uint8  // auxiliary, meaning depends on Command
	Timestamp uint32 // little-endian on the wire, 31-bit in practice
}
