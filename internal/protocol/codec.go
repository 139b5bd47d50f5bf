package protocol

import "encoding/binary"

// Encode serializes a Packet into its fixed 8-byte wire form.
func Encode(pkt Packet) [PacketSize]byte {
	var buf [PacketSize]byte
	buf[0] = pkt.Command
	buf[1] = pkt.Data
	buf[2] = pkt.Extra1
	buf[3] = pkt.Extra2
	binary.LittleEndian.PutUint32(buf[4:8], pkt.Timestamp)
	return buf
}

// Decode deserializes 8 wire bytes into a Packet. It is total: every input
// yields a valid packet, so there is no error path.
func Decode(buf [PacketSize]byte) Packet {
	return Packet{
		Command:   buf[0],
		Data:      buf[1],
		Extra1:    buf[2],
		Extra2:    buf[3],
		Timestamp: binary.LittleEndian.Uint32(buf[4:8]),
	}
}
