// Package bridge intercepts the companion firmware's fixed configuration
// and printer probe messages before gameplay bytes reach the link transport.
package bridge

import (
	"bytes"

	"github.com/rs/zerolog"

	"github.com/webgb/bgbridge/internal/util"
)

// Exchanger is the byte-exchange primitive plain gameplay data is forwarded
// through, one call per input byte.
type Exchanger interface {
	Exchange(b byte) (byte, error)
}

// magicPrefix flags configuration/probe messages instead of gameplay bytes:
// 0xCAFE repeated eight times followed by 0xDEADBEEF repeated four times.
var magicPrefix = []byte{
	0xCA, 0xFE, 0xCA, 0xFE, 0xCA, 0xFE, 0xCA, 0xFE,
	0xCA, 0xFE, 0xCA, 0xFE, 0xCA, 0xFE, 0xCA, 0xFE,
	0xDE, 0xAD, 0xBE, 0xEF, 0xDE, 0xAD, 0xBE, 0xEF,
	0xDE, 0xAD, 0xBE, 0xEF, 0xDE, 0xAD, 0xBE, 0xEF,
}

var printerSuffix = []byte("PRNT")

// magicLen is the exact length of a sentinel message: prefix + 4 marker bytes.
const magicLen = 36

var (
	respPrinterUnsupported = []byte{0x00}
	respConfigAck          = []byte{0x01}
)

// Bridge resolves one browser binary message at a time.
type Bridge struct {
	ex  Exchanger
	log zerolog.Logger
}

// New creates a Bridge forwarding gameplay bytes through ex.
func New(ex Exchanger) *Bridge {
	return &Bridge{ex: ex, log: util.ComponentLogger("bridge")}
}

// HandleMessage resolves one binary message from the browser:
//
//   - sentinel + "PRNT" (36 bytes) → [0x00], printer mode unsupported
//   - sentinel + any other 4 bytes (36 bytes) → [0x01], config acknowledged
//   - anything else → one Exchange per input byte, responses in order
func (b *Bridge) HandleMessage(data []byte) ([]byte, error) {
	if len(data) == magicLen && bytes.Equal(data[:len(magicPrefix)], magicPrefix) {
		if bytes.Equal(data[len(magicPrefix):], printerSuffix) {
			b.log.Info().Msg("printer mode requested, not supported")
			return respPrinterUnsupported, nil
		}
		// Timing config — acknowledge and ignore, BGB does its own timing.
		b.log.Debug().Msg("timing config acknowledged")
		return respConfigAck, nil
	}

	resp := make([]byte, 0, len(data))
	for _, in := range data {
		out, err := b.ex.Exchange(in)
		if err != nil {
			return nil, err
		}
		resp = append(resp, out)
	}
	return resp, nil
}
