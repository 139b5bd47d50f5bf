package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/webgb/bgbridge/internal/game"
)

// clientMessage is the JSON envelope for browser commands. Byte payloads
// arrive as plain number arrays, not base64.
type clientMessage struct {
	Type    string `json:"type"`
	Game    string `json:"game,omitempty"`
	Value   int    `json:"value,omitempty"`
	Garbage []int  `json:"garbage,omitempty"`
	Tiles   []int  `json:"tiles,omitempty"`
	IsFirst bool   `json:"is_first,omitempty"`
}

// parseCommand validates one JSON text frame and converts it into the
// closed game.Command union. Anything malformed is rejected here; the
// session never sees raw payloads.
func parseCommand(data []byte) (game.Command, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid command JSON: %w", err)
	}

	switch msg.Type {
	case "set_game":
		if msg.Game == "" {
			return nil, errors.New("set_game requires a game name")
		}
		return game.SetGame{Name: msg.Game}, nil

	case "set_music":
		b, err := byteValue(msg.Value)
		if err != nil {
			return nil, fmt.Errorf("set_music: %w", err)
		}
		return game.SetMusic{Byte: b}, nil

	case "confirm_music":
		return game.ConfirmMusic{}, nil

	case "start_game":
		garbage, err := byteSlice(msg.Garbage)
		if err != nil {
			return nil, fmt.Errorf("start_game garbage: %w", err)
		}
		tiles, err := byteSlice(msg.Tiles)
		if err != nil {
			return nil, fmt.Errorf("start_game tiles: %w", err)
		}
		return game.StartGame{Garbage: garbage, Tiles: tiles, IsFirst: msg.IsFirst}, nil

	case "set_height":
		b, err := byteValue(msg.Value)
		if err != nil {
			return nil, fmt.Errorf("set_height: %w", err)
		}
		return game.SetHeight{Byte: b}, nil

	case "queue_command":
		b, err := byteValue(msg.Value)
		if err != nil {
			return nil, fmt.Errorf("queue_command: %w", err)
		}
		return game.QueueCommand{Byte: b}, nil

	case "stop":
		return game.Stop{}, nil

	default:
		return nil, fmt.Errorf("unknown command type %q", msg.Type)
	}
}

func byteValue(v int) (byte, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("value %d out of byte range", v)
	}
	return byte(v), nil
}

func byteSlice(vs []int) ([]byte, error) {
	out := make([]byte, 0, len(vs))
	for _, v := range vs {
		b, err := byteValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
