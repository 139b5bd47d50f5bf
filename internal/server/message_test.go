package server

import (
	"reflect"
	"testing"

	"github.com/webgb/bgbridge/internal/game"
)

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		name string
		json string
		want game.Command
	}{
		{
			name: "set_game",
			json: `{"type":"set_game","game":"tetris"}`,
			want: game.SetGame{Name: "tetris"},
		},
		{
			name: "set_music",
			json: `{"type":"set_music","value":29}`,
			want: game.SetMusic{Byte: 0x1D},
		},
		{
			name: "confirm_music",
			json: `{"type":"confirm_music"}`,
			want: game.ConfirmMusic{},
		},
		{
			name: "start_game",
			json: `{"type":"start_game","garbage":[1,2],"tiles":[16],"is_first":true}`,
			want: game.StartGame{Garbage: []byte{0x01, 0x02}, Tiles: []byte{0x10}, IsFirst: true},
		},
		{
			name: "start_game empty payloads",
			json: `{"type":"start_game","is_first":false}`,
			want: game.StartGame{Garbage: []byte{}, Tiles: []byte{}, IsFirst: false},
		},
		{
			name: "set_height",
			json: `{"type":"set_height","value":7}`,
			want: game.SetHeight{Byte: 0x07},
		},
		{
			name: "queue_command",
			json: `{"type":"queue_command","value":67}`,
			want: game.QueueCommand{Byte: 0x43},
		},
		{
			name: "stop",
			json: `{"type":"stop"}`,
			want: game.Stop{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCommand([]byte(tc.json))
			if err != nil {
				t.Fatalf("parseCommand: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("parsed command: got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestParseCommandRejects(t *testing.T) {
	testCases := []struct {
		name string
		json string
	}{
		{"invalid JSON", `{"type":`},
		{"unknown type", `{"type":"teleport"}`},
		{"missing game name", `{"type":"set_game"}`},
		{"value above byte range", `{"type":"set_music","value":256}`},
		{"negative value", `{"type":"set_height","value":-1}`},
		{"garbage above byte range", `{"type":"start_game","garbage":[300]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseCommand([]byte(tc.json)); err == nil {
				t.Errorf("parseCommand(%s) accepted invalid input", tc.json)
			}
		})
	}
}
