package game

import (
	"encoding/json"
	"testing"
)

func TestMinesGameState_HidesLayoutWhileActive(t *testing.T) {
	s := MinesGameState{
		GameID:        "g1",
		GridSize:      5,
		MineCount:     2,
		ServerSeed:    "secret",
		MinePositions: []int{3, 12},
		Status:        STATUS_ACTIVE,
	}
	if s.reveal() != nil {
		t.Fatal("reveal() must be nil while active")
	}

	s.Status = STATUS_BUSTED
	r := s.reveal()
	if r == nil || r.ServerSeed != "secret" {
		t.Fatalf("expected seed revealed, got %+v", r)
	}
	if r.MinePositions[0].Row != 0 || r.MinePositions[0].Col != 3 || r.MinePositions[1].Row != 2 || r.MinePositions[1].Col != 2 {
		t.Errorf("unexpected coordinates %+v", r.MinePositions)
	}
}

func TestMinesClickResponse_ResultShape(t *testing.T) {
	data, err := json.Marshal(MinesClickResponse{Success: true, Row: 1, Col: 4, Result: "win"})
	if err != nil {
		t.Fatalf("Failed to marshal MinesClickResponse: %v", err)
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(data, &jsonMap); err != nil {
		t.Fatalf("Failed to unmarshal to map: %v", err)
	}
	if jsonMap["row"] != 1.0 || jsonMap["col"] != 4.0 || jsonMap["result"] != "win" {
		t.Errorf("unexpected shape %v", jsonMap)
	}
	if _, exists := jsonMap["reveal"]; exists {
		t.Error("reveal should be omitted while empty")
	}
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name   string
		game   GameType
		action string
		data   string
		ok     bool
	}{
		{"mines bet", GameTypeMines, "bet", `{"user_id":"u","amount":1,"mine_count":3}`, true},
		{"mines auto", GameTypeMines, "auto", `{"tiles":[{"row":0,"col":1}]}`, true},
		{"coin flip", GameTypeCoinFlip, "flip", `{"side":"heads"}`, true},
		{"scratch", GameTypeScratch, "play", ``, true},
		{"wrong action", GameTypeCoinFlip, "click", `{}`, false},
		{"bad body", GameTypeMines, "click", `[]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest(tt.game, tt.action, json.RawMessage(tt.data))
			if (err == nil) != tt.ok {
				t.Fatalf("DecodeRequest() error = %v, want ok=%v", err, tt.ok)
			}
			if !tt.ok {
				return
			}
			switch v := got.(type) {
			case MinesAutoRequest:
				if len(v.Tiles) != 1 || v.Tiles[0].Col != 1 {
					t.Errorf("unexpected tiles %+v", v.Tiles)
				}
			case MinesBetRequest:
				if v.MineCount != 3 {
					t.Errorf("unexpected bet %+v", v)
				}
			case CoinFlipRequest:
				if v.Side != "heads" {
					t.Errorf("unexpected flip %+v", v)
				}
			case ScratchRequest:
			default:
				t.Errorf("unexpected type %T", got)
			}
		})
	}
}
