package game

import (
	"context"
	"encoding/json"
	"errors"
)

var errUnknownCall = errors.New("unknown game or action")

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSRequest is a relay call sent over the websocket. Data holds the JSON body
// of the matching HTTP request.
type WSRequest struct {
	ID     string          `json:"id,omitempty"`
	Game   GameType        `json:"game"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type WSReply struct {
	ID    string      `json:"id,omitempty"`
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type WelcomeMessage struct {
	UserID string     `json:"user_id"`
	Games  []GameType `json:"games"`
}

// DecodeRequest turns a websocket call into the typed request its engine
// expects. "bet" is the PlaceBet action for every game.
func DecodeRequest(game GameType, action string, data json.RawMessage) (interface{}, error) {
	var target interface{}
	switch game {
	case GameTypeMines:
		switch action {
		case "bet":
			target = &MinesBetRequest{}
		case "click":
			target = &MinesClickRequest{}
		case "auto":
			target = &MinesAutoRequest{}
		case "cashout":
			target = &MinesCashoutRequest{}
		case "verify":
			target = &MinesVerifyRequest{}
		}
	case GameTypeCoinFlip:
		if action == "bet" || action == "flip" {
			target = &CoinFlipRequest{}
		}
	case GameTypeScratch:
		if action == "bet" || action == "play" {
			target = &ScratchRequest{}
		}
	}
	if target == nil {
		return nil, errUnknownCall
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, target); err != nil {
			return nil, err
		}
	}

	switch v := target.(type) {
	case *MinesBetRequest:
		return *v, nil
	case *MinesClickRequest:
		return *v, nil
	case *MinesAutoRequest:
		return *v, nil
	case *MinesCashoutRequest:
		return *v, nil
	case *MinesVerifyRequest:
		return *v, nil
	case *CoinFlipRequest:
		return *v, nil
	case *ScratchRequest:
		return *v, nil
	}
	return nil, errUnknownCall
}

// Dispatch routes a decoded websocket call to its engine.
func (gf *GameFactory) Dispatch(ctx context.Context, req WSRequest) (interface{}, error) {
	engine, ok := gf.GetEngine(req.Game)
	if !ok {
		return nil, errUnknownCall
	}
	typed, err := DecodeRequest(req.Game, req.Action, req.Data)
	if err != nil {
		return nil, err
	}
	if req.Action == "bet" {
		return engine.PlaceBet(ctx, typed)
	}
	return engine.ProcessAction(ctx, req.Action, typed)
}
