package game

import (
	"context"
	"encoding/json"
	"testing"

	"minigames/internal/cache"
)

func TestGameFactory_RegisterEngine(t *testing.T) {
	store := cache.NewMemoryStore()
	hub := NewHub()
	factory := NewGameFactory(store, hub)

	t.Run("register mines engine", func(t *testing.T) {
		factory.RegisterEngine(NewMinesEngine(store, hub))

		engine, exists := factory.GetEngine(GameTypeMines)
		if !exists {
			t.Fatal("mines engine should be registered")
		}
		if engine.GetType() != GameTypeMines {
			t.Error("retrieved engine should be mines type")
		}
	})

	t.Run("get non-existent engine", func(t *testing.T) {
		if _, exists := factory.GetEngine(GameTypeScratch); exists {
			t.Error("scratch engine should not exist yet")
		}
	})
}

func TestGameFactory_Default(t *testing.T) {
	store := cache.NewMemoryStore()
	rec := &memRecorder{}
	factory := NewDefaultFactory(store, nil, rec)

	t.Run("all engines accessible", func(t *testing.T) {
		want := []GameType{GameTypeCoinFlip, GameTypeMines, GameTypeScratch}
		got := factory.Types()
		if len(got) != len(want) {
			t.Fatalf("Types() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Types() = %v, want %v", got, want)
			}
		}
	})

	t.Run("start and stop", func(t *testing.T) {
		if err := factory.StartAll(context.Background()); err != nil {
			t.Fatalf("StartAll() error = %v", err)
		}
		if err := factory.StopAll(); err != nil {
			t.Fatalf("StopAll() error = %v", err)
		}
	})

	t.Run("recorder reaches every engine", func(t *testing.T) {
		store.SetBalance(context.Background(), "u1", 100)
		if _, err := factory.Dispatch(context.Background(), WSRequest{
			Game:   GameTypeCoinFlip,
			Action: "bet",
			Data:   json.RawMessage(`{"user_id":"u1","amount":5,"side":"heads"}`),
		}); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if len(rec.records) != 1 || rec.records[0].Game != GameTypeCoinFlip {
			t.Errorf("expected one coin flip record, got %+v", rec.records)
		}
	})
}

func TestGameFactory_Dispatch(t *testing.T) {
	store := cache.NewMemoryStore()
	store.SetBalance(context.Background(), "u1", 100)
	factory := NewDefaultFactory(store, nil, nil)
	ctx := context.Background()

	bet, err := factory.Dispatch(ctx, WSRequest{
		Game:   GameTypeMines,
		Action: "bet",
		Data:   json.RawMessage(`{"user_id":"u1","amount":10,"mine_count":3}`),
	})
	if err != nil {
		t.Fatalf("Dispatch(bet) error = %v", err)
	}
	betResp, ok := bet.(MinesBetResponse)
	if !ok || !betResp.Success {
		t.Fatalf("unexpected bet response %#v", bet)
	}

	click, err := factory.Dispatch(ctx, WSRequest{
		Game:   GameTypeMines,
		Action: "click",
		Data:   json.RawMessage(`{"user_id":"u1","game_id":"` + betResp.GameID + `","row":0,"col":0}`),
	})
	if err != nil {
		t.Fatalf("Dispatch(click) error = %v", err)
	}
	if resp, ok := click.(MinesClickResponse); !ok || !resp.Success {
		t.Errorf("unexpected click response %#v", click)
	}

	tests := []struct {
		name string
		req  WSRequest
	}{
		{"unknown game", WSRequest{Game: "roulette", Action: "bet"}},
		{"unknown action", WSRequest{Game: GameTypeMines, Action: "explode"}},
		{"bad json", WSRequest{Game: GameTypeScratch, Action: "play", Data: json.RawMessage(`{`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := factory.Dispatch(ctx, tt.req); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGameType_Constants(t *testing.T) {
	types := []GameType{GameTypeMines, GameTypeCoinFlip, GameTypeScratch}

	uniqueMap := make(map[GameType]bool)
	for _, gameType := range types {
		if string(gameType) == "" {
			t.Errorf("game type should not be empty")
		}
		if uniqueMap[gameType] {
			t.Errorf("duplicate game type: %v", gameType)
		}
		uniqueMap[gameType] = true
	}
}
