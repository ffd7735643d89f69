package game

import (
	"context"
	"sort"
	"sync"

	"minigames/internal/cache"

	"github.com/sirupsen/logrus"
)

type GameType string

const (
	GameTypeMines    GameType = "mines"
	GameTypeCoinFlip GameType = "coinflip"
	GameTypeScratch  GameType = "scratch"
)

type GameEngine interface {
	GetType() GameType
	Start(ctx context.Context) error
	Stop() error
	GetState() interface{}
	PlaceBet(ctx context.Context, req interface{}) (interface{}, error)
	ProcessAction(ctx context.Context, action string, req interface{}) (interface{}, error)
}

type GameFactory struct {
	engines map[GameType]GameEngine
	store   cache.Store
	hub     *Hub
	mu      sync.RWMutex
	log     *logrus.Entry
}

func NewGameFactory(store cache.Store, hub *Hub) *GameFactory {
	return &GameFactory{
		engines: make(map[GameType]GameEngine),
		store:   store,
		hub:     hub,
		log:     logrus.WithField("component", "factory"),
	}
}

// NewDefaultFactory registers every relay game against one store and hub.
func NewDefaultFactory(store cache.Store, hub *Hub, recorder Recorder) *GameFactory {
	gf := NewGameFactory(store, hub)
	gf.RegisterEngine(NewMinesEngine(store, hub))
	gf.RegisterEngine(NewCoinFlipEngine(store, hub))
	gf.RegisterEngine(NewScratchEngine(store, hub))
	if recorder != nil {
		gf.SetRecorder(recorder)
	}
	return gf
}

func (gf *GameFactory) RegisterEngine(engine GameEngine) {
	gf.mu.Lock()
	defer gf.mu.Unlock()
	gf.engines[engine.GetType()] = engine
}

func (gf *GameFactory) GetEngine(gameType GameType) (GameEngine, bool) {
	gf.mu.RLock()
	defer gf.mu.RUnlock()
	engine, exists := gf.engines[gameType]
	return engine, exists
}

// Types lists the registered games in name order.
func (gf *GameFactory) Types() []GameType {
	gf.mu.RLock()
	defer gf.mu.RUnlock()
	types := make([]GameType, 0, len(gf.engines))
	for t := range gf.engines {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SetRecorder attaches a round recorder to every engine that accepts one.
func (gf *GameFactory) SetRecorder(r Recorder) {
	gf.mu.RLock()
	defer gf.mu.RUnlock()
	for _, engine := range gf.engines {
		if rs, ok := engine.(interface{ SetRecorder(Recorder) }); ok {
			rs.SetRecorder(r)
		}
	}
}

func (gf *GameFactory) StartAll(ctx context.Context) error {
	for _, gameType := range gf.Types() {
		engine, _ := gf.GetEngine(gameType)
		if err := engine.Start(ctx); err != nil {
			return err
		}
		gf.log.WithField("game", gameType).Info("engine started")
	}
	return nil
}

func (gf *GameFactory) StopAll() error {
	for _, gameType := range gf.Types() {
		engine, _ := gf.GetEngine(gameType)
		if err := engine.Stop(); err != nil {
			return err
		}
		gf.log.WithField("game", gameType).Info("engine stopped")
	}
	return nil
}
