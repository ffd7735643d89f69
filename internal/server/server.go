package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"minigames/internal/cache"
	"minigames/internal/config"
	"minigames/internal/database"
	"minigames/internal/game"
)

var log = logrus.WithField("component", "server")

type FiberServer struct {
	*fiber.App

	db          database.Service
	cache       cache.Service
	store       cache.Store
	gameHub     *game.Hub
	gameFactory *game.GameFactory

	// baseCtx is cancelled by Shutdown; websocket calls run under it.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Deps are the collaborators of a server. DB and Cache may be nil; Store may
// not.
type Deps struct {
	Store     cache.Store
	Cache     cache.Service
	DB        database.Service
	RateLimit int
}

func New(cfg config.Server) *FiberServer {
	var db database.Service
	if cfg.UseDatabase {
		srv, err := database.Open()
		if err != nil {
			log.WithError(err).Warn("round history disabled")
		} else if err := database.RunMigrations(srv.DB(), cfg.MigrationsPath); err != nil {
			log.WithError(err).Warn("migrations failed, round history disabled")
			srv.Close()
		} else {
			db = srv
		}
	}

	store, redisService := cache.Open()

	return NewWithDeps(Deps{
		Store:     store,
		Cache:     redisService,
		DB:        db,
		RateLimit: cfg.RateLimit,
	})
}

// NewWithDeps builds the app around existing collaborators and starts the hub
// and every game engine.
func NewWithDeps(deps Deps) *FiberServer {
	hub := game.NewHub()

	var recorder game.Recorder
	if deps.DB != nil {
		recorder = deps.DB
	}
	factory := game.NewDefaultFactory(deps.Store, hub, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "minigames",
			AppName:       "minigames",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:          deps.DB,
		cache:       deps.Cache,
		store:       deps.Store,
		gameHub:     hub,
		gameFactory: factory,
		baseCtx:     ctx,
		cancel:      cancel,
	}

	rateLimit := deps.RateLimit
	if rateLimit <= 0 {
		rateLimit = 100
	}
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        rateLimit,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()

	if err := factory.StartAll(ctx); err != nil {
		log.WithError(err).Error("failed to start game engines")
	}
	log.WithField("games", factory.Types()).Info("game engines started")

	return server
}

// Shutdown stops the game components and closes storage. The HTTP listener is
// shut down by the caller.
func (s *FiberServer) Shutdown() error {
	log.Info("shutting down")
	if s.cancel != nil {
		s.cancel()
	}

	if s.gameFactory != nil {
		if err := s.gameFactory.StopAll(); err != nil {
			log.WithError(err).Warn("error stopping game engines")
		}
	}
	if s.gameHub != nil {
		s.gameHub.Stop()
	}

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
