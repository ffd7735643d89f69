package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"minigames/internal/game"
)

// RegisterGameRoutes registers routes for all game types
func (s *FiberServer) RegisterGameRoutes() {
	api := s.App.Group("/api/v1")

	// Mines game routes
	mines := api.Group("/mines")
	mines.Post("/bet", s.minesBetHandler)
	mines.Post("/click", s.minesClickHandler)
	mines.Post("/auto", s.minesAutoHandler)
	mines.Post("/cashout", s.minesCashoutHandler)
	mines.Post("/verify", s.minesVerifyHandler)

	api.Post("/coinflip/flip", s.coinFlipHandler)
	api.Post("/scratch/play", s.scratchPlayHandler)
}

func (s *FiberServer) minesBetHandler(c *fiber.Ctx) error {
	var req game.MinesBetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "User ID is required")
	}
	return s.relayCall(c, game.GameTypeMines, "bet", req)
}

func (s *FiberServer) minesClickHandler(c *fiber.Ctx) error {
	var req game.MinesClickRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" || req.GameID == "" {
		return badRequest(c, "User ID and Game ID are required")
	}
	return s.relayCall(c, game.GameTypeMines, "click", req)
}

func (s *FiberServer) minesAutoHandler(c *fiber.Ctx) error {
	var req game.MinesAutoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" || req.GameID == "" {
		return badRequest(c, "User ID and Game ID are required")
	}
	return s.relayCall(c, game.GameTypeMines, "auto", req)
}

func (s *FiberServer) minesCashoutHandler(c *fiber.Ctx) error {
	var req game.MinesCashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" || req.GameID == "" {
		return badRequest(c, "User ID and Game ID are required")
	}
	return s.relayCall(c, game.GameTypeMines, "cashout", req)
}

func (s *FiberServer) minesVerifyHandler(c *fiber.Ctx) error {
	var req game.MinesVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	return s.relayCall(c, game.GameTypeMines, "verify", req)
}

func (s *FiberServer) coinFlipHandler(c *fiber.Ctx) error {
	var req game.CoinFlipRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "User ID is required")
	}
	return s.relayCall(c, game.GameTypeCoinFlip, "bet", req)
}

func (s *FiberServer) scratchPlayHandler(c *fiber.Ctx) error {
	var req game.ScratchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "User ID is required")
	}
	return s.relayCall(c, game.GameTypeScratch, "bet", req)
}

// relayCall hands a parsed request to its engine. Business rejections are
// answered with 400 and the engine's own response body.
func (s *FiberServer) relayCall(c *fiber.Ctx, gameType game.GameType, action string, req interface{}) error {
	engine, exists := s.gameFactory.GetEngine(gameType)
	if !exists {
		return c.Status(500).JSON(fiber.Map{
			"error": fmt.Sprintf("%s game not available", gameType),
		})
	}

	var resp interface{}
	var err error
	if action == "bet" {
		resp, err = engine.PlaceBet(c.Context(), req)
	} else {
		resp, err = engine.ProcessAction(c.Context(), action, req)
	}
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{"game": gameType, "action": action}).Error("relay call failed")
		return c.Status(500).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if !succeeded(resp) {
		return c.Status(400).JSON(resp)
	}
	return c.JSON(resp)
}

func succeeded(resp interface{}) bool {
	switch r := resp.(type) {
	case game.MinesBetResponse:
		return r.Success
	case game.MinesClickResponse:
		return r.Success
	case game.MinesAutoResponse:
		return r.Success
	case game.MinesCashoutResponse:
		return r.Success
	case game.MinesVerifyResponse:
		return r.Success
	case game.CoinFlipResponse:
		return r.Success
	case game.ScratchResponse:
		return r.Success
	}
	return false
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(400).JSON(fiber.Map{
		"error": msg,
	})
}
