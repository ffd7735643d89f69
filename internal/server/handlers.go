package server

import (
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"minigames/internal/cache"
	"minigames/internal/game"
)

// Health handler
func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	dbHealth := map[string]string{"status": "disabled"}
	if s.db != nil {
		dbHealth = s.db.Health()
	}
	cacheHealth := map[string]string{"status": "memory"}
	if s.cache != nil {
		cacheHealth = s.cache.Health()
	}

	health := fiber.Map{
		"database": dbHealth,
		"cache":    cacheHealth,
		"game": fiber.Map{
			"status":            "running",
			"games":             s.gameFactory.Types(),
			"connected_clients": s.gameHub.GetClientCount(),
		},
	}
	return c.JSON(health)
}

// User balance handlers

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return badRequest(c, "User ID is required")
	}

	balance, err := s.store.GetBalance(c.Context(), userID)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

// setUserBalanceHandler sets a user's balance (for testing/admin)
func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return badRequest(c, "User ID is required")
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if body.Balance < 0 {
		return badRequest(c, "Balance must not be negative")
	}

	if err := s.store.SetBalance(c.Context(), userID, body.Balance); err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to set balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
		"message": "Balance updated successfully",
	})
}

func (s *FiberServer) recentRoundsHandler(c *fiber.Ctx) error {
	if s.db == nil {
		return c.Status(503).JSON(fiber.Map{
			"error": "Round history unavailable",
		})
	}

	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		return badRequest(c, "limit must be between 1 and 100")
	}

	rounds, err := s.db.RecentRounds(c.Context(), c.Params("userId"), limit)
	if err != nil {
		log.WithError(err).Error("round history query failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load rounds",
		})
	}
	if rounds == nil {
		rounds = []game.RoundRecord{}
	}
	return c.JSON(fiber.Map{
		"user_id": c.Params("userId"),
		"rounds":  rounds,
	})
}

// WebSocket handler

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "anonymous")
	wsLog := log.WithField("user_id", userID)
	wsLog.Info("ws connection opened")

	games := followedGames(conn.Query("games"), s.gameFactory.Types())
	client := s.gameHub.RegisterClient(conn, userID, games...)
	if len(games) == 0 {
		games = s.gameFactory.Types()
	}
	client.Send(game.WSMessage{
		Type: "welcome",
		Data: game.WelcomeMessage{UserID: userID, Games: games},
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			wsLog.WithError(err).Debug("ws read ended")
			s.gameHub.UnregisterClient(conn)
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req game.WSRequest
		if err := json.Unmarshal(message, &req); err != nil {
			client.Send(game.WSReply{Type: "error", Error: "invalid message"})
			continue
		}

		if req.Action == "ping" {
			client.Send(game.WSReply{ID: req.ID, Type: "pong"})
			continue
		}

		reply := game.WSReply{ID: req.ID, Type: string(req.Game) + "_" + req.Action}
		resp, err := s.gameFactory.Dispatch(s.baseCtx, req)
		if err != nil {
			wsLog.WithError(err).WithFields(logrus.Fields{"game": req.Game, "action": req.Action}).Warn("ws call failed")
			reply.Error = err.Error()
		} else {
			reply.Data = resp
		}
		client.Send(reply)
	}
}

// followedGames parses a comma separated games query, keeping known games only.
func followedGames(query string, known []game.GameType) []game.GameType {
	if query == "" {
		return nil
	}
	var out []game.GameType
	for _, name := range strings.Split(query, ",") {
		g := game.GameType(strings.TrimSpace(name))
		if slices.Contains(known, g) && !slices.Contains(out, g) {
			out = append(out, g)
		}
	}
	return out
}
