package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"minigames/internal/cache"
	"minigames/internal/grid"

	"github.com/sirupsen/logrus"
)

const (
	MINES_DEFAULT_GRID   = 5
	MINES_MIN_GRID       = 2
	MINES_MAX_GRID       = 8
	MINES_MIN_COUNT      = 1
	MINES_HOUSE_EDGE     = 0.97
	REDIS_KEY_MINES_GAME = "mines:game:"
)

// MinesGameState is the stored round. Seeds and mine positions stay server
// side until the round ends; see MinesReveal.
type MinesGameState struct {
	GameID         string    `json:"game_id"`
	UserID         string    `json:"user_id"`
	BetAmount      float64   `json:"bet_amount"`
	GridSize       int       `json:"grid_size"`
	MineCount      int       `json:"mine_count"`
	ServerSeed     string    `json:"server_seed"`
	HashCommitment string    `json:"hash_commitment"`
	ClientSeed     string    `json:"client_seed"`
	Nonce          int       `json:"nonce"`
	MinePositions  []int     `json:"mine_positions"`
	RevealedTiles  []int     `json:"revealed_tiles"`
	CurrentPayout  float64   `json:"current_payout"`
	Status         string    `json:"status"` // ACTIVE, CASHED_OUT, BUSTED
	CreatedAt      time.Time `json:"created_at"`
	EndedAt        time.Time `json:"ended_at,omitempty"`
}

func (s *MinesGameState) tiles() int { return s.GridSize * s.GridSize }

func (s *MinesGameState) isMine(tile int) bool {
	return slices.Contains(s.MinePositions, tile)
}

func (s *MinesGameState) coord(tile int) grid.Coord {
	return grid.Coord{Row: tile / s.GridSize, Col: tile % s.GridSize}
}

// reveal is only available once the round has ended.
func (s *MinesGameState) reveal() *MinesReveal {
	if s.Status == STATUS_ACTIVE {
		return nil
	}
	mines := make([]grid.Coord, 0, len(s.MinePositions))
	for _, p := range s.MinePositions {
		mines = append(mines, s.coord(p))
	}
	return &MinesReveal{
		ServerSeed:    s.ServerSeed,
		ClientSeed:    s.ClientSeed,
		Nonce:         s.Nonce,
		MinePositions: mines,
	}
}

type MinesReveal struct {
	ServerSeed    string       `json:"server_seed"`
	ClientSeed    string       `json:"client_seed"`
	Nonce         int          `json:"nonce"`
	MinePositions []grid.Coord `json:"mine_positions"`
}

type MinesBetRequest struct {
	UserID     string  `json:"user_id"`
	Amount     float64 `json:"amount"`
	MineCount  int     `json:"mine_count"`
	GridSize   int     `json:"grid_size,omitempty"`
	ClientSeed string  `json:"client_seed,omitempty"`
}

type MinesBetResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	GameID         string  `json:"game_id,omitempty"`
	Balance        float64 `json:"balance,omitempty"`
	CurrentPayout  float64 `json:"current_payout"`
	GridSize       int     `json:"grid_size,omitempty"`
	MineCount      int     `json:"mine_count,omitempty"`
	HashCommitment string  `json:"hash_commitment,omitempty"`
	ClientSeed     string  `json:"client_seed,omitempty"`
	Nonce          int     `json:"nonce,omitempty"`
}

type MinesClickRequest struct {
	UserID string `json:"user_id"`
	GameID string `json:"game_id"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

type MinesClickResponse struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	TileID        int          `json:"tile_id"`
	Row           int          `json:"row"`
	Col           int          `json:"col"`
	Result        string       `json:"result,omitempty"`
	IsMine        bool         `json:"is_mine"`
	CurrentPayout float64      `json:"current_payout"`
	GameStatus    string       `json:"game_status,omitempty"`
	Balance       float64      `json:"balance,omitempty"`
	Reveal        *MinesReveal `json:"reveal,omitempty"`
}

type MinesAutoRequest struct {
	UserID string       `json:"user_id"`
	GameID string       `json:"game_id"`
	Tiles  []grid.Coord `json:"tiles"`
}

type MinesAutoResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Results    []grid.Result `json:"results,omitempty"`
	GameStatus string        `json:"game_status,omitempty"`
	Payout     float64       `json:"payout"`
	Balance    float64       `json:"balance,omitempty"`
	Reveal     *MinesReveal  `json:"reveal,omitempty"`
}

type MinesCashoutRequest struct {
	UserID string `json:"user_id"`
	GameID string `json:"game_id"`
}

type MinesCashoutResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Payout  float64      `json:"payout"`
	Balance float64      `json:"balance"`
	Reveal  *MinesReveal `json:"reveal,omitempty"`
}

// MinesVerifyRequest checks a finished round by id, or a raw seed set.
type MinesVerifyRequest struct {
	GameID     string `json:"game_id,omitempty"`
	ServerSeed string `json:"server_seed,omitempty"`
	ClientSeed string `json:"client_seed,omitempty"`
	Nonce      int    `json:"nonce,omitempty"`
	GridSize   int    `json:"grid_size,omitempty"`
	MineCount  int    `json:"mine_count,omitempty"`
}

type MinesVerifyResponse struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message"`
	Valid          bool         `json:"valid"`
	HashCommitment string       `json:"hash_commitment,omitempty"`
	MinePositions  []grid.Coord `json:"mine_positions,omitempty"`
}

type MinesEngine struct {
	relay
	ctx context.Context
}

func NewMinesEngine(store cache.Store, hub *Hub) *MinesEngine {
	m := &MinesEngine{ctx: context.Background()}
	m.relay.init(store, hub, GameTypeMines)
	return m
}

func (m *MinesEngine) GetType() GameType {
	return GameTypeMines
}

func (m *MinesEngine) Start(ctx context.Context) error {
	m.ctx = ctx
	m.log.Info("engine started")
	return nil
}

func (m *MinesEngine) Stop() error {
	m.log.Info("engine stopped")
	return nil
}

func (m *MinesEngine) GetState() interface{} {
	return map[string]interface{}{
		"status":       "ready",
		"default_grid": MINES_DEFAULT_GRID,
		"max_grid":     MINES_MAX_GRID,
	}
}

func (m *MinesEngine) PlaceBet(ctx context.Context, req interface{}) (interface{}, error) {
	betReq, ok := req.(MinesBetRequest)
	if !ok {
		return nil, errors.New("invalid request type")
	}
	return m.Bet(ctx, betReq)
}

func (m *MinesEngine) ProcessAction(ctx context.Context, action string, req interface{}) (interface{}, error) {
	switch action {
	case "click":
		r, ok := req.(MinesClickRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}
		return m.Click(ctx, r)
	case "auto":
		r, ok := req.(MinesAutoRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}
		return m.AutoReveal(ctx, r)
	case "cashout":
		r, ok := req.(MinesCashoutRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}
		return m.Cashout(ctx, r)
	case "verify":
		r, ok := req.(MinesVerifyRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}
		return m.Verify(ctx, r)
	default:
		return nil, errors.New("unknown action")
	}
}

// Bet debits the stake and commits to a fresh mine layout.
func (m *MinesEngine) Bet(ctx context.Context, betReq MinesBetRequest) (MinesBetResponse, error) {
	gridSize := betReq.GridSize
	if gridSize == 0 {
		gridSize = MINES_DEFAULT_GRID
	}
	if gridSize < MINES_MIN_GRID || gridSize > MINES_MAX_GRID {
		return MinesBetResponse{
			Success: false,
			Message: fmt.Sprintf("Grid size must be between %d and %d", MINES_MIN_GRID, MINES_MAX_GRID),
		}, nil
	}

	maxMines := gridSize*gridSize - 1
	if betReq.MineCount < MINES_MIN_COUNT || betReq.MineCount > maxMines {
		return MinesBetResponse{
			Success: false,
			Message: fmt.Sprintf("Mine count must be between %d and %d", MINES_MIN_COUNT, maxMines),
		}, nil
	}

	if msg := validateAmount(betReq.Amount); msg != "" {
		return MinesBetResponse{Success: false, Message: msg}, nil
	}

	newBalance, err := m.debit(ctx, betReq.UserID, betReq.Amount)
	if err != nil {
		return MinesBetResponse{
			Success: false,
			Message: debitMessage(err),
			Balance: newBalance,
		}, nil
	}

	nonce := m.nextNonce()
	serverSeed := GenerateSeed()
	clientSeed := betReq.ClientSeed
	if clientSeed == "" {
		clientSeed = GenerateSeed()
	}

	gameState := MinesGameState{
		GameID:         newRoundID("MINES"),
		UserID:         betReq.UserID,
		BetAmount:      betReq.Amount,
		GridSize:       gridSize,
		MineCount:      betReq.MineCount,
		ServerSeed:     serverSeed,
		HashCommitment: HashCommitment(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		MinePositions:  MineLayout(serverSeed, clientSeed, nonce, gridSize*gridSize, betReq.MineCount),
		RevealedTiles:  []int{},
		CurrentPayout:  betReq.Amount,
		Status:         STATUS_ACTIVE,
		CreatedAt:      time.Now(),
	}

	if err := m.store.SaveRound(ctx, REDIS_KEY_MINES_GAME+gameState.GameID, gameState, ROUND_TTL); err != nil {
		if _, rbErr := m.store.AdjustBalance(ctx, betReq.UserID, betReq.Amount); rbErr != nil {
			m.log.WithError(rbErr).Error("refund after failed save")
		}
		return MinesBetResponse{}, fmt.Errorf("save mines round: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"game_id": gameState.GameID,
		"user_id": betReq.UserID,
		"grid":    gridSize,
		"mines":   betReq.MineCount,
	}).Info("round started")

	return MinesBetResponse{
		Success:        true,
		Message:        "Game started",
		GameID:         gameState.GameID,
		Balance:        newBalance,
		CurrentPayout:  betReq.Amount,
		GridSize:       gridSize,
		MineCount:      betReq.MineCount,
		HashCommitment: gameState.HashCommitment,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
	}, nil
}

// loadActive fetches a round owned by userID that is still in play. A non-empty
// message means the request should be refused with it.
func (m *MinesEngine) loadActive(ctx context.Context, userID, gameID string) (*MinesGameState, string, error) {
	var gameState MinesGameState
	err := m.store.LoadRound(ctx, REDIS_KEY_MINES_GAME+gameID, &gameState)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, "Game not found", nil
	}
	if err != nil {
		return nil, "", err
	}
	if gameState.UserID != userID {
		return nil, "Game not found", nil
	}
	if gameState.Status != STATUS_ACTIVE {
		return nil, "Game is not active", nil
	}
	return &gameState, "", nil
}

func (m *MinesEngine) save(ctx context.Context, s *MinesGameState) error {
	return m.store.SaveRound(ctx, REDIS_KEY_MINES_GAME+s.GameID, s, ROUND_TTL)
}

// Click reveals one tile. Revealing the last safe tile cashes the round out.
func (m *MinesEngine) Click(ctx context.Context, clickReq MinesClickRequest) (MinesClickResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameState, msg, err := m.loadActive(ctx, clickReq.UserID, clickReq.GameID)
	if err != nil {
		return MinesClickResponse{}, err
	}
	if msg != "" {
		return MinesClickResponse{Success: false, Message: msg}, nil
	}

	if clickReq.Row < 0 || clickReq.Col < 0 || clickReq.Row >= gameState.GridSize || clickReq.Col >= gameState.GridSize {
		return MinesClickResponse{Success: false, Message: "Invalid tile"}, nil
	}
	tileID := clickReq.Row*gameState.GridSize + clickReq.Col
	if slices.Contains(gameState.RevealedTiles, tileID) {
		return MinesClickResponse{Success: false, Message: "Tile already revealed"}, nil
	}

	resp := MinesClickResponse{
		Success: true,
		TileID:  tileID,
		Row:     clickReq.Row,
		Col:     clickReq.Col,
	}

	if gameState.isMine(tileID) {
		gameState.Status = STATUS_BUSTED
		gameState.EndedAt = time.Now()
		gameState.CurrentPayout = 0
		if err := m.save(ctx, gameState); err != nil {
			return MinesClickResponse{}, err
		}
		m.settleMines(ctx, gameState)

		resp.Message = "You hit a mine!"
		resp.Result = "lost"
		resp.IsMine = true
		resp.GameStatus = STATUS_BUSTED
		resp.Reveal = gameState.reveal()
		return resp, nil
	}

	gameState.RevealedTiles = append(gameState.RevealedTiles, tileID)
	gameState.CurrentPayout = m.calculatePayout(gameState.BetAmount, gameState.tiles(), gameState.MineCount, len(gameState.RevealedTiles))
	resp.Message = "Safe tile!"
	resp.Result = "win"
	resp.CurrentPayout = gameState.CurrentPayout
	resp.GameStatus = STATUS_ACTIVE

	if len(gameState.RevealedTiles) == gameState.tiles()-gameState.MineCount {
		balance, err := m.cashoutLocked(ctx, gameState)
		if err != nil {
			return MinesClickResponse{}, err
		}
		resp.Message = "Board cleared!"
		resp.GameStatus = STATUS_CASHED_OUT
		resp.Balance = balance
		resp.Reveal = gameState.reveal()
		return resp, nil
	}

	if err := m.save(ctx, gameState); err != nil {
		return MinesClickResponse{}, err
	}

	m.log.WithFields(logrus.Fields{
		"game_id": gameState.GameID,
		"tile":    tileID,
		"payout":  gameState.CurrentPayout,
	}).Debug("safe tile")
	return resp, nil
}

// AutoReveal resolves a batch of tiles at once and settles the round: any mine
// busts it, otherwise it cashes out with the batch counted.
func (m *MinesEngine) AutoReveal(ctx context.Context, autoReq MinesAutoRequest) (MinesAutoResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameState, msg, err := m.loadActive(ctx, autoReq.UserID, autoReq.GameID)
	if err != nil {
		return MinesAutoResponse{}, err
	}
	if msg != "" {
		return MinesAutoResponse{Success: false, Message: msg}, nil
	}
	if len(autoReq.Tiles) == 0 {
		return MinesAutoResponse{Success: false, Message: "No tiles selected"}, nil
	}

	seen := make(map[int]bool, len(autoReq.Tiles))
	for _, c := range autoReq.Tiles {
		if c.Row < 0 || c.Col < 0 || c.Row >= gameState.GridSize || c.Col >= gameState.GridSize {
			return MinesAutoResponse{Success: false, Message: "Invalid tile"}, nil
		}
		id := c.Row*gameState.GridSize + c.Col
		if seen[id] || slices.Contains(gameState.RevealedTiles, id) {
			return MinesAutoResponse{Success: false, Message: "Tile already revealed"}, nil
		}
		seen[id] = true
	}

	results := make([]grid.Result, 0, len(autoReq.Tiles))
	busted := false
	for _, c := range autoReq.Tiles {
		id := c.Row*gameState.GridSize + c.Col
		res := grid.Result{Row: c.Row, Col: c.Col, Result: "win"}
		if gameState.isMine(id) {
			res.Result = "lost"
			busted = true
		} else {
			gameState.RevealedTiles = append(gameState.RevealedTiles, id)
		}
		results = append(results, res)
	}

	resp := MinesAutoResponse{Success: true, Results: results}

	if busted {
		gameState.Status = STATUS_BUSTED
		gameState.EndedAt = time.Now()
		gameState.CurrentPayout = 0
		if err := m.save(ctx, gameState); err != nil {
			return MinesAutoResponse{}, err
		}
		m.settleMines(ctx, gameState)
		balance, err := m.credit(ctx, gameState.UserID, 0)
		if err != nil {
			m.log.WithError(err).WithField("game_id", gameState.GameID).Error("read balance after bust")
		}

		resp.Message = "You hit a mine!"
		resp.GameStatus = STATUS_BUSTED
		resp.Balance = balance
		resp.Reveal = gameState.reveal()
		return resp, nil
	}

	gameState.CurrentPayout = m.calculatePayout(gameState.BetAmount, gameState.tiles(), gameState.MineCount, len(gameState.RevealedTiles))
	balance, err := m.cashoutLocked(ctx, gameState)
	if err != nil {
		return MinesAutoResponse{}, err
	}
	resp.Message = "Auto cashout"
	resp.GameStatus = STATUS_CASHED_OUT
	resp.Payout = gameState.CurrentPayout
	resp.Balance = balance
	resp.Reveal = gameState.reveal()
	return resp, nil
}

func (m *MinesEngine) Cashout(ctx context.Context, cashoutReq MinesCashoutRequest) (MinesCashoutResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameState, msg, err := m.loadActive(ctx, cashoutReq.UserID, cashoutReq.GameID)
	if err != nil {
		return MinesCashoutResponse{}, err
	}
	if msg != "" {
		return MinesCashoutResponse{Success: false, Message: msg}, nil
	}

	if len(gameState.RevealedTiles) == 0 {
		return MinesCashoutResponse{
			Success: false,
			Message: "Must reveal at least one tile before cashing out",
		}, nil
	}

	balance, err := m.cashoutLocked(ctx, gameState)
	if err != nil {
		return MinesCashoutResponse{}, fmt.Errorf("cashout %s: %w", gameState.GameID, err)
	}

	return MinesCashoutResponse{
		Success: true,
		Message: "Cashed out successfully",
		Payout:  gameState.CurrentPayout,
		Balance: balance,
		Reveal:  gameState.reveal(),
	}, nil
}

func (m *MinesEngine) cashoutLocked(ctx context.Context, gameState *MinesGameState) (float64, error) {
	newBalance, err := m.credit(ctx, gameState.UserID, gameState.CurrentPayout)
	if err != nil {
		return 0, fmt.Errorf("credit payout: %w", err)
	}

	gameState.Status = STATUS_CASHED_OUT
	gameState.EndedAt = time.Now()
	if err := m.save(ctx, gameState); err != nil {
		return newBalance, err
	}
	m.settleMines(ctx, gameState)
	return newBalance, nil
}

func (m *MinesEngine) settleMines(ctx context.Context, s *MinesGameState) {
	outcome := "win"
	if s.Status == STATUS_BUSTED {
		outcome = "lost"
	}
	m.settle(ctx, RoundRecord{
		RoundID:    s.GameID,
		UserID:     s.UserID,
		Game:       GameTypeMines,
		BetAmount:  s.BetAmount,
		Payout:     s.CurrentPayout,
		Outcome:    outcome,
		ServerSeed: s.ServerSeed,
		ClientSeed: s.ClientSeed,
		Nonce:      s.Nonce,
		CreatedAt:  s.CreatedAt,
		EndedAt:    s.EndedAt,
	})
}

// Verify recomputes a layout from revealed seeds. Rounds still in play are refused.
func (m *MinesEngine) Verify(ctx context.Context, req MinesVerifyRequest) (MinesVerifyResponse, error) {
	if req.GameID != "" {
		var gameState MinesGameState
		err := m.store.LoadRound(ctx, REDIS_KEY_MINES_GAME+req.GameID, &gameState)
		if errors.Is(err, cache.ErrNotFound) {
			return MinesVerifyResponse{Success: false, Message: "Game not found"}, nil
		}
		if err != nil {
			return MinesVerifyResponse{}, err
		}
		if gameState.Status == STATUS_ACTIVE {
			return MinesVerifyResponse{Success: false, Message: "Round still active"}, nil
		}
		valid := HashCommitment(gameState.ServerSeed) == gameState.HashCommitment &&
			VerifyMines(gameState.ServerSeed, gameState.ClientSeed, gameState.Nonce, gameState.tiles(), gameState.MinePositions)
		return MinesVerifyResponse{
			Success:        true,
			Message:        "Round verified",
			Valid:          valid,
			HashCommitment: gameState.HashCommitment,
			MinePositions:  gameState.reveal().MinePositions,
		}, nil
	}

	if req.ServerSeed == "" || req.ClientSeed == "" {
		return MinesVerifyResponse{Success: false, Message: "Seeds are required"}, nil
	}
	gridSize := req.GridSize
	if gridSize == 0 {
		gridSize = MINES_DEFAULT_GRID
	}
	if gridSize < MINES_MIN_GRID || gridSize > MINES_MAX_GRID || req.MineCount < MINES_MIN_COUNT || req.MineCount >= gridSize*gridSize {
		return MinesVerifyResponse{Success: false, Message: "Invalid board"}, nil
	}

	layout := MineLayout(req.ServerSeed, req.ClientSeed, req.Nonce, gridSize*gridSize, req.MineCount)
	coords := make([]grid.Coord, 0, len(layout))
	for _, p := range layout {
		coords = append(coords, grid.Coord{Row: p / gridSize, Col: p % gridSize})
	}
	return MinesVerifyResponse{
		Success:        true,
		Message:        "Layout computed",
		Valid:          true,
		HashCommitment: HashCommitment(req.ServerSeed),
		MinePositions:  coords,
	}, nil
}

// calculatePayout calculates the current payout based on revealed tiles
func (m *MinesEngine) calculatePayout(betAmount float64, totalTiles, mineCount, revealedCount int) float64 {
	if revealedCount == 0 {
		return betAmount
	}

	// multiplier = prod (total-i)/(safe-i) * house edge
	total := float64(totalTiles)
	safeTiles := total - float64(mineCount)

	multiplier := 1.0
	for i := 0; i < revealedCount; i++ {
		multiplier *= (total - float64(i)) / (safeTiles - float64(i))
	}

	multiplier *= MINES_HOUSE_EDGE

	payout := betAmount * multiplier
	return float64(int(payout*100)) / 100.0
}
