package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"minigames/internal/grid"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
)

const DEFAULT_PRESET = "default"

// Server holds the env driven settings of the relay binaries.
type Server struct {
	Port           int
	PresetsPath    string
	MigrationsPath string
	UseDatabase    bool
	RateLimit      int
}

// FromEnv reads the server settings; missing values fall back to defaults.
func FromEnv() Server {
	return Server{
		Port:           getEnvAsInt("PORT", 8080),
		PresetsPath:    getEnv("PRESETS_PATH", "./configs/presets.yaml"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		UseDatabase:    getEnvAsBool("USE_DATABASE", true),
		RateLimit:      getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
	}
}

// Preset is one named board setup as written in the presets file. Unset
// fields inherit from the "default" entry.
type Preset struct {
	Game          string `yaml:"game,omitempty"`
	GridSize      *int   `yaml:"grid_size,omitempty"`
	Hazards       *int   `yaml:"hazards,omitempty"`
	DelayMinMS    *int   `yaml:"delay_min_ms,omitempty"`
	DelayMaxMS    *int   `yaml:"delay_max_ms,omitempty"`
	StaggerMS     *int   `yaml:"stagger_ms,omitempty"`
	CascadeOnLoss *bool  `yaml:"cascade_on_loss,omitempty"`
	CascadeOnWin  *bool  `yaml:"cascade_on_win,omitempty"`
}

type presetFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Board is a resolved preset ready to build an adapter from.
type Board struct {
	Name    string
	Game    string
	Grid    grid.Config
	Options grid.AdapterOptions
}

type Presets struct {
	raw map[string]Preset
}

// LoadPresets reads the presets file. A missing file yields the built-in
// default only.
func LoadPresets(path string) (*Presets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Presets{raw: map[string]Preset{}}, nil
		}
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParsePresets(b)
}

func ParsePresets(data []byte) (*Presets, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if f.Presets == nil {
		f.Presets = map[string]Preset{}
	}
	return &Presets{raw: f.Presets}, nil
}

// Names lists every preset, sorted. The default preset is always present.
func (p *Presets) Names() []string {
	names := []string{DEFAULT_PRESET}
	for name := range p.raw {
		if name != DEFAULT_PRESET {
			names = append(names, name)
		}
	}
	sort.Strings(names[1:])
	return names
}

// Board resolves a preset as built-in defaults <- "default" entry <- named entry.
func (p *Presets) Board(name string) (Board, error) {
	if name == "" {
		name = DEFAULT_PRESET
	}
	named, ok := p.raw[name]
	if !ok && name != DEFAULT_PRESET {
		return Board{}, fmt.Errorf("unknown preset %q", name)
	}
	merged := merge(p.raw[DEFAULT_PRESET], named)

	cfg := grid.DefaultConfig()
	if merged.GridSize != nil {
		cfg.GridSize = *merged.GridSize
	}
	if merged.Hazards != nil {
		cfg.Hazards = *merged.Hazards
	}
	if merged.DelayMinMS != nil {
		cfg.DelayMin = time.Duration(*merged.DelayMinMS) * time.Millisecond
	}
	if merged.DelayMaxMS != nil {
		cfg.DelayMax = time.Duration(*merged.DelayMaxMS) * time.Millisecond
	}
	if merged.StaggerMS != nil {
		cfg.CascadeStagger = time.Duration(*merged.StaggerMS) * time.Millisecond
	}
	cfg.GridSize, cfg.Hazards = grid.ClampGrid(cfg.GridSize, cfg.Hazards)

	board := Board{
		Name:    name,
		Game:    merged.Game,
		Grid:    cfg,
		Options: grid.AdapterOptions{Layout: grid.DefaultLayout()},
	}
	if board.Game == "" {
		board.Game = "mines"
	}
	if merged.CascadeOnLoss != nil {
		board.Options.CascadeOnLoss = *merged.CascadeOnLoss
	}
	if merged.CascadeOnWin != nil {
		board.Options.CascadeOnWin = *merged.CascadeOnWin
	}
	return board, nil
}

// merge overrides a with every field set in b.
func merge(a, b Preset) Preset {
	out := a
	if b.Game != "" {
		out.Game = b.Game
	}
	if b.GridSize != nil {
		out.GridSize = b.GridSize
	}
	if b.Hazards != nil {
		out.Hazards = b.Hazards
	}
	if b.DelayMinMS != nil {
		out.DelayMinMS = b.DelayMinMS
	}
	if b.DelayMaxMS != nil {
		out.DelayMaxMS = b.DelayMaxMS
	}
	if b.StaggerMS != nil {
		out.StaggerMS = b.StaggerMS
	}
	if b.CascadeOnLoss != nil {
		out.CascadeOnLoss = b.CascadeOnLoss
	}
	if b.CascadeOnWin != nil {
		out.CascadeOnWin = b.CascadeOnWin
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
