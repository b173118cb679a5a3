// Package config centralizes the server's environment-driven configuration
// and the constant tables the simulation depends on.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server configuration, loaded from the environment the way the teacher's
// racing server loaded HOST/PORT/ENABLE_CORS.
type ServerConfig struct {
	Host       string
	Port       int
	EnableCORS bool

	JWTSecret    string
	JWTAlgorithm string
	JWTExpiry    time.Duration

	// MapWidth/MapHeight are read from the environment and logged at
	// startup. The LiveWar manager does not read them: its map size and
	// base positions come from the MapWidth/MapHeight constants below.
	MapWidth  int
	MapHeight int
}

// DefaultServerConfig returns the defaults used when no environment
// variable overrides them.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		EnableCORS:   true,
		JWTSecret:    "dev-secret-change-me",
		JWTAlgorithm: "HS256",
		JWTExpiry:    24 * time.Hour,
		MapWidth:     MapWidth,
		MapHeight:    MapHeight,
	}
}

// Load reads configuration from the environment, falling back to defaults
// for anything unset. Mirrors the teacher's loadConfig in cmd/gameserver.
func Load() *ServerConfig {
	cfg := DefaultServerConfig()

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if cors := os.Getenv("ENABLE_CORS"); cors == "false" {
		cfg.EnableCORS = false
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if alg := os.Getenv("JWT_ALGORITHM"); alg != "" {
		cfg.JWTAlgorithm = alg
	}
	if expiry := os.Getenv("JWT_EXPIRY_SECONDS"); expiry != "" {
		if secs, err := strconv.Atoi(expiry); err == nil {
			cfg.JWTExpiry = time.Duration(secs) * time.Second
		}
	}
	if w := os.Getenv("LIVEWAR_MAP_WIDTH"); w != "" {
		if v, err := strconv.Atoi(w); err == nil {
			cfg.MapWidth = v
		}
	}
	if h := os.Getenv("LIVEWAR_MAP_HEIGHT"); h != "" {
		if v, err := strconv.Atoi(h); err == nil {
			cfg.MapHeight = v
		}
	}

	return cfg
}

// Constant tables from spec.md §3, authoritative regardless of environment.
const (
	MapWidth  = 60
	MapHeight = 60

	BaseHPMax = 1000

	RedBaseOffset  = 8  // red base at (8, H-8)
	BlueBaseOffset = 8  // blue base at (W-8, 8)

	MineEnergyMax     = 1000
	MineRegenPerSec   = 30
	MineLifetime      = 180 * time.Second
	MineSpawnInterval = 60 * time.Second
	MineMinSpacing    = 3.0
	MineMinBaseDist   = 5.0

	InitialMineCount    = 4
	InitialMineMinDist  = 8.0
	InitialMineMaxDist  = 12.0
	InitialMineMinSpace = 3.0

	EnergyDropLifetime = 60 * time.Second

	StarterMinerRespawnDelay = 5 * time.Second

	TickInterval = 100 * time.Millisecond

	AttackCooldown = 1 * time.Second

	GameOverResetDelay = 10 * time.Second
	EmptyRoomGrace     = 60 * time.Second

	DrawingAutoReleaseTimeout = 10 * time.Minute
	GobangForfeitTimeout      = 300 * time.Second
	OccupancyBroadcastPeriod  = 10 * time.Second
	MusicPlaybackDelay        = 500 * time.Millisecond

	GobangBoardSize = 15
)

// UnitStats is the authoritative per-type stat row for spec.md's unit table.
type UnitStats struct {
	HP                 float64
	Attack             float64
	Speed              float64
	AttackRange        float64
	SpawnCost          float64
	EnergyDropOnDeath  float64
}

// UnitType enumerates the four LiveWar unit kinds.
type UnitType string

const (
	UnitMiner        UnitType = "miner"
	UnitEngineer     UnitType = "engineer"
	UnitHeavyTank    UnitType = "heavy_tank"
	UnitAssaultTank  UnitType = "assault_tank"
)

// UnitSpawnCost is the authoritative table (spec.md §9 Open Question:
// UNIT_SPAWN_COST is authoritative over any inline display map).
var UnitSpawnCost = map[UnitType]UnitStats{
	UnitMiner:       {HP: 60, Attack: 6, Speed: 1.0, AttackRange: 1.5, SpawnCost: 20, EnergyDropOnDeath: 10},
	UnitEngineer:    {HP: 90, Attack: 12, Speed: 4.0, AttackRange: 1.5, SpawnCost: 50, EnergyDropOnDeath: 10},
	UnitHeavyTank:   {HP: 220, Attack: 28, Speed: 0.5, AttackRange: 2.5, SpawnCost: 100, EnergyDropOnDeath: 10},
	UnitAssaultTank: {HP: 120, Attack: 32, Speed: 1.2, AttackRange: 2.5, SpawnCost: 80, EnergyDropOnDeath: 10},
}
