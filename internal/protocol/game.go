package protocol

// GameType enumerates the GameMessage type tag space (spec.md §4.1).
type GameType int

const (
	GameJoinGame     GameType = 0
	GameLeaveGame    GameType = 1
	GameSelectUnit   GameType = 2
	GameSpawnUnit    GameType = 3
	GameGameState    GameType = 4
	GameGameStarted  GameType = 5
	GameGameOver     GameType = 6
	GamePlayerJoined GameType = 7
	GamePlayerLeft   GameType = 8
	GameError        GameType = 9
)

// GameMessage is the LiveWar inner payload. Exactly one payload field is
// populated, selected by Type. Unknown Type values decode successfully
// (all fields nil) and are discarded by the handler's catch-all case,
// per spec.md §4.1.
type GameMessage struct {
	Type GameType `json:"type"`

	JoinGame     *JoinGamePayload     `json:"join_game,omitempty"`
	SelectUnit   *SelectUnitPayload   `json:"select_unit,omitempty"`
	SpawnUnit    *SpawnUnitPayload    `json:"spawn_unit,omitempty"`
	GameState    *GameStatePayload    `json:"game_state,omitempty"`
	GameStarted  *GameStartedPayload  `json:"game_started,omitempty"`
	GameOver     *GameOverPayload     `json:"game_over,omitempty"`
	PlayerJoined *PlayerJoinedPayload `json:"player_joined,omitempty"`
	PlayerLeft   *PlayerLeftPayload   `json:"player_left,omitempty"`
	Error        *ErrorPayload        `json:"error,omitempty"`
}

// JoinGamePayload requests joining a team ("red" or "blue").
type JoinGamePayload struct {
	Team string `json:"team"`
}

// SelectUnitPayload requests the player's active spawn selection change.
type SelectUnitPayload struct {
	UnitType string `json:"unit_type"`
}

// SpawnUnitPayload requests spawning the currently selected unit type.
type SpawnUnitPayload struct{}

// GameStatePayload is the per-tick, per-recipient state frame.
type GameStatePayload struct {
	Tick        uint64        `json:"tick"`
	GameTime    float64       `json:"game_time"`
	GameStarted bool          `json:"game_started"`
	Winner      string        `json:"winner,omitempty"`
	Room        RoomView      `json:"room"`
	Logs        []string      `json:"logs"`
	TeamStats   TeamStatsView `json:"team_stats"`
	Players     []PlayerView  `json:"players"`
	Player      PlayerView    `json:"player"`
}

// RoomView is the shared-substructure base state built once per tick.
type RoomView struct {
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Bases       []BaseView     `json:"bases"`
	Mines       []MineView     `json:"mines"`
	EnergyDrops []EnergyView   `json:"energy_drops"`
	Units       []UnitView     `json:"units"`
	HealFX      []EffectView   `json:"heal_effects"`
	BulletFX    []EffectView   `json:"bullet_effects"`
}

type BaseView struct {
	Team string  `json:"team"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	HP   float64 `json:"hp"`
	HPMax float64 `json:"hp_max"`
}

type MineView struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Energy float64 `json:"energy"`
}

type EnergyView struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Energy float64 `json:"energy"`
}

type UnitView struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	Team            string  `json:"team"`
	OwnerID         int64   `json:"owner_id"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	HP              float64 `json:"hp"`
	HPMax           float64 `json:"hp_max"`
	CarryingEnergy  float64 `json:"carrying_energy"`
	TargetX         float64 `json:"target_x,omitempty"`
	TargetY         float64 `json:"target_y,omitempty"`
	IsMining        bool    `json:"is_mining"`
}

type EffectView struct {
	ID        string  `json:"id"`
	Team      string  `json:"team"`
	FromX     float64 `json:"from_x"`
	FromY     float64 `json:"from_y"`
	ToX       float64 `json:"to_x"`
	ToY       float64 `json:"to_y"`
}

// TeamStatsView carries live unit counts per team.
type TeamStatsView struct {
	Red  TeamCounts `json:"red"`
	Blue TeamCounts `json:"blue"`
}

type TeamCounts struct {
	UnitCount int `json:"unit_count"`
}

// PlayerView is the recipient-specific block; spectators receive the
// zero value (empty Team/UnitType), per spec.md §9's correctness rule.
type PlayerView struct {
	UserID           int64   `json:"user_id,omitempty"`
	Username         string  `json:"username,omitempty"`
	Team             string  `json:"team,omitempty"`
	SelectedUnitType string  `json:"selected_unit_type,omitempty"`
	Energy           float64 `json:"energy"`
}

// GameStartedPayload announces the start of a match.
type GameStartedPayload struct {
	RedTeam  []string `json:"red_team"`
	BlueTeam []string `json:"blue_team"`
}

// GameOverPayload announces the winning team.
type GameOverPayload struct {
	Winner             string `json:"winner"`
	WinnerDisplayName  string `json:"winner_display_name"`
}

// PlayerJoinedPayload/PlayerLeftPayload announce roster changes.
type PlayerJoinedPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Team     string `json:"team"`
}

type PlayerLeftPayload struct {
	UserID int64 `json:"user_id"`
}

// ErrorPayload is delivered only to the originating socket, never broadcast.
type ErrorPayload struct {
	Message string `json:"message"`
}
