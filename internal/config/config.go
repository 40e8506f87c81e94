package config

import (
	_ "embed"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed game.yaml
var gameYAML []byte

//go:embed prices.yaml
var pricesYAML []byte

type Config struct {
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
	Ollama   OllamaConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Web      WebConfig
	Game     GameConfig
	Prices   PricesConfig
}

type OpenAIConfig struct {
	Token string
	Model string // defaults to gpt-4.1-mini
}

type GeminiConfig struct {
	APIKey string
	Model  string // defaults to gemini-2.5-flash
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3.2-vision:11b
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist target pose HNSW index (optional, if empty index is rebuilt on startup)
}

// StorageConfig holds the on-disk layout of game assets.
type StorageConfig struct {
	ResultDir string // captures and videos: <ResultDir>/capture/<date>/<n>, <ResultDir>/video/<date>/<n>
	TargetDir string // target images and pose files: <TargetDir>/<players>/<index>.jpg
}

type WebConfig struct {
	Host      string
	Port      int
	PublicURL string // base URL encoded in result QR codes; derived from the request when empty
	// AllowedOrigins may receive CORS headers in addition to localhost
	AllowedOrigins []string
}

// PricesConfig maps model names to their token prices.
type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

// ModelPricing is the price in USD per million tokens.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// GameConfig holds the game rules from the embedded game.yaml.
type GameConfig struct {
	CountdownSeconds      int         `yaml:"countdown_seconds"`
	DetectionFPS          int         `yaml:"detection_fps"`
	RefreshFPS            int         `yaml:"refresh_fps"`
	MinKeypointConfidence float64     `yaml:"min_keypoint_confidence"`
	MaxPlayers            int         `yaml:"max_players"`
	TargetPools           map[int]int `yaml:"target_pools"`
	PhotoCounts           []int       `yaml:"photo_counts"`
	SessionIdleMinutes    int         `yaml:"session_idle_minutes"`
}

// SessionIdleTimeout is how long an unattended session is kept. Zero keeps
// sessions until they finish.
func (g *GameConfig) SessionIdleTimeout() time.Duration {
	return time.Duration(max(g.SessionIdleMinutes, 0)) * time.Minute
}

// PoolSize returns how many target images exist for the given player count.
// Player counts without an explicit entry use the single player pool.
func (g *GameConfig) PoolSize(players int) int {
	if n, ok := g.TargetPools[players]; ok {
		return n
	}
	return g.TargetPools[1]
}

// ValidPlayers reports whether a session may be started with this many players.
func (g *GameConfig) ValidPlayers(players int) bool {
	return players >= 1 && players <= g.MaxPlayers && g.PoolSize(players) > 0
}

// ValidPhotos reports whether photos is one of the offered photo counts.
func (g *GameConfig) ValidPhotos(photos int) bool {
	return slices.Contains(g.PhotoCounts, photos)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString returns the environment variable or defaultVal when it is unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated environment variable, skipping blanks.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadGame parses the embedded game rules.
func LoadGame() GameConfig {
	var game GameConfig
	if err := yaml.Unmarshal(gameYAML, &game); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded game.yaml: " + err.Error())
	}
	return game
}

func loadPrices() PricesConfig {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}
	return prices
}

func Load() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
			Model: envString("OPENAI_MODEL", "gpt-4.1-mini"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  envString("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Storage: StorageConfig{
			ResultDir: envString("RESULT_DIR", "result_images"),
			TargetDir: envString("TARGET_DIR", "result_images/matching"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			PublicURL:      os.Getenv("WEB_PUBLIC_URL"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Game:   LoadGame(),
		Prices: loadPrices(),
	}
}

// GetModelPricing returns pricing for a model, zero for unknown and local models.
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	return c.Prices.Models[modelName]
}
