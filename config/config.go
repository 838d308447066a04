package config

import (
	"errors"
	"github.com/ilyakaznacheev/cleanenv"
	"os"
	"time"
)

const (
	StoreDriverSupabase = "supabase"
	StoreDriverRedis    = "redis"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

type Server struct {
	Port      string `yaml:"port" env:"PORT" env-default:"3001"`
	BodyLimit int64  `yaml:"body_limit" env:"BODY_LIMIT" env-default:"52428800"`
	DistDir   string `yaml:"dist_dir" env:"DIST_DIR" env-default:"dist"`
}

type Groq struct {
	APIKey       string  `env:"GROQ_API_KEY"`
	BaseURL      string  `yaml:"base_url" env:"GROQ_BASE_URL" env-default:"https://api.groq.com/openai/v1"`
	DefaultModel string  `yaml:"default_model" env:"GROQ_MODEL" env-default:"llama-3.3-70b-versatile"`
	Temperature  float32 `yaml:"temperature" env:"GROQ_TEMPERATURE"`
}

type Search struct {
	TavilyAPIKey string `env:"TAVILY_API_KEY"`
	BaseURL      string `yaml:"base_url" env:"TAVILY_BASE_URL" env-default:"https://api.tavily.com"`
	MaxResults   int    `yaml:"max_results" env:"SEARCH_MAX_RESULTS" env-default:"5"`
}

type Supabase struct {
	URL     string `env:"VITE_SUPABASE_URL"`
	AnonKey string `env:"VITE_SUPABASE_ANON_KEY"`
}

type Redis struct {
	Endpoint string `yaml:"endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
}

type SQLite struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"vedai.db"`
}

type Store struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"supabase"`
}

type Client struct {
	RelayURL  string        `yaml:"relay_url" env:"RELAY_URL" env-default:"http://localhost:3001"`
	// Embedded runs the relay in-process instead of calling RelayURL.
	Embedded  bool          `yaml:"embedded" env:"RELAY_EMBEDDED"`
	Model     string        `yaml:"model" env:"MODEL" env-default:"llama-3.3-70b-versatile"`
	StateFile string        `yaml:"state_file" env:"STATE_FILE" env-default:".vedai-state.json"`
	UserID    string        `env:"VEDAI_USER_ID"`
	Timeout   time.Duration `yaml:"timeout" env:"RELAY_TIMEOUT" env-default:"0s"`

	RevealChunk    int           `yaml:"reveal_chunk" env:"REVEAL_CHUNK" env-default:"2"`
	RevealInterval time.Duration `yaml:"reveal_interval" env:"REVEAL_INTERVAL" env-default:"10ms"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

type Telemetry struct {
	Enabled bool   `yaml:"enabled" env:"TELEMETRY_ENABLED" env-default:"false"`
	Dir     string `yaml:"dir" env:"TELEMETRY_DIR" env-default:"logs"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Groq      Groq      `yaml:"groq"`
	Search    Search    `yaml:"search"`
	Supabase  Supabase  `yaml:"supabase"`
	Redis     Redis     `yaml:"redis"`
	SQLite    SQLite    `yaml:"sqlite"`
	Store     Store     `yaml:"store"`
	Client    Client    `yaml:"client"`
	Log       Log       `yaml:"log"`
	Telemetry Telemetry `yaml:"telemetry"`
	Hosted    bool      `env:"VERCEL"`
}

// CredentialPresence reports which credentials are configured without exposing them.
type CredentialPresence struct {
	Groq        bool `json:"GROQ"`
	Tavily      bool `json:"TAVILY"`
	SupabaseURL bool `json:"SUPABASE_URL"`
	SupabaseKey bool `json:"SUPABASE_KEY"`
	Vercel      bool `json:"VERCEL"`
}

func (c *Config) Presence() CredentialPresence {
	return CredentialPresence{
		Groq:        c.Groq.APIKey != "",
		Tavily:      c.Search.TavilyAPIKey != "",
		SupabaseURL: c.Supabase.URL != "",
		SupabaseKey: c.Supabase.AnonKey != "",
		Vercel:      c.Hosted,
	}
}

// LoadConfig reads the optional config file and then the environment.
// A missing file is not an error.
func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err == nil {
			if err = cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
				return nil, err
			}
			return &cfg, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
