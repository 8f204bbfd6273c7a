package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PollyDrive/estate/internal/models"
)

// Config holds the application's configuration. It is loaded once at
// startup and passed by reference; nothing re-reads it mid-run.
type Config struct {
	Database struct {
		URL            string `yaml:"url"` // overridden by DATABASE_URL when set
		MigrationsPath string `yaml:"migrations_path"`
	} `yaml:"database"`

	Pipeline struct {
		BatchLimit  int `yaml:"batch_limit"` // per-run item cap for every stage
		Concurrency int `yaml:"concurrency"` // parallel remote calls in classify
	} `yaml:"pipeline"`

	Filters struct {
		PriceMaxHard    float64  `yaml:"price_max_hard"` // archive cap, IDR/month
		BedroomsMaxHard int      `yaml:"bedrooms_max_hard"`
		BedroomsMin     int      `yaml:"bedrooms_min"`
		PriceMax        float64  `yaml:"price_max"`
		MinTermMonths   int      `yaml:"min_term_months"`
		StopWords       []string `yaml:"stop_words"`
		StopLocations   []string `yaml:"stop_locations"`
		Locations       []string `yaml:"locations"` // gazetteer override; empty = built-in
	} `yaml:"filters"`

	LLM struct {
		Providers   []Provider    `yaml:"providers"`
		MaxFailures int           `yaml:"max_failures"` // consecutive failures before switching provider
		MaxRetries  int           `yaml:"max_retries"`
		RetryDelay  time.Duration `yaml:"retry_delay"`
	} `yaml:"llm"`

	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig shapes the notification gate: batch cap, inter-send delay
// and the quiet-hours window expressed in a fixed UTC offset.
type TelegramConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	SendDelay     time.Duration `yaml:"send_delay"`
	QuietStart    int           `yaml:"quiet_start_hour"`
	QuietEnd      int           `yaml:"quiet_end_hour"`
	QuietDisabled bool          `yaml:"quiet_hours_disabled"`
	UTCOffset     int           `yaml:"utc_offset_hours"`
}

// Provider configures one LLM provider in the fallback chain.
type Provider struct {
	Type              string        `yaml:"type"` // "groq", "openrouter", "gemini"
	Model             string        `yaml:"model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Load reads configuration from the specified YAML file and merges the
// chat profiles from profilesPath (optional, may be empty).
func Load(configPath, profilesPath string) (*Config, []models.ChatProfile, error) {
	cfg := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	cfg.applyDefaults()

	var profiles []models.ChatProfile
	if profilesPath != "" {
		profiles, err = loadProfiles(profilesPath)
		if err != nil {
			return nil, nil, err
		}
	}
	return cfg, profiles, nil
}

func (c *Config) applyDefaults() {
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}
	if c.Pipeline.BatchLimit == 0 {
		c.Pipeline.BatchLimit = 200
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = 4
	}
	if c.LLM.MaxFailures == 0 {
		c.LLM.MaxFailures = 3
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}
	if c.LLM.RetryDelay == 0 {
		c.LLM.RetryDelay = 2 * time.Second
	}
	if c.Telegram.BatchSize == 0 {
		c.Telegram.BatchSize = 10
	}
	if c.Telegram.SendDelay == 0 {
		c.Telegram.SendDelay = 2 * time.Second
	}
	if !c.Telegram.QuietDisabled && c.Telegram.QuietStart == 0 && c.Telegram.QuietEnd == 0 {
		c.Telegram.QuietStart = 22
		c.Telegram.QuietEnd = 7
	}
	if c.Filters.MinTermMonths == 0 {
		c.Filters.MinTermMonths = 3
	}
}

func loadProfiles(path string) ([]models.ChatProfile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profiles file: %w", err)
	}
	defer file.Close()

	var profiles []models.ChatProfile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles file: %w", err)
	}
	for i := range profiles {
		if profiles[i].ChatID == 0 {
			return nil, fmt.Errorf("profile %q has no chat_id", profiles[i].Name)
		}
	}
	return profiles, nil
}
