package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL        string `yaml:"base_url"`
		StreamerScheme string `yaml:"streamer_scheme"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"api"`
	Streaming struct {
		Ticker string `yaml:"ticker"`
	} `yaml:"streaming"`
	Watchlist struct {
		AccountID string   `yaml:"account_id"`
		Symbols   []string `yaml:"symbols"`
	} `yaml:"watchlist"`
	News struct {
		Enabled      bool `yaml:"enabled"`
		MaxHeadlines int  `yaml:"max_headlines"`
	} `yaml:"news"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Secrets come from the environment, never the YAML file.
	APIKey       string `yaml:"-"`
	RefreshToken string `yaml:"-"`
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("TDA_API_KEY is not set")
	}
	if c.RefreshToken == "" {
		return errors.New("TDA_REFRESH_TOKEN is not set")
	}
	if s := c.API.StreamerScheme; s != "" && s != "ws" && s != "wss" {
		return fmt.Errorf("invalid streamer_scheme '%s': must be 'ws' or 'wss'", s)
	}
	if c.API.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must be >= 0, got %d", c.API.TimeoutSeconds)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = 30
	}
	if c.News.MaxHeadlines == 0 {
		c.News.MaxHeadlines = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}

	c.APIKey = os.Getenv("TDA_API_KEY")
	c.RefreshToken = os.Getenv("TDA_REFRESH_TOKEN")

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
