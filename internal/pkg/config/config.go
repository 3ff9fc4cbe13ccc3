package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`

	// ShareRoot is the local mount point the UNC-style share paths are
	// resolved under, so the same layout works off a mounted share on any
	// platform. SharePathTemplate uses {host} and {item} placeholders.
	ShareRoot         string `env:"SHARE_ROOT" envDefault:"/mnt/logshares"`
	SharePathTemplate string `env:"SHARE_PATH_TEMPLATE" envDefault:"{host}/D$/Proj/LogFiles/{item}"`

	// StagingDir receives harvested files before sessions take ownership.
	StagingDir string `env:"STAGING_DIR" envDefault:"/tmp/logquarry"`

	ChunkThreshold int64   `env:"CHUNK_THRESHOLD_BYTES" envDefault:"33554432"` // 32MB
	ChunkCount     int     `env:"CHUNK_COUNT" envDefault:"4"`
	HarvestRetries int     `env:"HARVEST_RETRIES" envDefault:"3"`
	HarvestRPS     float64 `env:"HARVEST_RPS" envDefault:"8"`

	ParserBufferSize int `env:"PARSER_BUFFER_BYTES" envDefault:"65536"`
	ParserBatchSize  int `env:"PARSER_BATCH_SIZE" envDefault:"2000"`

	SearchResultCap    int `env:"SEARCH_RESULT_CAP" envDefault:"5000"`
	SearchCheckEvery   int `env:"SEARCH_CHECK_EVERY" envDefault:"1000"`
	SearchPreviewWidth int `env:"SEARCH_PREVIEW_WIDTH" envDefault:"200"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"5m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
