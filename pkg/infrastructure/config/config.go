package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the runtime configuration of the planner, read from the
// environment (and a .env file when present).
type Config struct {
	DBDriver     string `validate:"required,oneof=mysql sqlite"`
	DBDSN        string `validate:"required"`
	GormLog      bool
	RedisAddress string `validate:"omitempty,hostname_port"`
	LogLevel     string `validate:"required,oneof=trace debug info warn warning error fatal panic"`

	JobTimeout time.Duration `validate:"gt=0"`
	Workers    int           `validate:"min=1,max=64"`

	// OverIssueTolerancePct is the share above plan issued before overIssued fires
	OverIssueTolerancePct float64 `validate:"gte=0,lte=100"`
	// SeasonWeightTolerance is the allowed distance of a weight sum from 1
	SeasonWeightTolerance float64 `validate:"gt=0,lt=1"`
	// ApproxMaxDistance is the Levenshtein radius for approximate item matches
	ApproxMaxDistance int `validate:"min=0,max=10"`

	MRPSchedule string `validate:"required"`
}

var validate = validator.New()

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:              strings.ToLower(envString("DB_DRIVER", "sqlite")),
		DBDSN:                 envString("DB_DSN", "planner.db"),
		GormLog:               envString("GORM_LOG", "off") != "off",
		RedisAddress:          envString("REDIS_ADDRESS", ""),
		LogLevel:              strings.ToLower(envString("LOG_LEVEL", "info")),
		JobTimeout:            time.Duration(envInt("JOB_TIMEOUT_SECONDS", 300)) * time.Second,
		Workers:               envInt("WORKERS", 4),
		OverIssueTolerancePct: envFloat("OVER_ISSUE_TOLERANCE_PCT", 0),
		SeasonWeightTolerance: envFloat("SEASON_WEIGHT_TOLERANCE", 1e-6),
		ApproxMaxDistance:     envInt("APPROX_MAX_DISTANCE", 2),
		MRPSchedule:           envString("MRP_SCHEDULE", "0 2 * * *"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, ve := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", ve.Field(), ve.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// OverIssueTolerance returns the over-issue tolerance as a decimal percentage
func (c *Config) OverIssueTolerance() decimal.Decimal {
	return decimal.NewFromFloat(c.OverIssueTolerancePct)
}

// WeightTolerance returns the season weight tolerance as a decimal
func (c *Config) WeightTolerance() decimal.Decimal {
	return decimal.NewFromFloat(c.SeasonWeightTolerance)
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
