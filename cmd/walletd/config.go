package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/soundrise/wallet/internal/logger"
)

const (
	defaultListenAddr        = "localhost:8080"
	defaultLoggingLevel      = logger.LevelInfo
	defaultEnvironment       = logger.EnvProduction
	defaultProviderBaseURL   = "https://api.provider.example"
	defaultReconcileInterval = 30 * time.Second
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the wallet service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Transfer provider API base URL
	ProviderBaseURL string

	// Provider API secret. Also the webhook HMAC key: the provider signs
	// callbacks with the same secret it authenticates us with.
	ProviderSecret string

	// Secret the auth service signs access tokens with
	JWTSecret string

	// How often the background reconciler sweeps stuck withdrawals
	ReconcileInterval time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		ListenAddr:        defaultListenAddr,
		ProviderBaseURL:   defaultProviderBaseURL,
		ReconcileInterval: defaultReconcileInterval,
		Environment:       defaultEnvironment,
	}
}

// Load variables from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"PROVIDER_BASE_URL":  setString(&c.ProviderBaseURL),
		"PROVIDER_SECRET":    setString(&c.ProviderSecret),
		"JWT_SECRET":         setString(&c.JWTSecret),
		"RECONCILE_INTERVAL": setDuration(&c.ReconcileInterval),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("walletd", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.ProviderBaseURL, "provider-url", "p", c.ProviderBaseURL, "Transfer provider base URL")
	fs.StringVarP(&c.ProviderSecret, "provider-secret", "s", c.ProviderSecret, "Transfer provider API secret")
	fs.StringVarP(&c.JWTSecret, "jwt-secret", "j", c.JWTSecret, "Access token signing secret")
	fs.DurationVarP(&c.ReconcileInterval, "reconcile-interval", "r", c.ReconcileInterval, "Background reconcile sweep interval")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}
