// Package config reads server configuration from the environment and the
// optional game-settings YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/blankparty/hackbox/internal/game"
)

// Database holds Postgres connection settings.
type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Server holds the gateway process settings.
type Server struct {
	Port    string
	NATSURL string // empty means local in-process broadcast only
}

// DatabaseFromEnv reads DB_* environment variables (with defaults).
func DatabaseFromEnv() Database {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return Database{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "hackbox"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// ServerFromEnv reads the gateway settings from the environment.
func ServerFromEnv() Server {
	return Server{
		Port:    getEnv("PORT", "8080"),
		NATSURL: os.Getenv("NATS_URL"),
	}
}

// DSN returns the Postgres connection URL.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// LoadGameSettings reads phase timings from a YAML file. A missing path
// returns the defaults.
func LoadGameSettings(path string) (game.Settings, error) {
	if path == "" {
		return game.DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return game.DefaultSettings(), nil
		}
		return game.Settings{}, fmt.Errorf("read game settings: %w", err)
	}

	settings := game.DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return game.Settings{}, fmt.Errorf("parse game settings: %w", err)
	}
	return settings, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
