package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Parse loads an optional .env file and reads the configuration from the
// environment.
func Parse() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse cfg: %v", err)
	}

	return cfg, nil
}

// ParseFile reads the configuration from a .env style file, with the
// environment taking precedence.
func ParseFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil {
		return Config{}, fmt.Errorf("load env file %s: %v", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse cfg: %v", err)
	}

	return cfg, nil
}
