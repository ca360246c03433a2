package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/uhhharsh/VidShare/internal/flagx"
)

const defaultEnvFile = ".env"

// parseEnv loads a dotenv file into the process environment (existing
// variables win) and then overlays every set variable onto config.
// A missing ./.env is not an error; a missing -env-file is.
func parseEnv(config *Config, args []string) error {
	path := flagx.EnvFilePath(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}

// EnvHelp describes the environment variables understood by LoadConfig.
func EnvHelp() (string, error) {
	header := "Environment variables:"
	return cleanenv.GetDescription(&Config{}, &header)
}
