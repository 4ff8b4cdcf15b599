package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv overlays settings from environment variables. Variables already set
// in the process environment win over the .env file (-env-file, or ./.env if
// present).
//
//	ENCRYPTION_KEY  64 hex characters
//	ENCRYPTION_IV   32 hex characters
//	SECRET_KEY      session token signing secret
//	DATABASE_DSN    PostgreSQL DSN
//	APP_ENV         "production" enables secure cookies
//	LOG_LEVEL       debug|info|warn|error
func parseEnv(config *Config) error {
	if err := loadEnvFile(flagx.EnvFileFlag()); err != nil {
		return err
	}

	key, err := decodeHexSecret("ENCRYPTION_KEY", os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		return err
	}
	iv, err := decodeHexSecret("ENCRYPTION_IV", os.Getenv("ENCRYPTION_IV"))
	if err != nil {
		return err
	}
	if key != nil {
		config.EncryptionKey = key
	}
	if iv != nil {
		config.EncryptionIV = iv
	}

	if v := os.Getenv("SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		config.Production = strings.EqualFold(v, "production")
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		config.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	return nil
}

func loadEnvFile(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	err := godotenv.Load(defaultEnvFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
