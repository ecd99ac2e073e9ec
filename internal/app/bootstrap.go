package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/igifu/campus-meals/internal/config"
	"github.com/igifu/campus-meals/internal/security"
	internalsettings "github.com/igifu/campus-meals/internal/settings"
	"gopkg.in/yaml.v3"
)

// defaultSQLitePath is the database file created next to a generated config.
const defaultSQLitePath = "meals.db"

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host         string       `yaml:"host"`
	Port         int          `yaml:"port"`
	DatabaseDSN  string       `yaml:"database-dsn"`
	Debug        bool         `yaml:"debug"`
	JWT          jwtCfg       `yaml:"jwt"`
	RateLimit    rateLimitCfg `yaml:"rate-limit"`
	DefaultAdmin adminCfg     `yaml:"default-admin"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

type rateLimitCfg struct {
	Limit int `yaml:"limit"`
}

type adminCfg struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// generateSecret creates a random secret, falling back to a placeholder.
func generateSecret(n int) string {
	secret, err := security.GenerateRandomString(n)
	if err != nil {
		return "change-me-to-a-secure-random-string"
	}
	return secret
}

// WriteConfigFile writes a starter config file with a fresh JWT secret and
// a generated password for the default admin.
func WriteConfigFile(configPath string, dsn string, port int) error {
	cfg := configFile{
		Port:        port,
		DatabaseDSN: dsn,
		JWT: jwtCfg{
			Secret: generateSecret(32),
			Expiry: "168h",
		},
		RateLimit: rateLimitCfg{Limit: internalsettings.DefaultRateLimit},
		DefaultAdmin: adminCfg{
			Username: internalsettings.DefaultAdminUsername,
			Email:    internalsettings.DefaultAdminEmail,
			Password: generateSecret(9),
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// EnsureConfig writes a starter SQLite config when neither a config file
// nor a database environment override exists. It reports whether it wrote one.
func EnsureConfig(cfg config.AppConfig, port int) (bool, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	if ConfigExists(configPath) || strings.TrimSpace(os.Getenv(config.EnvDBConnection)) != "" {
		return false, nil
	}
	dsn := "file:" + filepath.Join(filepath.Dir(configPath), defaultSQLitePath)
	if errWrite := WriteConfigFile(configPath, dsn, port); errWrite != nil {
		return false, errWrite
	}
	return true, nil
}
