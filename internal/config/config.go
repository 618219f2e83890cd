// Package config loads expenseimport settings from defaults, an optional
// expenseimport.yaml and EXPENSEIMPORT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Auth modes.
const (
	AuthFirebase = "firebase"
	AuthStatic   = "static"
)

// Config holds application configuration.
type Config struct {
	LogLevel    string            `mapstructure:"log_level"`
	Currency    string            `mapstructure:"currency"`
	Store       StoreConfig       `mapstructure:"store"`
	Server      ServerConfig      `mapstructure:"server"`
	Firebase    FirebaseConfig    `mapstructure:"firebase"`
	Categorizer CategorizerConfig `mapstructure:"categorizer"`
	PDF         PDFConfig         `mapstructure:"pdf"`
	State       StateConfig       `mapstructure:"state"`
}

// StoreConfig selects where expenses and presets live.
type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	PresetsPath string `mapstructure:"presets_path"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port      string `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
	Auth      string `mapstructure:"auth"`
	// Tokens is "token=user,..." for static auth.
	Tokens string `mapstructure:"tokens"`
}

// FirebaseConfig holds Firestore and Firebase Auth settings.
type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// CategorizerConfig holds categorization settings. Without an endpoint the
// keyword rules are used.
type CategorizerConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RulesFile string        `mapstructure:"rules_file"`
}

// PDFConfig selects the PDF extractor. Without an endpoint text is
// extracted locally.
type PDFConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StateConfig holds the fingerprint state file location.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

func dataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "expenseimport")
	}
	return ".expenseimport"
}

// Load reads configuration. An explicit path must exist; otherwise
// expenseimport.yaml is looked up in the working directory and the user
// config directory and may be absent. Env var overrides use prefix
// EXPENSEIMPORT_, e.g. EXPENSEIMPORT_STORE_BACKEND.
func Load(path string) (Config, error) {
	v := viper.New()

	dir := dataDir()
	v.SetDefault("log_level", "info")
	v.SetDefault("currency", "USD")
	v.SetDefault("store.backend", StoreSQLite)
	v.SetDefault("store.path", filepath.Join(dir, "expenses.db"))
	v.SetDefault("store.presets_path", filepath.Join(dir, "presets.json"))
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.static_dir", "./dist")
	v.SetDefault("server.auth", AuthFirebase)
	v.SetDefault("server.tokens", "")
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_file", "")
	v.SetDefault("categorizer.endpoint", "")
	v.SetDefault("categorizer.api_key", "")
	v.SetDefault("categorizer.timeout", 30*time.Second)
	v.SetDefault("categorizer.rules_file", "")
	v.SetDefault("pdf.endpoint", "")
	v.SetDefault("pdf.api_key", "")
	v.SetDefault("pdf.timeout", 60*time.Second)
	v.SetDefault("state.path", "")

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("expenseimport")
		v.AddConfigPath(".")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("EXPENSEIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreSQLite, StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q (want sqlite, firestore or memory)", c.Store.Backend)
	}
	switch c.Server.Auth {
	case AuthFirebase, AuthStatic:
	default:
		return fmt.Errorf("unknown auth mode %q (want firebase or static)", c.Server.Auth)
	}
	if c.Store.Backend == StoreFirestore && c.Firebase.ProjectID == "" {
		return fmt.Errorf("firebase.project_id is required for the firestore store")
	}
	return nil
}
