package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "reqcheck.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/reqcheck"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// EnvFile is loaded from the working directory when present
	EnvFile = ".env"
)

// Environment variables read by the loader.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvSerperKey     = "SERPER_API_KEY"
	EnvLocale        = "REQCHECK_LOCALE"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/reqcheck/config.yaml)
// 3. Project config (reqcheck.yaml in current or parent directories)
// 4. explicitPath, if set (must exist)
// 5. Environment variables, after loading .env
func (l *Loader) Load(explicitPath string) (*Config, error) {
	config := DefaultConfig()

	// User config
	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if err := config.apply(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		} else if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	// Project config
	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if err := config.apply(projectConfigPath); err != nil {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		} else {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	// Explicit config
	if explicitPath != "" {
		if err := config.apply(explicitPath); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicitPath))
	}

	// .env does not override variables already set
	if err := godotenv.Load(EnvFile); err == nil {
		l.logger.Debug("Loaded environment file", slog.String("path", EnvFile))
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load environment file", slog.String("error", err.Error()))
	}
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func applyEnv(c *Config) {
	if key := os.Getenv(EnvOpenAIKey); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}
	if url := os.Getenv(EnvOpenAIBaseURL); url != "" {
		if c.LLM.Provider == "openai" {
			c.LLM.BaseURL = url
		}
		if c.Embedding.Provider == "openai" {
			c.Embedding.BaseURL = url
		}
	}
	if key := os.Getenv(EnvSerperKey); key != "" && c.Search.APIKey == "" {
		c.Search.APIKey = key
	}
	if locale := os.Getenv(EnvLocale); locale != "" {
		c.Locale = locale
	}
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return "", errors.New("cannot determine home directory")
	}
	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}
	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return "", err
	}
	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for reqcheck.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
