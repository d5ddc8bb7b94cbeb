// Package cli содержит конфигурацию clipctl.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"gopkg.in/yaml.v3"
)

// DefaultConfigName — файл конфигурации в домашней директории
const DefaultConfigName = ".clipctl.yaml"

type Config struct {
	Backend      string        `yaml:"backend"`
	ModelPath    string        `yaml:"model_path"`
	MLAddr       string        `yaml:"ml_addr"`
	Threads      int           `yaml:"threads"`
	Verbosity    int           `yaml:"verbosity"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxImageSide int           `yaml:"max_image_side"`
	LogLevel     string        `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Backend:      cfg.BackendClipCpp,
		ModelPath:    "models/openai_clip-vit-base-patch32.q4_1.gguf",
		MLAddr:       "localhost:50051",
		Threads:      4,
		Verbosity:    0,
		Timeout:      30 * time.Second,
		MaxImageSide: 1024,
		LogLevel:     "warn",
	}
}

// DefaultPath возвращает ~/.clipctl.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigName), nil
}

// Load читает конфигурацию поверх значений по умолчанию.
// Отсутствующий файл по умолчанию не ошибка, явно указанный обязан существовать.
func Load(path string) (*Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case cfg.BackendClipCpp, cfg.BackendRemote:
	default:
		return fmt.Errorf("%w: backend must be %q or %q, got %q", e.ErrIncorrectEnvVariable, cfg.BackendClipCpp, cfg.BackendRemote, c.Backend)
	}

	if c.Backend == cfg.BackendClipCpp && c.ModelPath == "" {
		return fmt.Errorf("%w: model_path is required for the clipcpp backend", e.ErrIncorrectEnvVariable)
	}
	if c.Backend == cfg.BackendRemote && c.MLAddr == "" {
		return fmt.Errorf("%w: ml_addr is required for the remote backend", e.ErrIncorrectEnvVariable)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("%w: threads must be positive", e.ErrIncorrectEnvVariable)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", e.ErrIncorrectEnvVariable)
	}

	return nil
}

// MLServiceCfg собирает настройки удалённого бэкенда.
func (c *Config) MLServiceCfg() *cfg.MLServiceCfg {
	return &cfg.MLServiceCfg{
		Addr:          c.MLAddr,
		MaxConcurrent: 1,
		MaxRetries:    3,
		BatchSize:     8,
		Timeout:       c.Timeout,
	}
}
