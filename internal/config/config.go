// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config.yml"
	envPrefix   = "TASKS"
)

const (
	RepositoryInMemory = "inmemory"
	RepositoryPostgres = "postgres"
	RepositorySQLite   = "sqlite"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	Logging    LoggingConfig    `yaml:"logging"`
	Repository RepositoryConfig `yaml:"repository"`
	Auth       AuthConfig       `yaml:"auth"`
	Tasks      TasksConfig      `yaml:"tasks"`
	Admin      AdminConfig      `yaml:"admin"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RateLimitRPM    int           `yaml:"rate_limit_rpm"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConnections int           `yaml:"max_connections"`
	MinConnections int           `yaml:"min_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

type RepositoryConfig struct {
	Type string `yaml:"type"` // "inmemory", "postgres" или "sqlite"
}

type AuthConfig struct {
	Secret           string        `yaml:"secret"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	Issuer           string        `yaml:"issuer"`
	BcryptCost       int           `yaml:"bcrypt_cost"`
	OpenRegistration bool          `yaml:"open_registration"`
}

type TasksConfig struct {
	// StrictDueDate: срок проверяется при каждом сохранении, а не только при его изменении.
	StrictDueDate bool `yaml:"strict_due_date"`
}

// AdminConfig описывает учётную запись staff, создаваемую при старте. Пустой Username отключает её.
type AdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitRPM:    100,
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			MinConnections: 2,
			IdleTimeout:    5 * time.Minute,
		},
		SQLite:     SQLiteConfig{Path: "tasks.db"},
		Repository: RepositoryConfig{Type: RepositoryInMemory},
		Auth: AuthConfig{
			TokenTTL:         time.Hour,
			Issuer:           "task-manager",
			BcryptCost:       10,
			OpenRegistration: true,
		},
		Tasks: TasksConfig{StrictDueDate: true},
	}
}

// Load читает YAML поверх значений по умолчанию, затем применяет переменные окружения TASKS_*.
// Отсутствие файла ошибкой не считается.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setString(v, "server.host", &cfg.Server.Host)
	setInt(v, "server.port", &cfg.Server.Port)
	setDuration(v, "server.read_timeout", &cfg.Server.ReadTimeout)
	setDuration(v, "server.write_timeout", &cfg.Server.WriteTimeout)
	setDuration(v, "server.shutdown_timeout", &cfg.Server.ShutdownTimeout)
	setInt(v, "server.rate_limit_rpm", &cfg.Server.RateLimitRPM)
	if v.IsSet("server.cors_origins") {
		cfg.Server.CORSOrigins = splitList(v.GetString("server.cors_origins"))
	}

	setString(v, "database.url", &cfg.Database.URL)
	setInt(v, "database.max_connections", &cfg.Database.MaxConnections)
	setInt(v, "database.min_connections", &cfg.Database.MinConnections)
	setDuration(v, "database.idle_timeout", &cfg.Database.IdleTimeout)

	setString(v, "sqlite.path", &cfg.SQLite.Path)
	setString(v, "repository.type", &cfg.Repository.Type)
	setBool(v, "logging.development", &cfg.Logging.Development)

	setString(v, "auth.secret", &cfg.Auth.Secret)
	setDuration(v, "auth.token_ttl", &cfg.Auth.TokenTTL)
	setString(v, "auth.issuer", &cfg.Auth.Issuer)
	setInt(v, "auth.bcrypt_cost", &cfg.Auth.BcryptCost)
	setBool(v, "auth.open_registration", &cfg.Auth.OpenRegistration)

	setBool(v, "tasks.strict_due_date", &cfg.Tasks.StrictDueDate)

	setString(v, "admin.username", &cfg.Admin.Username)
	setString(v, "admin.email", &cfg.Admin.Email)
	setString(v, "admin.password", &cfg.Admin.Password)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

func splitList(raw string) []string {
	var res []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositoryInMemory, RepositorySQLite:
	case RepositoryPostgres:
		if c.Database.URL == "" {
			return errors.New("config: database.url обязателен для postgres")
		}
	default:
		return fmt.Errorf("config: неизвестный тип репозитория %q", c.Repository.Type)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: порт %d вне диапазона 1..65535", c.Server.Port)
	}
	if c.Auth.Secret == "" {
		return errors.New("config: auth.secret не задан")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.token_ttl должен быть положительным")
	}
	if c.Admin.Username != "" && c.Admin.Password == "" {
		return errors.New("config: для admin.username нужен admin.password")
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
