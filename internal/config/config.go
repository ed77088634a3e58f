// Package config loads spacetodo configuration from spacetodo.toml files
// and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/amonks/spacetodo/internal/paths"
	"github.com/amonks/spacetodo/record"
)

// ProjectFile is the name of the per-directory config file.
const ProjectFile = "spacetodo.toml"

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config represents the merged configuration.
type Config struct {
	Store   Store   `toml:"store"`
	Catalog Catalog `toml:"catalog"`
	Log     Log     `toml:"log"`
	User    User    `toml:"user"`
}

// Store selects and configures the backing store.
type Store struct {
	// Backend is one of file, memory, sqlite, or redis. Defaults to file.
	Backend string `toml:"backend"`

	// Path is the data directory for the file store, or the database file
	// (or its directory) for the sqlite store.
	Path string `toml:"path"`

	RedisURL    string `toml:"redis-url"`
	RedisPrefix string `toml:"redis-prefix"`

	// Collation decides which task titles collide: exact or fold.
	Collation string `toml:"collation"`
}

// Catalog sets the result ceilings of task queries.
type Catalog struct {
	PickerLimit int `toml:"picker-limit"`
	BrowseLimit int `toml:"browse-limit"`
}

// Log configures the stderr logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// User identifies who new todos belong to.
type User struct {
	ID string `toml:"id"`
}

// Environment variables that override file settings.
const (
	EnvBackend   = "SPACETODO_BACKEND"
	EnvDataDir   = "SPACETODO_DATA_DIR"
	EnvRedisURL  = "SPACETODO_REDIS_URL"
	EnvUser      = "SPACETODO_USER"
	EnvLogLevel  = "SPACETODO_LOG_LEVEL"
	EnvCollation = "SPACETODO_COLLATION"
)

// Load loads configuration from the global config file and projectDir's
// spacetodo.toml, with project keys winning, then applies environment
// overrides. Variables in projectDir/.env apply when the process
// environment does not set them.
func Load(projectDir string) (*Config, error) {
	globalPath, err := paths.GlobalConfigPath()
	if err != nil {
		return nil, err
	}

	globalCfg, _, err := loadConfigFile(globalPath)
	if err != nil {
		return nil, err
	}

	projectCfg, projectMeta, err := loadConfigFile(filepath.Join(projectDir, ProjectFile))
	if err != nil {
		return nil, err
	}

	merged := mergeConfigs(globalCfg, projectCfg, projectMeta)

	dotenv, err := readDotenv(filepath.Join(projectDir, ".env"))
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	applyEnv(merged, lookup)

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: unknown key %s", path, undecoded[0])
	}

	return &cfg, meta, nil
}

func readDotenv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vars, nil
}

func mergeConfigs(globalCfg, projectCfg *Config, projectMeta toml.MetaData) *Config {
	if globalCfg == nil {
		globalCfg = &Config{}
	}
	if projectCfg == nil {
		projectCfg = &Config{}
	}

	p, g := projectCfg, globalCfg
	defined := func(key ...string) bool { return projectMeta.IsDefined(key...) }

	merged := Config{}
	merged.Store.Backend = mergeString(defined("store", "backend"), p.Store.Backend, g.Store.Backend)
	merged.Store.Path = mergeString(defined("store", "path"), p.Store.Path, g.Store.Path)
	merged.Store.RedisURL = mergeString(defined("store", "redis-url"), p.Store.RedisURL, g.Store.RedisURL)
	merged.Store.RedisPrefix = mergeString(defined("store", "redis-prefix"), p.Store.RedisPrefix, g.Store.RedisPrefix)
	merged.Store.Collation = mergeString(defined("store", "collation"), p.Store.Collation, g.Store.Collation)
	merged.Catalog.PickerLimit = mergeInt(defined("catalog", "picker-limit"), p.Catalog.PickerLimit, g.Catalog.PickerLimit)
	merged.Catalog.BrowseLimit = mergeInt(defined("catalog", "browse-limit"), p.Catalog.BrowseLimit, g.Catalog.BrowseLimit)
	merged.Log.Level = mergeString(defined("log", "level"), p.Log.Level, g.Log.Level)
	merged.Log.Format = mergeString(defined("log", "format"), p.Log.Format, g.Log.Format)
	merged.User.ID = mergeString(defined("user", "id"), p.User.ID, g.User.ID)

	return &merged
}

func mergeString(projectDefined bool, projectValue, globalValue string) string {
	value := globalValue
	if projectDefined {
		value = projectValue
	}
	return strings.TrimSpace(value)
}

func mergeInt(projectDefined bool, projectValue, globalValue int) int {
	if projectDefined {
		return projectValue
	}
	return globalValue
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvBackend, &cfg.Store.Backend)
	set(EnvDataDir, &cfg.Store.Path)
	set(EnvRedisURL, &cfg.Store.RedisURL)
	set(EnvCollation, &cfg.Store.Collation)
	set(EnvUser, &cfg.User.ID)
	set(EnvLogLevel, &cfg.Log.Level)
}

// Validate checks values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", BackendFile, BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := record.ParseCollation(c.Store.Collation); err != nil {
		return err
	}
	if c.Catalog.PickerLimit < 0 || c.Catalog.BrowseLimit < 0 {
		return fmt.Errorf("catalog limits must not be negative")
	}
	return nil
}

// Backend returns the configured backend, defaulting to file.
func (c *Config) Backend() string {
	if c.Store.Backend == "" {
		return BackendFile
	}
	return c.Store.Backend
}

// Collation returns the configured collation, defaulting to exact.
func (c *Config) Collation() record.Collation {
	collation, err := record.ParseCollation(c.Store.Collation)
	if err != nil {
		return record.CollationExact
	}
	return collation
}

// DataDir returns the configured store path or the default data directory.
func (c *Config) DataDir() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	return paths.DefaultDataDir()
}
