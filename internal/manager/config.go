package manager

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config tunes a Manager. Callers normally build this directly; it is
// also loadable from YAML via LoadConfig, the way the teacher's
// doctor commands load config.yaml through viper.
type Config struct {
	// RootUUID is the repository root node's UUID, bootstrapped on
	// first construction if not already present in persistence.
	RootUUID uuid.UUID

	// RootTypeName is the node type the registry must recognize for
	// RootUUID (spec.md §8 scenario 1 uses "rep:root").
	RootTypeName string

	// CacheCapacity bounds the item-state cache (statecache.New).
	CacheCapacity int

	// Logger receives the manager's structured error diagnostics (a
	// failed cache insert on state_created); commit phases are not
	// logged. Nil means zap.NewNop().
	Logger *zap.Logger
}

// LoadConfig reads a Config from a YAML file at path using viper,
// leaving RootUUID/Logger for the caller to fill in afterward (neither
// has a sensible textual default worth inventing).
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("root_type_name", "rep:root")
	v.SetDefault("cache_capacity", 4096)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("manager: load config: %w", err)
	}

	return Config{
		RootTypeName:  v.GetString("root_type_name"),
		CacheCapacity: v.GetInt("cache_capacity"),
	}, nil
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
