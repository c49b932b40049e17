package testsupport

import (
	"log"
	"os"
	"sync"

	"resonance/internal/adapters/config"
)

var (
	cfg     *config.Config
	cfgOnce sync.Once
	cfgErr  error
)

// ENV=test makes config.Load pick up .env.test.
func init() {
	if os.Getenv("ENV") == "" {
		_ = os.Setenv("ENV", "test")
	}
}

// GetConfig loads the full service config once and panics if it cannot
// be loaded. Integration helpers that need a single config section use
// LoadDatabaseConfigsFromEnv instead, which skips rather than fails.
func GetConfig() *config.Config {
	cfgOnce.Do(func() {
		cfg, cfgErr = config.Load()
		if cfgErr != nil {
			log.Printf("Warning: failed to load config in testsupport: %v", cfgErr)
		}
	})
	if cfgErr != nil {
		panic(cfgErr)
	}
	return cfg
}
