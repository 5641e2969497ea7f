package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {

	// Set test environment variables
	os.Setenv("LOG_ZAP_MODE", "test_mode")
	os.Setenv("RPC_HOST", "http://localhost:8899")
	os.Setenv("PRINT_CONFIGURATION_TO_LOGS", "true")

	// Get config
	cfg := Get()

	// Assert values
	assert.Equal(t, "test_mode", cfg.LogZapMode)
	assert.Equal(t, "http://localhost:8899", cfg.RpcHost)
	assert.Equal(t, "true", cfg.PrintConfigurationToLogs)

	// Test singleton behavior
	cfg2 := Get()
	assert.Equal(t, cfg, cfg2)
}

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()

	os.Unsetenv("WEBHOOK_ADDR")
	os.Unsetenv("METRICS_ADDR")
	os.Unsetenv("LOOKBACK_HOURS")

	cfg := loadConfig()

	assert.Equal(t, ":8080", cfg.WebhookAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, uint64(730), cfg.LookbackHours)
}

func TestLoadConfigWithConfigFile(t *testing.T) {
	// Reset viper
	viper.Reset()

	// Create temporary config file
	content := []byte(`
RPC_HOST=http://rpc.example.com
POSTGRES_DSN=postgres://file_value
LOOKBACK_HOURS=24
`)
	err := os.WriteFile("config.env", content, 0644)
	assert.NoError(t, err)
	defer os.Remove("config.env")

	// Clear environment variables to ensure we're reading from file
	os.Unsetenv("RPC_HOST")
	os.Unsetenv("POSTGRES_DSN")
	os.Unsetenv("LOOKBACK_HOURS")

	cfg := loadConfig()

	assert.Equal(t, "http://rpc.example.com", cfg.RpcHost)
	assert.Equal(t, "postgres://file_value", cfg.PostgresDsn)
	assert.Equal(t, uint64(24), cfg.LookbackHours)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	viper.Reset()
	content := []byte(`
	RPC_HOST=http://rpc.example.com
	POSTGRES_DSN=postgres://file_value
	`)
	err := os.WriteFile("config.env", content, 0644)
	assert.NoError(t, err)
	defer os.Remove("config.env")

	// Set environment variables that should override file values
	os.Setenv("RPC_HOST", "http://env-override:8899")

	cfg := loadConfig()

	// Environment variable should override file value
	assert.Equal(t, "http://env-override:8899", cfg.RpcHost)
	// Other values should come from file
	assert.Equal(t, "postgres://file_value", cfg.PostgresDsn)
}

func TestMissingConfigFile(t *testing.T) {
	// Reset viper
	viper.Reset()

	// Ensure config file doesn't exist
	os.Remove("config.env")

	// Set environment variables
	os.Setenv("RPC_HOST", "http://env-only:8899")

	// Should not panic when config file is missing
	cfg := loadConfig()

	assert.Equal(t, "http://env-only:8899", cfg.RpcHost)
}

// Reset the test environment after each test
func TestMain(m *testing.M) {
	// Run tests
	code := m.Run()

	// Cleanup
	os.Remove("config.env")
	os.Unsetenv("LOG_ZAP_MODE")
	os.Unsetenv("RPC_HOST")
	os.Unsetenv("POSTGRES_DSN")
	os.Unsetenv("PRINT_CONFIGURATION_TO_LOGS")

	os.Exit(code)
}
