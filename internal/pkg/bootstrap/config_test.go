package bootstrap

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
app:
  name: shopApp
  port: 9090
  feature_flags:
    enable_response_cache: true
infra:
  database:
    driver: mysql
    host: db.internal
    user: catalog
    name: catalog
  redis:
    addrs: ["redis:6379"]
    ttl: 30s
  kafka:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "shopApp", cfg.App.Name)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.True(t, cfg.App.FeatureFlags.EnableResponseCache)
	assert.Equal(t, "mysql", cfg.Infra.Database.Driver)
	assert.Equal(t, 3306, cfg.Infra.Database.Port) // 默认值保留
	assert.Equal(t, 30*time.Second, cfg.Infra.Redis.TTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, "catalog-events", cfg.Infra.Kafka.Topic)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("APP_PORT", "7070")
	t.Setenv("DB_HOST", "mysql.prod")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, "mysql.prod", cfg.Infra.Database.Host)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Infra.Kafka.Brokers)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_InvalidInputs(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "app: [unclosed"))
	assert.Error(t, err)

	t.Setenv("DB_PORT", "not-a-number")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestShutdownHooks_RunInReverseOrder(t *testing.T) {
	var order []string
	hooks := &shutdownHooks{}
	for _, name := range []string{"db", "kafka", "nacos"} {
		hooks.add(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	hooks.run(context.Background())
	hooks.run(context.Background())

	assert.Equal(t, []string{"nacos", "kafka", "db"}, order)
}
