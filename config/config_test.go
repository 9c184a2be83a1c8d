package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "game-events", cfg.KafkaTopic)
	require.Equal(t, 10*time.Second, cfg.MatchmakingDelay)
	require.Equal(t, 30*time.Second, cfg.ReconnectGrace)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENABLE_KAFKA", "true")
	t.Setenv("KAFKA_BROKERS", "kafka1:9092,kafka2:9092")
	t.Setenv("MATCHMAKING_DELAY", "2s")
	t.Setenv("RECONNECT_GRACE", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.True(t, cfg.EnableKafka)
	require.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2*time.Second, cfg.MatchmakingDelay)
	require.Equal(t, 5*time.Second, cfg.ReconnectGrace)
}
