package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	EnableKafka  bool     `env:"ENABLE_KAFKA"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"game-events"`
	RunAnalytics bool     `env:"RUN_ANALYTICS"`

	// MatchmakingDelay is how long a lone player waits before the bot is
	// seated; ReconnectGrace is the window a dropped player has to rejoin
	// before forfeiting.
	MatchmakingDelay time.Duration `env:"MATCHMAKING_DELAY" envDefault:"10s"`
	ReconnectGrace   time.Duration `env:"RECONNECT_GRACE" envDefault:"30s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
