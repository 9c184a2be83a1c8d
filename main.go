package main

import (
	"context"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dropfour/connect_four/analytics"
	"github.com/dropfour/connect_four/api"
	"github.com/dropfour/connect_four/arena"
	"github.com/dropfour/connect_four/config"
	"github.com/dropfour/connect_four/storage"
)

func main() {
	InitializeLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the database")
	}

	var pub arena.Publisher = analytics.Noop{}
	if cfg.EnableKafka {
		k := analytics.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer k.Close()
		pub = k

		if cfg.RunAnalytics {
			consumer := analytics.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic)
			go consumer.Run(context.Background())
		}
	} else {
		log.Info().Msg("Kafka disabled, skipping producer init")
	}

	a := arena.New(clockwork.NewRealClock(), store, pub, cfg.MatchmakingDelay, cfg.ReconnectGrace)

	log.Info().Msg("Starting App")
	api.StartAPI(cfg.Port, a, store)
}

func InitializeLogger() {
	loggingEnabled := os.Getenv("LOGGING")
	if loggingEnabled != "true" {
		log.Logger = log.Output(os.Stdout)
	} else {
		runLogFile, err := os.OpenFile(
			"connect4.log",
			os.O_APPEND|os.O_CREATE|os.O_WRONLY,
			0664,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open log file")
		}
		multi := zerolog.MultiLevelWriter(runLogFile, os.Stdout)
		log.Logger = zerolog.New(multi).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
