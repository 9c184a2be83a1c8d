package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Consumer aggregates finished-game events into in-memory stats and logs
// each update. It runs as a worker goroutine alongside the server.
type Consumer struct {
	reader *kafka.Reader

	totalDurationMs int64
	finishedGames   int64
	winnerCounts    map[string]int
	gamesPerHour    map[string]int
}

func NewConsumer(brokers []string, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: "analytics-group",
		}),
		winnerCounts: make(map[string]int),
		gamesPerHour: make(map[string]int),
	}
}

func (c *Consumer) Run(ctx context.Context) {
	log.Info().Msg("Analytics consumer starting")
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Analytics read failed")
			continue
		}

		var e Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			log.Warn().Err(err).Msg("Skipping malformed analytics event")
			continue
		}
		c.record(e)
	}
}

func (c *Consumer) record(e Event) {
	if e.Type != EventGameFinished {
		return
	}

	c.totalDurationMs += e.DurationMs
	c.finishedGames++

	winner := e.Winner
	if winner == "" {
		winner = "(draw)"
	}
	c.winnerCounts[winner]++

	hour := time.UnixMilli(e.Timestamp).UTC().Format("2006-01-02T15")
	c.gamesPerHour[hour]++

	log.Info().
		Str("gameID", e.GameID).
		Int64("avgDurationMs", c.totalDurationMs/c.finishedGames).
		Int("winnerGames", c.winnerCounts[winner]).
		Str("winner", winner).
		Int("gamesThisHour", c.gamesPerHour[hour]).
		Msg("Analytics updated")
}
