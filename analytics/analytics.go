// Package analytics is the messaging collaborator: best-effort game events
// on a Kafka topic for offline consumption. Gameplay never waits on it and
// never fails because of it.
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	EventGameStarted  = "GAME_STARTED"
	EventMoveMade     = "MOVE_MADE"
	EventGameFinished = "GAME_FINISHED"
)

// Event is the wire shape on the game-events topic.
type Event struct {
	Type       string   `json:"type"`
	GameID     string   `json:"gameId"`
	Players    []string `json:"players,omitempty"`
	Player     string   `json:"player,omitempty"`
	Column     *int     `json:"column,omitempty"`
	Winner     string   `json:"winner,omitempty"`
	DurationMs int64    `json:"durationMs,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}

// Kafka publishes events to a broker. Writes use a short timeout; errors
// are logged and dropped.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) MatchStarted(gameID string, players [2]string) {
	k.emit(Event{Type: EventGameStarted, GameID: gameID, Players: players[:]})
}

func (k *Kafka) MoveMade(gameID, player string, column int) {
	k.emit(Event{Type: EventMoveMade, GameID: gameID, Player: player, Column: &column})
}

func (k *Kafka) MatchFinished(gameID, winner string, startedAt time.Time) {
	k.emit(Event{
		Type:       EventGameFinished,
		GameID:     gameID,
		Winner:     winner,
		DurationMs: time.Since(startedAt).Milliseconds(),
	})
}

func (k *Kafka) emit(e Event) {
	e.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("type", e.Type).Msg("Failed to marshal analytics event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		log.Warn().Err(err).Str("type", e.Type).Msg("Failed to publish analytics event")
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Noop stands in when Kafka is disabled.
type Noop struct{}

func (Noop) MatchStarted(string, [2]string)          {}
func (Noop) MoveMade(string, string, int)            {}
func (Noop) MatchFinished(string, string, time.Time) {}
