// Package events publishes scores and watcher alerts to the event stream.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tokenrisk/internal/adapters/kafka"
	"tokenrisk/internal/domain/alert"
	domainRisk "tokenrisk/internal/domain/risk"
	"tokenrisk/pkg/errors"
	"tokenrisk/pkg/logger"
)

// Event types carried in Envelope.Type
const (
	TypeRiskScore  = "risk.score_computed"
	TypeWhaleAlert = "watch.whale_detected"
	TypePriceSurge = "watch.price_surge"
	TypeMintBirth  = "watch.mint_born"
)

const envelopeVersion = "1.0"

// Producer sends an encoded event to a topic
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Envelope wraps every payload with identity and provenance
type Envelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Publisher publishes events to Kafka
type Publisher struct {
	producer Producer
	source   string
	now      func() time.Time
	log      *logger.Logger
}

// NewPublisher creates a new event publisher; source names the emitting service
func NewPublisher(producer Producer, source string) *Publisher {
	return &Publisher{
		producer: producer,
		source:   source,
		now:      time.Now,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// PublishRiskScore publishes a computed composite score keyed by mint
func (p *Publisher) PublishRiskScore(ctx context.Context, score *domainRisk.Score) error {
	if score == nil {
		return errors.NewValidationError("score", "is nil", nil)
	}
	return p.publish(ctx, kafka.TopicRiskScores, TypeRiskScore, score.Mint, score)
}

// PublishWhaleAlert publishes a whale transfer keyed by mint
func (p *Publisher) PublishWhaleAlert(ctx context.Context, a alert.WhaleAlert) error {
	return p.publish(ctx, kafka.TopicWhaleAlerts, TypeWhaleAlert, a.Mint, a)
}

// PublishSurge publishes a spot price surge keyed by mint
func (p *Publisher) PublishSurge(ctx context.Context, s alert.PriceSurge) error {
	return p.publish(ctx, kafka.TopicPriceSurges, TypePriceSurge, s.Mint, s)
}

// PublishMintBirth publishes a newly initialized mint keyed by its address
func (p *Publisher) PublishMintBirth(ctx context.Context, b alert.MintBirth) error {
	return p.publish(ctx, kafka.TopicMintBirths, TypeMintBirth, b.Mint, b)
}

func (p *Publisher) publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    p.source,
		Version:   envelopeVersion,
		Timestamp: p.now().UTC(),
		Payload:   payload,
	}

	if err := p.producer.Publish(ctx, topic, key, env); err != nil {
		p.log.Errorw("Failed to publish event",
			"topic", topic,
			"type", eventType,
			"key", key,
			"error", err,
		)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published", "topic", topic, "type", eventType, "id", env.ID)
	return nil
}
