package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tokenrisk/internal/adapters/kafka"
	"tokenrisk/internal/domain/alert"
	domainRisk "tokenrisk/internal/domain/risk"
	"tokenrisk/pkg/errors"
	"tokenrisk/pkg/logger"
)

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

func newTestPublisher(p Producer) *Publisher {
	pub := NewPublisher(p, "tokenrisk-test")
	pub.log = logger.Nop()
	pub.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return pub
}

func TestPublisher_PublishRiskScore(t *testing.T) {
	producer := &mockProducer{}
	score := &domainRisk.Score{Mint: "MintA", Score: 0.5}

	producer.On("Publish", mock.Anything, kafka.TopicRiskScores, "MintA", mock.MatchedBy(func(env Envelope) bool {
		_, err := uuid.Parse(env.ID)
		return err == nil &&
			env.Type == TypeRiskScore &&
			env.Source == "tokenrisk-test" &&
			env.Payload == score
	})).Return(nil).Once()

	require.NoError(t, newTestPublisher(producer).PublishRiskScore(context.Background(), score))
	producer.AssertExpectations(t)
}

func TestPublisher_NilScoreRejected(t *testing.T) {
	producer := &mockProducer{}
	err := newTestPublisher(producer).PublishRiskScore(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	producer.AssertNotCalled(t, "Publish")
}

func TestPublisher_AlertsUseTheirTopics(t *testing.T) {
	producer := &mockProducer{}
	producer.On("Publish", mock.Anything, kafka.TopicWhaleAlerts, "MintA", mock.AnythingOfType("events.Envelope")).Return(nil).Once()
	producer.On("Publish", mock.Anything, kafka.TopicPriceSurges, "MintB", mock.AnythingOfType("events.Envelope")).Return(nil).Once()
	producer.On("Publish", mock.Anything, kafka.TopicMintBirths, "MintC", mock.MatchedBy(func(env Envelope) bool {
		return env.Type == TypeMintBirth
	})).Return(nil).Once()

	pub := newTestPublisher(producer)
	ctx := context.Background()
	require.NoError(t, pub.PublishWhaleAlert(ctx, alert.WhaleAlert{Mint: "MintA", Amount: 200000}))
	require.NoError(t, pub.PublishSurge(ctx, alert.PriceSurge{Mint: "MintB", ChangePct: 12.5}))
	require.NoError(t, pub.PublishMintBirth(ctx, alert.MintBirth{Mint: "MintC", Creator: "payer"}))

	producer.AssertExpectations(t)
}

func TestPublisher_UniqueIDs(t *testing.T) {
	producer := &mockProducer{}
	var ids []string
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ids = append(ids, args.Get(3).(Envelope).ID)
		}).Return(nil)

	pub := newTestPublisher(producer)
	for i := 0; i < 3; i++ {
		require.NoError(t, pub.PublishSurge(context.Background(), alert.PriceSurge{Mint: "M"}))
	}

	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[1], ids[2])
}

func TestPublisher_WrapsProducerErrors(t *testing.T) {
	producer := &mockProducer{}
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.ErrUnavailable)

	err := newTestPublisher(producer).PublishWhaleAlert(context.Background(), alert.WhaleAlert{Mint: "M"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}
