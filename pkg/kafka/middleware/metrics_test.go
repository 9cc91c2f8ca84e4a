package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"libris/pkg/kafka"
	"libris/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	m := NewMetrics()
	produce := m.ProducerMiddleware()
	consume := m.ConsumerMiddleware()

	ok := func(context.Context, kafka.Message) error { return nil }
	fail := func(context.Context, kafka.Message) error { return errors.New("broker down") }

	ctx := context.Background()
	assert.NoError(t, produce(ctx, kafka.Message{}, ok))
	assert.NoError(t, produce(ctx, kafka.Message{}, ok))
	assert.Error(t, produce(ctx, kafka.Message{}, fail))
	assert.NoError(t, consume(ctx, kafka.Message{}, ok))
	assert.Error(t, consume(ctx, kafka.Message{}, fail))

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Published)
	assert.Equal(t, int64(1), s.PublishFailed)
	assert.Equal(t, int64(1), s.Consumed)
	assert.Equal(t, int64(1), s.ConsumeFailed)

	m.Log(logger.NewNop())
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	s := NewMetrics().Snapshot()
	assert.Zero(t, s.AvgPublishDuration)
	assert.Zero(t, s.AvgConsumeDuration)
}
