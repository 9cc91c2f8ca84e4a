package kafka_config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, DefaultLifecycleTopic, cfg.LifecycleTopic)
	assert.Equal(t, DefaultNotifierGroupID, cfg.NotifierGroupID)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv(EnvKafkaEnabled, "true")
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv(EnvKafkaLifecycleTopic, "lib.events")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, "lib.events", cfg.LifecycleTopic)
}

func TestValidate(t *testing.T) {
	t.Setenv(EnvKafkaProducerCompression, "brotli")
	t.Setenv(EnvKafkaLifecycleDLQTopic, DefaultLifecycleTopic)
	t.Setenv(EnvKafkaConsumerStartOffset, "5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ProducerCompression")
	assert.Contains(t, err.Error(), "LifecycleDLQTopic must differ")
	assert.Contains(t, err.Error(), "ConsumerStartOffset")
}
