package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/config"
)

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "run-1", Value: map[string]int{"count": 3}},
		{Key: "run-2", Value: "plain"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "run-1", string(msgs[0].Key))
	assert.JSONEq(t, `{"count":3}`, string(msgs[0].Value))
	assert.JSONEq(t, `"plain"`, string(msgs[1].Value))
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode([]Event{{Key: "k", Value: make(chan int)}})
	assert.ErrorContains(t, err, "marshaling event value")
}

func TestNewProducerUsesTopic(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "events"})
	assert.Equal(t, "events", p.writer.Topic)
	require.NoError(t, p.Close())
}
