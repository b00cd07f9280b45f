package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {""}} {
		pub, sub, err := CreateChannel(watermill.NopLogger{}, brokers, "scenarios")
		require.Error(t, err)
		assert.Nil(t, pub)
		assert.Nil(t, sub)
	}
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("msg-1", []byte(`{}`))
	msg.Metadata.Set("key", "job-42")

	key, err := partitionKey("scenarios.tasks", msg)
	require.NoError(t, err)
	assert.Equal(t, "job-42", key)
}
