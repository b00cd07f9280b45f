package kafka

import "github.com/ThreeDotsLabs/watermill/message"

// keyMetadata matches tasks.KeyMetadataKey.
const keyMetadata = "key"

func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(keyMetadata), nil
}
