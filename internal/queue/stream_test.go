package queue

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestToDelivery(t *testing.T) {
	d := toDelivery(redis.XMessage{
		ID:     "1692787200000-0",
		Values: map[string]interface{}{"body": `{"entity_id":"ship_1"}`},
	})

	assert.Equal(t, "1692787200000-0", d.Token)
	assert.Equal(t, []byte(`{"entity_id":"ship_1"}`), d.Body)
}

func TestToDeliveryMissingBody(t *testing.T) {
	// An entry written by something other than Publish still yields a
	// delivery; the handler dead-letters the empty body downstream.
	d := toDelivery(redis.XMessage{ID: "1-0", Values: map[string]interface{}{}})

	assert.Equal(t, "1-0", d.Token)
	assert.Empty(t, d.Body)
}
