package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_CapsAtMax(t *testing.T) {
	b := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, b.CalculateBackoff(0))
	assert.Equal(t, 4*time.Second, b.CalculateBackoff(2))
	assert.Equal(t, 5*time.Second, b.CalculateBackoff(10))
}

func TestStream_DLQName(t *testing.T) {
	assert.Equal(t, "dlq:stream:payment:confirmed", StreamPaymentConfirmed.DLQStream())
}

func TestDecode(t *testing.T) {
	msg, err := NewMessage("evt_1", MessageTypePaymentConfirmed, "stu-1",
		&PaymentConfirmedMessage{EventID: "evt_1", AccountID: "stu-1", Credits: 50})
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	decoded, err := decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": string(raw)}})
	require.NoError(t, err)
	var payment PaymentConfirmedMessage
	require.NoError(t, decoded.UnmarshalPayload(&payment))
	assert.Equal(t, int64(50), payment.Credits)
	assert.Equal(t, "stu-1", decoded.AccountID)

	_, err = decode(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"other": "x"}})
	assert.Error(t, err)
}
