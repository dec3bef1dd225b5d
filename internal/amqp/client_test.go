package amqp

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesUntilCap(t *testing.T) {
	got := make([]time.Duration, 0, 7)
	for attempt := range 7 {
		got = append(got, exponentialBackoff(attempt))
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		maxBackoff, maxBackoff,
	}, got)
}

func TestConnectionErrorsAreRecognised(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(amqp091.ErrClosed))
	assert.True(t, isConnectionError(io.EOF))
	assert.True(t, isConnectionError(errors.New("write: Broken Pipe")))
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.False(t, isConnectionError(errors.New("unknown record change op")))
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	c := &Client{}
	for range maxFailures - 1 {
		c.recordFailure()
	}
	require.False(t, c.isCircuitOpen(), "one failure short of the limit")

	c.recordFailure()
	assert.True(t, c.isCircuitOpen())

	err := c.PublishRecordChange(context.Background(), "rec-1", OpUpsert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestBreakerHalfOpensAfterTimeout(t *testing.T) {
	c := &Client{state: StateOpen, lastFailure: time.Now().Add(-openTimeout - time.Second)}

	assert.False(t, c.isCircuitOpen())
	assert.Equal(t, int32(StateHalfOpen), c.state)

	// a single failure while probing reopens immediately
	c.recordFailure()
	assert.True(t, c.isCircuitOpen())

	c.recordSuccess()
	assert.False(t, c.isCircuitOpen())
	assert.Zero(t, c.failureCount)
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	c := &Client{url: "amqp://unused"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PublishRecordChange(ctx, "rec-1", OpDelete)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.failureCount, "a cancelled publish is not a broker failure")
}

func TestRecordChangeMessage(t *testing.T) {
	msg := NewRecordChangeMessage("rec-9", OpDelete)
	body, err := msg.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"rec-9","op":"delete","timestamp":"`+msg.Timestamp.Format(time.RFC3339Nano)+`"}`, string(body))

	decoded, err := RecordChangeMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "rec-9", decoded.ID)
	assert.Equal(t, OpDelete, decoded.Op)
}

func TestRecordChangeMessageRejectsBadBodies(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `{`,
		"missing id": `{"op":"upsert"}`,
		"unknown op": `{"id":"rec-1","op":"archive"}`,
		"no op":      `{"id":"rec-1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := RecordChangeMessageFromJSON([]byte(body))
			assert.Error(t, err)
		})
	}
}
