package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   int
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed++
	return nil
}

func TestKafkaPublisherWritesJSON(t *testing.T) {
	writer := &recordingWriter{}
	pub := &KafkaPublisher{writer: writer}

	event := NewEvent(TypeTicketCreated, map[string]any{"ticket_id": 42})
	require.NoError(t, pub.Publish(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, TypeTicketCreated, string(msg.Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded["id"])
	assert.Equal(t, TypeTicketCreated, decoded["type"])
	assert.Equal(t, float64(42), decoded["payload"].(map[string]any)["ticket_id"])
}

func TestKafkaPublisherClose(t *testing.T) {
	writer := &recordingWriter{}
	pub := &KafkaPublisher{writer: writer}

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
	assert.Equal(t, 1, writer.closed)

	err := pub.Publish(context.Background(), NewEvent(TypeTicketTriaged, nil))
	require.ErrorIs(t, err, ErrPublisherClosed)
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "support-events")
	require.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.Error(t, err)
}

func TestEmitterLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewEmitter(&KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}, log.New(&buf, "", 0))

	emitter.Emit(context.Background(), TypeEscalationSuggested, map[string]string{"question": "q"})
	assert.Contains(t, buf.String(), "publish chat.escalation_suggested event failed")

	var nilEmitter *Emitter
	nilEmitter.Emit(context.Background(), TypeTicketCreated, nil)
	require.NoError(t, NewEmitter(nil, nil).Close())
}

func TestNewEventAssignsIDs(t *testing.T) {
	a := NewEvent(TypeTicketCreated, nil)
	b := NewEvent(TypeTicketCreated, nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.OccurredAt.IsZero())
}
