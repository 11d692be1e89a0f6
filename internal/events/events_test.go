package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	json "github.com/goccy/go-json"

	"github.com/fairyhunter13/inventory-manager/internal/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublishKeysByDocument(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{w: w}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := model.ChangeEvent{
		Sequence: 7,
		Resource: model.ResourceProducts,
		Action:   model.ActionUpdated,
		ID:       "p1",
		Document: model.DocumentOf("_id", "p1", "quantity", model.Number(3)),
		At:       at,
	}
	require.NoError(t, k.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "products/p1", string(w.msgs[0].Key))
	assert.Equal(t, at, w.msgs[0].Time)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "updated", got["action"])
	assert.Equal(t, float64(7), got["sequence"])
	assert.Equal(t, map[string]any{"_id": "p1", "quantity": float64(3)}, got["document"])

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublishError(t *testing.T) {
	boom := errors.New("broker down")
	k := &Kafka{w: &fakeWriter{err: boom}}
	err := k.Publish(context.Background(), model.ChangeEvent{Resource: "categories", ID: "c1"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "categories/c1")
}

func TestNewSelectsPublisher(t *testing.T) {
	assert.IsType(t, Log{}, New(nil, "t"))
	p := New([]string{"localhost:9092"}, "t")
	assert.IsType(t, &Kafka{}, p)
	require.NoError(t, p.Close())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), model.ChangeEvent{ID: "a"}))
	evs := r.Events()
	require.Len(t, evs, 1)
	evs[0].ID = "changed"
	assert.Equal(t, "a", r.Events()[0].ID)
	assert.NoError(t, Log{}.Publish(context.Background(), model.ChangeEvent{ID: "a"}))
}
