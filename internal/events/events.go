// Package events publishes document change events produced by the API.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
)

// Publisher delivers change events somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
	Close() error
}

// Log writes every event to the structured logger. It is the default when no
// broker is configured.
type Log struct{}

func (Log) Publish(_ context.Context, ev model.ChangeEvent) error {
	obs.Logger.Info("change_event",
		"sequence", ev.Sequence,
		"resource", ev.Resource,
		"action", string(ev.Action),
		"id", ev.ID,
	)
	return nil
}

func (Log) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events to a topic, keyed by resource and id so that all
// events of one document land on the same partition.
type Kafka struct {
	w messageWriter
}

// NewKafka returns a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

func (k *Kafka) Publish(ctx context.Context, ev model.ChangeEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.Key(), err)
	}
	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Key()),
		Value: value,
		Time:  ev.At,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.Key(), err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (r *Recorder) Publish(_ context.Context, ev model.ChangeEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []model.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ChangeEvent, len(r.events))
	copy(out, r.events)
	return out
}

// New picks the Kafka publisher when brokers are configured and Log otherwise.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Log{}
	}
	return NewKafka(brokers, topic)
}
