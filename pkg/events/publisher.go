// Package events publishes run progress to a Kafka topic, so long-running
// enrichment jobs can be watched from outside the process. Publishing is
// best-effort: a broker hiccup is logged and never affects the run itself.
package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"tabletask/internal/task"
)

// MessageWriter defines the interface for writing messages to a Kafka topic.
// This allows for easy mocking in unit tests.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RowEvent is emitted once per processed row.
type RowEvent struct {
	Task    string `json:"task"`
	Row     int    `json:"row"`
	Total   int    `json:"total"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// SummaryEvent is emitted once when the run is done.
type SummaryEvent struct {
	Task            string `json:"task"`
	Completed       int    `json:"completed"`
	SkippedPrevious int    `json:"skipped_previous"`
	SkippedRequest  int    `json:"skipped_request"`
	Failed          int    `json:"failed"`
}

// Publisher implements task.Observer by writing row and summary events as
// JSON messages, keyed by task name.
type Publisher struct {
	ctx    context.Context
	writer MessageWriter
	name   string
}

// NewPublisher creates a Publisher writing to the given broker and topic.
// The context bounds every write for the lifetime of the run.
func NewPublisher(ctx context.Context, broker, topic, name string) *Publisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(broker),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Publisher{ctx: ctx, writer: writer, name: name}
}

func (p *Publisher) RowDone(index, total int, outcome task.Outcome, err error) {
	evt := RowEvent{
		Task:    p.name,
		Row:     index,
		Total:   total,
		Outcome: outcome.String(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	p.publish(evt)
}

func (p *Publisher) RunDone(stats task.Stats) {
	p.publish(SummaryEvent{
		Task:            p.name,
		Completed:       stats.Completed,
		SkippedPrevious: stats.SkippedPrevious,
		SkippedRequest:  stats.SkippedRequest,
		Failed:          stats.Failed,
	})
}

func (p *Publisher) publish(evt any) {
	value, err := json.Marshal(evt)
	if err != nil {
		log.Printf("Failed to encode event: %v", err)
		return
	}
	msg := kafka.Message{Key: []byte(p.name), Value: value}
	if err := p.writer.WriteMessages(p.ctx, msg); err != nil {
		log.Printf("Failed to publish event: %v", err)
	}
}

// Close shuts down the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
