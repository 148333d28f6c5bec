package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

// PubSubConfig configures the Pub/Sub sink.
type PubSubConfig struct {
	ProjectID string
	TopicID   string
}

// publisher sends one message and blocks until the server acknowledges it.
type publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
	Close() error
}

type topicPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func (p topicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	return p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

func (p topicPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// PubSubSink publishes every event as a JSON message. Run ID, stage and level
// travel as attributes so subscribers can filter without decoding.
type PubSubSink struct {
	pub publisher
}

// NewPubSubSink connects to the topic and verifies it exists.
func NewPubSubSink(ctx context.Context, cfg PubSubConfig, opts ...option.ClientOption) (*PubSubSink, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)
	ok, err := topic.Exists(ctx)
	if err != nil || !ok {
		_ = client.Close()
		if err == nil {
			err = fmt.Errorf("topic %q not found", cfg.TopicID)
		}
		return nil, fmt.Errorf("check pubsub topic: %w", err)
	}
	return &PubSubSink{pub: topicPublisher{client: client, topic: topic}}, nil
}

// Consume publishes the batch. Failed messages do not stop the rest of the
// batch; their errors are joined.
func (s *PubSubSink) Consume(ctx context.Context, batch []progress.Event) error {
	var errs []error
	for _, evt := range batch {
		payload, err := json.Marshal(evt)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal event: %w", err))
			continue
		}
		attrs := map[string]string{
			"run_id": evt.RunID.String(),
			"stage":  string(evt.Stage),
			"level":  string(evt.Level),
		}
		if _, err := s.pub.Publish(ctx, payload, attrs); err != nil {
			errs = append(errs, fmt.Errorf("publish event: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending messages and releases the client.
func (s *PubSubSink) Close(context.Context) error {
	if err := s.pub.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
