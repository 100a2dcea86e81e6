// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/resonatefm/resonate/internal/job"
	"github.com/resonatefm/resonate/internal/metrics"
)

// NATSConfig holds the consumer settings for one named queue.
type NATSConfig struct {
	// URL is the NATS server address, e.g. nats://127.0.0.1:4222.
	URL string `koanf:"url"`

	// Queue is the queue (subject) name to consume, e.g. "embedding".
	Queue string `koanf:"queue"`

	// QueueGroup enables load balancing across worker instances.
	QueueGroup string `koanf:"queue_group"`

	// DurableName is the JetStream durable consumer prefix.
	DurableName string `koanf:"durable_name"`

	// AckWaitTimeout is how long JetStream waits for an ack before
	// redelivering a job.
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`

	// CloseTimeout bounds subscriber shutdown.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// MaxReconnects and ReconnectWait tune connection recovery.
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// DefaultNATSConfig returns production defaults for the given queue name.
func DefaultNATSConfig(queueName string) NATSConfig {
	return NATSConfig{
		URL:            "nats://127.0.0.1:4222",
		Queue:          queueName,
		QueueGroup:     "resonate-workers",
		DurableName:    "resonate",
		AckWaitTimeout: 2 * time.Minute,
		CloseTimeout:   30 * time.Second,
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
	}
}

// NATSSource consumes jobs from one queue over NATS JetStream.
//
// A job is acknowledged (removed from the stream) only when the worker
// runtime calls Delete; Release nacks the message so JetStream redelivers
// it under its own policy. Malformed payloads are acknowledged and
// dropped: redelivering a job that can never parse would loop forever.
type NATSSource struct {
	name       string
	subscriber message.Subscriber
	messages   <-chan *message.Message
	logger     watermill.LoggerAdapter

	mu      sync.Mutex
	pending map[string]*message.Message
}

// NewNATSSource connects a durable JetStream consumer to cfg.Queue.
// The subscription lives until Close; ctx only bounds the handshake.
func NewNATSSource(ctx context.Context, cfg NATSConfig, logger watermill.LoggerAdapter) (*NATSSource, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("queue subscriber disconnected", err, watermill.LogFields{"queue": cfg.Queue})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("queue subscriber reconnected", watermill.LogFields{
				"queue": cfg.Queue,
				"url":   nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverAll(),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    true,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create queue subscriber for %q: %w", cfg.Queue, err)
	}

	messages, err := sub.Subscribe(context.WithoutCancel(ctx), cfg.Queue)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %q: %w", cfg.Queue, err)
	}

	return &NATSSource{
		name:       cfg.Queue,
		subscriber: sub,
		messages:   messages,
		logger:     logger,
		pending:    make(map[string]*message.Message),
	}, nil
}

// Name returns the queue name.
func (s *NATSSource) Name() string { return s.name }

// Fetch blocks until the next parseable job arrives. Messages whose
// payload is not a JSON object with a "type" field are dropped with an
// ack and an error log.
func (s *NATSSource) Fetch(ctx context.Context) (*job.Job, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-s.messages:
			if !ok {
				return nil, ErrClosed
			}

			j, err := s.decode(msg)
			if err != nil {
				s.logger.Error("dropping malformed job payload", err, watermill.LogFields{
					"queue":      s.name,
					"message_id": msg.UUID,
				})
				metrics.RecordMalformedJob(s.name)
				msg.Ack()
				continue
			}

			s.mu.Lock()
			s.pending[j.ID] = msg
			s.mu.Unlock()
			return j, nil
		}
	}
}

// decode parses a queue message into a Job. The producer writes the job
// data as a JSON object whose "type" field declares the job type; the
// message UUID doubles as the job ID.
func (s *NATSSource) decode(msg *message.Message) (*job.Job, error) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}

	typ, _ := payload["type"].(string)
	if typ == "" {
		return nil, fmt.Errorf("job payload missing type field")
	}

	return &job.Job{
		ID:      msg.UUID,
		Type:    job.Type(typ),
		Payload: payload,
	}, nil
}

// Delete acknowledges the job's message, removing it from the stream.
func (s *NATSSource) Delete(_ context.Context, j *job.Job) error {
	msg, err := s.take(j.ID)
	if err != nil {
		return err
	}
	if !msg.Ack() {
		return fmt.Errorf("queue %s: job %s already acked or nacked", s.name, j.ID)
	}
	return nil
}

// Release nacks the job's message so JetStream redelivers it.
func (s *NATSSource) Release(_ context.Context, j *job.Job) error {
	msg, err := s.take(j.ID)
	if err != nil {
		return err
	}
	if !msg.Nack() {
		return fmt.Errorf("queue %s: job %s already acked or nacked", s.name, j.ID)
	}
	return nil
}

// take removes and returns the pending message for a job ID.
func (s *NATSSource) take(id string) (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.pending[id]
	if !ok {
		return nil, fmt.Errorf("queue %s: no pending message for job %s", s.name, id)
	}
	delete(s.pending, id)
	return msg, nil
}

// Close shuts down the subscriber. Pending unacked messages are
// redelivered by JetStream after the ack wait elapses.
func (s *NATSSource) Close() error {
	return s.subscriber.Close()
}
