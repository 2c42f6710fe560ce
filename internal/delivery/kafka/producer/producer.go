package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

type Producer interface {
	PublishRegistrationCreated(ctx context.Context, event kafka.RegistrationCreatedEvent) error
	PublishRegistrationCancelled(ctx context.Context, event kafka.RegistrationCancelledEvent) error
	PublishAttendeeCountUpdated(ctx context.Context, event kafka.AttendeeCountUpdatedEvent) error
	PublishWaitlistPromoted(ctx context.Context, event kafka.WaitlistPromotedEvent) error
	PublishAvailabilityChanged(ctx context.Context, event kafka.AvailabilityChangedEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishRegistrationCreated(ctx context.Context, event kafka.RegistrationCreatedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicRegistrationCreated, event.EventID, event)
}

func (p *implProducer) PublishRegistrationCancelled(ctx context.Context, event kafka.RegistrationCancelledEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicRegistrationCancelled, event.EventID, event)
}

func (p *implProducer) PublishAttendeeCountUpdated(ctx context.Context, event kafka.AttendeeCountUpdatedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicAttendeeCountUpdated, event.EventID, event)
}

func (p *implProducer) PublishWaitlistPromoted(ctx context.Context, event kafka.WaitlistPromotedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicWaitlistPromoted, event.EventID, event)
}

func (p *implProducer) PublishAvailabilityChanged(ctx context.Context, event kafka.AvailabilityChangedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicAvailabilityChanged, event.EventID, event)
}

func (p *implProducer) publish(ctx context.Context, topic, key string, event any) error {
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.publish: %v", err)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key), // Partition by event_id for ordering
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	_, _, err = p.prod.SendMessage(msg)
	return err
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}
