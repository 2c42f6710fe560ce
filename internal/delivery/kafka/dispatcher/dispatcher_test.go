package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka"
	pkgLog "github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

// fakeProducer records publishes and can delay or fail them.
type fakeProducer struct {
	mu        sync.Mutex
	published []string
	delay     time.Duration
	err       error
	closed    bool
}

func (p *fakeProducer) record(topic string) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, topic)
	return p.err
}

func (p *fakeProducer) PublishRegistrationCreated(_ context.Context, _ kafka.RegistrationCreatedEvent) error {
	return p.record(kafka.TopicRegistrationCreated)
}

func (p *fakeProducer) PublishRegistrationCancelled(_ context.Context, _ kafka.RegistrationCancelledEvent) error {
	return p.record(kafka.TopicRegistrationCancelled)
}

func (p *fakeProducer) PublishAttendeeCountUpdated(_ context.Context, _ kafka.AttendeeCountUpdatedEvent) error {
	return p.record(kafka.TopicAttendeeCountUpdated)
}

func (p *fakeProducer) PublishWaitlistPromoted(_ context.Context, _ kafka.WaitlistPromotedEvent) error {
	return p.record(kafka.TopicWaitlistPromoted)
}

func (p *fakeProducer) PublishAvailabilityChanged(_ context.Context, _ kafka.AvailabilityChangedEvent) error {
	return p.record(kafka.TopicAvailabilityChanged)
}

func (p *fakeProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakeProducer) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.published))
	copy(out, p.published)
	return out
}

func TestDispatchReturnsBeforePublishCompletes(t *testing.T) {
	prod := &fakeProducer{delay: 100 * time.Millisecond}
	d := NewDispatcher(prod, pkgLog.InitializeTestZapLogger())

	start := time.Now()
	d.NewRegistration(context.Background(), kafka.RegistrationCreatedEvent{EventID: "ev-1"})
	require.Less(t, time.Since(start), 50*time.Millisecond, "dispatch must not block on the broker")

	require.NoError(t, d.Close())
	require.Equal(t, []string{kafka.TopicRegistrationCreated}, prod.topics())
}

func TestCloseDrainsInFlightPublishes(t *testing.T) {
	prod := &fakeProducer{delay: 20 * time.Millisecond}
	d := NewDispatcher(prod, pkgLog.InitializeTestZapLogger())

	ctx := context.Background()
	d.NewRegistration(ctx, kafka.RegistrationCreatedEvent{EventID: "ev-1"})
	d.AttendeesCountUpdate(ctx, kafka.AttendeeCountUpdatedEvent{EventID: "ev-1"})
	d.WaitlistPromotion(ctx, kafka.WaitlistPromotedEvent{EventID: "ev-1"})

	require.NoError(t, d.Close())

	require.Len(t, prod.topics(), 3)
	require.True(t, prod.closed)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	prod := &fakeProducer{err: errors.New("broker unavailable")}
	d := NewDispatcher(prod, pkgLog.InitializeTestZapLogger())

	// Must not panic or surface the broker failure to the caller.
	d.RegistrationCancelled(context.Background(), kafka.RegistrationCancelledEvent{EventID: "ev-1"})
	require.NoError(t, d.Close())
}

func TestDispatchSurvivesCancelledRequestContext(t *testing.T) {
	prod := &fakeProducer{delay: 10 * time.Millisecond}
	d := NewDispatcher(prod, pkgLog.InitializeTestZapLogger())

	ctx, cancel := context.WithCancel(context.Background())
	d.AvailabilityChanged(ctx, kafka.AvailabilityChangedEvent{EventID: "ev-1"})
	cancel()

	require.NoError(t, d.Close())
	require.Equal(t, []string{kafka.TopicAvailabilityChanged}, prod.topics())
}
