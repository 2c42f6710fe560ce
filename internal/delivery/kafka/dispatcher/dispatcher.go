package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

const publishTimeout = 5 * time.Second

// Dispatcher is the fire-and-forget notification boundary. Every method
// returns immediately and publishes from its own goroutine on a context
// detached from the request, so a slow or failing broker can never block or
// fail an admission decision. Failures are logged and swallowed.
type Dispatcher struct {
	prod producer.Producer
	l    logger.Logger
	wg   sync.WaitGroup
}

func NewDispatcher(prod producer.Producer, l logger.Logger) *Dispatcher {
	return &Dispatcher{
		prod: prod,
		l:    l,
	}
}

func (d *Dispatcher) NewRegistration(ctx context.Context, event kafka.RegistrationCreatedEvent) {
	d.dispatch(ctx, "registration created", func(ctx context.Context) error {
		return d.prod.PublishRegistrationCreated(ctx, event)
	})
}

func (d *Dispatcher) RegistrationCancelled(ctx context.Context, event kafka.RegistrationCancelledEvent) {
	d.dispatch(ctx, "registration cancelled", func(ctx context.Context) error {
		return d.prod.PublishRegistrationCancelled(ctx, event)
	})
}

func (d *Dispatcher) AttendeesCountUpdate(ctx context.Context, event kafka.AttendeeCountUpdatedEvent) {
	d.dispatch(ctx, "attendee count update", func(ctx context.Context) error {
		return d.prod.PublishAttendeeCountUpdated(ctx, event)
	})
}

func (d *Dispatcher) WaitlistPromotion(ctx context.Context, event kafka.WaitlistPromotedEvent) {
	d.dispatch(ctx, "waitlist promotion", func(ctx context.Context) error {
		return d.prod.PublishWaitlistPromoted(ctx, event)
	})
}

func (d *Dispatcher) AvailabilityChanged(ctx context.Context, event kafka.AvailabilityChangedEvent) {
	d.dispatch(ctx, "availability changed", func(ctx context.Context) error {
		return d.prod.PublishAvailabilityChanged(ctx, event)
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, publish func(ctx context.Context) error) {
	// Detach from the request context: the decision has already been made
	// and committed by the time notifications go out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()

		if err := publish(pubCtx); err != nil {
			d.l.Errorf(pubCtx, "delivery.kafka.dispatcher: failed to publish %s event: %v", name, err)
		}
	}()
}

// Close waits for in-flight publishes before closing the producer.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	return d.prod.Close()
}
