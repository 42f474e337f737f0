package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-reqlarr/internal/observability"
)

// DirectMessenger sends a private message to a resolved recipient.
type DirectMessenger interface {
	SendDirect(ctx context.Context, recipientID, text string) error
}

// Courier resolves webhook users and messages them. The chat bot is one.
type Courier interface {
	RecipientResolver
	DirectMessenger
}

// Job is one direct message waiting for delivery. User is the webhook user;
// it is resolved to a recipient by the worker that picks the job up.
type Job struct {
	User string
	Text string
}

// Dispatcher delivers Jobs on a fixed set of background workers. Submit never
// blocks; resolution and delivery failures are logged and counted, never
// retried.
type Dispatcher struct {
	courier Courier
	timeout   time.Duration

	queue chan Job
	wg    conc.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewDispatcher starts workers goroutines draining a queue of queueSize jobs.
// Each delivery, lookup included, gets its own context bounded by timeout.
func NewDispatcher(c Courier, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	d := &Dispatcher{
		courier: c,
		timeout: timeout,
		queue:   make(chan Job, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Go(d.work)
	}
	return d
}

// Submit enqueues job. It returns ErrQueueFull when the queue has no room
// and ErrDispatcherClosed after Close.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- job:
		observability.NotifyQueueDepth.Inc()
		observability.NotificationsTotal.WithLabelValues("queued").Inc()
		return nil
	default:
		observability.NotificationsTotal.WithLabelValues("dropped").Inc()
		log.Warn().Str("user", job.User).Int("capacity", cap(d.queue)).Msg("notification queue full; dropping message")
		return ErrQueueFull
	}
}

// Close stops accepting jobs, lets the workers drain what is queued and
// waits for them until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	for job := range d.queue {
		observability.NotifyQueueDepth.Dec()
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	ctx, span := otel.Tracer("services/Dispatcher").Start(ctx, "Deliver",
		trace.WithAttributes(attribute.String("event.user", job.User)),
	)
	defer span.End()

	lg := log.With().Str("user", job.User).Logger()

	var (
		pc        panics.Catcher
		recipient string
		err       error
	)
	pc.Try(func() { recipient, err = d.courier.ResolveRecipient(ctx, job.User) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}
	if err != nil {
		observability.NotificationsTotal.WithLabelValues("unresolved").Inc()
		if errors.Is(err, ErrRecipientNotFound) {
			lg.Info().Msg("no chat recipient for webhook user; skipping notification")
		} else {
			span.RecordError(err)
			lg.Warn().Err(err).Msg("recipient lookup failed; skipping notification")
		}
		return
	}
	span.SetAttributes(attribute.String("recipient.id", recipient))

	pc.Try(func() { err = d.courier.SendDirect(ctx, recipient, job.Text) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		observability.NotificationsTotal.WithLabelValues("failed").Inc()
		lg.Warn().Err(err).Str("recipient", recipient).Msg("direct message delivery failed")
		return
	}
	observability.NotificationsTotal.WithLabelValues("sent").Inc()
	lg.Debug().Str("recipient", recipient).Msg("direct message delivered")
}
