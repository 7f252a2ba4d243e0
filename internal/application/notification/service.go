// Package notification delivers email and review alerts off the request path.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/testiflow-api/internal/domain"
	"github.com/testiflow-api/internal/infrastructure/mail"
	snsinfra "github.com/testiflow-api/internal/infrastructure/sns"
)

// ErrClosed is returned by Close when it is called twice.
var ErrClosed = errors.New("dispatcher closed")

// AlertPublisher publishes review alerts to a topic.
type AlertPublisher interface {
	PublishReviewAlert(ctx context.Context, a snsinfra.ReviewAlert) error
}

type Options struct {
	Workers     int
	QueueSize   int
	MaxRetries  int
	SendTimeout time.Duration
	Alerts      AlertPublisher // nil disables review alerts
	Logger      *slog.Logger
}

type job struct {
	kind string
	to   string
	run  func(ctx context.Context) error
}

// Dispatcher runs delivery jobs on a fixed pool of workers fed by a bounded
// queue. Failed jobs are retried with exponential backoff.
type Dispatcher struct {
	mailer     mail.Mailer
	alerts     AlertPublisher
	log        *slog.Logger
	maxRetries uint64
	timeout    time.Duration
	newBackOff func() backoff.BackOff

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(mailer mail.Mailer, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		mailer:     mailer,
		alerts:     opts.Alerts,
		log:        opts.Logger,
		maxRetries: uint64(opts.MaxRetries),
		timeout:    opts.SendTimeout,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		queue:  make(chan job, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Send queues msg for delivery and reports whether it was accepted. It never
// blocks: a full or closed queue drops the message.
func (d *Dispatcher) Send(msg mail.Message) bool {
	return d.enqueue(job{
		kind: "mail",
		to:   msg.To,
		run:  func(ctx context.Context) error { return d.mailer.Send(ctx, msg) },
	})
}

// ReviewSubmitted queues an alert for a new review when alerts are enabled.
func (d *Dispatcher) ReviewSubmitted(s *domain.Space, r *domain.Review) {
	if d.alerts == nil {
		return
	}
	alert := snsinfra.ReviewAlert{
		SpaceID:    s.SpaceID,
		SpaceName:  s.SpaceName,
		OwnerEmail: s.OwnerEmail,
		ReviewID:   r.ReviewID,
		Reviewer:   r.Name,
		Rating:     r.Rating,
		CreatedAt:  r.CreatedAt,
	}
	d.enqueue(job{
		kind: "review_alert",
		to:   s.SpaceID,
		run:  func(ctx context.Context) error { return d.alerts.PublishReviewAlert(ctx, alert) },
	})
}

func (d *Dispatcher) enqueue(j job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, dropping job", "kind", j.kind, "to", j.to)
		return false
	}
	select {
	case d.queue <- j:
		return true
	default:
		d.log.Error("dispatch queue full, dropping job", "kind", j.kind, "to", j.to)
		return false
	}
}

// Close stops accepting work and waits for queued jobs to finish. If ctx ends
// first, in-flight retries are abandoned and ctx.Err() is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	attempt := 0
	op := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		defer cancel()
		return j.run(ctx)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), d.maxRetries), d.ctx)
	notify := func(err error, wait time.Duration) {
		d.log.Warn("delivery failed, retrying", "kind", j.kind, "to", j.to, "attempt", attempt, "retry_in", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		d.log.Error("delivery abandoned", "kind", j.kind, "to", j.to, "attempts", attempt, "error", err)
		return
	}
	d.log.Debug("delivered", "kind", j.kind, "to", j.to, "attempts", attempt)
}
