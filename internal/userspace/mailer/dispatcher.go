// Package mailer delivers notification emails in the background. Requests are
// queued in memory, rendered from HTML templates, and sent with retries; jobs
// that still fail are recorded in a dead-letter file.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
)

// ErrClosed is returned by Dispatch after Stop.
var ErrClosed = errors.New("mailer: dispatcher stopped")

// Config tunes the dispatcher. Zero values fall back to the defaults.
type Config struct {
	From         string
	Workers      int
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

const (
	DefaultWorkers      = 2
	DefaultQueueSize    = 256
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 2 * time.Second
)

// Metrics observes job outcomes. Implementations must be safe for concurrent
// use.
type Metrics interface {
	MailJob(result string)
}

// Job outcomes reported to Metrics.
const (
	ResultSent       = "sent"
	ResultRetried    = "retried"
	ResultDeadLetter = "dead_letter"
)

type job struct {
	id         string
	n          domain.Notification
	enqueuedAt time.Time
}

// Dispatcher is the asynchronous notification sink used by the credential
// service.
type Dispatcher struct {
	cfg         Config
	sender      Sender
	templates   *Templates
	deadLetters *DeadLetterLog
	logger      *slog.Logger
	metrics     Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup

	// ctx aborts retry waits once a graceful stop runs out of time.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher returns a dispatcher; call Start to launch the workers.
func NewDispatcher(cfg Config, sender Sender, templates *Templates, deadLetters *DeadLetterLog, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:         cfg,
		sender:      sender,
		templates:   templates,
		deadLetters: deadLetters,
		logger:      logger,
		queue:       make(chan job, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetMetrics installs an outcome observer. Call before Start.
func (d *Dispatcher) SetMetrics(m Metrics) { d.metrics = m }

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for range d.cfg.Workers {
		d.wg.Add(1)
		go d.work()
	}
	d.logger.Info("mail dispatcher started", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)
}

// Dispatch queues n without blocking. When the queue is full the job goes
// straight to the dead-letter log; the caller is not failed for it.
func (d *Dispatcher) Dispatch(ctx context.Context, n domain.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	j := job{id: uuid.NewString(), n: n, enqueuedAt: time.Now()}
	select {
	case d.queue <- j:
		d.logger.DebugContext(ctx, "mail job queued", "job_id", j.id, "template", n.TemplateRef)
	default:
		d.deadLetter(j, 0, errors.New("queue full"))
	}
	return nil
}

// Stop refuses new jobs and waits for queued ones to be delivered. If ctx
// ends first, pending retries are abandoned to the dead-letter log.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
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
		d.logger.Info("mail dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("mailer: stop: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	log := d.logger.With("job_id", j.id, "template", j.n.TemplateRef)

	body, err := d.templates.Render(j.n.TemplateRef, j.n.Variables)
	if err != nil {
		d.deadLetter(j, 0, err)
		return
	}

	msg := Message{From: d.cfg.From, To: j.n.RecipientEmail, Subject: j.n.Subject, HTML: body}

	attempts := 0
	send := func() error {
		attempts++
		return d.sender.Send(d.ctx, msg)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.RetryBackoff
	policy.MaxElapsedTime = 0
	retries := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(d.cfg.MaxAttempts-1)), d.ctx)

	err = backoff.RetryNotify(send, retries, func(err error, wait time.Duration) {
		d.observe(ResultRetried)
		log.Warn("mail delivery failed, retrying", "attempt", attempts, "wait", wait, "error", err)
	})
	if err != nil {
		d.deadLetter(j, attempts, err)
		return
	}

	d.observe(ResultSent)
	log.Info("mail delivered", "attempts", attempts, "latency", time.Since(j.enqueuedAt))
}

func (d *Dispatcher) deadLetter(j job, attempts int, reason error) {
	d.observe(ResultDeadLetter)
	d.logger.Error("mail job dead-lettered",
		"job_id", j.id,
		"template", j.n.TemplateRef,
		"attempts", attempts,
		"error", reason,
	)

	err := d.deadLetters.Append(DeadLetter{
		JobID:        j.id,
		Notification: j.n,
		Attempts:     attempts,
		Reason:       reason.Error(),
		FailedAt:     time.Now().UTC(),
	})
	if err != nil {
		d.logger.Error("failed to record dead letter", "job_id", j.id, "error", err)
	}
}

func (d *Dispatcher) observe(result string) {
	if d.metrics != nil {
		d.metrics.MailJob(result)
	}
}
