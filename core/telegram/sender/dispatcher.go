// Package sender delivers outbound Telegram calls off the update goroutine.
//
// Every chat is pinned to one worker, so the messages a handler sends to a chat
// arrive in the order they were enqueued. A shared limiter keeps the bot under
// the Bot API flood threshold.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/metrics"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the chat's queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const (
	defaultWorkers      = 4
	defaultQueueSize    = 64
	defaultPerSecond    = 25
	defaultRetryBackoff = time.Second
	defaultMaxDuration  = 15 * time.Second
	maxFloodWait        = 30 * time.Second
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	Workers int
	// QueueSize is the capacity of each worker's queue.
	QueueSize    int
	PerSecond    int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, retries included.
	MaxDuration time.Duration
}

// Job is one outbound call. Run must be safe to repeat when retries are enabled.
type Job struct {
	Chat     int64
	Action   string
	Endpoint string
	Run      func() error
}

type queued struct {
	ctx context.Context
	Job
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts    Options
	limiter *rate.Limiter
	shards  []chan queued

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the workers. Zero options fall back to defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.PerSecond <= 0 {
		opts.PerSecond = defaultPerSecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = defaultMaxDuration
	}

	d := &Dispatcher{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.PerSecond), opts.PerSecond),
		shards:  make([]chan queued, opts.Workers),
	}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		ch := make(chan queued, opts.QueueSize)
		d.shards[i] = ch
		go d.work(ch)
	}
	return d
}

// Enqueue schedules j on its chat's worker. A zero Chat is taken from ctx.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if j.Chat == 0 {
		j.Chat = logger.ChatIDFrom(ctx)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shard(j.Chat) <- queued{ctx: context.WithoutCancel(ctx), Job: j}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(chat int64) chan queued {
	if chat < 0 {
		chat = -chat
	}
	return d.shards[chat%int64(len(d.shards))]
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(ch <-chan queued) {
	defer d.wg.Done()
	for q := range ch {
		d.deliver(q)
	}
}

func (d *Dispatcher) deliver(q queued) {
	ctx, cancel := context.WithTimeout(q.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attrs := jobAttrs(q.ctx, q.Job)
	attempts := d.opts.MaxRetries + 1

	var err error
send:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = d.limiter.Wait(ctx); err != nil {
			break
		}
		if err = q.Run(); err == nil {
			metrics.RecordSend(q.Action, "ok")
			logger.Debug(q.ctx, "tg.sender", "send.success", append(attrs,
				slog.Int("attempt", attempt),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			)...)
			return
		}

		delay, retry := backoff(err, d.opts.RetryBackoff, attempt)
		if !retry || attempt == attempts {
			break
		}
		logger.Debug(q.ctx, "tg.sender", "send.retry", append(attrs,
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error_kind", Classify(err)),
		)...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			err = ctx.Err()
			break send
		case <-timer.C:
		}
	}

	kind := Classify(err)
	metrics.RecordSend(q.Action, kind)
	logger.Error(q.ctx, "tg.sender", "send.fail", append(attrs,
		slog.String("error", Sanitize(err)),
		slog.String("error_kind", kind),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)...)
}

func jobAttrs(ctx context.Context, j Job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.Action)}
	if j.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.Endpoint))
	}
	if j.Chat != 0 {
		attrs = append(attrs, slog.Int64("chat_id", j.Chat))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	return attrs
}
