package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Persistence defaults.
const (
	DefaultStopTimeout = 30 * time.Second
	maxPollInterval    = 60 * time.Second
	minPollInterval    = time.Second
)

// Saver performs one durable save cycle.
type Saver interface {
	Save(ctx context.Context) error
}

// PersistenceOption configures a Persistence manager.
type PersistenceOption func(*Persistence)

// WithPollInterval overrides the computed wake-up interval.
func WithPollInterval(d time.Duration) PersistenceOption {
	return func(p *Persistence) {
		if d > 0 {
			p.poll = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the loop.
func WithStopTimeout(d time.Duration) PersistenceOption {
	return func(p *Persistence) {
		if d > 0 {
			p.stopTimeout = d
		}
	}
}

// WithPersistenceClock sets the time source.
func WithPersistenceClock(now func() time.Time) PersistenceOption {
	return func(p *Persistence) {
		if now != nil {
			p.now = now
		}
	}
}

// Persistence saves the vector store in the background every interval and
// on demand. A periodic failure is logged and retried on a later wake-up;
// ForceSave returns failures to the caller.
type Persistence struct {
	saver       Saver
	logger      *slog.Logger
	interval    time.Duration
	poll        time.Duration
	stopTimeout time.Duration
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	saveMu   sync.Mutex
	lastSave time.Time
}

// NewPersistence creates a Persistence manager. An interval of zero
// disables the background loop; ForceSave still works.
func NewPersistence(saver Saver, interval time.Duration, logger *slog.Logger, opts ...PersistenceOption) *Persistence {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Persistence{
		saver:       saver,
		logger:      logger,
		interval:    interval,
		poll:        PollInterval(interval),
		stopTimeout: DefaultStopTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollInterval is min(60s, interval/10), never below one second.
func PollInterval(interval time.Duration) time.Duration {
	poll := min(maxPollInterval, interval/10)
	return max(poll, minPollInterval)
}

// Start launches the background loop. Calling it while the loop is running
// is a no-op.
func (p *Persistence) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("periodic save disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.logger.Info("periodic save already running")
		return
	}

	p.setLastSave(p.now())

	ctx, p.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	p.done = done
	go func() {
		defer close(done)
		p.run(ctx)
	}()

	p.logger.Info("periodic save started",
		slog.Duration("interval", p.interval),
		slog.Duration("poll", p.poll),
	)
}

// Stop signals the loop to exit and waits up to the stop timeout. A loop
// that does not finish in time is abandoned with a warning.
func (p *Persistence) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		p.logger.Info("periodic save stopped")
	case <-timer.C:
		p.logger.Warn("periodic save did not stop in time, abandoning",
			slog.Duration("timeout", p.stopTimeout),
		)
	}
}

// Running reports whether the background loop is active.
func (p *Persistence) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// ForceSave runs one save cycle now and returns its error.
func (p *Persistence) ForceSave(ctx context.Context) error {
	if err := p.saver.Save(ctx); err != nil {
		return err
	}
	p.setLastSave(p.now())
	return nil
}

// LastSave returns the time of the last successful save, or the time the
// loop started.
func (p *Persistence) LastSave() time.Time {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.lastSave
}

func (p *Persistence) setLastSave(t time.Time) {
	p.saveMu.Lock()
	p.lastSave = t
	p.saveMu.Unlock()
}

func (p *Persistence) run(ctx context.Context) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Persistence) tick(ctx context.Context) {
	if p.now().Sub(p.LastSave()) < p.interval {
		return
	}

	start := p.now()
	if err := p.saver.Save(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("periodic save failed",
			slog.String("error", err.Error()),
		)
		return
	}
	p.setLastSave(p.now())
	p.logger.Debug("periodic save complete", slog.Duration("duration", p.now().Sub(start)))
}
