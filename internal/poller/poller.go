package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/vcf-annotator/annotator/internal/job"
)

// DefaultInterval is the time between two status checks.
const DefaultInterval = 2000 * time.Millisecond

// CheckFunc reads the current status of the polled job.
type CheckFunc func(ctx context.Context) (job.Status, error)

// Poller calls a CheckFunc on a fixed interval until the job reaches a
// terminal status. Checks never overlap: a tick that fires while a check is
// still running is not queued behind it.
type Poller struct {
	interval time.Duration
	jitter   time.Duration
	onStatus func(job.Status)
}

type Option func(*Poller)

// WithJitter adds normally distributed noise with the given deviation to
// every interval.
func WithJitter(stdev time.Duration) Option {
	return func(p *Poller) {
		p.jitter = stdev
	}
}

// WithStatusHandler registers fn to be called with every status observed,
// terminal ones included.
func WithStatusHandler(fn func(job.Status)) Option {
	return func(p *Poller) {
		p.onStatus = fn
	}
}

func New(interval time.Duration, opts ...Option) (*Poller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	p := &Poller{interval: interval}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run checks the status once per interval, the first time one interval after
// the call. It returns the first terminal status, the first check error, or
// the context error.
func (p *Poller) Run(ctx context.Context, check CheckFunc) (job.Status, error) {
	ticker := jitterbug.New(p.interval, &jitterbug.Norm{Stdev: p.jitter, Mean: 0})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		// a tick may race a cancellation; cancellation wins
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		status, err := check(ctx)
		if err != nil {
			return "", err
		}

		if p.onStatus != nil {
			p.onStatus(status)
		}

		// unknown statuses are left to the status handler; polling goes on
		if status.IsTerminal() {
			return status, nil
		}
	}
}

// Session is one running poll loop.
type Session struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status job.Status
	err    error
}

// Start runs the poll loop in its own goroutine.
func (p *Poller) Start(ctx context.Context, check CheckFunc) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer cancel()
		status, err := p.Run(ctx, check)
		s.mu.Lock()
		s.status, s.err = status, err
		s.mu.Unlock()
	}()
	return s
}

// Stop cancels the loop and waits for it to exit. It is safe to call more
// than once and after the loop ended on its own.
func (s *Session) Stop() {
	s.cancel()
	<-s.done
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the loop exits and returns its outcome.
func (s *Session) Wait() (job.Status, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.err
}
