package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vcf-annotator/annotator/internal/job"
	"github.com/vcf-annotator/annotator/internal/poller"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// scripted returns the statuses in order, repeating the last one.
func scripted(calls *int32, statuses ...job.Status) poller.CheckFunc {
	return func(ctx context.Context) (job.Status, error) {
		n := atomic.AddInt32(calls, 1)
		idx := int(n) - 1
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		return statuses[idx], nil
	}
}

var _ = Describe("poller", func() {
	const interval = 10 * time.Millisecond

	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("rejects a zero interval", func() {
			_, err := poller.New(0)
			Expect(err).NotTo(BeNil())
		})

		It("keeps the interval", func() {
			p, err := poller.New(poller.DefaultInterval)
			Expect(err).To(BeNil())
			Expect(p.Interval()).To(Equal(2 * time.Second))
		})
	})

	Describe("Run", func() {
		for _, terminal := range []job.Status{job.StatusCompleted, job.StatusCancelled, job.StatusError} {
			terminal := terminal
			It("stops checking once "+terminal.String()+" is seen", func() {
				var calls int32
				p, err := poller.New(interval)
				Expect(err).To(BeNil())

				status, err := p.Run(ctx, scripted(&calls, job.StatusRunning, terminal))
				Expect(err).To(BeNil())
				Expect(status).To(Equal(terminal))
				Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))

				Consistently(func() int32 { return atomic.LoadInt32(&calls) }, 10*interval, interval).Should(Equal(int32(2)))
			})
		}

		It("keeps polling through unknown statuses", func() {
			var calls int32
			p, _ := poller.New(interval)

			status, err := p.Run(ctx, scripted(&calls, job.Status("queued"), job.StatusRunning, job.Status("weird"), job.StatusCompleted))
			Expect(err).To(BeNil())
			Expect(status).To(Equal(job.StatusCompleted))
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(4)))
		})

		It("hands unknown statuses to the handler without logging them itself", func() {
			core, logs := observer.New(zapcore.DebugLevel)
			DeferCleanup(zap.ReplaceGlobals(zap.New(core)))

			var (
				calls int32
				mu    sync.Mutex
				seen  []job.Status
			)
			p, _ := poller.New(interval, poller.WithStatusHandler(func(s job.Status) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, s)
			}))

			_, err := p.Run(ctx, scripted(&calls, job.Status("queued"), job.StatusCompleted))
			Expect(err).To(BeNil())
			Expect(logs.Len()).To(Equal(0))

			mu.Lock()
			defer mu.Unlock()
			Expect(seen).To(Equal([]job.Status{"queued", job.StatusCompleted}))
		})

		It("stops on the first check error", func() {
			var calls int32
			p, _ := poller.New(interval)
			boom := errors.New("connection refused")

			_, err := p.Run(ctx, func(ctx context.Context) (job.Status, error) {
				atomic.AddInt32(&calls, 1)
				return "", boom
			})
			Expect(err).To(MatchError(boom))
			Consistently(func() int32 { return atomic.LoadInt32(&calls) }, 5*interval, interval).Should(Equal(int32(1)))
		})

		It("waits one interval before the first check", func() {
			p, _ := poller.New(50 * time.Millisecond)
			start := time.Now()
			var first time.Duration

			_, err := p.Run(ctx, func(ctx context.Context) (job.Status, error) {
				first = time.Since(start)
				return job.StatusCompleted, nil
			})
			Expect(err).To(BeNil())
			Expect(first).To(BeNumerically(">=", 45*time.Millisecond))
		})

		It("never runs two checks at once", func() {
			var (
				inFlight int32
				maxSeen  int32
				calls    int32
			)
			p, _ := poller.New(interval)

			_, err := p.Run(ctx, func(ctx context.Context) (job.Status, error) {
				cur := atomic.AddInt32(&inFlight, 1)
				defer atomic.AddInt32(&inFlight, -1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if cur <= old || atomic.CompareAndSwapInt32(&maxSeen, old, cur) {
						break
					}
				}
				// slower than the interval
				time.Sleep(3 * interval)
				if atomic.AddInt32(&calls, 1) == 3 {
					return job.StatusCompleted, nil
				}
				return job.StatusRunning, nil
			})
			Expect(err).To(BeNil())
			Expect(atomic.LoadInt32(&maxSeen)).To(Equal(int32(1)))
		})

		It("returns the context error when cancelled", func() {
			var calls int32
			p, _ := poller.New(interval)
			cctx, cancel := context.WithCancel(ctx)
			time.AfterFunc(5*interval, cancel)

			_, err := p.Run(cctx, scripted(&calls, job.StatusRunning))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})

		It("reports every observed status", func() {
			var (
				mu   sync.Mutex
				seen []job.Status
				n    int32
			)
			p, _ := poller.New(interval, poller.WithStatusHandler(func(s job.Status) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, s)
			}), poller.WithJitter(0))

			_, err := p.Run(ctx, scripted(&n, job.StatusRunning, job.StatusRunning, job.StatusCancelled))
			Expect(err).To(BeNil())

			mu.Lock()
			defer mu.Unlock()
			Expect(seen).To(Equal([]job.Status{job.StatusRunning, job.StatusRunning, job.StatusCancelled}))
		})
	})

	Describe("Session", func() {
		It("returns the outcome from Wait", func() {
			var calls int32
			p, _ := poller.New(interval)

			s := p.Start(ctx, scripted(&calls, job.StatusRunning, job.StatusCompleted))
			status, err := s.Wait()
			Expect(err).To(BeNil())
			Expect(status).To(Equal(job.StatusCompleted))
			Eventually(s.Done()).Should(BeClosed())
		})

		It("stops the loop and can be stopped twice", func() {
			var calls int32
			p, _ := poller.New(interval)

			s := p.Start(ctx, scripted(&calls, job.StatusRunning))
			Eventually(func() int32 { return atomic.LoadInt32(&calls) }).Should(BeNumerically(">=", 1))

			s.Stop()
			s.Stop()
			after := atomic.LoadInt32(&calls)
			Consistently(func() int32 { return atomic.LoadInt32(&calls) }, 5*interval, interval).Should(Equal(after))

			_, err := s.Wait()
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})
})
