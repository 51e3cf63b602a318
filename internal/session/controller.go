package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/vcf-annotator/annotator/internal/client"
	"github.com/vcf-annotator/annotator/internal/config"
	"github.com/vcf-annotator/annotator/internal/job"
	"github.com/vcf-annotator/annotator/internal/poller"
	"github.com/vcf-annotator/annotator/internal/results"
	"github.com/vcf-annotator/annotator/pkg/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultTeardownTimeout bounds the cancellation sent on Close.
	DefaultTeardownTimeout = 2 * time.Second

	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
	outcomeStopped   = "stopped"
)

type Options struct {
	PollInterval time.Duration
	PollJitter   time.Duration
	// DefaultDirectory replaces a blank SubmitRequest.Directory.
	DefaultDirectory string
	// StatusEndpoint is config.StatusEndpointProcess or config.StatusEndpointLegacy.
	StatusEndpoint  string
	TeardownTimeout time.Duration
	Validator       *job.Validator
	Reporter        Reporter
}

// Outcome is how a job ended, as seen by the client.
type Outcome struct {
	Job     job.Job
	Status  job.Status
	Results *results.ResultSet
}

// run is one submitted job and the poll session watching it.
type run struct {
	job     job.Job
	session *poller.Session
	done    chan struct{}

	// guarded by Controller.mu
	finished        bool
	cancelRequested bool
	outcome         *Outcome
	err             error
}

// Controller drives one job at a time through submit, polling, result fetch,
// download and cancellation. Starting a job stops the poll session of the
// previous one.
type Controller struct {
	client    client.Annotator
	poller    *poller.Poller
	validator *job.Validator
	reporter  Reporter
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	active   *run
	last     *job.Job
	results  *results.ResultSet
	closed   bool
	detached bool

	// submits counts Submit calls past the closed check
	submits sync.WaitGroup
}

func New(c client.Annotator, opts Options) (*Controller, error) {
	if opts.PollInterval == 0 {
		opts.PollInterval = poller.DefaultInterval
	}
	if opts.DefaultDirectory == "" {
		opts.DefaultDirectory = job.DefaultDirectory
	}
	if opts.StatusEndpoint == "" {
		opts.StatusEndpoint = config.StatusEndpointProcess
	}
	if opts.TeardownTimeout == 0 {
		opts.TeardownTimeout = DefaultTeardownTimeout
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("a submit validator is required")
	}
	if opts.Reporter == nil {
		opts.Reporter = NewLogReporter()
	}

	ctrl := &Controller{
		client:    c,
		validator: opts.Validator,
		reporter:  opts.Reporter,
		opts:      opts,
	}

	p, err := poller.New(opts.PollInterval, poller.WithJitter(opts.PollJitter), poller.WithStatusHandler(ctrl.onStatus))
	if err != nil {
		return nil, err
	}
	ctrl.poller = p
	ctrl.ctx, ctrl.cancel = context.WithCancel(context.Background())

	return ctrl, nil
}

// Submit validates req, uploads the file and starts polling the new job.
// Validation failures return a *job.ErrValidation without any request.
func (c *Controller) Submit(ctx context.Context, req job.SubmitRequest) (*job.Job, error) {
	if err := c.validator.Validate(req); err != nil {
		c.reporter.Report(LevelError, err.Error())
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.submits.Add(1)
	defer c.submits.Done()
	prev := c.active
	c.mu.Unlock()

	// at most one poll session at a time
	if prev != nil {
		prev.session.Stop()
		<-prev.done
	}

	f, err := os.Open(req.FilePath)
	if err != nil {
		err = fmt.Errorf("opening file: %w", err)
		c.reporter.Report(LevelError, err.Error())
		return nil, err
	}
	defer f.Close()

	c.reporter.Report(LevelInfo, "Starting process...")

	j, err := c.client.Upload(ctx, client.UploadRequest{
		Filename:       req.FilePath,
		File:           f,
		AnnotationType: req.AnnotationType,
		Directory:      job.NormalizeDirectory(req.Directory, c.opts.DefaultDirectory),
	})
	if err != nil {
		c.reporter.Report(LevelError, err.Error())
		c.reporter.Report(LevelWarning, "Process failed to start")
		return nil, err
	}

	c.reporter.Report(LevelInfo, fmt.Sprintf("Process started: %s (PID: %d)", j.ProcessKey, j.PID))

	c.mu.Lock()
	if c.closed {
		detached := c.detached
		c.mu.Unlock()
		if !detached {
			// torn down while uploading; the job must not outlive us
			metrics.IncreaseCancellationsMetric(metrics.TriggerTeardown)
			c.teardownCancel(j.ProcessKey)
		}
		return nil, ErrClosed
	}
	defer c.mu.Unlock()

	r := &run{job: *j, done: make(chan struct{})}
	r.session = c.poller.Start(c.ctx, c.checkFunc(*j))
	c.active = r
	last := *j
	c.last = &last
	c.results = nil
	go c.watch(r)

	return j, nil
}

func (c *Controller) checkFunc(j job.Job) poller.CheckFunc {
	return func(ctx context.Context) (job.Status, error) {
		var (
			status job.Status
			err    error
		)
		if c.opts.StatusEndpoint == config.StatusEndpointLegacy {
			status, err = c.client.TimestampStatus(ctx, j.Timestamp)
		} else {
			status, err = c.client.ProcessStatus(ctx, j.ProcessKey)
		}
		if err != nil {
			return "", err
		}
		metrics.IncreaseStatusPollsMetric(status.String())
		return status, nil
	}
}

func (c *Controller) onStatus(status job.Status) {
	switch status {
	case job.StatusRunning:
		c.reporter.Report(LevelInfo, "Processing in progress...")
	case job.StatusCompleted:
		c.reporter.Report(LevelSuccess, "Processing completed!")
	case job.StatusCancelled:
		c.reporter.Report(LevelWarning, "Process was cancelled")
	case job.StatusError:
		c.reporter.Report(LevelError, "Processing failed")
	default:
		c.reporter.Report(LevelWarning, fmt.Sprintf("Unknown status: %s", status))
	}
}

// watch waits for the poll session of r and settles the job.
func (c *Controller) watch(r *run) {
	status, err := r.session.Wait()

	outcome := &Outcome{Job: r.job, Status: status}
	var runErr error

	c.mu.Lock()
	cancelRequested := r.cancelRequested
	c.mu.Unlock()

	switch {
	case err != nil && cancelRequested:
		outcome.Status = job.StatusCancelled
		metrics.IncreaseJobsMetric(outcomeCancelled)
	case err != nil && errors.Is(err, context.Canceled):
		runErr = fmt.Errorf("polling of process %s stopped: %w", r.job.ProcessKey, err)
		metrics.IncreaseJobsMetric(outcomeStopped)
	case err != nil:
		runErr = NewErrStatusCheck(err)
		c.reporter.Report(LevelError, runErr.Error())
		metrics.IncreaseJobsMetric(outcomeFailed)
	case status == job.StatusCompleted:
		rs, ferr := c.fetchResults(c.ctx, r.job)
		if ferr != nil {
			runErr = ferr
			metrics.IncreaseJobsMetric(outcomeFailed)
			break
		}
		outcome.Results = rs
		metrics.IncreaseJobsMetric(outcomeCompleted)
	case status == job.StatusCancelled:
		metrics.IncreaseJobsMetric(outcomeCancelled)
	case status == job.StatusError:
		runErr = NewErrJobFailed(r.job.ProcessKey)
		metrics.IncreaseJobsMetric(outcomeFailed)
	}

	outcome.Job.Status = outcome.Status

	c.mu.Lock()
	r.finished = true
	r.outcome = outcome
	r.err = runErr
	if outcome.Results != nil && c.active == r {
		c.results = outcome.Results
	}
	c.mu.Unlock()
	close(r.done)
}

func (c *Controller) fetchResults(ctx context.Context, j job.Job) (*results.ResultSet, error) {
	c.reporter.Report(LevelInfo, "Fetching results...")
	rs, err := c.client.Results(ctx, j.Timestamp, j.AnnotationType)
	if err != nil {
		ferr := NewErrFetchResults(err)
		c.reporter.Report(LevelError, ferr.Error())
		return nil, ferr
	}
	c.reporter.Report(LevelSuccess, "Results loaded successfully")
	return rs, nil
}

// Wait blocks until the most recent job settles and returns its outcome.
func (c *Controller) Wait(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r == nil {
		return nil, ErrNoActiveJob
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return r.outcome, r.err
}

// ActiveJob returns the job being polled, if any.
func (c *Controller) ActiveJob() (job.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.finished {
		return job.Job{}, false
	}
	return c.active.job, true
}

// Busy reports whether a job is being polled.
func (c *Controller) Busy() bool {
	_, ok := c.ActiveJob()
	return ok
}

// Results returns the result set of the latest completed job.
func (c *Controller) Results() *results.ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// Cancel asks the server to stop the active job and stops polling whatever
// the server answers. Cancelling with nothing active, or a job that already
// ended, is not an error.
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	r := c.active
	if r == nil || r.finished {
		c.mu.Unlock()
		c.reporter.Report(LevelWarning, "No active process to cancel")
		return
	}
	r.cancelRequested = true
	c.mu.Unlock()

	c.reporter.Report(LevelWarning, "Cancelling process...")
	metrics.IncreaseCancellationsMetric(metrics.TriggerUser)
	err := c.client.Cancel(ctx, r.job.ProcessKey)

	r.session.Stop()
	<-r.done

	if err != nil {
		zap.S().Named("session").Debugw("cancel request failed", "process_key", r.job.ProcessKey, "error", err)
		c.reporter.Report(LevelWarning, fmt.Sprintf("Cancellation request failed: %v", err))
	}
	c.reporter.Report(LevelSuccess, "Process cancelled")
}

// Close tears the controller down: polling stops and, when a job is active, a
// cancellation is sent without waiting for it. A job whose upload is still in
// flight is cancelled as soon as the upload returns. The returned channel
// closes once those requests finished or gave up; callers are free to ignore
// it.
func (c *Controller) Close() <-chan struct{} {
	sent := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(sent)
		return sent
	}
	c.closed = true
	r := c.active
	active := r != nil && !r.finished
	if active {
		r.cancelRequested = true
	}
	c.mu.Unlock()

	if active {
		metrics.IncreaseCancellationsMetric(metrics.TriggerTeardown)
	}
	go func() {
		defer close(sent)
		if active {
			c.teardownCancel(r.job.ProcessKey)
		}
		c.submits.Wait()
	}()

	c.cancel()
	return sent
}

// Detach stops polling and closes the controller without cancelling the
// active job, which keeps running on the server.
func (c *Controller) Detach() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.detached = true
	r := c.active
	c.mu.Unlock()

	c.cancel()
	if r != nil {
		<-r.done
	}
}

func (c *Controller) teardownCancel(processKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.TeardownTimeout)
	defer cancel()
	if err := c.client.Cancel(ctx, processKey); err != nil {
		zap.S().Named("session").Debugw("teardown cancel failed", "process_key", processKey, "error", err)
		return
	}
	zap.S().Named("session").Debugw("sent teardown cancel", "process_key", processKey)
}

// Download saves the result file of the latest job into dir.
func (c *Controller) Download(ctx context.Context, dir string) (string, error) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last == nil {
		c.reporter.Report(LevelError, "No results available for download")
		return "", ErrNoResults
	}
	return c.DownloadJob(ctx, *last, dir)
}

// DownloadJob saves the result file of j into dir as
// {annotationType}_annotated_variants_{timestamp}.csv.
func (c *Controller) DownloadJob(ctx context.Context, j job.Job, dir string) (string, error) {
	c.reporter.Report(LevelInfo, "Preparing download...")

	target := filepath.Join(dir, j.ResultFilename())
	if err := c.download(ctx, j, target); err != nil {
		derr := NewErrDownload(err)
		c.reporter.Report(LevelError, "Download failed")
		return "", derr
	}

	c.reporter.Report(LevelSuccess, "Download complete")
	return target, nil
}

func (c *Controller) download(ctx context.Context, j job.Job, target string) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return pkgerrors.Wrap(err, "creating temporary file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := c.client.Download(ctx, j.Timestamp, j.AnnotationType, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrap(err, "closing temporary file")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return pkgerrors.Wrapf(err, "moving download to %s", target)
	}
	return nil
}
