package session_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/vcf-annotator/annotator/internal/client"
	"github.com/vcf-annotator/annotator/internal/job"
	"github.com/vcf-annotator/annotator/internal/results"
	"github.com/vcf-annotator/annotator/internal/session"
)

// slowUploadAnnotator holds every upload until release is closed.
type slowUploadAnnotator struct {
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	cancels []string
}

func newSlowUploadAnnotator() *slowUploadAnnotator {
	return &slowUploadAnnotator{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (a *slowUploadAnnotator) Upload(ctx context.Context, req client.UploadRequest) (*job.Job, error) {
	close(a.started)
	<-a.release
	return &job.Job{ProcessKey: "P9", Timestamp: "T9", AnnotationType: req.AnnotationType, Status: job.StatusRunning}, nil
}

func (a *slowUploadAnnotator) ProcessStatus(ctx context.Context, processKey string) (job.Status, error) {
	return job.StatusRunning, nil
}

func (a *slowUploadAnnotator) TimestampStatus(ctx context.Context, timestamp string) (job.Status, error) {
	return job.StatusRunning, nil
}

func (a *slowUploadAnnotator) Results(ctx context.Context, timestamp, annotationType string) (*results.ResultSet, error) {
	return nil, errors.New("no results")
}

func (a *slowUploadAnnotator) Download(ctx context.Context, timestamp, annotationType string, w io.Writer) (int64, error) {
	return 0, errors.New("no results")
}

func (a *slowUploadAnnotator) Cancel(ctx context.Context, processKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancels = append(a.cancels, processKey)
	return nil
}

func (a *slowUploadAnnotator) Cancels() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.cancels...)
}

var _ = Describe("teardown during upload", func() {
	var (
		fake    *slowUploadAnnotator
		ctrl    *session.Controller
		vcfPath string
	)

	BeforeEach(func() {
		fake = newSlowUploadAnnotator()
		vcfPath = filepath.Join(GinkgoT().TempDir(), "sample.vcf")
		Expect(os.WriteFile(vcfPath, []byte("##fileformat=VCFv4.2\n"), 0o600)).To(Succeed())

		var err error
		ctrl, err = session.New(fake, session.Options{
			PollInterval:    pollInterval,
			TeardownTimeout: time.Second,
			Validator:       job.NewValidator([]string{"vep"}, true),
			Reporter:        &session.RecordingReporter{},
		})
		Expect(err).To(BeNil())
	})

	submit := func() <-chan error {
		errs := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := ctrl.Submit(context.TODO(), job.SubmitRequest{FilePath: vcfPath, AnnotationType: "vep"})
			errs <- err
		}()
		Eventually(fake.started).Should(BeClosed())
		return errs
	}

	It("cancels the uploaded job before the close channel is released", func() {
		errs := submit()

		sent := ctrl.Close()
		Consistently(sent, 5*pollInterval, pollInterval).ShouldNot(BeClosed())

		close(fake.release)
		Eventually(sent).Should(BeClosed())
		Expect(fake.Cancels()).To(Equal([]string{"P9"}))
		Expect(errors.Is(<-errs, session.ErrClosed)).To(BeTrue())
	})

	It("leaves the uploaded job alone when detached", func() {
		errs := submit()

		detached := make(chan struct{})
		go func() {
			defer close(detached)
			ctrl.Detach()
		}()
		Eventually(detached).Should(BeClosed())

		close(fake.release)
		Expect(errors.Is(<-errs, session.ErrClosed)).To(BeTrue())
		Eventually(ctrl.Close()).Should(BeClosed())
		Expect(fake.Cancels()).To(BeEmpty())
	})
})
