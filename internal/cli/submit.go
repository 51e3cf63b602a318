package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vcf-annotator/annotator/internal/job"
	"github.com/vcf-annotator/annotator/internal/results"
	"go.uber.org/zap"
)

type SubmitOptions struct {
	GlobalOptions

	AnnotationType string
	Directory      string
	Wait           bool
	Output         string
	File           string
	Expand         bool
	DownloadDir    string
}

func DefaultSubmitOptions() *SubmitOptions {
	return &SubmitOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Output:        string(results.FormatTable),
	}
}

func NewCmdSubmit() *cobra.Command {
	o := DefaultSubmitOptions()
	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Upload a VCF or CSV file and start an annotation job",
		Example: "submit sample.vcf --type clinvar --wait\n" +
			"submit variants.csv --type dbnsfp --dir /data/dbnsfp --wait --download-dir .",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *SubmitOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.AnnotationType, "type", "t", o.AnnotationType, "Annotation type to run")
	fs.StringVar(&o.Directory, "dir", o.Directory, "dbNSFP directory on the server (default from ANNOTATOR_DBNSFP_DIR)")
	fs.BoolVarP(&o.Wait, "wait", "w", o.Wait, "Poll the job until it ends and print its results")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Results format with --wait. One of: (%s).", strings.Join(results.Formats, ", ")))
	fs.StringVarP(&o.File, "file", "f", o.File, "Write results to this file instead of stdout")
	fs.BoolVar(&o.Expand, "expand", o.Expand, "Show long cells in full")
	fs.StringVar(&o.DownloadDir, "download-dir", o.DownloadDir, "Download the result file into this directory once the job completes")
}

func (o *SubmitOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if err := validateOutput(o.Output, results.Formats); err != nil {
		return err
	}
	if !o.Wait && o.DownloadDir != "" {
		return fmt.Errorf("--download-dir requires --wait")
	}
	return nil
}

func (o *SubmitOptions) Run(ctx context.Context, args []string) error {
	defer FlushMetrics()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, err := o.Controller(newPrintReporter(os.Stderr))
	if err != nil {
		return err
	}

	req := job.SubmitRequest{
		AnnotationType: o.AnnotationType,
		Directory:      o.Directory,
	}
	if len(args) > 0 {
		req.FilePath = args[0]
	}

	j, err := ctrl.Submit(ctx, req)
	if err != nil {
		ctrl.Detach()
		return err
	}
	fmt.Printf("process_key: %s\ntimestamp: %s\n", j.ProcessKey, j.Timestamp)

	if !o.Wait {
		ctrl.Detach()
		return nil
	}

	// from here on, leaving cancels the job
	defer func() {
		<-ctrl.Close()
	}()

	outcome, err := ctrl.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			zap.S().Named("cli").Infow("interrupted, cancelling process", "process_key", j.ProcessKey)
			return fmt.Errorf("interrupted: process %s cancelled", j.ProcessKey)
		}
		return err
	}

	if outcome.Status != job.StatusCompleted {
		return fmt.Errorf("process %s ended with status %s", j.ProcessKey, outcome.Status)
	}

	table := results.NewTable(outcome.Results)
	if err := renderTable(table, o.Output, results.Options{Expanded: o.Expand}, o.File); err != nil {
		return err
	}

	if o.DownloadDir != "" {
		target, err := ctrl.DownloadJob(ctx, outcome.Job, o.DownloadDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved %s\n", target)
	}
	return nil
}
