package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vcf-annotator/annotator/internal/job"
)

type DownloadOptions struct {
	GlobalOptions

	AnnotationType string
	Dir            string
}

func DefaultDownloadOptions() *DownloadOptions {
	return &DownloadOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Dir:           ".",
	}
}

func NewCmdDownload() *cobra.Command {
	o := DefaultDownloadOptions()
	cmd := &cobra.Command{
		Use:   "download TIMESTAMP",
		Short: "Download the result file of a completed job",
		Args:  cobra.ExactArgs(1),
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
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (o *DownloadOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.AnnotationType, "type", "t", o.AnnotationType, "Annotation type of the job")
	fs.StringVarP(&o.Dir, "dir", "d", o.Dir, "Directory to save the file into")
}

func (o *DownloadOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	info, err := os.Stat(o.Dir)
	if err != nil {
		return fmt.Errorf("download directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("download directory %s is not a directory", o.Dir)
	}
	return nil
}

func (o *DownloadOptions) Run(ctx context.Context, args []string) error {
	ctrl, err := o.Controller(newPrintReporter(os.Stderr))
	if err != nil {
		return err
	}
	defer ctrl.Detach()

	target, err := ctrl.DownloadJob(ctx, job.Job{Timestamp: args[0], AnnotationType: o.AnnotationType}, o.Dir)
	if err != nil {
		return err
	}
	fmt.Println(target)
	return nil
}
