package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vcf-annotator/annotator/internal/client"
	"github.com/vcf-annotator/annotator/pkg/metrics"
	"go.uber.org/zap"
)

type CancelOptions struct {
	GlobalOptions
}

func DefaultCancelOptions() *CancelOptions {
	return &CancelOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdCancel() *cobra.Command {
	o := DefaultCancelOptions()
	cmd := &cobra.Command{
		Use:   "cancel PROCESS_KEY",
		Short: "Cancel a running annotation job",
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
	return cmd
}

func (o *CancelOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
}

func (o *CancelOptions) Run(ctx context.Context, args []string) error {
	defer FlushMetrics()

	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	metrics.IncreaseCancellationsMetric(metrics.TriggerUser)
	if err := c.Cancel(ctx, args[0]); err != nil {
		// a job that already ended or was cancelled is refused by the server
		var serr *client.ErrServer
		if errors.As(err, &serr) {
			zap.S().Named("cli").Warnw("server refused cancellation", "process_key", args[0], "status_code", serr.StatusCode, "error", serr.Error())
			fmt.Printf("Process %s not cancelled: %s\n", args[0], serr.Error())
			return nil
		}
		return fmt.Errorf("cancelling process %s: %w", args[0], err)
	}
	fmt.Printf("Process %s cancelled\n", args[0])
	return nil
}
