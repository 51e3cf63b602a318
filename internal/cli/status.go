package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vcf-annotator/annotator/internal/job"
	"github.com/vcf-annotator/annotator/pkg/metrics"
	"sigs.k8s.io/yaml"
)

type StatusOptions struct {
	GlobalOptions

	Timestamp string
	Output    string
}

func DefaultStatusOptions() *StatusOptions {
	return &StatusOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdStatus() *cobra.Command {
	o := DefaultStatusOptions()
	cmd := &cobra.Command{
		Use:   "status (PROCESS_KEY | --timestamp TIMESTAMP)",
		Short: "Show the status of an annotation job",
		Args:  cobra.MaximumNArgs(1),
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

func (o *StatusOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Timestamp, "timestamp", o.Timestamp, "Look the job up by upload timestamp (older servers)")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *StatusOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if (len(args) == 0) == (o.Timestamp == "") {
		return fmt.Errorf("exactly one of PROCESS_KEY or --timestamp is required")
	}
	return validateOutput(o.Output, legalOutputTypes)
}

type statusOutput struct {
	ProcessKey string     `json:"process_key,omitempty"`
	Timestamp  string     `json:"timestamp,omitempty"`
	Status     job.Status `json:"status"`
}

func (o *StatusOptions) Run(ctx context.Context, args []string) error {
	defer FlushMetrics()

	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	out := statusOutput{Timestamp: o.Timestamp}
	if len(args) > 0 {
		out.ProcessKey = args[0]
		out.Status, err = c.ProcessStatus(ctx, out.ProcessKey)
	} else {
		out.Status, err = c.TimestampStatus(ctx, o.Timestamp)
	}
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}
	metrics.IncreaseStatusPollsMetric(out.Status.String())

	switch o.Output {
	case jsonFormat:
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshalling status: %w", err)
		}
		fmt.Println(string(data))
	case yamlFormat:
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshalling status: %w", err)
		}
		fmt.Print(string(data))
	default:
		fmt.Println(out.Status)
	}
	return nil
}
