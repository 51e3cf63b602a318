package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vcf-annotator/annotator/internal/results"
)

type ResultsOptions struct {
	GlobalOptions

	AnnotationType string
	Sort           string
	Filter         string
	Output         string
	File           string
	Expand         bool
}

func DefaultResultsOptions() *ResultsOptions {
	return &ResultsOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Output:        string(results.FormatTable),
	}
}

func NewCmdResults() *cobra.Command {
	o := DefaultResultsOptions()
	cmd := &cobra.Command{
		Use:     "results TIMESTAMP",
		Short:   "Show the annotated variants of a completed job",
		Example: "results 20240101_120000 --type clinvar --sort POS --filter benign -o csv",
		Args:    cobra.ExactArgs(1),
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

func (o *ResultsOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.AnnotationType, "type", "t", o.AnnotationType, "Annotation type of the job")
	fs.StringVar(&o.Sort, "sort", o.Sort, "Sort rows by this column")
	fs.StringVar(&o.Filter, "filter", o.Filter, "Only show rows containing this text (case-insensitive)")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(results.Formats, ", ")))
	fs.StringVarP(&o.File, "file", "f", o.File, "Write results to this file instead of stdout")
	fs.BoolVar(&o.Expand, "expand", o.Expand, "Show long cells in full")
}

func (o *ResultsOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if results.Format(o.Output) == results.FormatXLSX && o.File == "" {
		return fmt.Errorf("xlsx output needs --file")
	}
	return validateOutput(o.Output, results.Formats)
}

func (o *ResultsOptions) Run(ctx context.Context, args []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	rs, err := c.Results(ctx, args[0], o.AnnotationType)
	if err != nil {
		return fmt.Errorf("fetching results: %w", err)
	}

	// numeric sorting is decided on visible rows only, so filter first
	table := results.NewTable(rs)
	table.Filter(o.Filter)
	if o.Sort != "" {
		if err := table.SortBy(o.Sort); err != nil {
			return err
		}
	}

	return renderTable(table, o.Output, results.Options{Expanded: o.Expand}, o.File)
}
