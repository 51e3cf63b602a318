package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/thoas/go-funk"
	"github.com/vcf-annotator/annotator/internal/config"
	"github.com/vcf-annotator/annotator/internal/results"
	"github.com/vcf-annotator/annotator/internal/session"
	"github.com/vcf-annotator/annotator/pkg/metrics"
	"go.uber.org/zap"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
)

func validateOutput(output string, legal []string) error {
	if len(output) > 0 && !funk.ContainsString(legal, output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legal, ", "))
	}
	return nil
}

// printReporter writes session progress as plain lines.
type printReporter struct {
	w io.Writer
}

func newPrintReporter(w io.Writer) session.Reporter {
	return &printReporter{w: w}
}

func (r *printReporter) Report(level session.Level, message string) {
	switch level {
	case session.LevelWarning:
		fmt.Fprintf(r.w, "warning: %s\n", message)
	case session.LevelError:
		fmt.Fprintf(r.w, "error: %s\n", message)
	default:
		fmt.Fprintln(r.w, message)
	}
}

// renderTable writes t in format to file, or to stdout when file is empty.
func renderTable(t *results.Table, format string, opts results.Options, file string) error {
	renderer, err := results.NewRenderer(results.Format(format))
	if err != nil {
		return err
	}

	if file == "" {
		return renderer.Render(os.Stdout, t, opts)
	}

	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := renderer.Render(f, t, opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// FlushMetrics writes the metrics textfile when ANNOTATOR_METRICS_FILE is set.
func FlushMetrics() {
	cfg, err := config.New()
	if err != nil || cfg.Service.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.Service.MetricsFile); err != nil {
		zap.S().Named("cli").Warnw("failed to write metrics", "file", cfg.Service.MetricsFile, "error", err)
	}
}
