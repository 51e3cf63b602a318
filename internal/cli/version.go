package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vcf-annotator/annotator/pkg/version"
	"sigs.k8s.io/yaml"
)

type VersionOptions struct {
	Output string
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print annotator version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(o.Output, legalOutputTypes); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *VersionOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	versionInfo := version.Get()
	switch o.Output {
	case jsonFormat:
		data, err := json.MarshalIndent(versionInfo, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal version to JSON: %w", err)
		}
		fmt.Println(string(data))
	case yamlFormat:
		data, err := yaml.Marshal(versionInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal version to YAML: %w", err)
		}
		fmt.Print(string(data))
	default:
		fmt.Printf("Annotator Version: %s\n", versionInfo.String())
	}
	return nil
}
