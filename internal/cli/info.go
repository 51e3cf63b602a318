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

type InfoOptions struct {
	GlobalOptions
	Output string
}

func DefaultInfoOptions() *InfoOptions {
	return &InfoOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Output:        "",
	}
}

func NewCmdInfo() *cobra.Command {
	o := DefaultInfoOptions()
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the settings the annotator commands run with",
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

func (o *InfoOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *InfoOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	return validateOutput(o.Output, legalOutputTypes)
}

// InfoResponse represents the information we want to display
type InfoResponse struct {
	VersionName      string   `json:"versionName"`
	GitCommit        string   `json:"gitCommit"`
	ServerUrl        string   `json:"serverUrl"`
	ConfigFile       string   `json:"configFile"`
	StatusEndpoint   string   `json:"statusEndpoint"`
	PollInterval     string   `json:"pollInterval"`
	FileField        string   `json:"fileField"`
	DbnsfpDir        string   `json:"dbnsfpDir"`
	AnnotationTypes  []string `json:"annotationTypes"`
	StrictExtensions bool     `json:"strictExtensions"`
}

func (o *InfoOptions) Run(ctx context.Context, args []string) error {
	versionInfo := version.Get()
	info := InfoResponse{
		VersionName:      versionInfo.GitVersion,
		GitCommit:        versionInfo.GitCommit,
		ServerUrl:        o.ServerUrl,
		ConfigFile:       o.ConfigFilePath,
		StatusEndpoint:   o.config.Service.StatusEndpoint,
		PollInterval:     o.config.Job.PollInterval.String(),
		FileField:        o.config.Job.FileField,
		DbnsfpDir:        o.config.Job.DbnsfpDir,
		AnnotationTypes:  o.Validator().AnnotationTypes(),
		StrictExtensions: o.config.Job.StrictExtensions,
	}
	return o.printInfo(info)
}

func (o *InfoOptions) printInfo(info InfoResponse) error {
	switch o.Output {
	case jsonFormat:
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal info to JSON: %w", err)
		}
		fmt.Println(string(data))
	case yamlFormat:
		data, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to marshal info to YAML: %w", err)
		}
		fmt.Print(string(data))
	default:
		fmt.Println("Annotator Information:")
		fmt.Printf("  Version Name:     %s\n", info.VersionName)
		fmt.Printf("  Git Commit:       %s\n", info.GitCommit)
		fmt.Printf("  Server:           %s\n", info.ServerUrl)
		fmt.Printf("  Config File:      %s\n", info.ConfigFile)
		fmt.Printf("  Status Endpoint:  %s\n", info.StatusEndpoint)
		fmt.Printf("  Poll Interval:    %s\n", info.PollInterval)
		fmt.Printf("  File Field:       %s\n", info.FileField)
		fmt.Printf("  dbNSFP Directory: %s\n", info.DbnsfpDir)
		fmt.Printf("  Annotation Types: %s\n", strings.Join(info.AnnotationTypes, ", "))
		fmt.Printf("  Strict Extension: %t\n", info.StrictExtensions)
	}
	return nil
}
