package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vcf-annotator/annotator/internal/client"
)

type ConfigureOptions struct {
	ServerUrl      string
	ConfigFilePath string
	RequestTimeout time.Duration
}

func DefaultConfigureOptions() *ConfigureOptions {
	return &ConfigureOptions{
		ConfigFilePath: client.DefaultClientConfigPath(),
	}
}

func NewCmdConfigure() *cobra.Command {
	o := DefaultConfigureOptions()
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Write the client config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("server-url")
	return cmd
}

func (o *ConfigureOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ServerUrl, "server-url", "u", o.ServerUrl, "Address of the annotation server")
	fs.StringVar(&o.ConfigFilePath, "config", o.ConfigFilePath, "Path to the client config file")
	fs.DurationVar(&o.RequestTimeout, "request-timeout", o.RequestTimeout, "Bound on every single request, 0 for none")
}

func (o *ConfigureOptions) Run(ctx context.Context, args []string) error {
	if err := client.WriteConfig(o.ConfigFilePath, o.ServerUrl, o.RequestTimeout); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", o.ConfigFilePath)
	return nil
}
