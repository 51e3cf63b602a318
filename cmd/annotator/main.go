package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/vcf-annotator/annotator/internal/cli"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
)

func main() {
	defer utilruntime.HandleCrash()

	command := NewAnnotatorCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewAnnotatorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotator [flags] [options]",
		Short: "annotator submits variant files to an annotation server and fetches the results.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdSubmit())
	cmd.AddCommand(cli.NewCmdStatus())
	cmd.AddCommand(cli.NewCmdCancel())
	cmd.AddCommand(cli.NewCmdResults())
	cmd.AddCommand(cli.NewCmdDownload())
	cmd.AddCommand(cli.NewCmdConfigure())
	cmd.AddCommand(cli.NewCmdInfo())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
