package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vcf-annotator/annotator/internal/client"
	"github.com/vcf-annotator/annotator/internal/config"
	"github.com/vcf-annotator/annotator/internal/job"
	"github.com/vcf-annotator/annotator/internal/session"
	"github.com/vcf-annotator/annotator/internal/util"
	"github.com/vcf-annotator/annotator/pkg/log"
	"go.uber.org/zap"
)

const serverUrlEnv = "ANNOTATOR_SERVER_URL"

type GlobalOptions struct {
	ServerUrl      string
	ConfigFilePath string

	config       *config.Config
	clientConfig *client.Config
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: client.DefaultClientConfigPath(),
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ServerUrl, "server-url", "u", o.ServerUrl, "Address of the annotation server")
	fs.StringVar(&o.ConfigFilePath, "config", o.ConfigFilePath, "Path to the client config file")
}

// Complete loads the environment, sets up logging and settles the server
// address: the flag wins, then ANNOTATOR_SERVER_URL, then the client config
// file, then the built-in default.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	o.config = cfg

	zap.ReplaceGlobals(log.InitLog(log.ParseLevel(cfg.Service.LogLevel)))

	clientConfig, err := o.loadClientConfig()
	if err != nil {
		return err
	}

	switch {
	case o.ServerUrl != "":
	case util.GetEnv(serverUrlEnv, "") != "":
		o.ServerUrl = cfg.Service.ServerUrl
	case clientConfig != nil:
		o.ServerUrl = clientConfig.Service.Server
	default:
		o.ServerUrl = cfg.Service.ServerUrl
	}

	if clientConfig == nil {
		clientConfig = client.NewDefault()
	}
	clientConfig.Service.Server = o.ServerUrl
	o.clientConfig = clientConfig

	zap.S().Named("cli").Debugw("resolved server", "server_url", o.ServerUrl, "config", o.ConfigFilePath)
	return nil
}

func (o *GlobalOptions) loadClientConfig() (*client.Config, error) {
	if o.ConfigFilePath == "" {
		return nil, nil
	}
	if _, err := os.Stat(o.ConfigFilePath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return client.ParseConfigFile(o.ConfigFilePath)
}

func (o *GlobalOptions) Validate(args []string) error {
	u, err := url.Parse(o.ServerUrl)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", o.ServerUrl, err)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("invalid server url %q: no hostname", o.ServerUrl)
	}
	return nil
}

func (o *GlobalOptions) Client() (client.Annotator, error) {
	return client.NewFromConfig(o.clientConfig, client.WithFileField(o.config.Job.FileField))
}

// Controller returns a job controller reporting through reporter.
func (o *GlobalOptions) Controller(reporter session.Reporter) (*session.Controller, error) {
	c, err := o.Client()
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return session.New(c, session.Options{
		PollInterval:     o.config.Job.PollInterval,
		PollJitter:       o.config.Job.PollJitter,
		DefaultDirectory: o.config.Job.DbnsfpDir,
		StatusEndpoint:   o.config.Service.StatusEndpoint,
		Validator:        o.Validator(),
		Reporter:         reporter,
	})
}

func (o *GlobalOptions) Validator() *job.Validator {
	return job.NewValidator(o.config.Job.AnnotationTypes, o.config.Job.StrictExtensions)
}
