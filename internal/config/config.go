package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const (
	// StatusEndpointProcess polls /process_status/{process_key}.
	StatusEndpointProcess = "process"
	// StatusEndpointLegacy polls /status/{timestamp}, as older servers do.
	StatusEndpointLegacy = "legacy"
)

var singleConfig *Config = nil

type Config struct {
	Service *svcConfig
	Job     *jobConfig
}

type svcConfig struct {
	ServerUrl      string `envconfig:"ANNOTATOR_SERVER_URL" default:"http://localhost:5000"`
	StatusEndpoint string `envconfig:"ANNOTATOR_STATUS_ENDPOINT" default:"process"`
	LogLevel       string `envconfig:"ANNOTATOR_LOG_LEVEL"`
	MetricsFile    string `envconfig:"ANNOTATOR_METRICS_FILE" default:""`
}

type jobConfig struct {
	PollInterval     time.Duration `envconfig:"ANNOTATOR_POLL_INTERVAL" default:"2s"`
	PollJitter       time.Duration `envconfig:"ANNOTATOR_POLL_JITTER" default:"0s"`
	DbnsfpDir        string        `envconfig:"ANNOTATOR_DBNSFP_DIR" default:"/data/dbnsfp"`
	FileField        string        `envconfig:"ANNOTATOR_FILE_FIELD" default:"input_file"`
	StrictExtensions bool          `envconfig:"ANNOTATOR_STRICT_EXTENSIONS" default:"true"`
	AnnotationTypes  []string      `envconfig:"ANNOTATOR_ANNOTATION_TYPES" default:"dbnsfp,vep,clinvar"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		cfg := new(Config)
		if err := envconfig.Process("", cfg); err != nil {
			return nil, err
		}
		if cfg.Service.LogLevel == "" {
			cfg.Service.LogLevel = logrus.InfoLevel.String()
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// Reset drops the cached configuration so the next New reads the
// environment again.
func Reset() {
	singleConfig = nil
}

func (c *Config) Validate() error {
	errs := make([]error, 0)
	if c.Job.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ANNOTATOR_POLL_INTERVAL must be positive, got %s", c.Job.PollInterval))
	}
	if c.Job.PollJitter < 0 {
		errs = append(errs, fmt.Errorf("ANNOTATOR_POLL_JITTER must not be negative, got %s", c.Job.PollJitter))
	}
	if c.Job.FileField == "" {
		errs = append(errs, fmt.Errorf("ANNOTATOR_FILE_FIELD must not be empty"))
	}
	if len(c.Job.AnnotationTypes) == 0 {
		errs = append(errs, fmt.Errorf("ANNOTATOR_ANNOTATION_TYPES must list at least one type"))
	}
	switch c.Service.StatusEndpoint {
	case StatusEndpointProcess, StatusEndpointLegacy:
	default:
		errs = append(errs, fmt.Errorf("ANNOTATOR_STATUS_ENDPOINT must be %q or %q, got %q", StatusEndpointProcess, StatusEndpointLegacy, c.Service.StatusEndpoint))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %v", utilerrors.NewAggregate(errs).Error())
	}
	return nil
}
