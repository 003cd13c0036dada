package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// CommonConfig holds logging settings shared by every ron command
type CommonConfig struct {
	// LogLevel specifies the minimum log level to output
	// Valid values: debug, info, warn, error
	LogLevel string `env:"LOG_LEVEL" yaml:"log_level" default:"info"`

	// LogFormat selects the logrus formatter: json or text
	LogFormat string `env:"LOG_FORMAT" yaml:"log_format" default:"text"`
}

// Validate checks CommonConfig for valid log level and format
func (c CommonConfig) Validate() error {
	var result error
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		result = multierror.Append(result, fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", c.LogLevel))
	}
	if !slices.Contains([]string{"json", "text"}, strings.ToLower(c.LogFormat)) {
		result = multierror.Append(result, fmt.Errorf("log_format must be json or text, got %q", c.LogFormat))
	}
	return result
}
