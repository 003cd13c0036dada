package config

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
)

var metricNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MetricsConfig holds Prometheus collection settings
type MetricsConfig struct {
	// Enabled registers the assistant collectors and serves /metrics on the API server
	Enabled bool `env:"METRICS_ENABLED" yaml:"enabled" default:"true"`

	// Namespace prefixes every metric name
	Namespace string `env:"METRICS_NAMESPACE" yaml:"namespace" default:"ron"`
}

// Validate checks the namespace is a legal Prometheus name prefix
func (m MetricsConfig) Validate() error {
	var result error
	if m.Enabled && !metricNamespacePattern.MatchString(m.Namespace) {
		result = multierror.Append(result, fmt.Errorf("metrics namespace %q is not a valid prometheus name", m.Namespace))
	}
	return result
}
