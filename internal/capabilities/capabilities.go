package capabilities

import (
	"net/http"

	"github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/pkg/logger"
)

// Set groups every capability the dispatcher can call.
type Set struct {
	System  *System
	Apps    *Apps
	Web     *Web
	Weather *WeatherClient
}

// New builds the capability set for the configured platform. In dry-run mode
// commands and browser navigation are logged instead of executed.
func New(cfg config.CapabilitiesConfig, weather config.WeatherConfig, log logger.Logger) (*Set, error) {
	profile, err := ProfileFor(cfg.Platform)
	if err != nil {
		return nil, err
	}

	var runner Runner = &ExecRunner{Timeout: cfg.CommandTimeout, Logger: log}
	if cfg.DryRun {
		runner = &DryRunRunner{Logger: log}
	}
	return NewSet(profile, runner, &http.Client{Timeout: cfg.WebTimeout}, weather, log), nil
}

// NewSet wires a capability set from explicit parts.
func NewSet(profile *Profile, runner Runner, httpClient *http.Client, weather config.WeatherConfig, log logger.Logger) *Set {
	system := NewSystem(profile, runner, log)
	browser := NewSystemBrowser(system)
	return &Set{
		System:  system,
		Apps:    NewApps(system, browser, log),
		Web:     NewWeb(WebOptions{Browser: browser, HTTPClient: httpClient, Logger: log}),
		Weather: NewWeatherClient(weather, nil),
	}
}
