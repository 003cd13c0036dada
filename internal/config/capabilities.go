package config

import "time"

// Platform profiles
const (
	PlatformAuto    = "auto"
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
	PlatformDarwin  = "darwin"
)

// CapabilitiesConfig holds the OS and web capability settings
type CapabilitiesConfig struct {
	Platform       string        `env:"RON_PLATFORM" yaml:"platform" default:"auto"`
	CommandTimeout time.Duration `env:"RON_COMMAND_TIMEOUT" yaml:"command_timeout" default:"60s"`
	WebTimeout     time.Duration `env:"RON_WEB_TIMEOUT" yaml:"web_timeout" default:"10s"`
	// DryRun logs OS commands and browser navigation instead of running them
	DryRun bool `env:"RON_DRY_RUN" yaml:"dry_run"`
}
