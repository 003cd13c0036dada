package config

import "time"

// WeatherConfig holds the OpenWeatherMap settings
type WeatherConfig struct {
	APIKey  string        `env:"WEATHER_API_KEY" yaml:"-"`
	BaseURL string        `env:"WEATHER_API_URL" yaml:"base_url" default:"https://api.openweathermap.org/data/2.5/weather"`
	Units   string        `env:"WEATHER_UNITS" yaml:"units" default:"metric"`
	Lang    string        `env:"WEATHER_LANG" yaml:"lang" default:"es"`
	Timeout time.Duration `env:"WEATHER_TIMEOUT" yaml:"timeout" default:"5s"`
}

// Enabled returns true if an API key is configured
func (c *WeatherConfig) Enabled() bool {
	return c.APIKey != ""
}
