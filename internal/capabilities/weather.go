package capabilities

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lewisedginton/ron/internal/config"
	"github.com/tidwall/gjson"
)

// ErrWeatherNotConfigured is returned when no API key is set.
var ErrWeatherNotConfigured = errors.New("weather API key not configured")

// Conditions is the current weather in a city.
type Conditions struct {
	Temp        float64
	Description string
}

// WeatherClient queries the OpenWeatherMap current weather endpoint.
type WeatherClient struct {
	cfg        config.WeatherConfig
	httpClient *http.Client
}

// NewWeatherClient creates a weather client. A nil httpClient uses one bound
// by the configured timeout.
func NewWeatherClient(cfg config.WeatherConfig, httpClient *http.Client) *WeatherClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &WeatherClient{cfg: cfg, httpClient: httpClient}
}

// Current returns the current conditions for city.
func (c *WeatherClient) Current(ctx context.Context, city string) (Conditions, error) {
	if !c.cfg.Enabled() {
		return Conditions{}, ErrWeatherNotConfigured
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.cfg.APIKey)
	params.Set("units", c.cfg.Units)
	params.Set("lang", c.cfg.Lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Conditions{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Conditions{}, fmt.Errorf("weather lookup for %s: %w", city, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Conditions{}, fmt.Errorf("weather lookup for %s: %w", city, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Conditions{}, fmt.Errorf("weather lookup for %s: status %d: %s",
			city, resp.StatusCode, gjson.GetBytes(body, "message").String())
	}

	temp := gjson.GetBytes(body, "main.temp")
	desc := gjson.GetBytes(body, "weather.0.description")
	if !temp.Exists() || !desc.Exists() {
		return Conditions{}, fmt.Errorf("weather lookup for %s: incomplete response", city)
	}
	return Conditions{Temp: temp.Float(), Description: desc.String()}, nil
}
