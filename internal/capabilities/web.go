package capabilities

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/lewisedginton/ron/pkg/logger"
)

// ErrNoResults is returned when a search finds nothing playable.
var ErrNoResults = errors.New("no results")

const (
	defaultGoogleURL  = "https://www.google.com"
	defaultYouTubeURL = "https://www.youtube.com"
)

var videoIDPattern = regexp.MustCompile(`"videoId":"([A-Za-z0-9_-]{11})"`)

// Web performs browser-based searches and media playback.
type Web struct {
	browser    Browser
	httpClient *http.Client
	googleURL  string
	youtubeURL string
	log        logger.Logger
}

// WebOptions configures Web. Empty base URLs select the public sites.
type WebOptions struct {
	Browser    Browser
	HTTPClient *http.Client
	GoogleURL  string
	YouTubeURL string
	Logger     logger.Logger
}

// NewWeb creates a web capability.
func NewWeb(opts WebOptions) *Web {
	w := &Web{
		browser:    opts.Browser,
		httpClient: opts.HTTPClient,
		googleURL:  strings.TrimRight(opts.GoogleURL, "/"),
		youtubeURL: strings.TrimRight(opts.YouTubeURL, "/"),
		log:        opts.Logger,
	}
	if w.httpClient == nil {
		w.httpClient = http.DefaultClient
	}
	if w.googleURL == "" {
		w.googleURL = defaultGoogleURL
	}
	if w.youtubeURL == "" {
		w.youtubeURL = defaultYouTubeURL
	}
	if w.log == nil {
		w.log = logger.NewNopLogger()
	}
	return w
}

// GoogleSearchURL is the results page for query.
func (w *Web) GoogleSearchURL(query string) string {
	return w.googleURL + "/search?q=" + url.QueryEscape(query)
}

// YouTubeSearchURL is the results page for query.
func (w *Web) YouTubeSearchURL(query string) string {
	return w.youtubeURL + "/results?search_query=" + url.QueryEscape(query)
}

// Research opens a Google search.
func (w *Web) Research(ctx context.Context, query string) string {
	if err := w.browser.Open(ctx, w.GoogleSearchURL(query)); err != nil {
		w.log.Warn("Google search failed", logger.ErrorField(err))
		return fmt.Sprintf("Error al buscar en Google: %v", err)
	}
	return "Investigando en Google: " + query
}

// SearchYouTube opens a YouTube results page.
func (w *Web) SearchYouTube(ctx context.Context, query string) string {
	if err := w.browser.Open(ctx, w.YouTubeSearchURL(query)); err != nil {
		w.log.Warn("YouTube search failed", logger.ErrorField(err))
		return fmt.Sprintf("Error al buscar en YouTube: %v", err)
	}
	return "Buscando en YouTube: " + query
}

// FirstVideoID returns the id of the first video on the results page for query.
func (w *Web) FirstVideoID(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.YouTubeSearchURL(query), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Language", "es")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("youtube search: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("youtube search: %w", err)
	}
	m := videoIDPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("youtube search %q: %w", query, ErrNoResults)
	}
	return string(m[1]), nil
}

// Play opens the first video for query, falling back to the results page
// when the lookup fails.
func (w *Web) Play(ctx context.Context, query string) string {
	id, err := w.FirstVideoID(ctx, query)
	if err != nil {
		w.log.Warn("Video lookup failed, opening search instead",
			logger.StringField("query", query),
			logger.ErrorField(err))
		return w.SearchYouTube(ctx, query)
	}
	if err := w.browser.Open(ctx, w.youtubeURL+"/watch?v="+id); err != nil {
		return fmt.Sprintf("No pude buscar en YouTube: %v", err)
	}
	return fmt.Sprintf("Reproduciendo %s en YouTube.", query)
}
