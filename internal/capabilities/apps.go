package capabilities

import (
	"context"
	"fmt"
	"strings"

	"github.com/lewisedginton/ron/pkg/logger"
)

// WebApp is a spoken app name served by a website.
type WebApp struct {
	Name string
	URL  string
}

// WebApps are opened in the browser instead of launching a local program.
// Partial matches are tried in this order.
var WebApps = []WebApp{
	{"youtube", "https://www.youtube.com"},
	{"google", "https://www.google.com"},
	{"facebook", "https://www.facebook.com"},
	{"instagram", "https://www.instagram.com"},
	{"twitter", "https://www.twitter.com"},
	{"tiktok", "https://www.tiktok.com"},
	{"whatsapp", "https://web.whatsapp.com"},
	{"linkedin", "https://www.linkedin.com"},
	{"spotify", "https://open.spotify.com"},
	{"netflix", "https://www.netflix.com"},
}

// Browser opens URLs.
type Browser interface {
	Open(ctx context.Context, url string) error
}

// SystemBrowser opens URLs with the platform's default handler.
type SystemBrowser struct {
	system *System
}

// NewSystemBrowser creates a browser that runs through the system's runner.
func NewSystemBrowser(system *System) *SystemBrowser {
	return &SystemBrowser{system: system}
}

// Open implements Browser.
func (b *SystemBrowser) Open(ctx context.Context, url string) error {
	if b.system.profile.OpenURL == nil {
		return fmt.Errorf("no browser available on %s", b.system.profile.Name)
	}
	_, err := b.system.run(ctx, b.system.profile.OpenURL(url))
	return err
}

// Apps opens and closes applications, preferring web destinations.
type Apps struct {
	system  *System
	browser Browser
	log     logger.Logger
}

// NewApps creates an application controller.
func NewApps(system *System, browser Browser, log logger.Logger) *Apps {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Apps{system: system, browser: browser, log: log}
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// LookupWebApp resolves a name against WebApps: exact key first, then the
// first key contained in the name or containing it.
func LookupWebApp(name string) (key, url string, ok bool) {
	clean := strings.ToLower(strings.TrimSpace(name))
	if clean == "" {
		return "", "", false
	}
	for _, app := range WebApps {
		if app.Name == clean {
			return app.Name, app.URL, true
		}
	}
	for _, app := range WebApps {
		if strings.Contains(clean, app.Name) || strings.Contains(app.Name, clean) {
			return app.Name, app.URL, true
		}
	}
	return "", "", false
}

// Open opens a web destination or launches a local application.
func (a *Apps) Open(ctx context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "¿Qué aplicación quieres que abra?"
	}
	a.log.Info("Opening application", logger.StringField("app", name))

	if key, url, ok := LookupWebApp(name); ok {
		if err := a.browser.Open(ctx, url); err != nil {
			a.log.Warn("Failed to open browser", logger.StringField("url", url), logger.ErrorField(err))
			return fmt.Sprintf("No pude abrir %s: %v", name, err)
		}
		return fmt.Sprintf("Abriendo %s en el navegador.", capitalize(key))
	}

	if a.system.profile.OpenApp == nil {
		return a.system.unsupported()
	}
	if _, err := a.system.run(ctx, a.system.profile.OpenApp(name)); err != nil {
		a.log.Warn("Application launch reported an error", logger.StringField("app", name), logger.ErrorField(err))
		return fmt.Sprintf("Intentando abrir %s.", name)
	}
	return fmt.Sprintf("Abriendo %s.", name)
}

// Close terminates a running application by process name.
func (a *Apps) Close(ctx context.Context, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "¿Qué aplicación quieres que cierre?"
	}
	if a.system.profile.CloseApp == nil {
		return a.system.unsupported()
	}
	a.log.Info("Closing application", logger.StringField("app", name))

	out, err := a.system.run(ctx, a.system.profile.CloseApp(name))
	switch {
	case a.system.profile.ProcessMissing(out, err):
		return fmt.Sprintf("No se encontró el proceso %s.", name)
	case err != nil && ExitCode(err) < 0:
		return fmt.Sprintf("Error al cerrar %s: %v", name, err)
	default:
		return fmt.Sprintf("Cerrando %s.", name)
	}
}
