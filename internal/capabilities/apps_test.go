package capabilities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupWebApp(t *testing.T) {
	cases := []struct {
		in, key string
		ok      bool
	}{
		{"YouTube", "youtube", true},
		{"whatsapp web", "whatsapp", true},
		{"face", "facebook", true},
		{"google youtube", "youtube", true},
		{"notepad", "", false},
		{"  ", "", false},
	}
	for _, c := range cases {
		key, _, ok := LookupWebApp(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.key, key, c.in)
	}
}

func TestOpenWebApp(t *testing.T) {
	ctx := context.Background()
	browser := &fakeBrowser{}
	runner := newFakeRunner(nil)
	apps := NewApps(NewSystem(WindowsProfile(), runner, nil), browser, nil)

	assert.Equal(t, "Abriendo Youtube en el navegador.", apps.Open(ctx, "youtube"))
	assert.Equal(t, "Abriendo Whatsapp en el navegador.", apps.Open(ctx, "whatsapp web"))
	assert.Equal(t, []string{"https://www.youtube.com", "https://web.whatsapp.com"}, browser.opened)
	assert.Empty(t, runner.calls)

	browser.err = errors.New("no display")
	assert.Equal(t, "No pude abrir netflix: no display", apps.Open(ctx, "netflix"))
}

func TestOpenLocalApp(t *testing.T) {
	ctx := context.Background()
	runner := newFakeRunner(map[string]fakeResponse{
		"cmd /C start  paint": {err: errors.New("exit status 1")},
	})
	apps := NewApps(NewSystem(WindowsProfile(), runner, nil), &fakeBrowser{}, nil)

	assert.Equal(t, "Abriendo notepad.", apps.Open(ctx, "notepad"))
	assert.True(t, runner.called("cmd /C start  notepad"))
	assert.Equal(t, "Intentando abrir paint.", apps.Open(ctx, "paint"))
	assert.Equal(t, "¿Qué aplicación quieres que abra?", apps.Open(ctx, " "))
}

func TestCloseApp(t *testing.T) {
	ctx := context.Background()
	runner := newFakeRunner(map[string]fakeResponse{
		"taskkill /F /IM ghost.exe": {out: `ERROR: The process "ghost.exe" not found.`, err: errors.New("exit status 128")},
	})
	apps := NewApps(NewSystem(WindowsProfile(), runner, nil), &fakeBrowser{}, nil)

	assert.Equal(t, "Cerrando notepad.", apps.Close(ctx, "Notepad"))
	assert.True(t, runner.called("taskkill /F /IM notepad.exe"))
	assert.Equal(t, "No se encontró el proceso ghost.", apps.Close(ctx, "ghost"))
}

func TestCloseAppLinux(t *testing.T) {
	ctx := context.Background()
	missing := exitError(t, "1")
	runner := newFakeRunner(map[string]fakeResponse{
		"pkill -x ghost":  {err: missing},
		"pkill -x broken": {err: errors.New("pkill: not found")},
	})
	apps := NewApps(NewSystem(LinuxProfile(), runner, nil), &fakeBrowser{}, nil)

	assert.Equal(t, "Cerrando firefox.", apps.Close(ctx, "firefox"))
	assert.Equal(t, "No se encontró el proceso ghost.", apps.Close(ctx, "ghost"))
	assert.Equal(t, "Error al cerrar broken: pkill: not found", apps.Close(ctx, "broken"))
}

func TestSystemBrowser(t *testing.T) {
	runner := newFakeRunner(nil)
	browser := NewSystemBrowser(NewSystem(LinuxProfile(), runner, nil))
	assert.NoError(t, browser.Open(context.Background(), "https://example.com"))
	assert.Equal(t, []string{"xdg-open https://example.com"}, runner.calls)
}
