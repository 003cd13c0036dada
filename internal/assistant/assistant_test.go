package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lewisedginton/ron/internal/memory_service"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/internal/models"
	"github.com/lewisedginton/ron/internal/prompt_manager"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/lewisedginton/ron/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const healthyDiagnosis = "CPU: 35% de uso. Memoria: 75.0% en uso (2048MB libres de 8192MB). Diagnóstico completado."

func TestNewPanics(t *testing.T) {
	assert.Panics(t, func() { New(Config{Logger: logger.NewNopLogger()}) })
}

func TestRuleOrder(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	rules := h.dispatcher.Rules()
	require.NotEmpty(t, rules)
	assert.Equal(t, "farewell", rules[0])
	assert.Equal(t, "problem_report", rules[1])
	assert.Equal(t, "fallback", rules[len(rules)-1])

	index := func(name string) int {
		for i, r := range rules {
			if r == name {
				return i
			}
		}
		t.Fatalf("rule %s not found", name)
		return -1
	}
	assert.Less(t, index("flush_dns"), index("open_app"))
	assert.Less(t, index("close_app"), index("research"))
	assert.Less(t, index("youtube"), index("shutdown"))
	assert.Less(t, index("suspend"), index("add_reminder"))
	assert.Less(t, index("remove_reminder"), index("introduction"))
}

func TestDispatchPriority(t *testing.T) {
	srv := newWeatherServer(t)
	tests := []struct {
		text   string
		intent string
	}{
		{"Hasta luego, no funciona nada", "farewell"},
		{"no funciona el internet", "problem_report"},
		{"hay un error al abrir word", "problem_report"},
		{"diagnostica el sistema", "diagnose"},
		{"revisa servicios por favor", "check_services"},
		{"reinicia servicios", "restart_services"},
		{"optimiza el sistema", "clean_temp"},
		{"arregla internet", "flush_dns"},
		{"reinicia la red", "network_reset"},
		{"cuánto espacio en disco queda", "disk_space"},
		{"escanea el sistema", "system_file_check"},
		{"abre youtube", "open_app"},
		{"cierra spotify", "close_app"},
		{"investiga el clima en madrid", "research"},
		{"reproduce shakira", "play"},
		{"qué tal el clima en madrid", "weather"},
		{"youtube gatos", "youtube"},
		{"apaga la computadora", "shutdown"},
		{"reinicia el sistema", "restart"},
		{"suspende la computadora", "suspend"},
		{"recuérdame pagar la renta", "add_reminder"},
		{"qué recordatorios tengo", "list_reminders"},
		{"he completado pagar", "remove_reminder"},
		{"soy Ana", "introduction"},
		{"cómo te llamas", "assistant_name"},
		{"quién te creó", "creator"},
		{"cómo me llamo", "user_name"},
		{"cuéntame un chiste", "fallback"},
	}

	h := newHarness(t, harnessOptions{weatherURL: srv.URL})
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			reply := h.say(t, tt.text)
			assert.Equal(t, tt.intent, reply.Intent)
			assert.NotEmpty(t, reply.Text)
		})
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Intents.WithLabelValues("farewell")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Intents.WithLabelValues("problem_report")))
}

func TestEmptyUtterance(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	assert.Equal(t, Reply{}, h.say(t, "   "))
	assert.Empty(t, h.log(t))
	assert.Empty(t, h.runner.calls)
}

func TestFarewellTakesPrecedence(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	reply := h.say(t, "hasta luego, mi computadora no funciona")
	assert.Equal(t, Reply{Text: ReplyFarewell, Intent: "farewell", Terminate: true}, reply)
	assert.Empty(t, h.runner.calls)

	turns := h.log(t)
	require.Len(t, turns, 1)
	assert.Equal(t, ReplyFarewell, turns[0].Reply)
}

func TestProblemReportFlushesDNSForConnectivity(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	reply := h.say(t, "no funciona el internet")
	assert.Equal(t, "problem_report", reply.Intent)
	assert.Equal(t,
		"He diagnosticado tu sistema automáticamente. "+healthyDiagnosis+
			" Servicios verificados: net: OK, audio: OK"+
			" Limpié la caché DNS para resolver problemas de conexión: Caché DNS limpiada. Problemas de conexión resueltos."+
			" Intenta usar tu computadora ahora para ver si el problema se resolvió.",
		reply.Text)

	assert.True(t, h.runner.called("flushdns"))
	assert.False(t, h.runner.called("start net"))
	assert.False(t, h.runner.called("cleantemp"))

	turns := h.log(t)
	require.Len(t, turns, 1)
	assert.Equal(t, "no funciona el internet", turns[0].User)
	assert.Equal(t, reply.Text, turns[0].Reply)
}

func TestProblemReportRepairsServicesAndCleansTemp(t *testing.T) {
	h := newHarness(t, harnessOptions{services: map[string]string{"net": "running", "audio": "stopped"}})

	reply := h.say(t, "la pc está muy lento")
	assert.Equal(t,
		"He diagnosticado tu sistema automáticamente. "+healthyDiagnosis+
			" Servicios verificados: net: OK, audio: PROBLEMA. Servicios con problemas detectados: audio"+
			" He reparado los servicios problemáticos: Servicios reiniciados: audio"+
			" También limpié archivos temporales para mejorar el rendimiento: Archivos temporales limpiados. Se liberó espacio en disco."+
			" Intenta usar tu computadora ahora para ver si el problema se resolvió.",
		reply.Text)
	assert.True(t, h.runner.called("stop audio"))
	assert.True(t, h.runner.called("start audio"))
	assert.False(t, h.runner.called("flushdns"))
}

func TestProblemReportWithoutRepairs(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	reply := h.say(t, "pantalla azul")
	assert.Equal(t,
		"He diagnosticado tu sistema automáticamente. "+healthyDiagnosis+" Servicios verificados: net: OK, audio: OK",
		reply.Text)
}

func TestWeather(t *testing.T) {
	srv := newWeatherServer(t)
	h := newHarness(t, harnessOptions{weatherURL: srv.URL})

	reply := h.say(t, "¿cómo está el clima en madrid?")
	assert.Equal(t, "La temperatura en madrid es de 15 grados con nublado.", reply.Text)

	reply = h.say(t, "clima en atlantis")
	assert.Equal(t, "No pude obtener el clima de atlantis. Verifica que el nombre sea correcto.", reply.Text)

	unconfigured := newHarness(t, harnessOptions{})
	assert.Equal(t, ReplyWeatherNotSetUp, unconfigured.say(t, "clima en madrid").Text)
}

func TestAppsAndWeb(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	assert.Equal(t, "Abriendo Youtube en el navegador.", h.say(t, "abre YouTube").Text)
	assert.True(t, h.runner.called("browse https://www.youtube.com"))

	assert.Equal(t, "Abriendo calculadora.", h.say(t, "abre calculadora").Text)
	assert.True(t, h.runner.called("launch calculadora"))

	assert.Equal(t, "Cerrando spotify.", h.say(t, "cierra Spotify").Text)

	assert.Equal(t, "Investigando en Google: recetas de paella", h.say(t, "investiga recetas de paella").Text)
	assert.True(t, h.runner.called("browse https://www.google.com/search?q=recetas+de+paella"))

	// the video lookup fails offline, so playback falls back to a search
	assert.Equal(t, "Buscando en YouTube: música Shakira", h.say(t, "Reproduce Shakira").Text)
	assert.True(t, h.runner.called("browse https://www.youtube.com/results?search_query=m%C3%BAsica+Shakira"))
}

func TestPower(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	assert.Equal(t, "Apagando la computadora...", h.say(t, "apaga el sistema").Text)
	assert.True(t, h.runner.called("poweroff"))
	assert.Equal(t, "Suspendiendo la computadora...", h.say(t, "suspende el sistema").Text)
	assert.True(t, h.runner.called("sleep"))
}

func TestReminders(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	assert.Equal(t, "Recordatorio agregado: pagar - la renta.", h.say(t, "recuérdame: pagar: la renta").Text)
	assert.Equal(t, "Recordatorio agregado: llamar - a mamá.", h.say(t, "Añade un recordatorio llamar: a mamá").Text)
	assert.Contains(t, h.say(t, "cuál es mi agenda").Text, "- pagar: la renta (creado: ")
	assert.Equal(t, "Recordatorio 'pagar' eliminado.", h.say(t, "he completado pagar").Text)
	assert.Equal(t, memory_service.ReplyReminderNotFound, h.say(t, "elimina pagar").Text)
	assert.Equal(t, ReplyWhatToRemove, h.say(t, "elimina").Text)

	assert.Len(t, h.log(t), 6)
}

func TestIdentityRulesAreNotRecorded(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	assert.Equal(t, ReplyUnknownUserName, h.say(t, "cómo me llamo").Text)
	assert.Equal(t, "Hola Ana, ¡mucho gusto en conocerte!", h.say(t, "Soy Ana").Text)
	assert.Equal(t, "Tu nombre es Ana.", h.say(t, "¿cuál es mi nombre?").Text)
	assert.Equal(t, "Me llamo Ron.", h.say(t, "cómo te llamas").Text)
	assert.Equal(t, "Fui creado por Luis.", h.say(t, "quién es tu creador").Text)

	assert.Empty(t, h.log(t))
	assert.Empty(t, h.completer.requests)
}

func TestBlankIdentityFactsUseDefaults(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := memory_store.NewDocument(memory_store.Defaults{})
	doc.Facts[memory_store.FactAssistantName] = ""
	doc.Facts[memory_store.FactCreator] = "  "
	data, err := memory_store.Encode(doc)
	require.NoError(t, err)
	_, err = h.provider.Put(context.Background(), testDevice.Path(), data, "")
	require.NoError(t, err)

	assert.Equal(t, "Me llamo Ron.", h.say(t, "cómo te llamas").Text)
	assert.Equal(t, "Fui creado por Luis.", h.say(t, "quién te creó").Text)
}

func TestFallbackSendsPersonaAndHistory(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	h.say(t, "Soy Ana")
	for i := 0; i < 25; i++ {
		require.NoError(t, h.memory.AppendTurn(ctx, fmt.Sprintf("u%d", i), fmt.Sprintf("r%d", i)))
	}

	reply := h.say(t, "Cuéntame un chiste")
	assert.Equal(t, "fallback", reply.Intent)
	assert.Equal(t, "¡Claro! Soy Ron.", reply.Text)

	req := h.completer.lastRequest()
	assert.Equal(t, 400, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.7, *req.Temperature, 1e-9)
	assert.Contains(t, req.System, "Eres Ron")
	assert.Contains(t, req.System, "creado por Luis")
	assert.Contains(t, req.System, "hasta luego")
	assert.Contains(t, req.System, "El usuario se llama Ana.")

	require.Len(t, req.Messages, 41)
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: "u5"}, req.Messages[0])
	assert.Equal(t, models.Message{Role: models.RoleAssistant, Content: "r5"}, req.Messages[1])
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: "Cuéntame un chiste"}, req.Messages[40])

	turns := h.log(t)
	last := turns[len(turns)-1]
	assert.Equal(t, "Cuéntame un chiste", last.User)
	assert.Equal(t, "¡Claro! Soy Ron.", last.Reply)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Completions.WithLabelValues(metrics.CompletionOK)))
}

func TestFallbackTimeoutRecordsApology(t *testing.T) {
	h := newHarness(t, harnessOptions{timeout: 20 * time.Millisecond})
	h.completer.delay = time.Second

	start := time.Now()
	reply := h.say(t, "¿qué opinas del universo?")
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, ReplyTechnicalProblem, reply.Text)
	assert.Equal(t, "fallback", reply.Intent)

	turns := h.log(t)
	require.Len(t, turns, 1)
	assert.Equal(t, "¿qué opinas del universo?", turns[0].User)
	assert.Equal(t, ReplyTechnicalProblem, turns[0].Reply)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Completions.WithLabelValues(metrics.CompletionTimeout)))
}

func TestFallbackErrorAndMissingModel(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.completer.err = errCompletion
	assert.Equal(t, ReplyTechnicalProblem, h.say(t, "hola").Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Completions.WithLabelValues(metrics.CompletionError)))

	h.completer.err = nil
	h.completer.reply = "***"
	assert.Equal(t, ReplyTechnicalProblem, h.say(t, "hola").Text)

	h.dispatcher.completer = nil
	assert.Equal(t, ReplyTechnicalProblem, h.say(t, "hola").Text)
	assert.Len(t, h.log(t), 3)
}

func TestRespondRoutesDevices(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	h.dispatcher.Respond(ctx, Request{Device: "telegram_42", Text: "recuérdame regar las plantas"})

	assert.Empty(t, h.log(t))
	other := h.memory.ForDevice("telegram_42").RecentTurns(ctx, 10)
	require.Len(t, other, 1)
	assert.Equal(t, "recuérdame regar las plantas", other[0].User)
}

func TestRespondSerializesCalls(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.dispatcher.Respond(context.Background(), Request{Text: fmt.Sprintf("recuérdame tarea %d", i)})
		}(i)
	}
	wg.Wait()

	assert.Len(t, h.log(t), 10)
	doc, err := h.memory.Document(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Reminders, 10)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hola mundo", Sanitize("  **hola** _mundo_ `~`  "))
	assert.Equal(t, "", Sanitize("*_*"))
}

func TestPersona(t *testing.T) {
	doc := memory_store.NewDocument(memory_store.Defaults{AssistantName: "Jarvis", Creator: "Tony"})
	p := Persona(doc)
	assert.Contains(t, p, "Eres Jarvis")
	assert.Contains(t, p, "creado por Tony")
	assert.NotContains(t, p, "El usuario se llama")
}

type stubPersona struct {
	prompt string
	err    error
	seen   prompt_manager.PersonaData
}

func (s *stubPersona) Persona(_ context.Context, data prompt_manager.PersonaData) (string, error) {
	s.seen = data
	return s.prompt, s.err
}

func TestFallbackUsesStoredPersona(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	stored := &stubPersona{prompt: "Eres un pirata llamado Ron."}
	h.dispatcher.prompts = stored

	h.say(t, "Soy Ana")
	h.say(t, "Cuéntame un chiste")
	assert.Equal(t, "Eres un pirata llamado Ron.", h.completer.lastRequest().System)
	assert.Equal(t, "Ana", stored.seen.UserName)
	assert.Equal(t, "Luis", stored.seen.Creator)

	stored.err = prompt_manager.ErrNoPersona
	h.say(t, "Otro chiste")
	assert.Contains(t, h.completer.lastRequest().System, "Eres Ron")

	stored.err = errors.New("template: bad")
	h.say(t, "Uno más")
	assert.Contains(t, h.completer.lastRequest().System, "Eres Ron")
}
