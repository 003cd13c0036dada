package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lewisedginton/ron/internal/capabilities"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/pkg/logger"
)

// Fixed replies.
const (
	ReplyFarewell        = "Hasta luego. Que tengas un buen día."
	ReplyWeatherNotSetUp = "No tengo configurada la API del clima. Necesitas configurar WEATHER_API_KEY."
	ReplyUnknownUserName = "No tengo esa información, ¿me la podrías proporcionar?"
	ReplyWhichCity       = "¿De qué ciudad quieres saber el clima?"
	ReplyWhatToSearch    = "¿Qué quieres que busque?"
	ReplyWhatToRemove    = "¿Qué recordatorio quieres eliminar?"
	ReplyWhichAppToClose = "¿Qué aplicación quieres que cierre?"
)

const (
	farewellPhrase       = "hasta luego"
	weatherPhrase        = "clima en"
	introductionPrefix   = "soy "
	playQueryPrefix      = "música "
	weatherReplyFormat   = "La temperatura en %s es de %s grados con %s."
	weatherFailureFormat = "No pude obtener el clima de %s. Verifica que el nombre sea correcto."
	introductionFormat   = "Hola %s, ¡mucho gusto en conocerte!"
	assistantNameFormat  = "Me llamo %s."
	creatorFormat        = "Fui creado por %s."
	userNameFormat       = "Tu nombre es %s."
)

var (
	addReminderPhrases    = []string{"recuérdame", "añade un recordatorio"}
	removeReminderPhrases = []string{"he completado", "elimina"}
	playPrefixes          = []string{"reproducir ", "reproduce "}
)

// Rule is one entry of the dispatch table. Ephemeral rules do not record
// the exchange in the conversation log.
type Rule struct {
	Name      string
	Match     func(text string) bool
	Handle    func(ctx context.Context, u *utterance) Reply
	Ephemeral bool
}

func containsAny(phrases ...string) func(string) bool {
	return func(text string) bool {
		for _, p := range phrases {
			if strings.Contains(text, p) {
				return true
			}
		}
		return false
	}
}

func hasPrefix(prefixes ...string) func(string) bool {
	return func(text string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(text, p) {
				return true
			}
		}
		return false
	}
}

// afterFirst returns the text after the first phrase found in u.
func afterFirst(u *utterance, phrases ...string) string {
	for _, p := range phrases {
		if strings.Contains(u.Text, p) {
			return u.after(p)
		}
	}
	return ""
}

func say(text string) Reply { return Reply{Text: text} }

// capability adapts a capability call to a rule handler.
func capability(fn func(context.Context) string) func(context.Context, *utterance) Reply {
	return func(ctx context.Context, _ *utterance) Reply { return say(fn(ctx)) }
}

var problemPhrases = []string{
	"problema en el sistema", "problema en la computadora", "problema en la pc",
	"problema en el equipo", "no funciona", "error", "falla", "se cuelga",
	"no responde", "muy lento", "se traba", "no abre", "no carga",
	"internet no funciona", "no puedo imprimir", "no hay sonido", "pantalla azul",
}

// buildRules returns the dispatch table in priority order. The first rule
// whose Match accepts the utterance handles it.
func (d *Dispatcher) buildRules() []Rule {
	sys := d.caps.System
	return []Rule{
		{
			Name:  "farewell",
			Match: containsAny(farewellPhrase),
			Handle: func(context.Context, *utterance) Reply {
				return Reply{Text: ReplyFarewell, Terminate: true}
			},
		},
		{Name: "problem_report", Match: containsAny(problemPhrases...), Handle: d.handleProblemReport},

		{Name: "diagnose", Match: containsAny("diagnostica el sistema", "verifica la memoria", "revisa el rendimiento"), Handle: capability(sys.Diagnose)},
		{Name: "check_services", Match: containsAny("verifica servicios", "estado de servicios", "revisa servicios"), Handle: capability(sys.CheckServices)},
		{Name: "restart_services", Match: containsAny("repara servicios", "reinicia servicios", "arregla servicios"), Handle: capability(sys.RestartServices)},
		{Name: "clean_temp", Match: containsAny("limpia archivos temporales", "optimiza el sistema", "limpia la computadora"), Handle: capability(sys.CleanTemp)},
		{Name: "flush_dns", Match: containsAny("limpia dns", "reinicia dns", "arregla internet"), Handle: capability(sys.FlushDNS)},
		{Name: "network_reset", Match: containsAny("reinicia la red", "restablece la red"), Handle: capability(sys.NetworkReset)},
		{Name: "disk_space", Match: containsAny("espacio en disco"), Handle: capability(sys.DiskSpace)},
		{Name: "system_file_check", Match: containsAny("verifica archivos del sistema", "escanea el sistema"), Handle: capability(sys.SystemFileCheck)},

		{Name: "open_app", Match: hasPrefix("abre "), Handle: d.handleOpenApp},
		{Name: "close_app", Match: hasPrefix("cierra "), Handle: d.handleCloseApp},

		{Name: "research", Match: hasPrefix("investiga "), Handle: d.handleResearch},
		{Name: "play", Match: hasPrefix(playPrefixes...), Handle: d.handlePlay},
		{Name: "weather", Match: containsAny(weatherPhrase), Handle: d.handleWeather},
		{Name: "youtube", Match: hasPrefix("youtube "), Handle: d.handleYouTube},

		{Name: "shutdown", Match: containsAny("apaga la computadora", "apaga el sistema"), Handle: capability(sys.Shutdown)},
		{Name: "restart", Match: containsAny("reinicia la computadora", "reinicia el sistema"), Handle: capability(sys.Restart)},
		{Name: "suspend", Match: containsAny("suspende la computadora", "suspende el sistema"), Handle: capability(sys.Suspend)},

		{Name: "add_reminder", Match: containsAny(addReminderPhrases...), Handle: d.handleAddReminder},
		{Name: "list_reminders", Match: containsAny("qué recordatorios tengo", "cuál es mi agenda"), Handle: d.handleListReminders},
		{Name: "remove_reminder", Match: containsAny(removeReminderPhrases...), Handle: d.handleRemoveReminder},

		{Name: "introduction", Match: hasPrefix(introductionPrefix), Handle: d.handleIntroduction, Ephemeral: true},
		{Name: "assistant_name", Match: containsAny("cómo te llamas", "cuál es tu nombre"), Handle: d.handleAssistantName, Ephemeral: true},
		{Name: "creator", Match: containsAny("quién te creó", "quién es tu creador"), Handle: d.handleCreator, Ephemeral: true},
		{Name: "user_name", Match: containsAny("cómo me llamo", "mi nombre"), Handle: d.handleUserName, Ephemeral: true},

		{Name: "fallback", Match: func(string) bool { return true }, Handle: d.handleFallback},
	}
}

func (d *Dispatcher) handleOpenApp(ctx context.Context, u *utterance) Reply {
	return say(d.caps.Apps.Open(ctx, u.after("abre ")))
}

func (d *Dispatcher) handleCloseApp(ctx context.Context, u *utterance) Reply {
	name := u.after("cierra ")
	if name == "" {
		return say(ReplyWhichAppToClose)
	}
	return say(d.caps.Apps.Close(ctx, name))
}

func (d *Dispatcher) handleResearch(ctx context.Context, u *utterance) Reply {
	query := u.after("investiga ")
	if query == "" {
		return say(ReplyWhatToSearch)
	}
	return say(d.caps.Web.Research(ctx, query))
}

func (d *Dispatcher) handlePlay(ctx context.Context, u *utterance) Reply {
	query := afterFirst(u, playPrefixes...)
	if query == "" {
		return say(ReplyWhatToSearch)
	}
	return say(d.caps.Web.Play(ctx, playQueryPrefix+query))
}

func (d *Dispatcher) handleYouTube(ctx context.Context, u *utterance) Reply {
	query := u.after("youtube ")
	if query == "" {
		return say(ReplyWhatToSearch)
	}
	return say(d.caps.Web.SearchYouTube(ctx, query))
}

func (d *Dispatcher) handleWeather(ctx context.Context, u *utterance) Reply {
	city := strings.TrimRight(u.after(weatherPhrase), "?¿.!¡ ")
	if city == "" {
		return say(ReplyWhichCity)
	}

	conditions, err := d.caps.Weather.Current(ctx, city)
	switch {
	case errors.Is(err, capabilities.ErrWeatherNotConfigured):
		return say(ReplyWeatherNotSetUp)
	case err != nil:
		u.Log.Warn("Weather lookup failed", logger.StringField("city", city), logger.ErrorField(err))
		return say(fmt.Sprintf(weatherFailureFormat, city))
	}
	temp := strconv.FormatFloat(conditions.Temp, 'f', -1, 64)
	return say(fmt.Sprintf(weatherReplyFormat, city, temp, conditions.Description))
}

func (d *Dispatcher) handleAddReminder(ctx context.Context, u *utterance) Reply {
	raw := afterFirst(u, addReminderPhrases...)
	raw = strings.TrimSpace(strings.TrimPrefix(raw, ":"))
	return say(u.Memory.AddReminder(ctx, raw))
}

func (d *Dispatcher) handleListReminders(ctx context.Context, u *utterance) Reply {
	return say(u.Memory.ListReminders(ctx))
}

func (d *Dispatcher) handleRemoveReminder(ctx context.Context, u *utterance) Reply {
	query := afterFirst(u, removeReminderPhrases...)
	query = strings.TrimSpace(strings.TrimPrefix(query, ":"))
	if query == "" {
		return say(ReplyWhatToRemove)
	}
	return say(u.Memory.RemoveReminder(ctx, query))
}

func (d *Dispatcher) handleIntroduction(ctx context.Context, u *utterance) Reply {
	name := strings.TrimRight(u.after(introductionPrefix), ".!¡ ")
	if name == "" {
		return say(ReplyUnknownUserName)
	}
	_ = u.Memory.SetFact(ctx, memory_store.FactUserName, name)
	return say(fmt.Sprintf(introductionFormat, name))
}

// factOr returns the stored fact, or fallback when it is missing or blank.
func factOr(ctx context.Context, u *utterance, key, fallback string) string {
	if value, _ := u.Memory.GetFact(ctx, key); strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func (d *Dispatcher) handleAssistantName(ctx context.Context, u *utterance) Reply {
	name := factOr(ctx, u, memory_store.FactAssistantName, u.Memory.Defaults().AssistantName)
	return say(fmt.Sprintf(assistantNameFormat, name))
}

func (d *Dispatcher) handleCreator(ctx context.Context, u *utterance) Reply {
	creator := factOr(ctx, u, memory_store.FactCreator, u.Memory.Defaults().Creator)
	return say(fmt.Sprintf(creatorFormat, creator))
}

func (d *Dispatcher) handleUserName(ctx context.Context, u *utterance) Reply {
	name, ok := u.Memory.GetFact(ctx, memory_store.FactUserName)
	if !ok || name == "" {
		return say(ReplyUnknownUserName)
	}
	return say(fmt.Sprintf(userNameFormat, name))
}
