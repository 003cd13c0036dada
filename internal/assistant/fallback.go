package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/internal/models"
	"github.com/lewisedginton/ron/internal/prompt_manager"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/lewisedginton/ron/pkg/metrics"
)

// ReplyTechnicalProblem is returned whenever a completion cannot be obtained.
const ReplyTechnicalProblem = "Disculpa, tuve un problema técnico. ¿Puedes repetir tu pregunta?"

const personaTemplate = `Eres %s, un asistente virtual de voz creado por %s. Respondes siempre en español, de forma breve, amable y natural.
Tus respuestas se leen en voz alta: usa solo texto plano, sin markdown, asteriscos, guiones bajos, listas ni emojis.
Además de conversar puedes diagnosticar y reparar la computadora, revisar y reiniciar servicios, limpiar archivos temporales y la caché DNS, abrir y cerrar aplicaciones, buscar en Google y YouTube, consultar el clima, gestionar recordatorios y apagar, reiniciar o suspender el equipo.
Si el usuario quiere terminar la conversación, recuérdale que puede decir "hasta luego".`

var markupStripper = strings.NewReplacer("*", "", "_", "", "`", "", "~", "")

// Persona renders the system instruction for the given memory document.
func Persona(doc *memory_store.Document) string {
	prompt := fmt.Sprintf(personaTemplate,
		doc.Facts[memory_store.FactAssistantName],
		doc.Facts[memory_store.FactCreator])
	if name := doc.Facts[memory_store.FactUserName]; name != "" {
		prompt += fmt.Sprintf("\nEl usuario se llama %s.", name)
	}
	return prompt
}

// persona prefers the stored persona and falls back to the built-in one.
func (d *Dispatcher) persona(ctx context.Context, log logger.Logger, doc *memory_store.Document) string {
	if d.prompts == nil {
		return Persona(doc)
	}
	prompt, err := d.prompts.Persona(ctx, prompt_manager.PersonaData{
		AssistantName: doc.Facts[memory_store.FactAssistantName],
		Creator:       doc.Facts[memory_store.FactCreator],
		UserName:      doc.Facts[memory_store.FactUserName],
	})
	switch {
	case err == nil:
		return prompt
	case !errors.Is(err, prompt_manager.ErrNoPersona):
		log.Warn("Stored persona unusable, using built-in", logger.ErrorField(err))
	}
	return Persona(doc)
}

// Sanitize removes markup characters a speech engine would read aloud.
func Sanitize(text string) string {
	return strings.TrimSpace(markupStripper.Replace(text))
}

// handleFallback answers open-ended utterances with the completion model,
// using the recent conversation as context.
func (d *Dispatcher) handleFallback(ctx context.Context, u *utterance) Reply {
	if d.completer == nil {
		u.Log.Warn("No completion model configured")
		return say(ReplyTechnicalProblem)
	}

	doc := u.Memory.Current(ctx)
	history := doc.RecentTurns(d.cfg.HistoryTurns)
	messages := make([]models.Message, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages,
			models.Message{Role: models.RoleUser, Content: turn.User},
			models.Message{Role: models.RoleAssistant, Content: turn.Reply})
	}
	messages = append(messages, models.Message{Role: models.RoleUser, Content: u.Raw})

	ctx, cancel := context.WithTimeout(ctx, d.cfg.CompletionTimeout)
	defer cancel()

	temperature := d.cfg.Temperature
	start := time.Now()
	text, err := d.completer.Complete(ctx, models.Request{
		System:      d.persona(ctx, u.Log, doc),
		Messages:    messages,
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: &temperature,
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome := metrics.CompletionError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = metrics.CompletionTimeout
		}
		d.metrics.ObserveCompletion(outcome, elapsed)
		u.Log.Error("Completion failed",
			logger.StringField("model", d.completer.Name()),
			logger.StringField("outcome", outcome),
			logger.DurationField("duration", elapsed),
			logger.ErrorField(err))
		return say(ReplyTechnicalProblem)
	}

	d.metrics.ObserveCompletion(metrics.CompletionOK, elapsed)
	reply := Sanitize(text)
	if reply == "" {
		return say(ReplyTechnicalProblem)
	}
	return say(reply)
}
