package memory_service //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lewisedginton/ron/internal/memory_store"
)

// Replies returned by the reminder operations.
const (
	ReplyReminderPrompt    = "¿Qué quieres que te recuerde?"
	ReplyNoReminders       = "No tienes recordatorios pendientes."
	ReplyReminderNotFound  = "No encontré un recordatorio con ese título."
	ReplyReminderAmbiguous = "Hay múltiples recordatorios similares. Dime el título exacto."
)

// AddReminder parses "title: description" and upserts the reminder.
func (s *Service) AddReminder(ctx context.Context, raw string) string {
	title, description := memory_store.SplitReminder(raw)
	if title == "" {
		return ReplyReminderPrompt
	}

	lock := s.locks.get(s.device)
	lock.Lock()
	defer lock.Unlock()

	_ = s.merge(ctx, "add reminder", memory_store.Partial{
		Reminders: map[string]memory_store.Reminder{
			title: {Description: description, Created: s.timestamp()},
		},
	})
	return fmt.Sprintf("Recordatorio agregado: %s - %s.", title, description)
}

// ListReminders renders every reminder, oldest first.
func (s *Service) ListReminders(ctx context.Context) string {
	snap, _ := s.fetch(ctx)
	entries := snap.Document.SortedReminders()
	if len(entries) == 0 {
		return ReplyNoReminders
	}

	var b strings.Builder
	b.WriteString("Tus recordatorios son:")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n- %s: %s (creado: %s)", e.Title, e.Description, e.Created)
	}
	return b.String()
}

// RemoveReminder deletes the reminder titled query, or else the single
// reminder whose title contains query. Ambiguous queries change nothing.
func (s *Service) RemoveReminder(ctx context.Context, query string) string {
	query = memory_store.NormalizeTitle(query)
	if query == "" {
		return ReplyReminderNotFound
	}

	lock := s.locks.get(s.device)
	lock.Lock()
	defer lock.Unlock()

	snap, _ := s.fetch(ctx)
	var matches []string
	if _, exact := snap.Document.Reminders[query]; exact {
		matches = []string{query}
	} else {
		for title := range snap.Document.Reminders {
			if strings.Contains(title, query) {
				matches = append(matches, title)
			}
		}
		sort.Strings(matches)
	}

	switch len(matches) {
	case 0:
		return ReplyReminderNotFound
	case 1:
		_ = s.merge(ctx, "remove reminder", memory_store.Partial{RemovedReminders: matches})
		return fmt.Sprintf("Recordatorio '%s' eliminado.", matches[0])
	default:
		return ReplyReminderAmbiguous
	}
}
