package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"encoding/json"
	"fmt"
	"strings"
)

const noDescription = "(Sin descripción)"

// legacyDocument is the shape written before schema versioning.
type legacyDocument struct {
	Datos          map[string]any  `json:"datos"`
	Conversaciones []legacyTurn    `json:"conversaciones"`
	Recordatorios  json.RawMessage `json:"recordatorios"`
}

type legacyTurn struct {
	User      string    `json:"user"`
	Ron       string    `json:"ron"`
	Timestamp Timestamp `json:"timestamp"`
}

type legacyReminderRecord struct {
	Title       string    `json:"title"`
	Titulo      string    `json:"titulo"`
	Description string    `json:"description"`
	Descripcion string    `json:"descripcion"`
	Created     Timestamp `json:"created"`
}

// Decode parses a stored document in either shape and returns it normalized
// to the current schema. Empty input decodes as a fresh document.
func Decode(data []byte, defaults Defaults) (*Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return NewDocument(defaults), nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode memory document: %w", err)
	}

	var doc *Document
	if _, versioned := probe["schema_version"]; versioned {
		doc = &Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("failed to decode memory document: %w", err)
		}
		// titles written by hand may not be normalized
		reminders := make(map[string]Reminder, len(doc.Reminders))
		for title, r := range doc.Reminders {
			reminders[NormalizeTitle(title)] = r
		}
		doc.Reminders = reminders
	} else {
		var legacy legacyDocument
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("failed to decode legacy memory document: %w", err)
		}
		migrated, err := migrateLegacy(legacy)
		if err != nil {
			return nil, err
		}
		doc = migrated
	}

	doc.normalize(defaults)
	return doc, nil
}

func migrateLegacy(legacy legacyDocument) (*Document, error) {
	doc := &Document{
		Facts:           make(map[string]string, len(legacy.Datos)),
		ConversationLog: make([]Turn, 0, len(legacy.Conversaciones)),
	}
	for k, v := range legacy.Datos {
		switch val := v.(type) {
		case string:
			doc.Facts[k] = val
		case nil:
		default:
			doc.Facts[k] = fmt.Sprint(val)
		}
	}
	for _, t := range legacy.Conversaciones {
		doc.ConversationLog = append(doc.ConversationLog, Turn{User: t.User, Reply: t.Ron, Timestamp: t.Timestamp})
	}

	reminders, err := migrateReminders(legacy.Recordatorios)
	if err != nil {
		return nil, err
	}
	doc.Reminders = reminders
	return doc, nil
}

// migrateReminders accepts a mapping of records, a mapping of plain strings,
// or a list of strings or records.
func migrateReminders(raw json.RawMessage) (map[string]Reminder, error) {
	out := map[string]Reminder{}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return out, nil
	}

	switch trimmed[0] {
	case '{':
		var byTitle map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byTitle); err != nil {
			return nil, fmt.Errorf("failed to decode legacy reminders: %w", err)
		}
		for title, value := range byTitle {
			r, err := legacyReminderValue(value)
			if err != nil {
				return nil, err
			}
			out[NormalizeTitle(title)] = r
		}

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode legacy reminders: %w", err)
		}
		for _, item := range items {
			var text string
			if err := json.Unmarshal(item, &text); err == nil {
				title, desc := SplitReminder(text)
				if title != "" {
					out[title] = Reminder{Description: desc}
				}
				continue
			}
			var rec legacyReminderRecord
			if err := json.Unmarshal(item, &rec); err != nil {
				return nil, fmt.Errorf("failed to decode legacy reminder: %w", err)
			}
			title := NormalizeTitle(firstNonEmpty(rec.Title, rec.Titulo))
			if title == "" {
				continue
			}
			out[title] = Reminder{
				Description: firstNonEmpty(rec.Description, rec.Descripcion, noDescription),
				Created:     rec.Created,
			}
		}

	default:
		return nil, fmt.Errorf("unsupported legacy reminders shape")
	}
	return out, nil
}

func legacyReminderValue(value json.RawMessage) (Reminder, error) {
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return Reminder{Description: firstNonEmpty(strings.TrimSpace(text), noDescription)}, nil
	}
	var rec legacyReminderRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return Reminder{}, fmt.Errorf("failed to decode legacy reminder: %w", err)
	}
	return Reminder{
		Description: firstNonEmpty(rec.Description, rec.Descripcion, noDescription),
		Created:     rec.Created,
	}, nil
}

// SplitReminder splits "title: description" on the first colon. The title is
// normalized and a missing description reads as "(Sin descripción)".
func SplitReminder(raw string) (title, description string) {
	head, tail, found := strings.Cut(raw, ":")
	title = NormalizeTitle(head)
	description = strings.TrimSpace(tail)
	if !found || description == "" {
		description = noDescription
	}
	return title, description
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
