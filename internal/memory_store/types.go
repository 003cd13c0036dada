// Package memory_store holds the per-device memory document and the client
// that reads and writes it through a versioned document provider.
package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

const (
	// SchemaVersion is the document shape written by this package.
	SchemaVersion = 2

	// MaxLogEntries bounds the conversation log after every append.
	MaxLogEntries = 100

	// TimestampLayout is the on-disk format for turn and reminder times.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Well-known fact keys.
const (
	FactAssistantName = "ron_nombre"
	FactCreator       = "creador"
	FactUserName      = "nombre"
)

// Timestamp is a time serialized as TimestampLayout in local time.
// RFC 3339 values are accepted on read; anything unparseable reads as zero.
type Timestamp struct {
	time.Time
}

// Now returns the current time truncated to whole seconds.
func Now() Timestamp {
	return Timestamp{time.Now().Truncate(time.Second)}
}

// ParseTimestamp parses either TimestampLayout or RFC 3339.
func ParseTimestamp(s string) (Timestamp, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, false
	}
	if t, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return Timestamp{t}, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Timestamp{t.Local()}, true
	}
	return Timestamp{}, false
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return "fecha desconocida"
	}
	return t.Local().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Local().Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// numbers and nulls from hand-edited documents read as unknown
		*t = Timestamp{}
		return nil
	}
	*t, _ = ParseTimestamp(s)
	return nil
}

// Reminder is a titled note. The title is the key in Document.Reminders.
type Reminder struct {
	Description string    `json:"description"`
	Created     Timestamp `json:"created"`
}

// Turn is one exchange in the conversation log.
type Turn struct {
	User      string    `json:"user"`
	Reply     string    `json:"assistant_reply"`
	Timestamp Timestamp `json:"timestamp"`
}

// Document is the whole memory of one device.
type Document struct {
	SchemaVersion   int                 `json:"schema_version"`
	Facts           map[string]string   `json:"facts"`
	Reminders       map[string]Reminder `json:"reminders"`
	ConversationLog []Turn              `json:"conversation_log"`
}

// Defaults are the facts seeded into a document that has none.
type Defaults struct {
	AssistantName string
	Creator       string
}

func (d Defaults) withFallbacks() Defaults {
	if d.AssistantName == "" {
		d.AssistantName = "Ron"
	}
	if d.Creator == "" {
		d.Creator = "Luis"
	}
	return d
}

// NewDocument returns the document a device starts with.
func NewDocument(defaults Defaults) *Document {
	doc := &Document{}
	doc.normalize(defaults)
	return doc
}

// normalize fills nil collections and missing default facts, and bounds the log.
func (d *Document) normalize(defaults Defaults) {
	defaults = defaults.withFallbacks()
	d.SchemaVersion = SchemaVersion
	if d.Facts == nil {
		d.Facts = map[string]string{}
	}
	if d.Reminders == nil {
		d.Reminders = map[string]Reminder{}
	}
	if d.ConversationLog == nil {
		d.ConversationLog = []Turn{}
	}
	if _, ok := d.Facts[FactAssistantName]; !ok {
		d.Facts[FactAssistantName] = defaults.AssistantName
	}
	if _, ok := d.Facts[FactCreator]; !ok {
		d.Facts[FactCreator] = defaults.Creator
	}
	d.truncate(MaxLogEntries)
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := &Document{
		SchemaVersion:   d.SchemaVersion,
		Facts:           make(map[string]string, len(d.Facts)),
		Reminders:       make(map[string]Reminder, len(d.Reminders)),
		ConversationLog: make([]Turn, len(d.ConversationLog)),
	}
	for k, v := range d.Facts {
		out.Facts[k] = v
	}
	for k, v := range d.Reminders {
		out.Reminders[k] = v
	}
	copy(out.ConversationLog, d.ConversationLog)
	return out
}

// AppendTurn adds a turn and keeps only the newest limit entries.
func (d *Document) AppendTurn(turn Turn, limit int) {
	d.ConversationLog = append(d.ConversationLog, turn)
	d.truncate(limit)
}

func (d *Document) truncate(limit int) {
	if limit <= 0 || limit > MaxLogEntries {
		limit = MaxLogEntries
	}
	if n := len(d.ConversationLog); n > limit {
		kept := make([]Turn, limit)
		copy(kept, d.ConversationLog[n-limit:])
		d.ConversationLog = kept
	}
}

// RecentTurns returns up to n of the newest turns, oldest first.
func (d *Document) RecentTurns(n int) []Turn {
	log := d.ConversationLog
	if n >= 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	out := make([]Turn, len(log))
	copy(out, log)
	return out
}

// Dedupe drops repeated turns with the same user text, reply and timestamp,
// keeping the first occurrence.
func (d *Document) Dedupe() (before, after int) {
	type turnKey struct {
		user, reply, ts string
	}
	before = len(d.ConversationLog)
	seen := make(map[turnKey]struct{}, before)
	kept := make([]Turn, 0, before)
	for _, t := range d.ConversationLog {
		k := turnKey{t.User, t.Reply, t.Timestamp.String()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, t)
	}
	d.ConversationLog = kept
	return before, len(kept)
}

// ReminderEntry pairs a reminder with its title.
type ReminderEntry struct {
	Title string
	Reminder
}

// SortedReminders orders reminders by creation time, then title.
// Reminders with unknown creation time sort first.
func (d *Document) SortedReminders() []ReminderEntry {
	out := make([]ReminderEntry, 0, len(d.Reminders))
	for title, r := range d.Reminders {
		out = append(out, ReminderEntry{Title: title, Reminder: r})
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].Created.Time, out[j].Created.Time
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// NormalizeTitle is the key form of a reminder title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Partial is a merge-on-write update. Facts and Reminders replace by key,
// RemovedReminders are deleted. The conversation log is never part of a merge.
type Partial struct {
	Facts            map[string]string
	Reminders        map[string]Reminder
	RemovedReminders []string
}

// Empty reports whether applying p would change nothing.
func (p Partial) Empty() bool {
	return len(p.Facts) == 0 && len(p.Reminders) == 0 && len(p.RemovedReminders) == 0
}

// ApplyMerge applies p to the document. Writes to the creator fact are
// dropped once the document has one.
func (d *Document) ApplyMerge(p Partial) {
	if d.Facts == nil {
		d.Facts = map[string]string{}
	}
	if d.Reminders == nil {
		d.Reminders = map[string]Reminder{}
	}
	for k, v := range p.Facts {
		if _, exists := d.Facts[FactCreator]; exists && k == FactCreator {
			continue
		}
		d.Facts[k] = v
	}
	for title, r := range p.Reminders {
		d.Reminders[NormalizeTitle(title)] = r
	}
	for _, title := range p.RemovedReminders {
		delete(d.Reminders, NormalizeTitle(title))
	}
}

// Encode serializes the document as indented JSON without HTML escaping.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
