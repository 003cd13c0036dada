package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) Timestamp {
	t, ok := ParseTimestamp(s)
	if !ok {
		panic("bad timestamp " + s)
	}
	return t
}

func TestNewDocumentDefaults(t *testing.T) {
	doc := NewDocument(Defaults{})
	assert.Equal(t, SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, "Ron", doc.Facts[FactAssistantName])
	assert.Equal(t, "Luis", doc.Facts[FactCreator])
	assert.Empty(t, doc.Reminders)
	assert.Empty(t, doc.ConversationLog)

	custom := NewDocument(Defaults{AssistantName: "Jarvis", Creator: "Tony"})
	assert.Equal(t, "Jarvis", custom.Facts[FactAssistantName])
	assert.Equal(t, "Tony", custom.Facts[FactCreator])
}

func TestTimestampJSON(t *testing.T) {
	var r Reminder
	require.NoError(t, json.Unmarshal([]byte(`{"description":"x","created":"2026-10-19 10:00:00"}`), &r))
	assert.Equal(t, "2026-10-19 10:00:00", r.Created.String())

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"description":"x","created":"2026-10-19 10:00:00"}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"created":"2026-10-19T10:00:00Z"}`), &r))
	assert.True(t, r.Created.Equal(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, json.Unmarshal([]byte(`{"created":"yesterday"}`), &r))
	assert.True(t, r.Created.IsZero())
	assert.Equal(t, "fecha desconocida", r.Created.String())

	require.NoError(t, json.Unmarshal([]byte(`{"created":12}`), &r))
	assert.True(t, r.Created.IsZero())
}

func TestAppendTurnTruncatesPreservingOrder(t *testing.T) {
	doc := NewDocument(Defaults{})
	for i := 0; i < 130; i++ {
		doc.AppendTurn(Turn{User: fmt.Sprintf("u%d", i), Reply: fmt.Sprintf("r%d", i)}, MaxLogEntries)
		assert.LessOrEqual(t, len(doc.ConversationLog), MaxLogEntries)
	}
	require.Len(t, doc.ConversationLog, MaxLogEntries)
	assert.Equal(t, "u30", doc.ConversationLog[0].User)
	assert.Equal(t, "u129", doc.ConversationLog[99].User)
	for i := 1; i < len(doc.ConversationLog); i++ {
		assert.Equal(t, fmt.Sprintf("u%d", 30+i), doc.ConversationLog[i].User)
	}
}

func TestRecentTurns(t *testing.T) {
	doc := NewDocument(Defaults{})
	for i := 0; i < 5; i++ {
		doc.AppendTurn(Turn{User: fmt.Sprint(i)}, MaxLogEntries)
	}
	recent := doc.RecentTurns(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].User)
	assert.Equal(t, "4", recent[1].User)

	assert.Len(t, doc.RecentTurns(20), 5)

	recent[0].User = "mutated"
	assert.Equal(t, "3", doc.ConversationLog[3].User)
}

func TestDedupe(t *testing.T) {
	doc := NewDocument(Defaults{})
	a := Turn{User: "hola", Reply: "hola", Timestamp: ts("2026-10-19 10:00:00")}
	b := Turn{User: "hola", Reply: "hola", Timestamp: ts("2026-10-19 10:00:01")}
	doc.ConversationLog = []Turn{a, a, b, a, b}

	before, after := doc.Dedupe()
	assert.Equal(t, 5, before)
	assert.Equal(t, 2, after)
	assert.Equal(t, []Turn{a, b}, doc.ConversationLog)
}

func TestApplyMerge(t *testing.T) {
	doc := NewDocument(Defaults{})
	doc.AppendTurn(Turn{User: "x", Reply: "y"}, MaxLogEntries)
	doc.Reminders["pagar"] = Reminder{Description: "renta"}
	doc.Reminders["llamar"] = Reminder{Description: "mamá"}

	doc.ApplyMerge(Partial{
		Facts:            map[string]string{"nombre": "Ana", FactCreator: "Mallory"},
		Reminders:        map[string]Reminder{" Comprar ": {Description: "pan"}},
		RemovedReminders: []string{"llamar"},
	})

	assert.Equal(t, "Ana", doc.Facts["nombre"])
	assert.Equal(t, "Luis", doc.Facts[FactCreator], "creator is never overwritten")
	assert.Contains(t, doc.Reminders, "comprar")
	assert.Contains(t, doc.Reminders, "pagar")
	assert.NotContains(t, doc.Reminders, "llamar")
	assert.Len(t, doc.ConversationLog, 1)
}

func TestApplyMergeCommutesOnIndependentKeys(t *testing.T) {
	base := NewDocument(Defaults{})
	base.AppendTurn(Turn{User: "u", Reply: "r"}, MaxLogEntries)

	p1 := Partial{Facts: map[string]string{"nombre": "Ana"}}
	p2 := Partial{
		Facts:     map[string]string{"color": "azul"},
		Reminders: map[string]Reminder{"pagar": {Description: "renta"}},
	}

	ab := base.Clone()
	ab.ApplyMerge(p1)
	ab.ApplyMerge(p2)

	ba := base.Clone()
	ba.ApplyMerge(p2)
	ba.ApplyMerge(p1)

	assert.Equal(t, ab, ba)
	assert.Equal(t, base.ConversationLog, ab.ConversationLog)
}

func TestSortedReminders(t *testing.T) {
	doc := NewDocument(Defaults{})
	doc.Reminders["b"] = Reminder{Created: ts("2026-10-19 10:00:00")}
	doc.Reminders["a"] = Reminder{Created: ts("2026-10-19 10:00:00")}
	doc.Reminders["c"] = Reminder{Created: ts("2026-10-18 09:00:00")}
	doc.Reminders["legacy"] = Reminder{}

	var titles []string
	for _, r := range doc.SortedReminders() {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"legacy", "c", "a", "b"}, titles)
}

func TestEncodeKeepsNonASCII(t *testing.T) {
	doc := NewDocument(Defaults{})
	doc.Facts["nombre"] = "José <admin>"
	data, err := Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "José <admin>")
	assert.Contains(t, string(data), `"schema_version": 2`)
}
