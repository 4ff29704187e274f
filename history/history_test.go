package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore("", "")
	t.Cleanup(store.Close)
	return store
}

func TestAppendAndMessages(t *testing.T) {
	store := newTestStore(t)
	store.StartSession("s1", "PHONE")

	store.Append(Message{
		ID: "m1", SessionID: "s1", Timestamp: time.Now(),
		Speaker: SpeakerGemini, Type: TypeText, Content: "Hello there.",
	})
	store.Append(Message{
		ID: "m2", SessionID: "s1", Timestamp: time.Now(),
		Speaker: SpeakerGemini, Type: TypeToolCall, Content: "execute: add eggs to list",
	})

	msgs := store.Messages("s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, TypeText, msgs[0].Type)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, TypeToolCall, msgs[1].Type)

	assert.Empty(t, store.Messages("unknown"))
}

func TestMessagesReturnsCopy(t *testing.T) {
	store := newTestStore(t)
	store.StartSession("s1", "PHONE")
	store.Append(Message{ID: "m1", SessionID: "s1", Content: "original"})

	msgs := store.Messages("s1")
	msgs[0].Content = "mutated"

	assert.Equal(t, "original", store.Messages("s1")[0].Content)
}

func TestSessionsOrderedByStart(t *testing.T) {
	store := newTestStore(t)
	store.StartSession("first", "PHONE")
	time.Sleep(2 * time.Millisecond)
	store.StartSession("second", "GLASSES")

	assert.Equal(t, []string{"first", "second"}, store.Sessions())
}

func TestExport(t *testing.T) {
	store := newTestStore(t)
	store.StartSession("s1", "GLASSES")
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	store.Append(Message{
		ID: "m1", SessionID: "s1", Timestamp: ts,
		Speaker: SpeakerGemini, Type: TypeText, Content: "Looking at it now.",
	})
	store.Append(Message{
		ID: "m2", SessionID: "s1", Timestamp: ts.Add(time.Second),
		Speaker: SpeakerGemini, Type: TypeToolCall, Content: "execute: order more coffee",
	})
	store.EndSession("s1")

	transcript, err := store.Export("s1")
	require.NoError(t, err)
	assert.Contains(t, transcript, "Session s1 (GLASSES)")
	assert.Contains(t, transcript, "[09:26:53] GEMINI: Looking at it now.")
	assert.Contains(t, transcript, "[09:26:54] GEMINI [tool]: execute: order more coffee")
}

func TestExportUnknownSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Export("nope")
	assert.Error(t, err)
}

func TestEndSessionUnknownID(t *testing.T) {
	store := newTestStore(t)
	store.EndSession("never-started")
}

func TestRedisUnreachableDegradesToMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping connection-timeout test in short mode")
	}
	store := NewStore("127.0.0.1:1", "")
	defer store.Close()

	store.StartSession("s1", "PHONE")
	store.Append(Message{ID: "m1", SessionID: "s1", Content: "still recorded"})
	assert.Len(t, store.Messages("s1"), 1)
}
