package history

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Speaker identifies who produced a message.
type Speaker string

const (
	SpeakerUser   Speaker = "USER"
	SpeakerGemini Speaker = "GEMINI"
)

// MessageType distinguishes plain text from tool-call records.
type MessageType string

const (
	TypeText     MessageType = "TEXT"
	TypeToolCall MessageType = "TOOL_CALL"
)

// Message is one append-only conversation record.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Timestamp time.Time   `json:"timestamp"`
	Speaker   Speaker     `json:"speaker"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
}

// Sink accepts fire-and-forget message appends from the session engine.
type Sink interface {
	Append(msg Message)
}

type sessionRecord struct {
	id      string
	mode    string
	started time.Time
	ended   time.Time
}

// Store keeps conversation history in memory, mirrored to Redis when one is
// reachable. Redis being down degrades to memory-only, never to an error.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	messages map[string][]Message
	redis    *redis.Client
}

// NewStore creates a history store. addr may be empty to skip Redis entirely.
func NewStore(addr, password string) *Store {
	var rdb *redis.Client
	if addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("⚠️ Redis unavailable, history kept in memory only: %v", err)
			rdb = nil
		}
	}

	return &Store{
		sessions: make(map[string]*sessionRecord),
		messages: make(map[string][]Message),
		redis:    rdb,
	}
}

// StartSession records a new session.
func (s *Store) StartSession(sessionID, mode string) {
	s.mu.Lock()
	s.sessions[sessionID] = &sessionRecord{
		id:      sessionID,
		mode:    mode,
		started: time.Now(),
	}
	s.mu.Unlock()

	if s.redis != nil {
		ctx := context.Background()
		s.redis.HSet(ctx, "history:session:"+sessionID, map[string]interface{}{
			"mode":       mode,
			"started_at": time.Now().Format(time.RFC3339),
		})
		s.redis.SAdd(ctx, "history:sessions", sessionID)
	}
}

// EndSession marks a session finished. Unknown ids are ignored.
func (s *Store) EndSession(sessionID string) {
	s.mu.Lock()
	if rec, ok := s.sessions[sessionID]; ok {
		rec.ended = time.Now()
	}
	s.mu.Unlock()

	if s.redis != nil {
		s.redis.HSet(context.Background(), "history:session:"+sessionID,
			"ended_at", time.Now().Format(time.RFC3339))
	}
}

// Append records one message. Fire-and-forget: persistence errors are logged,
// never surfaced to the caller.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	s.mu.Unlock()

	if s.redis != nil {
		data, err := sonic.Marshal(msg)
		if err != nil {
			log.Printf("⚠️ Failed to encode history message: %v", err)
			return
		}
		if err := s.redis.RPush(context.Background(), "history:messages:"+msg.SessionID, data).Err(); err != nil {
			log.Printf("⚠️ Failed to persist history message: %v", err)
		}
	}
}

// Messages returns a copy of a session's messages in append order.
func (s *Store) Messages(sessionID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Sessions returns all known session ids, oldest first.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.sessions[ids[i]].started.Before(s.sessions[ids[j]].started)
	})
	return ids
}

// Export formats a session transcript as plain text.
func (s *Store) Export(sessionID string) (string, error) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	msgs := s.messages[sessionID]
	s.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unknown session: %s", sessionID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (%s), started %s\n\n", rec.id, rec.mode, rec.started.Format(time.RFC3339))
	for _, msg := range msgs {
		label := string(msg.Speaker)
		if msg.Type == TypeToolCall {
			label += " [tool]"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.Timestamp.Format("15:04:05"), label, msg.Content)
	}
	return b.String(), nil
}

// Close releases the Redis connection if one was established.
func (s *Store) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
