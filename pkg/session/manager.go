package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Sender values for conversation turns.
const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

// Turn is one message in a conversation, user or agent side.
type Turn struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Proactive bool      `json:"proactive,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the append-only conversation history for one session key.
type Session struct {
	Key     string    `json:"key"`
	Turns   []Turn    `json:"turns"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// SanitizeSessionKey replaces characters illegal in filenames (e.g. ':' on Windows).
func SanitizeSessionKey(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}

// Manager keeps per-key sessions with optional JSON persistence. History is
// retained in full; callers slice a bounded suffix for generation context.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	storage  string
}

func NewManager(storage string) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		storage:  storage,
	}

	if storage != "" {
		os.MkdirAll(storage, 0755)
		m.loadSessions()
	}

	return m
}

func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.RLock()
	session, ok := m.sessions[key]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		// Double-check after acquiring write lock
		session, ok = m.sessions[key]
		if !ok {
			session = &Session{
				Key:     key,
				Turns:   []Turn{},
				Created: time.Now(),
				Updated: time.Now(),
			}
			m.sessions[key] = session
		}
		m.mu.Unlock()
	}

	return session
}

// AddTurn appends a turn and persists the session.
func (m *Manager) AddTurn(key, sender, message string) {
	m.addTurn(key, Turn{Sender: sender, Message: message, Timestamp: time.Now()})
}

// AddProactiveTurn appends an agent-initiated turn.
func (m *Manager) AddProactiveTurn(key, message string) {
	m.addTurn(key, Turn{Sender: SenderAgent, Message: message, Proactive: true, Timestamp: time.Now()})
}

func (m *Manager) addTurn(key string, turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[key]
	if !ok {
		session = &Session{Key: key, Created: time.Now()}
		m.sessions[key] = session
	}

	session.Turns = append(session.Turns, turn)
	session.Updated = time.Now()
	m.persistSession(session)
}

// History returns a copy of the full turn sequence.
func (m *Manager) History(key string) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[key]
	if !ok {
		return []Turn{}
	}

	history := make([]Turn, len(session.Turns))
	copy(history, session.Turns)
	return history
}

// Recent returns the last n turns: the generation context window.
func (m *Manager) Recent(key string, n int) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[key]
	if !ok {
		return nil
	}

	turns := session.Turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear wipes a session's history back to empty.
func (m *Manager) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[key]
	if !ok {
		return
	}
	session.Turns = nil
	session.Updated = time.Now()
	m.persistSession(session)
}

// persistSession writes a session to disk. Caller must hold m.mu.
func (m *Manager) persistSession(session *Session) error {
	if m.storage == "" {
		return nil
	}

	sessionPath := filepath.Join(m.storage, SanitizeSessionKey(session.Key)+".json")

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(sessionPath, data, 0644)
}

func (m *Manager) loadSessions() error {
	files, err := os.ReadDir(m.storage)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.storage, file.Name()))
		if err != nil {
			continue
		}

		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}

		m.sessions[session.Key] = &session
	}

	return nil
}
