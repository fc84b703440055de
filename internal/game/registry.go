package game

import (
	crand "crypto/rand"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/blankparty/hackbox/internal/models"
)

// sessionIDBytes gives 6 uppercase hex characters, e.g. "ABC123". Plenty of
// space for party-scale concurrency; collisions are regenerated.
const sessionIDBytes = 3

// Registry is the authoritative in-memory table of active sessions. It is
// the single source of truth: all mutation goes through the engine, which
// looks sessions up here, never through client-held copies.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byPlayer map[string]string // player ID -> session ID

	newID func() string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator replaces the session ID generator. Tests use this to force
// deterministic codes and collisions.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) { r.newID = gen }
}

// NewRegistry creates an empty session registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*models.Session),
		byPlayer: make(map[string]string),
		newID:    generateSessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates a session with a fresh short code and registers it.
func (r *Registry) Create(name string) *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for _, exists := r.sessions[id]; exists; _, exists = r.sessions[id] {
		log.Warn().Str("session_id", id).Msg("session code collision, regenerating")
		id = r.newID()
	}

	session := models.NewSession(id, name)
	r.sessions[id] = session
	return session
}

// Get retrieves a session by ID.
func (r *Registry) Get(id string) (*models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Remove deletes a session and any player bindings pointing at it. The
// caller is responsible for stopping the session's timer first.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	for playerID, sessionID := range r.byPlayer {
		if sessionID == id {
			delete(r.byPlayer, playerID)
		}
	}
}

// BindPlayer records which session holds a player so disconnects can find it.
func (r *Registry) BindPlayer(playerID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPlayer[playerID] = sessionID
}

// UnbindPlayer drops a player binding.
func (r *Registry) UnbindPlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPlayer, playerID)
}

// SessionForPlayer returns the session currently holding the player.
func (r *Registry) SessionForPlayer(playerID string) (*models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	session, ok := r.sessions[sessionID]
	return session, ok
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// generateSessionID returns a short human-typeable random code.
func generateSessionID() string {
	buf := make([]byte, sessionIDBytes)
	if _, err := crand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// there is no reasonable fallback for an ID source.
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}
