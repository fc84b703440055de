// Package recorder persists gameplay facts without ever blocking the game
// engine. Writes are queued on a buffered channel and applied by a
// background worker; a full queue or a failed write is logged and dropped.
// In-memory session state stays authoritative either way.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/blankparty/hackbox/internal/models"
)

type recordKind string

const (
	kindSessionCreated  recordKind = "SessionCreated"
	kindPlayerJoined    recordKind = "PlayerJoined"
	kindAnswerSubmitted recordKind = "AnswerSubmitted"
	kindVoteAccepted    recordKind = "VoteAccepted"
	kindScoreUpdated    recordKind = "ScoreUpdated"
)

// record is one queued write. Fields are copied at enqueue time so the
// worker never reads live engine state.
type record struct {
	kind       recordKind
	sessionID  string
	playerID   string
	nickname   string
	questionID int64
	answer     string
	score      int
	name       string
}

// Config tunes the recorder queue.
type Config struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultConfig returns the stock queue settings.
func DefaultConfig() Config {
	return Config{
		QueueSize:    1024,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder implements game.Recorder on top of Postgres.
type Recorder struct {
	db     *sql.DB
	config Config
	queue  chan record

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a recorder. Call Start before handing it to the engine.
func New(db *sql.DB, cfg Config) *Recorder {
	return &Recorder{
		db:       db,
		config:   cfg,
		queue:    make(chan record, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}
}

// Start launches the background writer.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("recorder already running")
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	log.Info().Int("queue_size", r.config.QueueSize).Msg("recorder started")
	return nil
}

// Stop halts the worker. Records still queued are dropped.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("recorder not running")
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()

	log.Info().Msg("recorder stopped")
	return nil
}

func (r *Recorder) SessionCreated(ctx context.Context, sessionID, name string) {
	r.enqueue(record{kind: kindSessionCreated, sessionID: sessionID, name: name})
}

func (r *Recorder) PlayerJoined(ctx context.Context, player *models.Player) {
	r.enqueue(record{
		kind:      kindPlayerJoined,
		sessionID: player.SessionID,
		playerID:  player.ID,
		nickname:  player.Nickname,
	})
}

func (r *Recorder) AnswerSubmitted(ctx context.Context, sessionID string, questionID int64, playerID, text string) {
	r.enqueue(record{
		kind:       kindAnswerSubmitted,
		sessionID:  sessionID,
		playerID:   playerID,
		questionID: questionID,
		answer:     text,
	})
}

func (r *Recorder) VoteAccepted(ctx context.Context, sessionID string, questionID int64, ownerID string) {
	r.enqueue(record{
		kind:       kindVoteAccepted,
		sessionID:  sessionID,
		playerID:   ownerID,
		questionID: questionID,
	})
}

func (r *Recorder) ScoreUpdated(ctx context.Context, sessionID, playerID string, score int) {
	r.enqueue(record{
		kind:      kindScoreUpdated,
		sessionID: sessionID,
		playerID:  playerID,
		score:     score,
	})
}

// enqueue never blocks the caller.
func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		log.Warn().
			Str("kind", string(rec.kind)).
			Str("session_id", rec.sessionID).
			Msg("recorder queue full, dropping record")
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case rec := <-r.queue:
			r.apply(rec)
		}
	}
}

func (r *Recorder) apply(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.write(ctx, rec); err != nil {
		log.Error().
			Err(err).
			Str("kind", string(rec.kind)).
			Str("session_id", rec.sessionID).
			Msg("recorder write failed")
		return
	}

	if err := r.logEvent(ctx, rec); err != nil {
		log.Error().
			Err(err).
			Str("kind", string(rec.kind)).
			Str("session_id", rec.sessionID).
			Msg("recorder event log failed")
	}
}

func (r *Recorder) write(ctx context.Context, rec record) error {
	var err error
	switch rec.kind {
	case kindSessionCreated:
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO game_sessions (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			rec.sessionID, rec.name)
	case kindPlayerJoined:
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO game_players (id, session_id, nickname) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			rec.playerID, rec.sessionID, rec.nickname)
	case kindAnswerSubmitted:
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO game_answers (session_id, player_id, question_id, answer) VALUES ($1, $2, $3, $4)`,
			rec.sessionID, rec.playerID, rec.questionID, rec.answer)
	case kindVoteAccepted:
		_, err = r.db.ExecContext(ctx,
			`UPDATE game_answers SET votes = votes + 1 WHERE session_id = $1 AND player_id = $2 AND question_id = $3`,
			rec.sessionID, rec.playerID, rec.questionID)
	case kindScoreUpdated:
		_, err = r.db.ExecContext(ctx,
			`UPDATE game_players SET score = $1 WHERE id = $2`,
			rec.score, rec.playerID)
	default:
		err = fmt.Errorf("unknown record kind %q", rec.kind)
	}
	return err
}

// logEvent appends the record to the game_events audit table.
func (r *Recorder) logEvent(ctx context.Context, rec record) error {
	payload, err := json.Marshal(map[string]any{
		"player_id":   rec.playerID,
		"question_id": rec.questionID,
		"score":       rec.score,
	})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO game_events (id, session_id, event_type, payload) VALUES ($1, $2, $3, $4)`,
		uuid.New(), rec.sessionID, string(rec.kind),
		pqtype.NullRawMessage{RawMessage: payload, Valid: true})
	return err
}
