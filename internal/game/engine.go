package game

import (
	"context"
	"errors"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/blankparty/hackbox/internal/game/events"
	"github.com/blankparty/hackbox/internal/models"
)

// Engine is the state machine governing session lifecycle, answer
// collection, vote tallying and scoring. It is the sole mutator of registry
// state; every operation locks the target session for its duration, so
// events for one session apply serially while sessions stay independent.
type Engine struct {
	registry    *Registry
	questions   QuestionStore
	recorder    Recorder
	broadcaster Broadcaster

	clock    clockwork.Clock
	rng      Rand
	settings Settings
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock. Tests inject clockwork.NewFakeClock().
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRand replaces the shuffle randomness source.
func WithRand(rng Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithSettings overrides gameplay timings and thresholds.
func WithSettings(settings Settings) Option {
	return func(e *Engine) { e.settings = settings.withDefaults() }
}

// NewEngine wires the engine to its collaborators.
func NewEngine(registry *Registry, questions QuestionStore, recorder Recorder, broadcaster Broadcaster, opts ...Option) *Engine {
	e := &Engine{
		registry:    registry,
		questions:   questions,
		recorder:    recorder,
		broadcaster: broadcaster,
		clock:       clockwork.NewRealClock(),
		rng:         newLockedRand(),
		settings:    DefaultSettings(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSession allocates a new session in the waiting phase and returns its
// join code.
func (e *Engine) CreateSession(ctx context.Context, name string) string {
	session := e.registry.Create(name)
	e.recorder.SessionCreated(ctx, session.ID, name)

	log.Info().
		Str("session_id", session.ID).
		Str("name", name).
		Msg("session created")

	return session.ID
}

// JoinSession adds a player to a session. The player ID is the connection
// ID. Fails with ErrSessionNotFound or ErrNicknameTaken; on success the
// updated roster is broadcast.
func (e *Engine) JoinSession(ctx context.Context, sessionID, playerID, nickname string) (*models.Player, error) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.Lock()
	defer session.Unlock()

	if session.HasNickname(nickname) {
		return nil, ErrNicknameTaken
	}

	player := &models.Player{
		ID:        playerID,
		Nickname:  nickname,
		Score:     0,
		SessionID: sessionID,
	}
	session.Players = append(session.Players, player)
	e.registry.BindPlayer(playerID, sessionID)
	e.recorder.PlayerJoined(ctx, player)

	log.Info().
		Str("session_id", sessionID).
		Str("player_id", playerID).
		Str("nickname", nickname).
		Int("players", len(session.Players)).
		Msg("player joined session")

	e.publish(ctx, sessionID, events.EventTypePlayersUpdated, events.PlayersUpdatedPayload{
		Players: events.SnapshotPlayers(session.Players),
	})

	// Shallow copy so the caller never holds the registry's player slice.
	joined := *player
	return &joined, nil
}

// StartGame moves a waiting session into the answering phase. The request is
// silently ignored unless the session exists, is still waiting, and has
// enough players.
func (e *Engine) StartGame(ctx context.Context, sessionID string) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}

	session.Lock()
	defer session.Unlock()

	if session.Phase != models.PhaseWaiting || len(session.Players) < e.settings.MinPlayers {
		log.Debug().
			Str("session_id", sessionID).
			Str("phase", string(session.Phase)).
			Int("players", len(session.Players)).
			Msg("start-game ignored")
		return
	}

	question, err := e.questions.RandomQuestion(ctx)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to pick opening question")
		return
	}

	session.Phase = models.PhaseAnswering
	session.CurrentQuestion = question
	session.Answers = []*models.Answer{}
	session.TimeRemaining = e.settings.AnswerSeconds

	log.Info().
		Str("session_id", sessionID).
		Int64("question_id", question.ID).
		Int("players", len(session.Players)).
		Msg("game started")

	e.publish(ctx, sessionID, events.EventTypeGameStarted, events.GameStartedPayload{
		Question:      question.Text,
		TimeRemaining: session.TimeRemaining,
	})
	e.startTimer(session, true, e.advanceToVoting)
}

// SubmitAnswer records one answer per player during the answering phase.
// Stale or duplicate submissions are dropped. When the last player answers,
// the session advances to voting without waiting for the timer.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, playerID, text string) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}

	session.Lock()
	if session.Phase != models.PhaseAnswering ||
		session.PlayerByID(playerID) == nil ||
		session.AnswerByOwner(playerID) != nil {
		session.Unlock()
		return
	}

	session.Answers = append(session.Answers, &models.Answer{
		PlayerID: playerID,
		Text:     text,
	})
	questionID := session.CurrentQuestion.ID
	complete := len(session.Answers) == len(session.Players)
	session.Unlock()

	e.recorder.AnswerSubmitted(ctx, sessionID, questionID, playerID, text)

	log.Debug().
		Str("session_id", sessionID).
		Str("player_id", playerID).
		Bool("round_complete", complete).
		Msg("answer submitted")

	if complete {
		e.advanceToVoting(sessionID)
	}
}

// SubmitVote increments the vote count of the answer owned by answerOwnerID.
// Votes outside the voting phase, for absent answers, or for the voter's own
// answer are silently dropped.
func (e *Engine) SubmitVote(ctx context.Context, sessionID, voterID, answerOwnerID string) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}

	session.Lock()
	if session.Phase != models.PhaseVoting {
		session.Unlock()
		return
	}
	answer := session.AnswerByOwner(answerOwnerID)
	if answer == nil || answer.PlayerID == voterID {
		session.Unlock()
		return
	}
	answer.Votes++
	questionID := session.CurrentQuestion.ID
	session.Unlock()

	e.recorder.VoteAccepted(ctx, sessionID, questionID, answerOwnerID)
}

// GetSession returns a read-only snapshot of the session for reconnecting
// clients.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*events.SessionSnapshot, error) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.Lock()
	defer session.Unlock()

	return &events.SessionSnapshot{
		ID:            session.ID,
		Name:          session.Name,
		Players:       events.SnapshotPlayers(session.Players),
		Phase:         session.Phase,
		TimeRemaining: session.TimeRemaining,
	}, nil
}

// Disconnect removes a player from whichever session holds them. The roster
// is rebroadcast; an emptied session is destroyed immediately regardless of
// phase.
func (e *Engine) Disconnect(ctx context.Context, playerID string) {
	session, ok := e.registry.SessionForPlayer(playerID)
	e.registry.UnbindPlayer(playerID)
	if !ok {
		return
	}

	session.Lock()
	player := session.RemovePlayer(playerID)
	if player == nil {
		session.Unlock()
		return
	}

	// Keep the one-answer-per-player invariant: a departing player's
	// current-round answer leaves with them while answers are still being
	// collected. Answers already up for voting stay on the ballot.
	if session.Phase == models.PhaseAnswering {
		for i, a := range session.Answers {
			if a.PlayerID == playerID {
				session.Answers = append(session.Answers[:i], session.Answers[i+1:]...)
				break
			}
		}
	}

	if len(session.Players) == 0 {
		if session.Timer != nil {
			session.Timer.Stop()
			session.Timer = nil
		}
		session.Unlock()
		e.registry.Remove(session.ID)
		log.Info().
			Str("session_id", session.ID).
			Str("player_id", playerID).
			Msg("last player left, session destroyed")
		return
	}

	e.publish(ctx, session.ID, events.EventTypePlayersUpdated, events.PlayersUpdatedPayload{
		Players: events.SnapshotPlayers(session.Players),
	})

	complete := session.Phase == models.PhaseAnswering &&
		len(session.Answers) > 0 &&
		len(session.Answers) == len(session.Players)
	sessionID := session.ID
	session.Unlock()

	log.Info().
		Str("session_id", sessionID).
		Str("player_id", playerID).
		Str("nickname", player.Nickname).
		Msg("player disconnected")

	if complete {
		e.advanceToVoting(sessionID)
	}
}

// advanceToVoting moves an answering session into the voting phase. Fired by
// the answer timer, by the last answer arriving, or by a disconnect that
// completes the round; the phase guard makes duplicate triggers harmless.
func (e *Engine) advanceToVoting(sessionID string) {
	ctx := context.Background()

	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}

	session.Lock()
	defer session.Unlock()

	if session.Phase != models.PhaseAnswering {
		return
	}

	session.Phase = models.PhaseVoting
	session.TimeRemaining = e.settings.VoteSeconds

	// Shuffle a copy for presentation only; tally order is untouched.
	shuffled := make([]*models.Answer, len(session.Answers))
	copy(shuffled, session.Answers)
	e.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	options := make([]events.AnswerOption, len(shuffled))
	for i, a := range shuffled {
		options[i] = events.AnswerOption{ID: a.PlayerID, Answer: a.Text}
	}

	log.Info().
		Str("session_id", sessionID).
		Int("answers", len(options)).
		Msg("voting phase started")

	e.publish(ctx, sessionID, events.EventTypeVotingPhase, events.VotingPhasePayload{
		Answers:       options,
		TimeRemaining: session.TimeRemaining,
	})
	e.startTimer(session, true, e.showResults)
}

// showResults tallies the round when the voting timer expires. Voting has no
// early exit when everyone has voted; only the timer ends it.
func (e *Engine) showResults(sessionID string) {
	ctx := context.Background()

	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}

	session.Lock()
	defer session.Unlock()

	if session.Phase != models.PhaseVoting {
		return
	}

	session.Phase = models.PhaseResults
	session.TimeRemaining = e.settings.ResultsSeconds

	results := make([]events.AnswerResult, 0, len(session.Answers))
	for _, answer := range session.Answers {
		nickname := "Unknown"
		if player := session.PlayerByID(answer.PlayerID); player != nil {
			player.Score += answer.Votes * e.settings.PointsPerVote
			nickname = player.Nickname
			e.recorder.ScoreUpdated(ctx, sessionID, player.ID, player.Score)
		}
		results = append(results, events.AnswerResult{
			Nickname: nickname,
			Answer:   answer.Text,
			Votes:    answer.Votes,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Votes > results[j].Votes
	})

	log.Info().
		Str("session_id", sessionID).
		Int("answers", len(results)).
		Msg("round results")

	e.publish(ctx, sessionID, events.EventTypeResults, events.ResultsPayload{
		Results:     results,
		Leaderboard: e.leaderboard(session),
	})
	e.startTimer(session, false, e.nextRound)
}

// nextRound fires after the results pause: a fresh question starts another
// round, no remaining question finishes the game.
func (e *Engine) nextRound(sessionID string) {
	ctx := context.Background()

	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}

	session.Lock()
	if session.Phase != models.PhaseResults || session.CurrentQuestion == nil {
		session.Unlock()
		return
	}
	previousID := session.CurrentQuestion.ID
	session.Unlock()

	// Store lookup happens outside the session lock; the phase is
	// re-checked before applying the transition.
	question, err := e.questions.RandomQuestionExcluding(ctx, previousID)
	if err != nil && !errors.Is(err, ErrNoQuestions) {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to pick next question, finishing game")
	}

	session.Lock()
	defer session.Unlock()

	if session.Phase != models.PhaseResults {
		return
	}

	if err != nil {
		session.Phase = models.PhaseFinished
		session.TimeRemaining = 0
		if session.Timer != nil {
			session.Timer.Stop()
			session.Timer = nil
		}

		log.Info().Str("session_id", sessionID).Msg("game finished")

		e.publish(ctx, sessionID, events.EventTypeGameFinished, events.GameFinishedPayload{
			FinalLeaderboard: e.leaderboard(session),
		})
		return
	}

	session.Phase = models.PhaseAnswering
	session.CurrentQuestion = question
	session.Answers = []*models.Answer{}
	session.TimeRemaining = e.settings.AnswerSeconds

	log.Info().
		Str("session_id", sessionID).
		Int64("question_id", question.ID).
		Msg("next round started")

	e.publish(ctx, sessionID, events.EventTypeNextQuestion, events.NextQuestionPayload{
		Question:      question.Text,
		TimeRemaining: session.TimeRemaining,
	})
	e.startTimer(session, true, e.advanceToVoting)
}

// leaderboard returns players sorted by score descending, ties keeping join
// order. Caller must hold the session lock.
func (e *Engine) leaderboard(session *models.Session) []events.PlayerSnapshot {
	board := events.SnapshotPlayers(session.Players)
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	return board
}

// publish fans an event out to the session channel, best-effort.
func (e *Engine) publish(ctx context.Context, sessionID string, typ events.EventType, payload any) {
	e.broadcaster.PublishToSession(ctx, sessionID, typ, payload)
}
