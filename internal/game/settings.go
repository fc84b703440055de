package game

import (
	"math/rand"
	"sync"
	"time"
)

// Settings holds the tunable gameplay parameters. Zero values are replaced
// by the defaults from DefaultSettings.
type Settings struct {
	AnswerSeconds  int `yaml:"answer_seconds"`
	VoteSeconds    int `yaml:"vote_seconds"`
	ResultsSeconds int `yaml:"results_seconds"`
	MinPlayers     int `yaml:"min_players"`
	PointsPerVote  int `yaml:"points_per_vote"`
}

// DefaultSettings returns the stock timings: 60s to answer, 30s to vote,
// 10s on the results screen, two players to start, 100 points per vote.
func DefaultSettings() Settings {
	return Settings{
		AnswerSeconds:  60,
		VoteSeconds:    30,
		ResultsSeconds: 10,
		MinPlayers:     2,
		PointsPerVote:  100,
	}
}

// withDefaults fills any unset field from DefaultSettings.
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.AnswerSeconds <= 0 {
		s.AnswerSeconds = def.AnswerSeconds
	}
	if s.VoteSeconds <= 0 {
		s.VoteSeconds = def.VoteSeconds
	}
	if s.ResultsSeconds <= 0 {
		s.ResultsSeconds = def.ResultsSeconds
	}
	if s.MinPlayers <= 0 {
		s.MinPlayers = def.MinPlayers
	}
	if s.PointsPerVote <= 0 {
		s.PointsPerVote = def.PointsPerVote
	}
	return s
}

// Rand is the randomness the engine consumes: answer shuffling. Seedable in
// tests for deterministic ordering; *rand.Rand satisfies it.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
}

// lockedRand serializes a *rand.Rand, which is not safe for concurrent use
// across sessions.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand() *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *lockedRand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(n, swap)
}
