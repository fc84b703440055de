package questions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blankparty/hackbox/internal/game"
	"github.com/blankparty/hackbox/internal/models"
)

// Repository is the durable prompt-question store backed by Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a question repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RandomQuestion returns one uniformly random question.
func (r *Repository) RandomQuestion(ctx context.Context) (*models.Question, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, question, category FROM game_questions ORDER BY RANDOM() LIMIT 1`)
	return scanQuestion(row)
}

// RandomQuestionExcluding returns one uniformly random question other than
// the given one.
func (r *Repository) RandomQuestionExcluding(ctx context.Context, id int64) (*models.Question, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, question, category FROM game_questions WHERE id != $1 ORDER BY RANDOM() LIMIT 1`, id)
	return scanQuestion(row)
}

// Count reports how many questions are stored.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_questions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// Insert adds a question and returns its ID.
func (r *Repository) Insert(ctx context.Context, text, category string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO game_questions (question, category) VALUES ($1, $2) RETURNING id`,
		text, category).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}

func scanQuestion(row *sql.Row) (*models.Question, error) {
	var q models.Question
	if err := row.Scan(&q.ID, &q.Text, &q.Category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.ErrNoQuestions
		}
		return nil, fmt.Errorf("scan question: %w", err)
	}
	return &q, nil
}
