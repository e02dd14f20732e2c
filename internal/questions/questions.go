package questions

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/quizduel/backend/internal/models"
)

// Question is immutable once handed to a match.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"-"`
}

// Repository fetches up to n questions for a category. An empty
// categoryID means any category.
type Repository interface {
	Fetch(ctx context.Context, categoryID string, n int) ([]Question, error)
}

// PostgresRepository reads the questions table.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Fetch(ctx context.Context, categoryID string, n int) ([]Question, error) {
	if n <= 0 {
		return nil, nil
	}

	var rows []models.Question
	var err error
	if categoryID == "" {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT id, category_id, text, options, correct_option, is_active, created_at
			FROM questions
			WHERE is_active
			ORDER BY random()
			LIMIT $1`, n)
	} else {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT id, category_id, text, options, correct_option, is_active, created_at
			FROM questions
			WHERE is_active AND category_id = $1
			ORDER BY random()
			LIMIT $2`, categoryID, n)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch questions for category %q: %w", categoryID, err)
	}

	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		if row.CorrectOption < 0 || row.CorrectOption >= len(row.Options) {
			log.Printf("[QUESTIONS] Skipping question %d: correct option %d out of range", row.ID, row.CorrectOption)
			continue
		}
		out = append(out, Question{
			ID:           strconv.FormatInt(row.ID, 10),
			Text:         row.Text,
			Options:      []string(row.Options),
			CorrectIndex: row.CorrectOption,
		})
	}
	return out, nil
}

// Insert adds a question to the bank. Used by the seeder.
func (r *PostgresRepository) Insert(ctx context.Context, categoryID string, q Question) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO questions (category_id, text, options, correct_option) VALUES ($1, $2, $3, $4)`,
		categoryID, q.Text, pq.Array(q.Options), q.CorrectIndex)
	return err
}

// Count returns how many active questions exist.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM questions WHERE is_active`)
	return n, err
}

// StaticRepository serves a fixed in-memory set regardless of category.
type StaticRepository struct {
	Questions []Question
}

func (r StaticRepository) Fetch(_ context.Context, _ string, n int) ([]Question, error) {
	if n > len(r.Questions) {
		n = len(r.Questions)
	}
	out := make([]Question, n)
	copy(out, r.Questions[:n])
	return out, nil
}
