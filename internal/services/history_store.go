package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"codebot/internal/models"
	contextutils "codebot/internal/utils"
)

// HistoryStore persists per-(user, track) conversation history
type HistoryStore interface {
	LoadHistory(ctx context.Context, userID int, track models.Track) ([]models.ChatMessage, error)
	SaveHistory(ctx context.Context, userID int, track models.Track, messages []models.ChatMessage) error
}

// PostgresHistoryStore stores conversation history in the chat_histories
// table, one row per (user, track), messages as a JSONB array
type PostgresHistoryStore struct {
	db *sql.DB
}

// NewPostgresHistoryStore creates a new Postgres-backed history store
func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

// LoadHistory returns the stored history for a (user, track) pair. A pair
// with no stored history yields an empty slice, not an error.
func (s *PostgresHistoryStore) LoadHistory(ctx context.Context, userID int, track models.Track) ([]models.ChatMessage, error) {
	query := `SELECT messages FROM chat_histories WHERE user_id = $1 AND track = $2`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, userID, string(track)).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, contextutils.WrapError(err, "failed to load conversation history")
	}

	var messages []models.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode conversation history")
	}
	return messages, nil
}

// SaveHistory upserts the full history for a (user, track) pair
func (s *PostgresHistoryStore) SaveHistory(ctx context.Context, userID int, track models.Track, messages []models.ChatMessage) error {
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return contextutils.WrapError(err, "failed to encode conversation history")
	}

	query := `
		INSERT INTO chat_histories (id, user_id, track, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, track)
		DO UPDATE SET messages = EXCLUDED.messages, updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query, uuid.New().String(), userID, string(track), raw, time.Now())
	if err != nil {
		return contextutils.WrapError(err, "failed to save conversation history")
	}
	return nil
}
