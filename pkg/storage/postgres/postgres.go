// Package postgres provides a PostgreSQL implementation of
// transport.ConversationStore. It uses pgx/v5 for connection pooling and
// stores each conversation's transcript as a JSONB message array.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/storage"
	"github.com/dirigent-dev/dirigent/pkg/transport"
)

// Store is a PostgreSQL-backed ConversationStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.ConversationStore at compile time.
var _ transport.ConversationStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.normalize()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity before accepting the store.
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Transcript returns the stored messages for a conversation in
// chronological order. Returns ErrNotFound if no transcript exists.
func (s *Store) Transcript(ctx context.Context, conversationID string) ([]api.Message, error) {
	query := "SELECT messages FROM conversations WHERE id = $1"
	args := []any{conversationID}

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	var messagesJSON []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&messagesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying transcript: %w", err)
	}

	var messages []api.Message
	if err := json.Unmarshal(messagesJSON, &messages); err != nil {
		return nil, fmt.Errorf("unmarshaling transcript: %w", err)
	}

	return messages, nil
}

// AppendMessages appends messages to a conversation's transcript inside
// a transaction, creating the row if absent and trimming the oldest
// messages in pairs beyond maxMessages. Returns ErrConflict if the
// conversation ID is already owned by another tenant.
func (s *Store) AppendMessages(ctx context.Context, conversationID string, maxMessages int, messages ...api.Message) error {
	tenantID := storage.GetTenant(ctx)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the row for the duration of the read-modify-write.
	var existingJSON []byte
	var rowTenant string
	err = tx.QueryRow(ctx,
		"SELECT messages, tenant_id FROM conversations WHERE id = $1 FOR UPDATE",
		conversationID,
	).Scan(&existingJSON, &rowTenant)

	exists := true
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		exists = false
	case err != nil:
		return fmt.Errorf("locking transcript: %w", err)
	}

	var combined []api.Message
	if exists {
		if tenantID != "" && rowTenant != tenantID {
			return storage.ErrConflict
		}
		if err := json.Unmarshal(existingJSON, &combined); err != nil {
			return fmt.Errorf("unmarshaling transcript: %w", err)
		}
	}

	combined = storage.TrimTranscript(append(combined, messages...), maxMessages)

	combinedJSON, err := json.Marshal(combined)
	if err != nil {
		return fmt.Errorf("marshaling transcript: %w", err)
	}

	if exists {
		_, err = tx.Exec(ctx,
			"UPDATE conversations SET messages = $1, updated_at = now() WHERE id = $2",
			combinedJSON, conversationID,
		)
		if err != nil {
			return fmt.Errorf("updating transcript: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx,
			"INSERT INTO conversations (id, tenant_id, messages) VALUES ($1, $2, $3)",
			conversationID, tenantID, combinedJSON,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("inserting transcript: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteConversation removes a conversation's transcript.
// Returns ErrNotFound if no transcript exists.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	query := "DELETE FROM conversations WHERE id = $1"
	args := []any{conversationID}

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting transcript: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
