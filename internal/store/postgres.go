package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists users, turns, memories and protocols in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			user_metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			is_onboarding BOOLEAN NOT NULL DEFAULT FALSE,
			token_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages (user_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			importance_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_user ON memories (user_id, importance_score DESC, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS protocols (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL,
			keywords TEXT[] NOT NULL,
			instructions JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Metadata == nil {
		user.Metadata = map[string]any{}
	}

	meta, err := json.Marshal(user.Metadata)
	if err != nil {
		return User{}, fmt.Errorf("marshal user metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, name, user_metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Name, meta, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	var (
		u    User
		meta []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, user_metadata, created_at, updated_at FROM users WHERE id=$1`,
		id,
	).Scan(&u.ID, &u.Name, &meta, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &u.Metadata); err != nil {
			return User{}, fmt.Errorf("decode user metadata: %w", err)
		}
	}
	return u, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, turn Turn) (Turn, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, user_id, role, content, is_onboarding, token_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID, turn.UserID, turn.Role, turn.Content, turn.IsOnboarding, turn.TokenCount, turn.CreatedAt,
	)
	if err != nil {
		return Turn{}, fmt.Errorf("append turn: %w", err)
	}
	return turn, nil
}

func (s *PostgresStore) RecentByUser(ctx context.Context, userID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, role, content, is_onboarding, token_count, created_at
		 FROM messages WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows, limit)
}

func (s *PostgresStore) TurnsBefore(ctx context.Context, userID, cursor string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if cursor == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, role, content, is_onboarding, token_count, created_at
			 FROM messages WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
			userID, limit,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, role, content, is_onboarding, token_count, created_at
			 FROM messages
			 WHERE user_id=$1
			   AND created_at < (SELECT created_at FROM messages WHERE id=$2)
			 ORDER BY created_at DESC LIMIT $3`,
			userID, cursor, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query turns before cursor: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows, limit)
}

func (s *PostgresStore) CountUserAuthoredTurns(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id=$1 AND role=$2`,
		userID, RoleUser,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count user turns: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountOnboardingTurns(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id=$1 AND is_onboarding`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count onboarding turns: %w", err)
	}
	return n, nil
}

func scanTurns(rows pgx.Rows, capHint int) ([]Turn, error) {
	turns := make([]Turn, 0, capHint)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.IsOnboarding, &t.TokenCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) InsertMemories(ctx context.Context, memories []Memory) ([]Memory, error) {
	if len(memories) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin memory batch: %w", err)
	}
	defer tx.Rollback(ctx)

	out := make([]Memory, 0, len(memories))
	for _, m := range memories {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO memories (id, user_id, content, category, importance_score, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, m.UserID, m.Content, m.Category, m.ImportanceScore, m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert memory: %w", err)
		}
		out = append(out, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit memory batch: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) TopByUser(ctx context.Context, userID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, content, category, importance_score, created_at
		 FROM memories WHERE user_id=$1
		 ORDER BY importance_score DESC, created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	memories := make([]Memory, 0, limit)
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.Category, &m.ImportanceScore, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return memories, nil
}

func (s *PostgresStore) ListProtocols(ctx context.Context) ([]Protocol, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, keywords, instructions, created_at FROM protocols ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query protocols: %w", err)
	}
	defer rows.Close()

	var protocols []Protocol
	for rows.Next() {
		var (
			p     Protocol
			instr []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Keywords, &instr, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan protocol row: %w", err)
		}
		if len(instr) > 0 {
			if err := json.Unmarshal(instr, &p.Instructions); err != nil {
				return nil, fmt.Errorf("decode protocol instructions: %w", err)
			}
		}
		protocols = append(protocols, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate protocol rows: %w", err)
	}
	return protocols, nil
}

func (s *PostgresStore) SeedProtocols(ctx context.Context, protocols []Protocol) error {
	for _, p := range protocols {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		instr, err := json.Marshal(p.Instructions)
		if err != nil {
			return fmt.Errorf("marshal protocol instructions: %w", err)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO protocols (id, name, description, keywords, instructions, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (name) DO NOTHING`,
			p.ID, p.Name, p.Description, p.Keywords, instr, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("seed protocol %q: %w", p.Name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
