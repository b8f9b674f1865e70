package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/lecture-notebook/internal/apperr"
	"github.com/codebuildervaibhav/lecture-notebook/internal/types"
)

// Store is the persistence boundary for notebook and user rows. It carries no
// business logic; the orchestrator is the only writer of notebook state.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the sqlite database and ensures the schema.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notebooks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER REFERENCES users(id),
		status TEXT NOT NULL,
		transcription TEXT,
		summary TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notebooks_user_created ON notebooks(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_notebooks_status ON notebooks(status);
	`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateNotebook inserts a pending notebook row, optionally owned by a user.
func (s *Store) CreateNotebook(ctx context.Context, userID *int64) (*types.Notebook, error) {
	now := time.Now()

	var owner sql.NullInt64
	if userID != nil {
		owner = sql.NullInt64{Int64: *userID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notebooks (user_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		owner, types.StatusPending, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create notebook: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook id: %w", err)
	}

	return &types.Notebook{
		ID:        id,
		UserID:    userID,
		Status:    types.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetNotebook returns a notebook row by id, or apperr.ErrNotFound.
func (s *Store) GetNotebook(ctx context.Context, id int64) (*types.Notebook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, transcription, summary, created_at, updated_at
		 FROM notebooks WHERE id = ?`, id)

	var (
		nb            types.Notebook
		owner         sql.NullInt64
		transcription sql.NullString
		summary       sql.NullString
		status        string
	)

	err := row.Scan(&nb.ID, &owner, &status, &transcription, &summary, &nb.CreatedAt, &nb.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notebook %d: %w", id, err)
	}

	nb.Status = types.Status(status)
	if owner.Valid {
		nb.UserID = &owner.Int64
	}
	if transcription.Valid {
		nb.Transcription = &transcription.String
	}
	if summary.Valid {
		nb.Summary = &summary.String
	}
	return &nb, nil
}

// UpdateStatus moves a notebook to a new status and refreshes updated_at.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status types.Status) error {
	return s.updateNotebook(ctx, id,
		`UPDATE notebooks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id)
}

// SetTranscription persists the transcript and advances the status in one
// write, so a poller never observes the new status without the text.
func (s *Store) SetTranscription(ctx context.Context, id int64, text string, status types.Status) error {
	return s.updateNotebook(ctx, id,
		`UPDATE notebooks SET transcription = ?, status = ?, updated_at = ? WHERE id = ?`,
		text, status, time.Now(), id)
}

// SetSummary persists the summary JSON and advances the status in one write.
func (s *Store) SetSummary(ctx context.Context, id int64, summary string, status types.Status) error {
	return s.updateNotebook(ctx, id,
		`UPDATE notebooks SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		summary, status, time.Now(), id)
}

// SetNotebookOwner attaches a user to a notebook created before its owner was
// known (deferred-ownership update).
func (s *Store) SetNotebookOwner(ctx context.Context, id int64, userID int64) error {
	return s.updateNotebook(ctx, id,
		`UPDATE notebooks SET user_id = ?, updated_at = ? WHERE id = ?`,
		userID, time.Now(), id)
}

func (s *Store) updateNotebook(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update notebook %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// CountNotebooksSince counts notebooks owned by userID created at or after
// the given instant. Used by the quota guard.
func (s *Store) CountNotebooksSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notebooks WHERE user_id = ? AND created_at >= ?`,
		userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notebooks for user %d: %w", userID, err)
	}
	return count, nil
}

// MarkStaleFailed sweeps notebooks stuck in a non-terminal status since before
// the cutoff to failed. Returns the number of rows swept.
func (s *Store) MarkStaleFailed(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notebooks SET status = ?, updated_at = ?
		 WHERE status IN (?, ?, ?) AND updated_at < ?`,
		types.StatusFailed, time.Now(),
		types.StatusPending, types.StatusTranscribing, types.StatusSummarizing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale notebooks: %w", err)
	}
	return res.RowsAffected()
}

// FindUserByEmail returns a user row by email, or apperr.ErrNotFound.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE email = ?`, email)

	var u types.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &u, nil
}

// GetOrCreateUserByEmail resolves a verified email to a user row, creating
// one on first sight. The upstream identity provider has already verified
// the email, so provisioning here is safe.
func (s *Store) GetOrCreateUserByEmail(ctx context.Context, email string) (*types.User, error) {
	u, err := s.FindUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, name, created_at) VALUES (?, '', ?)`, email, now)
	if err != nil {
		// Lost a race with a concurrent insert; read the winner.
		if existing, ferr := s.FindUserByEmail(ctx, email); ferr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}
	return &types.User{ID: id, Email: email, CreatedAt: now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
