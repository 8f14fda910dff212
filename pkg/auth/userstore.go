package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLUserStore is the Postgres UserStore
type SQLUserStore struct {
	db *sql.DB
}

// NewSQLUserStore creates a user store over db
func NewSQLUserStore(db *sql.DB) *SQLUserStore {
	return &SQLUserStore{db: db}
}

// GetUserByAuthID implements UserStore
func (s *SQLUserStore) GetUserByAuthID(ctx context.Context, authID string) (*Principal, error) {
	query := `
		SELECT u.id, u.email, u.name, u.email_verified
		FROM users u
		JOIN user_auth_ids a ON a.user_id = u.id
		WHERE a.auth_id = $1
	`
	return s.getUser(ctx, query, authID)
}

// GetUserByEmail implements UserStore. Emails are compared case-insensitively.
func (s *SQLUserStore) GetUserByEmail(ctx context.Context, email string) (*Principal, error) {
	query := `
		SELECT id, email, name, email_verified
		FROM users
		WHERE lower(email) = lower($1)
	`
	return s.getUser(ctx, query, email)
}

func (s *SQLUserStore) getUser(ctx context.Context, query string, arg string) (*Principal, error) {
	var p Principal
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Email, &p.Name, &p.EmailVerified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT auth_id FROM user_auth_ids WHERE user_id = $1 ORDER BY auth_id", p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var authID string
		if err := rows.Scan(&authID); err != nil {
			return nil, fmt.Errorf("failed to scan auth id: %w", err)
		}
		p.AuthIDs = append(p.AuthIDs, authID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}

// CreateUser implements UserStore
func (s *SQLUserStore) CreateUser(ctx context.Context, p *Principal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, email, name, email_verified) VALUES ($1, $2, $3, $4)",
			p.ID, p.Email, p.Name, p.EmailVerified,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return insertAuthIDs(ctx, tx, p)
	})
}

// UpdateUser implements UserStore. Auth ids are only ever added.
func (s *SQLUserStore) UpdateUser(ctx context.Context, p *Principal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE users SET email = $2, name = $3, email_verified = $4, updated_at = NOW() WHERE id = $1",
			p.ID, p.Email, p.Name, p.EmailVerified,
		)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return insertAuthIDs(ctx, tx, p)
	})
}

func insertAuthIDs(ctx context.Context, tx *sql.Tx, p *Principal) error {
	for _, authID := range p.AuthIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_auth_ids (user_id, auth_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			p.ID, authID,
		); err != nil {
			return fmt.Errorf("failed to insert auth id: %w", err)
		}
	}
	return nil
}

// GetGroups implements UserStore
func (s *SQLUserStore) GetGroups(ctx context.Context, userID string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT organization_id, group_id FROM group_members WHERE user_id = $1 ORDER BY organization_id, group_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]string)
	for rows.Next() {
		var orgID, groupID string
		if err := rows.Scan(&orgID, &groupID); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups[orgID] = append(groups[orgID], groupID)
	}
	return groups, rows.Err()
}

// RecordLogin implements UserStore
func (s *SQLUserStore) RecordLogin(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "INSERT INTO user_logins (user_id) VALUES ($1)", userID); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

func (s *SQLUserStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
