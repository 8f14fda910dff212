package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PaymentStore persists organization payments
type PaymentStore interface {
	// PaymentAt returns the latest paid payment covering at, or nil
	PaymentAt(ctx context.Context, organizationID string, at time.Time) (*Payment, error)

	// SavePayment inserts or updates a payment
	SavePayment(ctx context.Context, p *Payment) error
}

// SQLPaymentStore implements PaymentStore using PostgreSQL
type SQLPaymentStore struct {
	db *sql.DB
}

// NewSQLPaymentStore creates a new PostgreSQL payment store
func NewSQLPaymentStore(db *sql.DB) *SQLPaymentStore {
	return &SQLPaymentStore{db: db}
}

// PaymentAt returns the latest paid payment covering at
func (s *SQLPaymentStore) PaymentAt(ctx context.Context, organizationID string, at time.Time) (*Payment, error) {
	query := `
		SELECT id, organization_id, service_level, state, users, valid_from, valid_until
		FROM payments
		WHERE organization_id = $1 AND state = $2 AND valid_from <= $3 AND valid_until >= $4
		ORDER BY valid_until DESC
		LIMIT 1
	`

	var p Payment
	err := s.db.QueryRowContext(ctx, query,
		organizationID, PaymentStatePaid, at.Add(borderTolerance), at.Add(-borderTolerance),
	).Scan(&p.ID, &p.OrganizationID, &p.ServiceLevel, &p.State, &p.Users, &p.ValidFrom, &p.ValidUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// SavePayment inserts or updates a payment
func (s *SQLPaymentStore) SavePayment(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (id, organization_id, service_level, state, users, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET service_level = EXCLUDED.service_level, state = EXCLUDED.state, users = EXCLUDED.users,
		    valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.OrganizationID, p.ServiceLevel, p.State, p.Users, p.ValidFrom, p.ValidUntil)
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}
