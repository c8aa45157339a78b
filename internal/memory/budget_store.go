package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Deposit adds amount to owner's processing budget, capped at maxAccrued when
// maxAccrued > 0. Returns the new balance.
func (s *SQLiteStore) Deposit(ctx context.Context, owner string, amount, maxAccrued int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deposit must be positive, got %d", amount)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := remainingTx(ctx, tx, owner)
	if err != nil {
		return 0, err
	}
	balance := current + amount
	if maxAccrued > 0 && balance > maxAccrued {
		balance = maxAccrued
	}
	if err := setBalanceTx(ctx, tx, owner, balance); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return balance, nil
}

// Remaining returns owner's balance; owners without a budget row have zero.
func (s *SQLiteStore) Remaining(ctx context.Context, owner string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT remaining_nano_usd FROM budgets WHERE owner = ?`, owner).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get budget: %w", err)
	}
	return n, nil
}

// Charge subtracts cost from owner's balance. The balance may go negative:
// the call has already been paid for, and the next check will refuse work.
func (s *SQLiteStore) Charge(ctx context.Context, owner string, cost int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := remainingTx(ctx, tx, owner)
	if err != nil {
		return 0, err
	}
	balance := current - cost
	if err := setBalanceTx(ctx, tx, owner, balance); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return balance, nil
}

func remainingTx(ctx context.Context, tx *sql.Tx, owner string) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx, `SELECT remaining_nano_usd FROM budgets WHERE owner = ?`, owner).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get budget: %w", err)
	}
	return n, nil
}

func setBalanceTx(ctx context.Context, tx txExecutor, owner string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO budgets (owner, remaining_nano_usd, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET remaining_nano_usd = excluded.remaining_nano_usd, updated_at = excluded.updated_at
	`, owner, balance, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}
