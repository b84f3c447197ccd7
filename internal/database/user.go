package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/playgrid/arcade/internal/auth"
	"github.com/playgrid/arcade/internal/models"
)

// DefaultStartingBalance is the stake currency granted to a fresh account,
// in minor units.
const DefaultStartingBalance int64 = 1000

func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}
	if user.Currency == "" {
		user.Currency = "coins"
	}
	if user.Balance == 0 {
		user.Balance = DefaultStartingBalance
	}

	hash, err := auth.CreateHash(user.Password, auth.Params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (id, email, password, username, balance, currency)
	      VALUES ($1, $2, $3, $4, $5, $6)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Username,
			user.Balance, user.Currency,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, email, password, username, balance, currency
	FROM users
	WHERE email=$1
	`
	err := DB.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Username, &u.Balance, &u.Currency,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, email, password, username, balance, currency
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Email, &u.Password, &u.Username, &u.Balance, &u.Currency,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.ComparePasswordAndHash(password, user.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}

	return token, nil
}

// lockBalance selects a user's balance FOR UPDATE inside tx. All stake
// movement goes through this lock; when two users are locked in one
// transaction the callers lock them in ascending id order to avoid
// deadlock.
func lockBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM users WHERE id=$1 FOR UPDATE`, userID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("lock balance for %s: %w", userID, err)
	}
	return balance, nil
}

// adjustBalance applies a signed delta to a user's balance. The row must
// already be locked by lockBalance in the same transaction.
func adjustBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id=$2`, delta, userID,
	)
	if err != nil {
		return fmt.Errorf("adjust balance for %s by %d: %w", userID, delta, err)
	}
	return nil
}

// lockBothBalances locks two user rows in ascending id order and returns
// their balances keyed by id.
func lockBothBalances(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (map[uuid.UUID]int64, error) {
	first, second := a, b
	if b.String() < a.String() {
		first, second = b, a
	}
	balances := make(map[uuid.UUID]int64, 2)
	for _, id := range []uuid.UUID{first, second} {
		bal, err := lockBalance(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		balances[id] = bal
	}
	return balances, nil
}
