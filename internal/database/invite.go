// internal/database/invite.go
//
// Direct-challenge invites. Accepting an invite creates the backing active
// game, links it and debits both stakes in one transaction, so there is no
// window where an accepted invite has no game behind it.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/playgrid/arcade/internal/game"
	"github.com/playgrid/arcade/internal/models"
)

const inviteColumns = `id, inviter, invitee, kind, stake, status, game_id, created_at, updated_at`

// CreateInvite records a pending challenge from inviter to invitee. The
// inviter's balance is checked up front (fail closed, no reservation yet —
// both stakes are debited at acceptance time, when they are re-checked).
func CreateInvite(ctx context.Context, inviter, invitee uuid.UUID, kind models.GameKind, stake int64) (*models.Invite, error) {
	if stake <= 0 {
		return nil, fmt.Errorf("stake must be positive")
	}
	if inviter == invitee {
		return nil, game.ErrNotParticipant
	}
	var inv *models.Invite
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, inviter)
		if err != nil {
			return err
		}
		if balance < stake {
			return game.ErrInsufficientBalance
		}
		var exists int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id=$1`, invitee).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return game.ErrNotFound
			}
			return err
		}

		now := time.Now().UTC()
		inv = &models.Invite{
			ID:        uuid.New(),
			Inviter:   inviter,
			Invitee:   invitee,
			Kind:      kind,
			Stake:     stake,
			Status:    models.InvitePending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO invites (`+inviteColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			inv.ID, inv.Inviter, inv.Invitee, inv.Kind, inv.Stake,
			inv.Status, nullable(inv.GameID), inv.CreatedAt, inv.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// RespondToInvite applies the invitee's accept or decline, exactly once. A
// second response of any sort gets game.ErrAlreadyResponded. On accept the
// active game is created, both stakes debited into its pot and the invite
// linked to it in the same transaction; an insufficient balance on either
// side rolls everything back and the invite stays pending.
func RespondToInvite(ctx context.Context, caller, inviteID uuid.UUID, accept bool) (*models.Invite, *models.Game, error) {
	var (
		inv *models.Invite
		g   *models.Game
	)
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		inv, err = lockInvite(ctx, tx, inviteID)
		if err != nil {
			return err
		}
		if caller != inv.Invitee {
			return game.ErrNotParticipant
		}
		if inv.Status != models.InvitePending {
			return game.ErrAlreadyResponded
		}

		now := time.Now().UTC()
		inv.UpdatedAt = now

		if !accept {
			inv.Status = models.InviteDeclined
			return updateInvite(ctx, tx, inv)
		}

		balances, err := lockBothBalances(ctx, tx, inv.Inviter, inv.Invitee)
		if err != nil {
			return err
		}
		if balances[inv.Inviter] < inv.Stake || balances[inv.Invitee] < inv.Stake {
			return game.ErrInsufficientBalance
		}
		if err := adjustBalance(ctx, tx, inv.Inviter, -inv.Stake); err != nil {
			return err
		}
		if err := adjustBalance(ctx, tx, inv.Invitee, -inv.Stake); err != nil {
			return err
		}

		g, err = game.NewInviteGame(inv.Inviter, inv.Invitee, inv.Kind, inv.Stake, "coins", now)
		if err != nil {
			return err
		}
		if err := insertGame(ctx, tx, g); err != nil {
			return err
		}

		inv.Status = models.InviteAccepted
		inv.GameID = g.ID
		return updateInvite(ctx, tx, inv)
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, g, nil
}

// GetInvite fetches the current invite row; the inviter's client polls or
// subscribes to this while awaiting a response.
func GetInvite(ctx context.Context, inviteID uuid.UUID) (*models.Invite, error) {
	row := DB.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id=$1`, inviteID)
	inv, err := scanInvite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	return inv, err
}

// ListPendingInvites returns the open challenges addressed to a user.
func ListPendingInvites(ctx context.Context, invitee uuid.UUID) ([]*models.Invite, error) {
	rows, err := DB.Query(ctx, `
		SELECT `+inviteColumns+`
		FROM invites
		WHERE invitee=$1 AND status='pending'
		ORDER BY created_at DESC`,
		invitee,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []*models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func lockInvite(ctx context.Context, tx pgx.Tx, inviteID uuid.UUID) (*models.Invite, error) {
	row := tx.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id=$1 FOR UPDATE`, inviteID)
	inv, err := scanInvite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	return inv, err
}

func updateInvite(ctx context.Context, tx pgx.Tx, inv *models.Invite) error {
	_, err := tx.Exec(ctx, `
		UPDATE invites SET status=$2, game_id=$3, updated_at=$4 WHERE id=$1`,
		inv.ID, inv.Status, nullable(inv.GameID), inv.UpdatedAt,
	)
	return err
}

func scanInvite(row rowScanner) (*models.Invite, error) {
	var (
		inv    models.Invite
		gameID *uuid.UUID
	)
	err := row.Scan(
		&inv.ID, &inv.Inviter, &inv.Invitee, &inv.Kind, &inv.Stake,
		&inv.Status, &gameID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.GameID = deref(gameID)
	return &inv, nil
}
