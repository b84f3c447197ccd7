// internal/database/match.go
//
// The matchmaking and turn-submission procedures. Each public function is
// one pgx transaction; the SELECT ... FOR UPDATE on the game row is the
// single serialization point for all mutations of that game, and every
// balance movement is colocated in the same transaction as the state
// transition that causes it.
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

const gameColumns = `id, kind, status, player_a, player_b, current_turn,
	stake, currency, state, winner, move_count, created_at, updated_at`

// MatchResult is the answer to FindOrCreateMatch: either the caller joined
// an existing waiting game or created a new one and is now waiting.
type MatchResult struct {
	Joined bool         `json:"joined"`
	Game   *models.Game `json:"game"`
}

// FindOrCreateMatch atomically joins one waiting game of the same kind and
// stake, or creates a new waiting game with the caller as creator. SKIP
// LOCKED keeps two concurrent callers from fighting over the same row: the
// loser of the race simply scans past it. The caller's stake is debited into
// the pot in the same transaction, and an insufficient balance fails closed
// before any write.
func FindOrCreateMatch(ctx context.Context, caller uuid.UUID, kind models.GameKind, stake int64) (*MatchResult, error) {
	if stake <= 0 {
		return nil, fmt.Errorf("stake must be positive")
	}
	var res MatchResult
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, caller)
		if err != nil {
			return err
		}
		if balance < stake {
			return game.ErrInsufficientBalance
		}

		now := time.Now().UTC()
		row := tx.QueryRow(ctx, `
			SELECT `+gameColumns+`
			FROM games
			WHERE status='waiting' AND kind=$1 AND stake=$2 AND player_a <> $3
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED`,
			kind, stake, caller,
		)
		g, err := scanGame(row)
		switch {
		case err == nil:
			if err := game.Join(g, caller, now); err != nil {
				return err
			}
			if err := adjustBalance(ctx, tx, caller, -stake); err != nil {
				return err
			}
			if err := updateGame(ctx, tx, g); err != nil {
				return err
			}
			res = MatchResult{Joined: true, Game: g}
			return nil

		case errors.Is(err, pgx.ErrNoRows):
			g, err := game.NewMatch(caller, kind, stake, "coins", now)
			if err != nil {
				return err
			}
			if err := adjustBalance(ctx, tx, caller, -stake); err != nil {
				return err
			}
			if err := insertGame(ctx, tx, g); err != nil {
				return err
			}
			res = MatchResult{Joined: false, Game: g}
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelMatchmaking abandons a waiting game and refunds the reserved stake.
// The status check happens under the row lock, so a cancel racing a join
// resolves deterministically: whichever transaction locks the row first
// wins, the other gets a typed rejection.
func CancelMatchmaking(ctx context.Context, caller, gameID uuid.UUID) (*models.Game, error) {
	var result *models.Game
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if err := game.Cancel(g, caller, time.Now().UTC()); err != nil {
			return err
		}
		for userID, credit := range game.Settlement(g) {
			if _, err := lockBalance(ctx, tx, userID); err != nil {
				return err
			}
			if err := adjustBalance(ctx, tx, userID, credit); err != nil {
				return err
			}
		}
		if err := updateGame(ctx, tx, g); err != nil {
			return err
		}
		result = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitTurn validates and commits one proposed move: turn ownership check,
// structural validation, state write, turn flip and — on a terminal move —
// the pot transfer, all in one transaction. A submission against a terminal
// game is rejected idempotently with game.ErrGameOver and mutates nothing.
func SubmitTurn(ctx context.Context, caller, gameID uuid.UUID, proposed []byte) (*models.Game, game.Outcome, error) {
	var (
		result  *models.Game
		outcome game.Outcome
	)
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		out, err := game.Submit(g, caller, proposed, time.Now().UTC())
		if err != nil {
			return err
		}
		if out.Terminal {
			if _, err := lockBothBalances(ctx, tx, g.PlayerA, g.PlayerB); err != nil {
				return err
			}
			for userID, credit := range game.Settlement(g) {
				if err := adjustBalance(ctx, tx, userID, credit); err != nil {
					return err
				}
			}
		}
		if err := updateGame(ctx, tx, g); err != nil {
			return err
		}
		result = g
		outcome = out
		return nil
	})
	if err != nil {
		return nil, game.Outcome{}, err
	}
	return result, outcome, nil
}

// ForfeitIdleGames finishes every active game whose last committed change is
// older than cutoff, awarding the pot to the opponent of the player who
// stalled on their turn. Returns the finished rows so the caller can fan
// them out to subscribers.
func ForfeitIdleGames(ctx context.Context, cutoff time.Time) ([]*models.Game, error) {
	var forfeited []*models.Game
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+gameColumns+`
			FROM games
			WHERE status='active' AND updated_at < $1
			FOR UPDATE SKIP LOCKED`,
			cutoff,
		)
		if err != nil {
			return err
		}
		stale, err := collectGames(rows)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, g := range stale {
			if err := game.Forfeit(g, g.CurrentTurn, now); err != nil {
				return err
			}
			if _, err := lockBothBalances(ctx, tx, g.PlayerA, g.PlayerB); err != nil {
				return err
			}
			for userID, credit := range game.Settlement(g) {
				if err := adjustBalance(ctx, tx, userID, credit); err != nil {
					return err
				}
			}
			if err := updateGame(ctx, tx, g); err != nil {
				return err
			}
			forfeited = append(forfeited, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return forfeited, nil
}

// GetGame fetches the current authoritative row without locking; this is the
// fetch half of the fetch-then-subscribe sequence.
func GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	row := DB.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1`, gameID)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	return g, err
}

func lockGame(ctx context.Context, tx pgx.Tx, gameID uuid.UUID) (*models.Game, error) {
	row := tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1 FOR UPDATE`, gameID)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	return g, err
}

func insertGame(ctx context.Context, tx pgx.Tx, g *models.Game) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO games (`+gameColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		g.ID, g.Kind, g.Status, g.PlayerA, nullable(g.PlayerB), nullable(g.CurrentTurn),
		g.Stake, g.Currency, g.State, nullable(g.Winner), g.MoveCount, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

func updateGame(ctx context.Context, tx pgx.Tx, g *models.Game) error {
	_, err := tx.Exec(ctx, `
		UPDATE games
		SET status=$2, player_b=$3, current_turn=$4, state=$5,
		    winner=$6, move_count=$7, updated_at=$8
		WHERE id=$1`,
		g.ID, g.Status, nullable(g.PlayerB), nullable(g.CurrentTurn),
		g.State, nullable(g.Winner), g.MoveCount, g.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*models.Game, error) {
	var (
		g                            models.Game
		playerB, currentTurn, winner *uuid.UUID
	)
	err := row.Scan(
		&g.ID, &g.Kind, &g.Status, &g.PlayerA, &playerB, &currentTurn,
		&g.Stake, &g.Currency, &g.State, &winner, &g.MoveCount, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.PlayerB = deref(playerB)
	g.CurrentTurn = deref(currentTurn)
	g.Winner = deref(winner)
	return &g, nil
}

func collectGames(rows pgx.Rows) ([]*models.Game, error) {
	defer rows.Close()
	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// nullable maps uuid.Nil to SQL NULL for insert/update parameters.
func nullable(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
