// internal/database/move.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/playgrid/arcade/internal/models"
)

// InsertMoveRecords batch-appends committed moves to the ledger. Called by
// the historian worker, not the request path; ON CONFLICT DO NOTHING makes
// redelivery from the queue harmless.
func InsertMoveRecords(ctx context.Context, records []models.MoveRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO moves (game_id, seq, mover, payload, recorded_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (game_id, seq) DO NOTHING
		`
		for _, rec := range records {
			ts := time.UnixMilli(rec.Timestamp).UTC()
			if _, err := tx.Exec(ctx, q, rec.GameID, rec.Seq, rec.Mover, rec.Payload, ts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert move records: %w", err)
	}
	return nil
}

// ListMoves returns a game's committed moves in sequence order, for replay
// and audit.
func ListMoves(ctx context.Context, gameID uuid.UUID) ([]models.MoveRecord, error) {
	rows, err := DB.Query(ctx, `
		SELECT game_id, seq, mover, payload, recorded_at
		FROM moves
		WHERE game_id=$1
		ORDER BY seq`,
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moves []models.MoveRecord
	for rows.Next() {
		var (
			rec models.MoveRecord
			ts  time.Time
		)
		if err := rows.Scan(&rec.GameID, &rec.Seq, &rec.Mover, &rec.Payload, &ts); err != nil {
			return nil, err
		}
		rec.Timestamp = ts.UnixMilli()
		moves = append(moves, rec)
	}
	return moves, rows.Err()
}
