package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mines_client/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const defaultListLimit = 100

// RoundStore keeps the audit trail of settled rounds.
type RoundStore interface {
	SaveRound(ctx context.Context, r *domain.RoundRecord) error
	ListRounds(ctx context.Context, userID int64, limit int) ([]*domain.RoundRecord, error)
}

type PGRoundRepository struct {
	db *pgxpool.Pool
}

func NewPGRoundRepository(db *pgxpool.Pool) *PGRoundRepository {
	return &PGRoundRepository{db: db}
}

// SaveRound сохраняет раунд; повторная запись той же сессии игнорируется
func (r *PGRoundRepository) SaveRound(ctx context.Context, rec *domain.RoundRecord) error {
	revealed, hazards, err := marshalCells(rec)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO rounds
			(session_id, user_id, outcome, wager, payout, multiplier, cells, hazards,
			 revealed, hazard_positions, commitment_hash, revealed_seed, verified, verify_error, settled_at)
		 VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (session_id) DO NOTHING
		 RETURNING id`,
		rec.SessionID,
		rec.UserID,
		string(rec.Outcome),
		rec.Wager.String(),
		rec.Payout.String(),
		rec.Multiplier.String(),
		rec.Configuration.Cells,
		rec.Configuration.Hazards,
		revealed,
		hazards,
		rec.CommitmentHash,
		rec.RevealedSeed,
		rec.Verified,
		rec.VerifyError,
		rec.SettledAt,
	).Scan(&rec.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert round %s: %w", rec.SessionID, err)
	}
	return nil
}

// ListRounds возвращает последние раунды пользователя, новые первыми
func (r *PGRoundRepository) ListRounds(ctx context.Context, userID int64, limit int) ([]*domain.RoundRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, user_id, outcome, wager::text, payout::text, multiplier::text,
				cells, hazards, revealed, hazard_positions, commitment_hash, revealed_seed,
				verified, verify_error, settled_at
		 FROM rounds
		 WHERE user_id = $1
		 ORDER BY settled_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.RoundRecord
	for rows.Next() {
		var (
			rec                     domain.RoundRecord
			outcome                 string
			wager, payout, mult     string
			revealedJSON, hazardsJS []byte
			settledAt               time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &outcome, &wager, &payout, &mult,
			&rec.Configuration.Cells, &rec.Configuration.Hazards, &revealedJSON, &hazardsJS,
			&rec.CommitmentHash, &rec.RevealedSeed, &rec.Verified, &rec.VerifyError, &settledAt); err != nil {
			return nil, err
		}
		rec.Outcome = domain.Outcome(outcome)
		rec.SettledAt = settledAt.UTC()
		if err := fillRecord(&rec, wager, payout, mult, revealedJSON, hazardsJS); err != nil {
			return nil, err
		}
		res = append(res, &rec)
	}
	return res, rows.Err()
}

func marshalCells(rec *domain.RoundRecord) ([]byte, []byte, error) {
	revealed, err := json.Marshal(nonNil(rec.Revealed))
	if err != nil {
		return nil, nil, err
	}
	hazards, err := json.Marshal(nonNil(rec.Hazards))
	if err != nil {
		return nil, nil, err
	}
	return revealed, hazards, nil
}

func nonNil(cells []int) []int {
	if cells == nil {
		return []int{}
	}
	return cells
}

func fillRecord(rec *domain.RoundRecord, wager, payout, mult string, revealed, hazards []byte) error {
	var err error
	if rec.Wager, err = decimal.NewFromString(wager); err != nil {
		return fmt.Errorf("round %s wager: %w", rec.SessionID, err)
	}
	if rec.Payout, err = decimal.NewFromString(payout); err != nil {
		return fmt.Errorf("round %s payout: %w", rec.SessionID, err)
	}
	if rec.Multiplier, err = decimal.NewFromString(mult); err != nil {
		return fmt.Errorf("round %s multiplier: %w", rec.SessionID, err)
	}
	if err := json.Unmarshal(revealed, &rec.Revealed); err != nil {
		return fmt.Errorf("round %s revealed: %w", rec.SessionID, err)
	}
	if err := json.Unmarshal(hazards, &rec.Hazards); err != nil {
		return fmt.Errorf("round %s hazards: %w", rec.SessionID, err)
	}
	return nil
}
