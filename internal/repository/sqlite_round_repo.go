package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mines_client/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var sqliteMigrations embed.FS

// SQLiteRoundRepository is the local round history used when no Postgres is
// configured.
type SQLiteRoundRepository struct {
	db *sql.DB
}

// OpenSQLite opens the history file and applies embedded migrations.
func OpenSQLite(path string) (*SQLiteRoundRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; the driver serializes anyway
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applySQLiteMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRoundRepository{db: db}, nil
}

func (r *SQLiteRoundRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func applySQLiteMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(sqliteMigrations, "migrations")
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if n > 0 {
			continue
		}
		content, err := fs.ReadFile(sqliteMigrations, "migrations/"+name)
		if err != nil {
			return err
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers.
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, up)
	if i == -1 {
		return content
	}
	content = content[i+len(up):]
	if j := strings.Index(content, down); j != -1 {
		content = content[:j]
	}
	return content
}

func (r *SQLiteRoundRepository) SaveRound(ctx context.Context, rec *domain.RoundRecord) error {
	revealed, hazards, err := marshalCells(rec)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rounds
			(session_id, user_id, outcome, wager, payout, multiplier, cells, hazards,
			 revealed, hazard_positions, commitment_hash, revealed_seed, verified, verify_error, settled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.UserID,
		string(rec.Outcome),
		rec.Wager.String(),
		rec.Payout.String(),
		rec.Multiplier.String(),
		rec.Configuration.Cells,
		rec.Configuration.Hazards,
		string(revealed),
		string(hazards),
		rec.CommitmentHash,
		rec.RevealedSeed,
		rec.Verified,
		rec.VerifyError,
		rec.SettledAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert round %s: %w", rec.SessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		if id, err := res.LastInsertId(); err == nil {
			rec.ID = id
		}
	}
	return nil
}

func (r *SQLiteRoundRepository) ListRounds(ctx context.Context, userID int64, limit int) ([]*domain.RoundRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, outcome, wager, payout, multiplier, cells, hazards,
				revealed, hazard_positions, commitment_hash, revealed_seed, verified, verify_error, settled_at
		 FROM rounds
		 WHERE user_id = ?
		 ORDER BY settled_at DESC, id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.RoundRecord
	for rows.Next() {
		var (
			rec                 domain.RoundRecord
			outcome             string
			wager, payout, mult string
			revealed, hazards   string
			settledAt           int64
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &outcome, &wager, &payout, &mult,
			&rec.Configuration.Cells, &rec.Configuration.Hazards, &revealed, &hazards,
			&rec.CommitmentHash, &rec.RevealedSeed, &rec.Verified, &rec.VerifyError, &settledAt); err != nil {
			return nil, err
		}
		rec.Outcome = domain.Outcome(outcome)
		rec.SettledAt = time.UnixMilli(settledAt).UTC()
		if err := fillRecord(&rec, wager, payout, mult, []byte(revealed), []byte(hazards)); err != nil {
			return nil, err
		}
		res = append(res, &rec)
	}
	return res, rows.Err()
}
