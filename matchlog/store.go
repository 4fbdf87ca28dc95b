// Package matchlog persists per-participant end-of-match records in SQLite.
package matchlog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"agones-battleground/battleground"
	"agones-battleground/matchlog/migrations"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// writeTimeout bounds a single Record call, which runs on the match loop.
const writeTimeout = 2 * time.Second

// Row is one stored match log record.
type Row struct {
	ID             int64               `json:"id"`
	Instance       uint32              `json:"instance"`
	Type           battleground.TypeID `json:"type"`
	Duration       time.Duration       `json:"duration"`
	TeamCount      int                 `json:"teamCount"`
	Participant    string              `json:"participant"`
	Team           battleground.Team   `json:"team"`
	Deaths         uint32              `json:"deaths"`
	BonusHonor     uint32              `json:"bonusHonor"`
	HonorableKills uint32              `json:"honorableKills"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// Store is a SQLite-backed battleground.MatchLog.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies the embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Str("path", path).Msg("matchlog: store opened")
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record implements battleground.MatchLog.
func (s *Store) Record(rec battleground.LogRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.Insert(ctx, rec)
}

// Insert stores one record. The duration is kept in whole seconds.
func (s *Store) Insert(ctx context.Context, rec battleground.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.Participant) == "" {
		return fmt.Errorf("participant is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO logs_battleground (
    instance, type, duration_seconds, team_count, participant, team,
    deaths, bonus_honor, honorable_kills, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Instance,
		uint32(rec.Type),
		int64(rec.Duration/time.Second),
		rec.TeamCount,
		rec.Participant,
		rec.Team.String(),
		rec.Deaths,
		rec.BonusHonor,
		rec.HonorableKills,
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert match log: %w", err)
	}
	return nil
}

// ListByInstance returns the records of one instance in insertion order.
func (s *Store) ListByInstance(ctx context.Context, instance uint32) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, instance, type, duration_seconds, team_count, participant, team,
       deaths, bonus_honor, honorable_kills, created_at
FROM logs_battleground
WHERE instance = ?
ORDER BY id`, instance)
	if err != nil {
		return nil, fmt.Errorf("list match log: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row       Row
			typ       uint32
			seconds   int64
			team      string
			createdAt int64
		)
		if err := rows.Scan(
			&row.ID, &row.Instance, &typ, &seconds, &row.TeamCount, &row.Participant, &team,
			&row.Deaths, &row.BonusHonor, &row.HonorableKills, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan match log: %w", err)
		}
		row.Type = battleground.TypeID(typ)
		row.Duration = time.Duration(seconds) * time.Second
		row.Team, err = battleground.ParseTeam(team)
		if err != nil {
			return nil, fmt.Errorf("scan match log: %w", err)
		}
		row.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match log: %w", err)
	}
	return out, nil
}
