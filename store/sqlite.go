// Package store persists finished episodes in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/milk9111/tankrl/env"
	_ "modernc.org/sqlite"
)

// Episode is one persisted episode record.
type Episode struct {
	ID          string    `json:"id"`
	Run         string    `json:"run"`
	Number      int       `json:"number"`
	Start       float64   `json:"start"`
	End         float64   `json:"end"`
	Duration    float64   `json:"duration"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason"`
	FinalScore  int       `json:"final_score"`
	TotalReward float64   `json:"total_reward"`
	Ticks       int       `json:"ticks"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary aggregates every stored episode. Averages are NaN when there is
// nothing to average.
type Summary struct {
	Episodes            int     `json:"episodes"`
	Successes           int     `json:"successes"`
	SuccessRate         float64 `json:"success_rate"`
	AverageTimeToTarget float64 `json:"average_time_to_target"`
	AverageReward       float64 `json:"average_reward"`
}

type Store struct {
	db     *sql.DB
	run    string
	logger *log.Logger
}

var _ env.EpisodeObserver = (*Store)(nil)

// Open opens (or creates) the database at path and migrates it.
func Open(path string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: busy timeout: %w", err)
	}

	if logger == nil {
		logger = log.Default()
	}
	s := &Store{db: db, run: uuid.NewString(), logger: logger}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Run identifies this process's episodes.
func (s *Store) Run() string {
	return s.run
}

func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			run TEXT NOT NULL,
			number INTEGER NOT NULL,
			start_s REAL NOT NULL,
			end_s REAL NOT NULL,
			success INTEGER NOT NULL,
			reason TEXT NOT NULL,
			final_score INTEGER NOT NULL,
			total_reward REAL NOT NULL,
			ticks INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_run ON episodes(run, number)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_created_at ON episodes(created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveEpisode(ctx context.Context, rec env.EpisodeRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, run, number, start_s, end_s, success, reason, final_score, total_reward, ticks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, s.run, rec.Number,
		rec.Start.Seconds(), rec.End.Seconds(),
		boolToInt(rec.Success), string(rec.Reason),
		rec.FinalScore, rec.TotalReward, rec.Ticks,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: save episode %s: %w", rec.ID, err)
	}
	return nil
}

// EpisodeEnded saves rec. Failures are logged; the training loop keeps
// going without persistence.
func (s *Store) EpisodeEnded(rec env.EpisodeRecord) {
	if err := s.SaveEpisode(context.Background(), rec); err != nil {
		s.logger.Printf("%v", err)
	}
}

func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run, number, start_s, end_s, success, reason, final_score, total_reward, ticks, created_at
		FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get episode %s: %w", id, err)
	}
	return ep, nil
}

var ErrNotFound = errors.New("store: not found")

// ListEpisodes returns the newest episodes first.
func (s *Store) ListEpisodes(ctx context.Context, limit, offset int) ([]Episode, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run, number, start_s, end_s, success, reason, final_score, total_reward, ticks, created_at
		FROM episodes
		ORDER BY rowid DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list episodes: %w", err)
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan episode: %w", err)
		}
		out = append(out, *ep)
	}
	return out, rows.Err()
}

func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var (
		sum       Summary
		avgTarget sql.NullFloat64
		avgReward sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(success), 0),
		       AVG(CASE WHEN success = 1 THEN end_s - start_s END),
		       AVG(total_reward)
		FROM episodes`).Scan(&sum.Episodes, &sum.Successes, &avgTarget, &avgReward)
	if err != nil {
		return Summary{}, fmt.Errorf("store: summary: %w", err)
	}

	sum.SuccessRate = math.NaN()
	if sum.Episodes > 0 {
		sum.SuccessRate = float64(sum.Successes) / float64(sum.Episodes)
	}
	sum.AverageTimeToTarget = nullToNaN(avgTarget)
	sum.AverageReward = nullToNaN(avgReward)
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (*Episode, error) {
	var (
		ep      Episode
		success int
	)
	if err := row.Scan(&ep.ID, &ep.Run, &ep.Number, &ep.Start, &ep.End, &success,
		&ep.Reason, &ep.FinalScore, &ep.TotalReward, &ep.Ticks, &ep.CreatedAt); err != nil {
		return nil, err
	}
	ep.Success = success != 0
	ep.Duration = ep.End - ep.Start
	return &ep, nil
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
