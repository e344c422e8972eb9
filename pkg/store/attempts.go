package store

import (
	"database/sql"
	"errors"
	"fmt"
	"image"
	"time"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/utils"
)

// ErrNoAttempts is returned when a session has no recorded attempts.
var ErrNoAttempts = errors.New("no attempts recorded")

const attemptColumns = `id, session_id, pair, center_x, center_y, min_x, min_y, max_x, max_y, score, quality, found, created_at`

// RecordAttempt stores a and returns it with ID and CreatedAt filled in.
func (s *Store) RecordAttempt(a api.Attempt) (api.Attempt, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	err := s.execTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO attempts (session_id, pair, center_x, center_y, min_x, min_y, max_x, max_y, score, quality, found, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.SessionID, a.Pair, a.Center.X, a.Center.Y,
			a.Bounds.X0, a.Bounds.Y0, a.Bounds.X1, a.Bounds.Y1,
			a.Score, a.Quality, a.Found, a.CreatedAt.UnixMilli())
		if err != nil {
			return err
		}
		a.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return api.Attempt{}, fmt.Errorf("failed to record attempt: %w", err)
	}
	a.CreatedAt = utils.UnixMilliToTime(a.CreatedAt.UnixMilli())
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (api.Attempt, error) {
	var (
		a       api.Attempt
		created int64
	)
	err := row.Scan(&a.ID, &a.SessionID, &a.Pair, &a.Center.X, &a.Center.Y,
		&a.Bounds.X0, &a.Bounds.Y0, &a.Bounds.X1, &a.Bounds.Y1,
		&a.Score, &a.Quality, &a.Found, &created)
	if err != nil {
		return api.Attempt{}, err
	}
	a.CreatedAt = utils.UnixMilliToTime(created)
	return a, nil
}

// ListAttempts returns the most recent attempts of a session, newest first.
// limit <= 0 returns all of them.
func (s *Store) ListAttempts(sessionID string, limit int) ([]api.Attempt, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.conn.Query(`
		SELECT `+attemptColumns+` FROM attempts
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var out []api.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// BestAttempt returns the highest scoring attempt of a session.
func (s *Store) BestAttempt(sessionID string) (api.Attempt, error) {
	row := s.conn.QueryRow(`
		SELECT `+attemptColumns+` FROM attempts
		WHERE session_id = ?
		ORDER BY score DESC, id ASC
		LIMIT 1
	`, sessionID)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return api.Attempt{}, ErrNoAttempts
	}
	if err != nil {
		return api.Attempt{}, fmt.Errorf("failed to get best attempt: %w", err)
	}
	return a, nil
}

// PairSummary aggregates every attempt made on a pair across sessions.
func (s *Store) PairSummary(pair string) (api.PairSummary, error) {
	sum := api.PairSummary{Pair: pair}
	var best, avg sql.NullFloat64
	err := s.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(found), 0), MAX(score), AVG(score)
		FROM attempts WHERE pair = ?
	`, pair).Scan(&sum.Attempts, &sum.Found, &best, &avg)
	if err != nil {
		return sum, fmt.Errorf("failed to summarize pair %s: %w", pair, err)
	}
	sum.Best = best.Float64
	sum.Average = avg.Float64
	return sum, nil
}

// NewAttempt builds an unsaved attempt from a scored patch.
func NewAttempt(sessionID, pair string, center image.Point, res *api.PatchResult, found bool) api.Attempt {
	return api.Attempt{
		SessionID: sessionID,
		Pair:      pair,
		Center:    api.PointOf(center),
		Bounds:    res.Bounds,
		Score:     res.Score,
		Quality:   res.Quality,
		Found:     found,
	}
}
