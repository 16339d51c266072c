package store

import (
	"context"
	"database/sql"
	"time"
)

// Request is one /process call.
type Request struct {
	ID         int64     `json:"id"`
	Game       string    `json:"game"`
	Status     int       `json:"status"`
	Result     string    `json:"result"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// RequestRepository provides access to the request log.
type RequestRepository struct {
	db *sql.DB
}

// Requests returns the request repository for this store.
func (s *Store) Requests() *RequestRepository {
	return &RequestRepository{db: s.db}
}

// Create inserts a request and sets its ID.
func (r *RequestRepository) Create(ctx context.Context, req *Request) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO requests (game, status, result, duration_ms, created_at) VALUES (?, ?, ?, ?, ?)`,
		req.Game, req.Status, req.Result, req.DurationMs, req.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = id
	return nil
}

// List returns the most recent requests first, optionally filtered by game.
func (r *RequestRepository) List(ctx context.Context, game string, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game, status, result, duration_ms, created_at
		 FROM requests
		 WHERE ? = '' OR game = ?
		 ORDER BY id DESC LIMIT ?`,
		game, game, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.Game, &req.Status, &req.Result, &req.DurationMs, &req.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

// CountByGame returns the number of logged requests per game.
func (r *RequestRepository) CountByGame(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT game, COUNT(*) FROM requests GROUP BY game`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var game string
		var n int
		if err := rows.Scan(&game, &n); err != nil {
			return nil, err
		}
		counts[game] = n
	}
	return counts, rows.Err()
}
