package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dronematch/internal/opt"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the tables the store needs. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const matchColumns = `id::text, name, status, objective, board, stats, iterations, timed_out, elapsed_ms, error, created_at, updated_at`

func (p *Postgres) CreateMatch(ctx context.Context, m Match) (Match, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MatchRunning
	}
	board, err := toJSON(m.Board)
	if err != nil {
		return m, err
	}
	stats, err := toJSON(m.Stats)
	if err != nil {
		return m, err
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO matches (id, name, status, objective, board, stats, iterations, timed_out, elapsed_ms, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING created_at, updated_at`,
		m.ID, nullIfEmpty(m.Name), m.Status, m.Objective, board, stats, m.Iterations, m.TimedOut, m.ElapsedMs, nullIfEmpty(m.Error))
	if err := row.Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		return m, err
	}
	return m, nil
}

func (p *Postgres) UpdateMatch(ctx context.Context, m Match) error {
	board, err := toJSON(m.Board)
	if err != nil {
		return err
	}
	stats, err := toJSON(m.Stats)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE matches SET name=$2, status=$3, objective=$4, board=$5, stats=$6, iterations=$7,
        timed_out=$8, elapsed_ms=$9, error=$10, updated_at=now() WHERE id=$1`,
		m.ID, nullIfEmpty(m.Name), m.Status, m.Objective, board, stats, m.Iterations, m.TimedOut, m.ElapsedMs, nullIfEmpty(m.Error))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetMatch(ctx context.Context, id string) (Match, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Match{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id=$1`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

// ListMatches pages by id; the cursor is the last id of the previous page.
func (p *Postgres) ListMatches(ctx context.Context, status, cursor string, limit int) ([]Match, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE status=$1 AND id::text > $2 ORDER BY id LIMIT $3`, status, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) AppendMonitorRecords(ctx context.Context, matchID string, recs []opt.MonitorRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM match_monitor WHERE match_id=$1`, matchID).Scan(&seq); err != nil {
		return err
	}
	for _, r := range recs {
		js, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO match_monitor (match_id, seq, record) VALUES ($1,$2,$3)`, matchID, seq, js); err != nil {
			return err
		}
		seq++
	}
	return tx.Commit()
}

func (p *Postgres) ListMonitorRecords(ctx context.Context, matchID string) ([]opt.MonitorRecord, error) {
	if _, err := p.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT record FROM match_monitor WHERE match_id=$1 ORDER BY seq`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []opt.MonitorRecord{}
	for rows.Next() {
		var js []byte
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var r opt.MonitorRecord
		if err := json.Unmarshal(js, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetMatchConfig(ctx context.Context) (*opt.MatchConfig, error) {
	row := p.db.QueryRowContext(ctx, `SELECT config FROM match_config WHERE id=1`)
	var js []byte
	if err := row.Scan(&js); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var cfg opt.MatchConfig
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (p *Postgres) SaveMatchConfig(ctx context.Context, cfg opt.MatchConfig) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO match_config (id, config, updated_at) VALUES (1, $1, now())
        ON CONFLICT (id) DO UPDATE SET config=$1, updated_at=now()`, js)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(s scanner) (Match, error) {
	var m Match
	var name, errText sql.NullString
	var board, stats []byte
	if err := s.Scan(&m.ID, &name, &m.Status, &m.Objective, &board, &stats, &m.Iterations, &m.TimedOut, &m.ElapsedMs, &errText, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return m, err
	}
	m.Name = name.String
	m.Error = errText.String
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	if err := decodeJSON(board, &m.Board); err != nil {
		return m, fmt.Errorf("decode board: %w", err)
	}
	if err := decodeJSON(stats, &m.Stats); err != nil {
		return m, fmt.Errorf("decode stats: %w", err)
	}
	return m, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// toJSON encodes v for a jsonb column; nil pointers become SQL NULL.
func toJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// decodeJSON fills *dst from a nullable jsonb value, leaving it nil for NULL.
func decodeJSON[T any](b []byte, dst **T) error {
	if len(b) == 0 {
		*dst = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(b, v); err != nil {
		return err
	}
	*dst = v
	return nil
}
