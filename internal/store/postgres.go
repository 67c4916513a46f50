package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL CHECK (btrim(name) <> ''),
	country     TEXT NOT NULL,
	probability DOUBLE PRECISION NOT NULL CHECK (probability >= 0 AND probability <= 1),
	status      TEXT NOT NULL CHECK (status IN ('Verified', 'To Check')),
	synced      BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status_synced ON leads(status, synced);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
`

const leadColumns = `id, name, country, probability, status, synced, created_at`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return persistErr("ping", eris.Wrap(s.pool.Ping(ctx), "postgres: ping"))
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return persistErr("migrate", eris.Wrap(err, "postgres: migrate"))
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, n model.NewLead) (*model.Lead, error) {
	lead, err := prepareLead(n)
	if err != nil {
		return nil, persistErr("create lead", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, name, country, probability, status, synced, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lead.ID, lead.Name, lead.Country, lead.Probability, string(lead.Status), false, lead.CreatedAt,
	)
	if err != nil {
		return nil, persistErr("create lead", eris.Wrap(err, "postgres: insert lead"))
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	leads, err := s.queryLeads(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list leads", eris.Wrap(err, "postgres: list leads"))
	}
	return leads, nil
}

func (s *PostgresStore) FindUnsyncedVerified(ctx context.Context) ([]model.Lead, error) {
	leads, err := s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status = $1 AND synced = false ORDER BY created_at ASC, id ASC`,
		string(model.StatusVerified),
	)
	if err != nil {
		return nil, persistErr("find unsynced", eris.Wrap(err, "postgres: find unsynced verified"))
	}
	return leads, nil
}

func (s *PostgresStore) MarkSynced(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE leads SET synced = true WHERE id = $1 AND synced = false`, id)
	if err != nil {
		return false, persistErr("mark synced", eris.Wrapf(err, "postgres: mark synced %s", id))
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Nothing changed: either someone else claimed it or the id is bogus.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, persistErr("mark synced", eris.Wrapf(err, "postgres: lookup lead %s", id))
	}
	if !exists {
		return false, persistErr("mark synced", eris.Wrapf(ErrLeadNotFound, "postgres: lead %s", id))
	}
	return false, nil
}

func (s *PostgresStore) queryLeads(ctx context.Context, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		var l model.Lead
		var status string
		if err := rows.Scan(&l.ID, &l.Name, &l.Country, &l.Probability, &status, &l.Synced, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "scan lead")
		}
		l.Status = model.Status(status)
		l.CreatedAt = l.CreatedAt.UTC()
		leads = append(leads, l)
	}
	return leads, rows.Err()
}
