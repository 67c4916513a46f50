package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadsync/internal/model"
)

// sqliteTimeLayout is fixed-width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqliteConnPragmas apply to each connection, so they travel in the DSN and
// the driver runs them on every connection it opens.
var sqliteConnPragmas = []string{
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

// sqliteDSN appends the per-connection pragmas to dsn.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqliteConnPragmas {
		dsn += sep + "_pragma=" + p
		sep = "&"
	}
	return dsn
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// journal_mode is stored in the database file, so one connection is enough.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: enable WAL")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL CHECK (trim(name) <> ''),
	country     TEXT NOT NULL,
	probability REAL NOT NULL CHECK (probability >= 0 AND probability <= 1),
	status      TEXT NOT NULL CHECK (status IN ('Verified', 'To Check')),
	synced      INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status_synced ON leads(status, synced);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return persistErr("migrate", eris.Wrap(err, "sqlite: migrate"))
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return persistErr("ping", eris.Wrap(s.db.PingContext(ctx), "sqlite: ping"))
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, n model.NewLead) (*model.Lead, error) {
	lead, err := prepareLead(n)
	if err != nil {
		return nil, persistErr("create lead", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, country, probability, status, synced, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)`,
		lead.ID, lead.Name, lead.Country, lead.Probability, string(lead.Status), lead.CreatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return nil, persistErr("create lead", eris.Wrap(err, "sqlite: insert lead"))
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, name, country, probability, status, synced, created_at FROM leads`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	leads, err := s.queryLeads(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list leads", eris.Wrap(err, "sqlite: list leads"))
	}
	return leads, nil
}

func (s *SQLiteStore) FindUnsyncedVerified(ctx context.Context) ([]model.Lead, error) {
	leads, err := s.queryLeads(ctx,
		`SELECT id, name, country, probability, status, synced, created_at FROM leads WHERE status = ? AND synced = 0 ORDER BY created_at ASC, id ASC`,
		string(model.StatusVerified),
	)
	if err != nil {
		return nil, persistErr("find unsynced", eris.Wrap(err, "sqlite: find unsynced verified"))
	}
	return leads, nil
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE leads SET synced = 1 WHERE id = ? AND synced = 0`, id)
	if err != nil {
		return false, persistErr("mark synced", eris.Wrapf(err, "sqlite: mark synced %s", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistErr("mark synced", eris.Wrap(err, "sqlite: rows affected"))
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, persistErr("mark synced", eris.Wrapf(err, "sqlite: lookup lead %s", id))
	}
	if !exists {
		return false, persistErr("mark synced", eris.Wrapf(ErrLeadNotFound, "sqlite: lead %s", id))
	}
	return false, nil
}

func (s *SQLiteStore) queryLeads(ctx context.Context, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	leads := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status, createdAt string
	if err := row.Scan(&l.ID, &l.Name, &l.Country, &l.Probability, &status, &l.Synced, &createdAt); err != nil {
		return nil, eris.Wrap(err, "scan lead")
	}
	ts, err := time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return nil, eris.Wrapf(err, "parse created_at %q", createdAt)
	}
	l.Status = model.Status(status)
	l.CreatedAt = ts
	return &l, nil
}
