package store

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/db"
	"github.com/olvconsultores/stratevo/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	queries
	pool    db.Pool
	dsn     string
	closeFn func()
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
	minConns := int32(2)
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
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	s := newPostgresWithPool(pool)
	s.dsn = connString
	s.closeFn = pool.Close
	return s, nil
}

// newPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{queries: queries{q: pgQuerier{conn: pool}}, pool: pool}
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate(_ context.Context) error {
	if s.dsn == "" {
		return eris.New("postgres: migrate: no connection string")
	}
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: migration source")
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, s.dsn)
	if err != nil {
		return eris.Wrap(err, "postgres: create migrator")
	}
	defer m.Close() //nolint:errcheck

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "postgres: migrate up")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}

	if err := fn(&queries{q: pgQuerier{conn: tx}}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			zap.L().Warn("postgres: rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

var companyColumns = []string{
	"id", "tenant_id", "name", "tax_id", "tax_id_validated", "sector", "state", "city",
	"employees_min", "employees_max", "capital", "digital_maturity", "technologies", "source",
	"source_meta", "pipeline_status", "dedupe_key", "created_at", "updated_at",
}

// Import refreshes descriptive columns only; identity, pipeline status and
// creation time of an existing company are left alone.
var companyUpdateColumns = []string{
	"name", "tax_id", "sector", "state", "city", "employees_min", "employees_max",
	"capital", "digital_maturity", "technologies", "source", "source_meta", "updated_at",
}

// UpsertCompanies bulk-loads companies through COPY and resolves the ids of
// rows that already existed so callers hold persisted identities.
func (s *PostgresStore) UpsertCompanies(ctx context.Context, companies []model.Company) (int, error) {
	if len(companies) == 0 {
		return 0, nil
	}

	// ON CONFLICT cannot touch the same row twice in one statement, so
	// duplicates inside the batch collapse to the last occurrence.
	rows := make([][]any, 0, len(companies))
	pos := make(map[string]int, len(companies))
	keys := make(map[string][]string)
	for i := range companies {
		c := &companies[i]
		prepareCompany(c)
		args, err := companyArgs(c)
		if err != nil {
			return 0, err
		}
		dk := dedupeKey(c)
		if at, ok := pos[c.TenantID+"|"+dk]; ok {
			rows[at] = args
			continue
		}
		pos[c.TenantID+"|"+dk] = len(rows)
		rows = append(rows, args)
		keys[c.TenantID] = append(keys[c.TenantID], dk)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "companies",
		Columns:      companyColumns,
		ConflictKeys: []string{"tenant_id", "dedupe_key"},
		UpdateCols:   companyUpdateColumns,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert companies")
	}

	ids := make(map[string]string, len(companies))
	for tenantID, dk := range keys {
		r, err := s.pool.Query(ctx,
			`SELECT id, dedupe_key FROM companies WHERE tenant_id = $1 AND dedupe_key = ANY($2)`,
			tenantID, dk)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: resolve company ids")
		}
		for r.Next() {
			var id, key string
			if err := r.Scan(&id, &key); err != nil {
				r.Close()
				return 0, eris.Wrap(err, "postgres: scan company id")
			}
			ids[tenantID+"|"+key] = id
		}
		r.Close()
		if err := r.Err(); err != nil {
			return 0, eris.Wrap(err, "postgres: resolve company ids")
		}
	}
	for i := range companies {
		c := &companies[i]
		if id, ok := ids[c.TenantID+"|"+dedupeKey(c)]; ok {
			c.ID = id
		}
	}
	return int(n), nil
}
