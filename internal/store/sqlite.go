package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/olvconsultores/stratevo/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	queries
	db *sql.DB
}

// sqlitePragmas are applied to every pooled connection. Write transactions
// take the lock up front so concurrent transitions queue on busy_timeout
// instead of failing on lock upgrade.
const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_txlock=immediate"

// NewSQLite opens a SQLite database at the given path.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+sqlitePragmas)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{queries: queries{q: sqlQuerier{conn: db}}, db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}

	if err := fn(&queries{q: sqlQuerier{conn: tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			zap.L().Warn("sqlite: rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// UpsertCompanies inserts or refreshes companies keyed by tenant and CNPJ
// (or name when no CNPJ is known) in one transaction.
func (s *SQLiteStore) UpsertCompanies(ctx context.Context, companies []model.Company) (int, error) {
	if len(companies) == 0 {
		return 0, nil
	}
	err := s.WithTx(ctx, func(tx Tx) error {
		q := tx.(*queries)
		for i := range companies {
			if err := q.upsertCompany(ctx, &companies[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(companies), nil
}
