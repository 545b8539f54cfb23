package postgres

import (
	"context"
	"database/sql"

	"github.com/ageniuscoder/caseline/backend/internal/storage"
	_ "github.com/lib/pq"
)

type Postgres struct {
	Db *sql.DB
}

func New(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{
		Db: db,
	}, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

// Store returns the data collaborator backed by this database.
func (s *Postgres) Store() *storage.SQLStore {
	return storage.NewSQLStore(s.Db, storage.DialectPostgres)
}

func (s *Postgres) Close() error {
	return s.Db.Close()
}
