package postgres

import (
	"fmt"

	"github.com/ageniuscoder/caseline/backend/internal/storage/schema"
)

func (s *Postgres) Migrate() error {
	for _, st := range schema.Statements(schema.Postgres) {
		if _, err := s.Db.Exec(st); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
