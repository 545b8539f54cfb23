package sqlite

import (
	"fmt"

	"github.com/ageniuscoder/caseline/backend/internal/storage/schema"
)

func (s *Sqlite) Migrate() error {
	for _, st := range schema.Statements(schema.SQLite) {
		if _, err := s.Db.Exec(st); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
