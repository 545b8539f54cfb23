// Package storagetest opens migrated in-memory stores and seeds fixtures for tests.
package storagetest

import (
	"context"
	"strings"
	"testing"

	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/storage/sqlite"
	"github.com/stretchr/testify/require"
)

// NewSQLite returns a store over a fresh in-memory sqlite database.
func NewSQLite(t testing.TB) *storage.SQLStore {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db.Store()
}

func User(t testing.TB, s storage.Store, name string, role models.Role) models.Identity {
	t.Helper()
	ident, err := s.CreateUser(context.Background(), storage.NewUser{
		Email:       strings.ToLower(name) + "@example.com",
		DisplayName: name,
		Role:        role,
	})
	require.NoError(t, err)
	return *ident
}

// Case opens a case for owner and, when assignee is set, assigns it.
func Case(t testing.TB, s storage.Store, owner models.Identity, assignee string) *models.Case {
	t.Helper()
	ctx := context.Background()
	cs, err := s.CreateCase(ctx, storage.NewCase{OwnerID: owner.ID, IssueType: "Billing"})
	require.NoError(t, err)
	if assignee == "" {
		return cs
	}
	cs, err = s.UpdateCase(ctx, cs.ID, storage.CaseUpdate{AssignedTo: &assignee})
	require.NoError(t, err)
	return cs
}
