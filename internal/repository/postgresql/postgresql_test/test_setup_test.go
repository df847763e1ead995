package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/hris-sync/internal/pkg/database"
	"github.com/cmlabs-hris/hris-sync/internal/repository/postgresql"
)

// TestDatabaseSetup holds the connection shared by the repository tests
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies the schema. Tests
// are skipped when no database is configured.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(db.Close)

	if err := postgresql.ApplySchema(ctx, db); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	setup := &TestDatabaseSetup{DB: db}
	if err := setup.TruncateAllTables(ctx); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return setup
}

// TruncateAllTables removes all rows from the sync tables
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tables := []string{
		"cell_conflicts",
		"cells",
		"resource_grants",
		"board_columns",
		"items",
		"boards",
		"workspaces",
	}
	for _, table := range tables {
		if _, err := s.DB.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// SeedBoard creates workspace ws-1 with board board-1, item item-1 and two
// columns, col-status (open) and col-salary (restricted).
func (s *TestDatabaseSetup) SeedBoard(ctx context.Context) error {
	statements := []string{
		`INSERT INTO workspaces (id, name) VALUES ('ws-1', 'People Ops')`,
		`INSERT INTO boards (id, workspace_id, name) VALUES ('board-1', 'ws-1', 'Leave requests')`,
		`INSERT INTO items (id, board_id, name) VALUES ('item-1', 'board-1', 'Annual leave - Rina')`,
		`INSERT INTO board_columns (id, board_id, title, restricted, position) VALUES ('col-status', 'board-1', 'Status', FALSE, 1)`,
		`INSERT INTO board_columns (id, board_id, title, restricted, position) VALUES ('col-salary', 'board-1', 'Salary impact', TRUE, 2)`,
	}
	for _, stmt := range statements {
		if _, err := s.DB.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
