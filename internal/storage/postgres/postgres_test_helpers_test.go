package postgres

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/domain/events"
	"github.com/intheknowyyc/server/internal/domain/ids"
	"github.com/intheknowyyc/server/internal/domain/users"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	sharedOnce      sync.Once
	sharedInitErr   error
	sharedContainer *postgres.PostgresContainer
	sharedPool      *pgxpool.Pool
	sharedDBURL     string
)

const sharedContainerName = "intheknow-storage-db"

func TestMain(m *testing.M) {
	code := m.Run()
	cleanupShared()
	os.Exit(code)
}

// setupPostgres returns a migrated, emptied database. Tests using it are
// skipped under -short.
func setupPostgres(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	initShared(t)
	resetDatabase(t, sharedPool)

	return sharedPool, sharedDBURL
}

func initShared(t *testing.T) {
	t.Helper()
	sharedOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		_ = os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

		container, err := postgres.Run(
			ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("intheknow"),
			postgres.WithUsername("intheknow"),
			postgres.WithPassword("intheknow_dev"),
			testcontainers.WithReuseByName(sharedContainerName),
		)
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedContainer = container

		dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedDBURL = dbURL

		if err := migrateWithRetry(dbURL, 10*time.Second); err != nil {
			sharedInitErr = err
			return
		}

		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedPool = pool
	})

	require.NoError(t, sharedInitErr)
}

func cleanupShared() {
	if sharedPool != nil {
		sharedPool.Close()
	}
	// The reused container outlives this process; terminating it here breaks
	// other packages sharing it.
}

func resetDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	require.NotNil(t, pool, "shared pool is nil")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
SELECT tablename
  FROM pg_tables
 WHERE schemaname = 'public'
   AND tablename <> 'schema_migrations'
 ORDER BY tablename;
`)
	require.NoError(t, err)
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		safe := strings.ReplaceAll(name, "\"", "\"\"")
		tables = append(tables, "\"public\".\""+safe+"\"")
	}
	require.NoError(t, rows.Err())

	if len(tables) == 0 {
		return
	}
	_, err = pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE;")
	require.NoError(t, err)
}

func insertUser(t *testing.T, ctx context.Context, repo *Repository, email string, role auth.Role) *users.User {
	t.Helper()
	id, err := ids.NewULID()
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	created, err := repo.Users().Create(ctx, users.User{
		ID:           id,
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		FullName:     "Test " + email,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return created
}

type eventSeed struct {
	name         string
	organization string
	eventType    string
	industry     string
	location     string
	free         bool
	cost         string
	status       events.Status
	date         time.Time
	userID       string
}

func insertEvent(t *testing.T, ctx context.Context, repo *Repository, seed eventSeed) *events.Event {
	t.Helper()
	id, err := ids.NewULID()
	require.NoError(t, err)

	cost := decimal.Zero
	if seed.cost != "" {
		cost = decimal.RequireFromString(seed.cost)
	}
	if seed.eventType == "" {
		seed.eventType = "Meetup"
	}
	if seed.location == "" {
		seed.location = "Calgary"
	}
	if seed.status == "" {
		seed.status = events.StatusApproved
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	created, err := repo.Events().Create(ctx, events.Event{
		ID:               id,
		OrganizationName: seed.organization,
		EventName:        seed.name,
		EventDescription: "Description of " + seed.name,
		EventDate:        seed.date,
		FreeEvent:        seed.free,
		EventCost:        cost,
		EventLink:        "https://example.com/" + id,
		EventType:        seed.eventType,
		Location:         seed.location,
		Industry:         seed.industry,
		Speakers:         []events.Speaker{{Name: "Ada", Company: "Analytical"}},
		Status:           seed.status,
		UserID:           seed.userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)
	return created
}

func migrateWithRetry(databaseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := MigrateUp(databaseURL, ""); err != nil {
			if time.Now().After(deadline) {
				return err
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil
	}
}

func timePtr(value time.Time) *time.Time {
	return &value
}
