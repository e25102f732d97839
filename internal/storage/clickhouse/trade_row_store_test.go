package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/storage"
	chstore "hedge-lab/internal/storage/clickhouse"
	"hedge-lab/internal/storage/migrations"
)

// setupTestDB starts a ClickHouse container and applies the embedded migrations
// to a database the migration itself creates.
func setupTestDB(t *testing.T) *chstore.Conn {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://default:@%s:%s/hedge_test", host, port.Port())

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestTradeRowStore(t *testing.T) {
	conn := setupTestDB(t)
	store := chstore.NewTradeRowStore(conn)
	ctx := context.Background()

	batch1 := []domain.RawRow{
		{domain.FieldTradeHash: "c2", domain.FieldAsset: "NQ", domain.FieldNetProfit: -12.5},
		{domain.FieldTradeHash: "c1", domain.FieldAsset: "ESM5"},
	}
	require.NoError(t, store.InsertBulk(ctx, batch1))
	require.NoError(t, store.InsertBulk(ctx, []domain.RawRow{{domain.FieldTradeHash: "c0", domain.FieldAsset: "CL"}}))

	rows, err := store.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "c2", rows[0][domain.FieldTradeHash])
	assert.Equal(t, "-12.5", rows[0][domain.FieldNetProfit])
	assert.Equal(t, "c1", rows[1][domain.FieldTradeHash])
	assert.Equal(t, "c0", rows[2][domain.FieldTradeHash])
	_, has := rows[1][domain.FieldNetProfit]
	assert.False(t, has)

	err = store.InsertBulk(ctx, []domain.RawRow{{domain.FieldTradeHash: "c1"}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []domain.RawRow{{domain.FieldTradeHash: "c9"}, {domain.FieldTradeHash: "c9"}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	row, err := store.GetByHash(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "ESM5", row[domain.FieldAsset])

	_, err = store.GetByHash(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
