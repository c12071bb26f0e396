package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "chat-backend/pkg/errors"
)

const (
	testConnectionTable = "chat-connections"
	testUserIndex       = "UserIndex"
)

func newConnectionFixture(t *testing.T) (*ConnectionService, *fakeConnector) {
	t.Helper()

	connector := newFakeConnector()
	table := connector.addTable(testConnectionTable, "connectionId", "")
	table.addIndex(testUserIndex, "userId", "")

	service := NewConnectionService(connector, testConnectionTable, testUserIndex, zap.NewNop())
	service.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return service, connector
}

func TestCreateAndLookupConnection(t *testing.T) {
	service, _ := newConnectionFixture(t)
	ctx := context.Background()

	created, err := service.CreateConnection(ctx, "conn-1", "alice", "wss://example.test")
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), created.CreatedAt)
	assert.Equal(t, created.CreatedAt/1000+int64(connectionTTL/time.Second), created.TTL)

	conn, err := service.GetConnectionByID(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "alice", conn.UserID)
	assert.Equal(t, "wss://example.test", conn.Endpoint)

	owner, err := service.GetConnectionOwner(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestGetConnectionOwnerUnknownConnection(t *testing.T) {
	service, _ := newConnectionFixture(t)

	conn, err := service.GetConnectionByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, conn)

	_, err = service.GetConnectionOwner(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListConnectionsForUser(t *testing.T) {
	service, _ := newConnectionFixture(t)
	ctx := context.Background()

	_, err := service.CreateConnection(ctx, "conn-1", "alice", "wss://example.test")
	require.NoError(t, err)
	_, err = service.CreateConnection(ctx, "conn-2", "alice", "wss://example.test")
	require.NoError(t, err)
	_, err = service.CreateConnection(ctx, "conn-3", "bob", "wss://example.test")
	require.NoError(t, err)

	conns, err := service.ListConnectionsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conns, 2)
	for _, conn := range conns {
		assert.Equal(t, "alice", conn.UserID)
	}
}

func TestDeleteConnectionIsIdempotent(t *testing.T) {
	service, _ := newConnectionFixture(t)
	ctx := context.Background()

	_, err := service.CreateConnection(ctx, "conn-1", "alice", "wss://example.test")
	require.NoError(t, err)

	require.NoError(t, service.DeleteConnection(ctx, "conn-1"))
	require.NoError(t, service.DeleteConnection(ctx, "conn-1"))

	conns, err := service.ListConnectionsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, conns)
}
