package services

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"

	"chat-backend/domain/connection"
	store "chat-backend/infrastructure/dynamodb"
	apperrors "chat-backend/pkg/errors"
)

// connectionTTL bounds how long an abandoned connection record lingers before
// the table's TTL sweep removes it.
const connectionTTL = 24 * time.Hour

// ConnectionService tracks live WebSocket connections in the connection
// table, keyed by connection id with a secondary index by user id.
type ConnectionService struct {
	connector store.Connector
	table     string
	userIndex string
	logger    *zap.Logger

	now func() time.Time
}

// NewConnectionService creates a new connection service
func NewConnectionService(connector store.Connector, table, userIndex string, logger *zap.Logger) *ConnectionService {
	return &ConnectionService{
		connector: connector,
		table:     table,
		userIndex: userIndex,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateConnection registers a connection for a user. Re-registering the same
// connection id overwrites the previous record.
func (s *ConnectionService) CreateConnection(ctx context.Context, connectionID, userID, endpoint string) (*connection.Connection, error) {
	now := s.now()
	conn := &connection.Connection{
		ConnectionID: connectionID,
		UserID:       userID,
		Endpoint:     endpoint,
		CreatedAt:    now.UnixMilli(),
		TTL:          now.Add(connectionTTL).Unix(),
	}

	_, err := store.NewQueryBuilder(store.RequestPut, s.connector).
		TableName(s.table).
		Key(conn).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("connection registered",
		zap.String("connectionId", connectionID),
		zap.String("userId", userID),
	)
	return conn, nil
}

// GetConnectionByID returns the connection record, or nil when absent
func (s *ConnectionService) GetConnectionByID(ctx context.Context, connectionID string) (*connection.Connection, error) {
	result, err := store.NewQueryBuilder(store.RequestGet, s.connector).
		TableName(s.table).
		Key(store.Item{"connectionId": stringAV(connectionID)}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Item) == 0 {
		return nil, nil
	}

	var conn connection.Connection
	if err := attributevalue.UnmarshalMap(result.Item, &conn); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal connection")
	}
	return &conn, nil
}

// GetConnectionOwner resolves the user behind a connection id
func (s *ConnectionService) GetConnectionOwner(ctx context.Context, connectionID string) (string, error) {
	conn, err := s.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return "", err
	}
	if conn == nil {
		return "", apperrors.NewNotFoundError("connection " + connectionID + " not found")
	}
	return conn.UserID, nil
}

// ListConnectionsForUser returns every live connection a user holds
func (s *ConnectionService) ListConnectionsForUser(ctx context.Context, userID string) ([]connection.Connection, error) {
	result, err := store.NewQueryBuilder(store.RequestQuery, s.connector).
		TableName(s.table).
		Index(s.userIndex).
		Key(store.Item{"userId": stringAV(userID)}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	connections := make([]connection.Connection, 0, len(result.Items))
	for _, item := range result.Items {
		var conn connection.Connection
		if err := attributevalue.UnmarshalMap(item, &conn); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal connection")
		}
		connections = append(connections, conn)
	}
	return connections, nil
}

// DeleteConnection drops a connection record. Deleting an unknown id is a
// no-op.
func (s *ConnectionService) DeleteConnection(ctx context.Context, connectionID string) error {
	_, err := store.NewQueryBuilder(store.RequestDelete, s.connector).
		TableName(s.table).
		Key(store.Item{"connectionId": stringAV(connectionID)}).
		Execute(ctx)
	return err
}
