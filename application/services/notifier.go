package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"

	apperrors "chat-backend/pkg/errors"
)

// ManagementAPI posts frames to live WebSocket connections. It matches the
// apigatewaymanagementapi client signature so the real client satisfies it
// directly.
type ManagementAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Notifier fans messages out to a user's live connections. Stale connections
// (the gateway reports them gone) are pruned from the connection table as a
// side effect of delivery.
type Notifier struct {
	api         ManagementAPI
	connections *ConnectionService
	logger      *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(api ManagementAPI, connections *ConnectionService, logger *zap.Logger) *Notifier {
	return &Notifier{api: api, connections: connections, logger: logger}
}

// SendToConnection posts one payload frame to one connection. A gone
// connection is pruned and reported as an external error.
func (n *Notifier) SendToConnection(ctx context.Context, connectionID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal notification payload")
	}

	_, err = n.api.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: &connectionID,
		Data:         data,
	})
	if err != nil {
		var gone *apigwtypes.GoneException
		if errors.As(err, &gone) {
			if deleteErr := n.connections.DeleteConnection(ctx, connectionID); deleteErr != nil {
				n.logger.Warn("failed to prune stale connection",
					zap.String("connectionId", connectionID),
					zap.Error(deleteErr),
				)
			}
			return apperrors.NewExternalError("websocket gateway", err).WithCode("CONNECTION_GONE")
		}
		return apperrors.NewExternalError("websocket gateway", err)
	}

	return nil
}

// SendToUser posts a payload to every live connection the user holds.
// Per-connection failures are logged and skipped so one dead connection
// cannot block the rest.
func (n *Notifier) SendToUser(ctx context.Context, userID string, payload interface{}) error {
	conns, err := n.connections.ListConnectionsForUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, conn := range conns {
		if err := n.SendToConnection(ctx, conn.ConnectionID, payload); err != nil {
			n.logger.Warn("failed to notify connection",
				zap.String("userId", userID),
				zap.String("connectionId", conn.ConnectionID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// SendToUsers posts a payload to every listed user, optionally excluding one
// (typically the sender's own echo).
func (n *Notifier) SendToUsers(ctx context.Context, userIDs []string, excludeUserID string, payload interface{}) error {
	sends := make([]func() error, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == excludeUserID {
			continue
		}
		userID := userID
		sends = append(sends, func() error {
			return n.SendToUser(ctx, userID, payload)
		})
	}
	return fanOut(sends...)
}
