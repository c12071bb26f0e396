// Package main handles the WebSocket chat route: it resolves the calling
// user from the connection record and dispatches the frame's action.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"chat-backend/infrastructure/config"
	"chat-backend/infrastructure/di"
	"chat-backend/pkg/common"
)

var container *di.Container

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

func handler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := req.RequestContext.ConnectionID

	userID, err := container.ConnectionService.GetConnectionOwner(ctx, connectionID)
	if err != nil {
		container.Logger.Warn("frame from unknown connection",
			zap.String("connectionId", connectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusForbidden, Body: "unknown connection"}, nil
	}

	ctx = common.WithUserID(common.WithConnectionID(ctx, connectionID), userID)
	response := container.Dispatcher.Dispatch(ctx, userID, []byte(req.Body))

	body, err := json.Marshal(response)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "internal error"}, nil
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(body)}, nil
}

func main() {
	lambda.Start(handler)
}
