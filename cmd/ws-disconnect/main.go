// Package main handles WebSocket $disconnect: it drops the connection record.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"chat-backend/infrastructure/config"
	"chat-backend/infrastructure/di"
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
	if err := container.ConnectionService.DeleteConnection(ctx, req.RequestContext.ConnectionID); err != nil {
		container.Logger.Error("failed to drop connection",
			zap.String("connectionId", req.RequestContext.ConnectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "failed to disconnect"}, nil
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "disconnected"}, nil
}

func main() {
	lambda.Start(handler)
}
