// Package main handles WebSocket $connect: it authenticates the token from
// the query string and registers the connection for the user.
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
	token := req.QueryStringParameters["token"]
	if token == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "missing token"}, nil
	}

	userID, err := container.JWTValidator.ValidateToken(token)
	if err != nil {
		container.Logger.Warn("websocket connect rejected", zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "invalid token"}, nil
	}

	endpoint := "https://" + req.RequestContext.DomainName + "/" + req.RequestContext.Stage
	_, err = container.ConnectionService.CreateConnection(ctx, req.RequestContext.ConnectionID, userID, endpoint)
	if err != nil {
		container.Logger.Error("failed to register connection",
			zap.String("connectionId", req.RequestContext.ConnectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "failed to connect"}, nil
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "connected"}, nil
}

func main() {
	lambda.Start(handler)
}
