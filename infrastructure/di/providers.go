// Package di wires configuration, AWS clients, and the application services.
package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"chat-backend/application/services"
	"chat-backend/infrastructure/config"
	"chat-backend/infrastructure/dynamodb"
	"chat-backend/infrastructure/messaging/eventbridge"
	"chat-backend/interfaces/ws"
	"chat-backend/pkg/auth"
)

// ProvideLogger creates the logger for the configured environment
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideManagementAPIClient creates the API Gateway management client aimed
// at the configured WebSocket endpoint.
func ProvideManagementAPIClient(awsCfg aws.Config, cfg *config.Config) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(awsCfg, func(o *apigatewaymanagementapi.Options) {
		if cfg.WebSocketEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.WebSocketEndpoint)
		}
	})
}

// ProvideConnector creates the store connector
func ProvideConnector(client *awsdynamodb.Client, logger *zap.Logger) dynamodb.Connector {
	return dynamodb.NewClient(client, logger)
}

// ProvideEventPublisher creates the chat event publisher; eventing disabled
// returns nil and the services treat that as a no-op.
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) services.EventPublisher {
	if !cfg.EventsEnable {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideChatService creates the chat service
func ProvideChatService(
	connector dynamodb.Connector,
	cfg *config.Config,
	events services.EventPublisher,
	logger *zap.Logger,
) *services.ChatService {
	return services.NewChatService(connector, cfg.ChatTable, cfg.ChatKeyUpdatedIndex, events, logger)
}

// ProvideConnectionService creates the connection service
func ProvideConnectionService(connector dynamodb.Connector, cfg *config.Config, logger *zap.Logger) *services.ConnectionService {
	return services.NewConnectionService(connector, cfg.ConnectionTable, cfg.ConnectionUserIndex, logger)
}

// ProvideNotifier creates the WebSocket notifier
func ProvideNotifier(
	api *apigatewaymanagementapi.Client,
	connections *services.ConnectionService,
	logger *zap.Logger,
) *services.Notifier {
	return services.NewNotifier(api, connections, logger)
}

// ProvideDispatcher creates the WebSocket action dispatcher
func ProvideDispatcher(chatService *services.ChatService, notifier *services.Notifier, logger *zap.Logger) *ws.Dispatcher {
	return ws.NewDispatcher(chatService, notifier, logger)
}

// ProvideJWTValidator creates the token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
	})
}
