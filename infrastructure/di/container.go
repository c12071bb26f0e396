package di

import (
	"go.uber.org/zap"

	"chat-backend/application/services"
	"chat-backend/infrastructure/config"
	"chat-backend/infrastructure/dynamodb"
	"chat-backend/interfaces/ws"
	"chat-backend/pkg/auth"
)

// Container holds all application dependencies
type Container struct {
	Config            *config.Config
	Logger            *zap.Logger
	Connector         dynamodb.Connector
	ChatService       *services.ChatService
	ConnectionService *services.ConnectionService
	Notifier          *services.Notifier
	Dispatcher        *ws.Dispatcher
	JWTValidator      *auth.JWTValidator
}
