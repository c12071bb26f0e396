// Package ws dispatches WebSocket chat actions to the application services.
// Each action name maps to a typed handler with a validated payload; the
// table is the single routing surface, there is no string switch.
package ws

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chat-backend/application/services"
	"chat-backend/domain/chat"
	"chat-backend/pkg/common"
	apperrors "chat-backend/pkg/errors"
)

// Action names accepted on the chat route
const (
	ActionCreateOneToOneRoom = "create-one-to-one-room"
	ActionCreateSupportRoom  = "create-support-room"
	ActionCreateGroupRoom    = "create-group-room"
	ActionAddMember          = "add-member"
	ActionRemoveMember       = "remove-member"
	ActionLeaveRoom          = "leave-room"
	ActionGetRooms           = "get-rooms"
	ActionGetRoomDetails     = "get-room-details"
	ActionUpdateRoomDetails  = "update-room-details"
	ActionGetRoomMembers     = "get-room-members"
	ActionGetMessages        = "get-messages"
	ActionSendMessage        = "send-message"
	ActionUpdateMessage      = "update-message"
	ActionDeleteMessage      = "delete-message"
)

// Push frame actions sent to other members' connections
const (
	pushRoomCreated    = "room-created"
	pushMemberAdded    = "member-added"
	pushMemberRemoved  = "member-removed"
	pushNewMessage     = "new-message"
	pushMessageUpdated = "message-updated"
	pushMessageDeleted = "message-deleted"
)

// Frame is one inbound WebSocket message
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Response is the reply frame for the requesting connection
type Response struct {
	Action  string      `json:"action"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo carries the coded failure reason
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pushFrame struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

type actionFunc func(ctx context.Context, userID string, data json.RawMessage) (interface{}, error)

// ChatAPI is the slice of the chat service the dispatcher drives
type ChatAPI interface {
	CreateOneToOneRoom(ctx context.Context, participantIDs []string) (*chat.Room, error)
	CreateSupportRoom(ctx context.Context, userID string) (*chat.Room, error)
	CreateGroupRoom(ctx context.Context, participantIDs []string) (*chat.Room, error)
	AddMember(ctx context.Context, input services.AddMemberInput) (*chat.Room, error)
	RemoveMember(ctx context.Context, input services.RemoveMemberInput) (*chat.Room, error)
	LeaveRoom(ctx context.Context, roomID, userID string) (*chat.Room, error)
	GetRooms(ctx context.Context, userID string, opts services.PageOptions) (*services.RoomPage, error)
	GetRoomDetails(ctx context.Context, roomID string) (*chat.Room, error)
	UpdateRoomDetails(ctx context.Context, input services.UpdateRoomDetailsInput) (*chat.Room, error)
	PropagateLatestMessage(ctx context.Context, roomID string, message *chat.Message) (*chat.Room, error)
	GetRoomMembers(ctx context.Context, roomID string) ([]string, error)
	GetMessages(ctx context.Context, roomID string, opts services.PageOptions, userID string) (*services.MessagePage, error)
	SendMessage(ctx context.Context, roomID, senderID string, data services.MessageData) (*chat.Message, error)
	UpdateMessage(ctx context.Context, input services.UpdateMessageInput) (*chat.Message, error)
	DeleteMessage(ctx context.Context, input services.DeleteMessageInput) (*chat.Message, error)
}

// Notifier is the delivery surface the dispatcher pushes frames through
type Notifier interface {
	SendToUsers(ctx context.Context, userIDs []string, excludeUserID string, payload interface{}) error
}

// Dispatcher routes inbound frames to chat service operations and pushes the
// resulting state changes to the other room members' connections.
type Dispatcher struct {
	chat     ChatAPI
	notifier Notifier
	validate *validator.Validate
	logger   *zap.Logger

	actions map[string]actionFunc
}

// NewDispatcher creates a dispatcher with the full action table registered
func NewDispatcher(chatService ChatAPI, notifier Notifier, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		chat:     chatService,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
	}
	d.actions = map[string]actionFunc{
		ActionCreateOneToOneRoom: d.createOneToOneRoom,
		ActionCreateSupportRoom:  d.createSupportRoom,
		ActionCreateGroupRoom:    d.createGroupRoom,
		ActionAddMember:          d.addMember,
		ActionRemoveMember:       d.removeMember,
		ActionLeaveRoom:          d.leaveRoom,
		ActionGetRooms:           d.getRooms,
		ActionGetRoomDetails:     d.getRoomDetails,
		ActionUpdateRoomDetails:  d.updateRoomDetails,
		ActionGetRoomMembers:     d.getRoomMembers,
		ActionGetMessages:        d.getMessages,
		ActionSendMessage:        d.sendMessage,
		ActionUpdateMessage:      d.updateMessage,
		ActionDeleteMessage:      d.deleteMessage,
	}
	return d
}

// Dispatch decodes and routes one frame. The returned response always echoes
// the action name; failures are coded, never raw internals.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, raw []byte) *Response {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return errorResponse("", apperrors.NewValidationError("malformed frame").WithCause(err))
	}

	handler, ok := d.actions[frame.Action]
	if !ok {
		return errorResponse(frame.Action,
			apperrors.NewValidationError("unknown action "+frame.Action).WithCode("UNKNOWN_ACTION"))
	}

	data, err := handler(ctx, userID, frame.Data)
	if err != nil {
		d.logger.Warn("chat action failed",
			zap.String("action", frame.Action),
			zap.String("userId", userID),
			zap.Error(err),
		)
		return errorResponse(frame.Action, err)
	}

	return &Response{Action: frame.Action, Success: true, Data: data}
}

func errorResponse(action string, err error) *Response {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		appErr = apperrors.NewInternalError("internal error")
	}
	return &Response{
		Action:  action,
		Success: false,
		Error:   &ErrorInfo{Code: appErr.Code, Message: appErr.Message},
	}
}

func decode[T any](d *Dispatcher, data json.RawMessage) (*T, error) {
	var payload T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, apperrors.NewValidationError("malformed payload").WithCause(err)
		}
	}
	if err := d.validate.Struct(&payload); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return &payload, nil
}

/* ======================= payloads ======================= */

type createOneToOneRoomPayload struct {
	RecipientID string `json:"recipientId" validate:"required"`
}

type createGroupRoomPayload struct {
	ParticipantIDs []string `json:"participantIds" validate:"omitempty,dive,required"`
}

type addMemberPayload struct {
	RoomID         string   `json:"roomId" validate:"required"`
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1,dive,required"`
}

type removeMemberPayload struct {
	RoomID string `json:"roomId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type leaveRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type getRoomsPayload struct {
	Limit     int32  `json:"limit" validate:"omitempty,min=1,max=100"`
	Cursor    string `json:"cursor"`
	Ascending bool   `json:"ascending"`
}

type roomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type updateRoomDetailsPayload struct {
	RoomID string `json:"roomId" validate:"required"`
	Name   string `json:"name" validate:"required,max=256"`
}

type getMessagesPayload struct {
	RoomID    string `json:"roomId" validate:"required"`
	Limit     int32  `json:"limit" validate:"omitempty,min=1,max=100"`
	Cursor    string `json:"cursor"`
	Ascending bool   `json:"ascending"`
}

type sendMessagePayload struct {
	RoomID   string                 `json:"roomId" validate:"required"`
	Message  string                 `json:"message" validate:"required"`
	Format   string                 `json:"format" validate:"omitempty,oneof=text image video audio file location log"`
	Metadata map[string]interface{} `json:"metadata"`
}

type updateMessagePayload struct {
	RoomID    string                 `json:"roomId" validate:"required"`
	MessageID string                 `json:"messageId" validate:"required"`
	Message   string                 `json:"message" validate:"required"`
	Format    string                 `json:"format" validate:"omitempty,oneof=text image video audio file location log"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type deleteMessagePayload struct {
	RoomID    string `json:"roomId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

type pageResponse struct {
	Items      interface{} `json:"items"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

/* ======================= handlers ======================= */

func (d *Dispatcher) createOneToOneRoom(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[createOneToOneRoomPayload](d, data)
	if err != nil {
		return nil, err
	}

	room, err := d.chat.CreateOneToOneRoom(ctx, []string{userID, payload.RecipientID})
	if err != nil {
		return nil, err
	}

	d.push(ctx, room.MemberIDs, userID, pushRoomCreated, room)
	return room, nil
}

func (d *Dispatcher) createSupportRoom(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	return d.chat.CreateSupportRoom(ctx, userID)
}

func (d *Dispatcher) createGroupRoom(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[createGroupRoomPayload](d, data)
	if err != nil {
		return nil, err
	}

	// The caller is always the first participant, and so the creator.
	participants := append([]string{userID}, payload.ParticipantIDs...)
	room, err := d.chat.CreateGroupRoom(ctx, participants)
	if err != nil {
		return nil, err
	}

	d.push(ctx, room.MemberIDs, userID, pushRoomCreated, room)
	return room, nil
}

func (d *Dispatcher) addMember(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[addMemberPayload](d, data)
	if err != nil {
		return nil, err
	}

	room, err := d.chat.AddMember(ctx, services.AddMemberInput{
		RoomID:         payload.RoomID,
		ActorID:        userID,
		ParticipantIDs: payload.ParticipantIDs,
	})
	if err != nil {
		return nil, err
	}

	d.push(ctx, room.MemberIDs, userID, pushMemberAdded, room)
	return room, nil
}

func (d *Dispatcher) removeMember(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[removeMemberPayload](d, data)
	if err != nil {
		return nil, err
	}

	room, err := d.chat.RemoveMember(ctx, services.RemoveMemberInput{
		RoomID:       payload.RoomID,
		ActorID:      userID,
		RemoveUserID: payload.UserID,
	})
	if err != nil {
		return nil, err
	}

	// The removed user is told too, not just the remaining members.
	d.push(ctx, append(append([]string{}, room.MemberIDs...), payload.UserID), userID, pushMemberRemoved, room)
	return room, nil
}

func (d *Dispatcher) leaveRoom(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[leaveRoomPayload](d, data)
	if err != nil {
		return nil, err
	}

	room, err := d.chat.LeaveRoom(ctx, payload.RoomID, userID)
	if err != nil {
		return nil, err
	}

	d.push(ctx, room.MemberIDs, userID, pushMemberRemoved, room)
	return room, nil
}

func (d *Dispatcher) getRooms(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[getRoomsPayload](d, data)
	if err != nil {
		return nil, err
	}

	opts, err := pageOptions(payload.Limit, payload.Cursor, payload.Ascending)
	if err != nil {
		return nil, err
	}

	page, err := d.chat.GetRooms(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	cursor, err := common.EncodeCursor(page.LastEvaluatedKey)
	if err != nil {
		return nil, err
	}
	return &pageResponse{Items: page.Rooms, NextCursor: cursor}, nil
}

func (d *Dispatcher) getRoomDetails(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[roomPayload](d, data)
	if err != nil {
		return nil, err
	}

	room, err := d.chat.GetRoomDetails(ctx, payload.RoomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, chat.ErrRoomNotFound()
	}
	return room, nil
}

func (d *Dispatcher) updateRoomDetails(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[updateRoomDetailsPayload](d, data)
	if err != nil {
		return nil, err
	}

	return d.chat.UpdateRoomDetails(ctx, services.UpdateRoomDetailsInput{
		RoomID:     payload.RoomID,
		UserID:     userID,
		UpdateData: map[string]interface{}{"name": payload.Name},
	})
}

func (d *Dispatcher) getRoomMembers(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[roomPayload](d, data)
	if err != nil {
		return nil, err
	}
	return d.chat.GetRoomMembers(ctx, payload.RoomID)
}

func (d *Dispatcher) getMessages(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[getMessagesPayload](d, data)
	if err != nil {
		return nil, err
	}

	opts, err := pageOptions(payload.Limit, payload.Cursor, payload.Ascending)
	if err != nil {
		return nil, err
	}

	page, err := d.chat.GetMessages(ctx, payload.RoomID, opts, userID)
	if err != nil {
		return nil, err
	}

	cursor, err := common.EncodeCursor(page.LastEvaluatedKey)
	if err != nil {
		return nil, err
	}
	return &pageResponse{Items: page.Messages, NextCursor: cursor}, nil
}

func (d *Dispatcher) sendMessage(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[sendMessagePayload](d, data)
	if err != nil {
		return nil, err
	}

	message, err := d.chat.SendMessage(ctx, payload.RoomID, userID, services.MessageData{
		Body:     payload.Message,
		Format:   messageFormat(payload.Format),
		Metadata: payload.Metadata,
	})
	if err != nil {
		return nil, err
	}

	// The message is durable from here on. Propagation only refreshes the
	// room's latestMessage, so its failure never fails the send.
	var members []string
	room, err := d.chat.PropagateLatestMessage(ctx, payload.RoomID, message)
	if err != nil {
		d.logger.Warn("failed to propagate latest message",
			zap.String("roomId", payload.RoomID),
			zap.Error(err),
		)
		members = d.roomMembers(ctx, payload.RoomID)
	} else {
		members = room.MemberIDs
	}

	d.push(ctx, members, userID, pushNewMessage, message)
	return message, nil
}

func (d *Dispatcher) updateMessage(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[updateMessagePayload](d, data)
	if err != nil {
		return nil, err
	}

	message, err := d.chat.UpdateMessage(ctx, services.UpdateMessageInput{
		RoomID:    payload.RoomID,
		MessageID: payload.MessageID,
		UserID:    userID,
		Data: services.MessageData{
			Body:     payload.Message,
			Format:   messageFormat(payload.Format),
			Metadata: payload.Metadata,
		},
	})
	if err != nil {
		return nil, err
	}

	d.push(ctx, d.roomMembers(ctx, payload.RoomID), userID, pushMessageUpdated, message)
	return message, nil
}

func (d *Dispatcher) deleteMessage(ctx context.Context, userID string, data json.RawMessage) (interface{}, error) {
	payload, err := decode[deleteMessagePayload](d, data)
	if err != nil {
		return nil, err
	}

	message, err := d.chat.DeleteMessage(ctx, services.DeleteMessageInput{
		RoomID:    payload.RoomID,
		MessageID: payload.MessageID,
		UserID:    userID,
	})
	if err != nil {
		return nil, err
	}

	d.push(ctx, d.roomMembers(ctx, payload.RoomID), userID, pushMessageDeleted, message)
	return message, nil
}

// roomMembers resolves the push recipients for a best-effort notification.
// A lookup failure is logged and skips the push, never the operation.
func (d *Dispatcher) roomMembers(ctx context.Context, roomID string) []string {
	members, err := d.chat.GetRoomMembers(ctx, roomID)
	if err != nil {
		d.logger.Warn("failed to resolve push recipients",
			zap.String("roomId", roomID),
			zap.Error(err),
		)
		return nil
	}
	return members
}

func (d *Dispatcher) push(ctx context.Context, userIDs []string, excludeUserID, action string, data interface{}) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.SendToUsers(ctx, userIDs, excludeUserID, &pushFrame{Action: action, Data: data}); err != nil {
		d.logger.Warn("failed to push frame",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func pageOptions(limit int32, cursor string, ascending bool) (services.PageOptions, error) {
	opts := services.PageOptions{Ascending: ascending, Limit: limit}
	if cursor != "" {
		startKey, err := common.DecodeCursor(cursor)
		if err != nil {
			return services.PageOptions{}, err
		}
		opts.ExclusiveStartKey = startKey
	}
	return opts, nil
}

func messageFormat(format string) chat.MessageFormat {
	if format == "" {
		return chat.MessageFormatText
	}
	return chat.MessageFormat(format)
}
