// Package handlers implements the REST facade over the chat service.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chat-backend/application/services"
	"chat-backend/domain/chat"
	"chat-backend/pkg/common"
	apperrors "chat-backend/pkg/errors"
)

// ChatHandler exposes profile, room, and message operations over HTTP. Every
// route runs behind the auth middleware, so the user id is always on the
// request context.
type ChatHandler struct {
	chat     *services.ChatService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:     chatService,
		validate: validator.New(),
		logger:   logger,
	}
}

type createProfileRequest struct {
	DisplayName string `json:"displayName" validate:"omitempty,max=128"`
	FirstName   string `json:"firstName" validate:"omitempty,max=128"`
	LastName    string `json:"lastName" validate:"omitempty,max=128"`
	Avatar      string `json:"avatar" validate:"omitempty,url"`
	Status      string `json:"status" validate:"omitempty,max=256"`
}

type createOneToOneRoomRequest struct {
	RecipientID string `json:"recipientId" validate:"required"`
}

type createGroupRoomRequest struct {
	ParticipantIDs []string `json:"participantIds" validate:"omitempty,dive,required"`
}

type addMembersRequest struct {
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1,dive,required"`
}

type updateRoomRequest struct {
	Name string `json:"name" validate:"required,max=256"`
}

type sendMessageRequest struct {
	Message  string                 `json:"message" validate:"required"`
	Format   string                 `json:"format" validate:"omitempty,oneof=text image video audio file location log"`
	Metadata map[string]interface{} `json:"metadata"`
}

// CreateProfile handles POST /profile
func (h *ChatHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	var req createProfileRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	profile, err := h.chat.CreateProfile(r.Context(), userID, &chat.ProfileData{
		DisplayName: req.DisplayName,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Avatar:      req.Avatar,
		Status:      req.Status,
	})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, profile)
}

// CreateOneToOneRoom handles POST /rooms/one-to-one
func (h *ChatHandler) CreateOneToOneRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	var req createOneToOneRoomRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	room, err := h.chat.CreateOneToOneRoom(r.Context(), []string{userID, req.RecipientID})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, room)
}

// CreateSupportRoom handles POST /rooms/support
func (h *ChatHandler) CreateSupportRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	room, err := h.chat.CreateSupportRoom(r.Context(), userID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, room)
}

// CreateGroupRoom handles POST /rooms
func (h *ChatHandler) CreateGroupRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	var req createGroupRoomRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	room, err := h.chat.CreateGroupRoom(r.Context(), append([]string{userID}, req.ParticipantIDs...))
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, room)
}

// ListRooms handles GET /rooms
func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	opts, err := pageOptionsFromQuery(r)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	page, err := h.chat.GetRooms(r.Context(), userID, opts)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	cursor, err := common.EncodeCursor(page.LastEvaluatedKey)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondWithMeta(w, http.StatusOK, page.Rooms, &common.MetaInfo{
		RequestID:  common.ExtractRequestID(r),
		NextCursor: cursor,
	})
}

// GetRoom handles GET /rooms/{roomID}
func (h *ChatHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.chat.GetRoomDetails(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if room == nil {
		h.respondAppError(w, chat.ErrRoomNotFound())
		return
	}

	common.RespondJSON(w, http.StatusOK, room)
}

// UpdateRoom handles PUT /rooms/{roomID}
func (h *ChatHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	var req updateRoomRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	room, err := h.chat.UpdateRoomDetails(r.Context(), services.UpdateRoomDetailsInput{
		RoomID:     chi.URLParam(r, "roomID"),
		UserID:     userID,
		UpdateData: map[string]interface{}{"name": req.Name},
	})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, room)
}

// AddMembers handles POST /rooms/{roomID}/members
func (h *ChatHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	var req addMembersRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	room, err := h.chat.AddMember(r.Context(), services.AddMemberInput{
		RoomID:         chi.URLParam(r, "roomID"),
		ActorID:        userID,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, room)
}

// RemoveMember handles DELETE /rooms/{roomID}/members/{userID}
func (h *ChatHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	room, err := h.chat.RemoveMember(r.Context(), services.RemoveMemberInput{
		RoomID:       chi.URLParam(r, "roomID"),
		ActorID:      actorID,
		RemoveUserID: chi.URLParam(r, "userID"),
	})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, room)
}

// LeaveRoom handles POST /rooms/{roomID}/leave
func (h *ChatHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	room, err := h.chat.LeaveRoom(r.Context(), chi.URLParam(r, "roomID"), userID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, room)
}

// ListMembers handles GET /rooms/{roomID}/members
func (h *ChatHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.chat.GetRoomMembers(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, members)
}

// ListMessages handles GET /rooms/{roomID}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	opts, err := pageOptionsFromQuery(r)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	page, err := h.chat.GetMessages(r.Context(), chi.URLParam(r, "roomID"), opts, userID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	cursor, err := common.EncodeCursor(page.LastEvaluatedKey)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondWithMeta(w, http.StatusOK, page.Messages, &common.MetaInfo{
		RequestID:  common.ExtractRequestID(r),
		NextCursor: cursor,
	})
}

// SendMessage handles POST /rooms/{roomID}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	var req sendMessageRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	message, err := h.chat.SendMessage(r.Context(), roomID, userID, services.MessageData{
		Body:     req.Message,
		Format:   messageFormat(req.Format),
		Metadata: req.Metadata,
	})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	if _, err := h.chat.PropagateLatestMessage(r.Context(), roomID, message); err != nil {
		h.logger.Warn("failed to propagate latest message",
			zap.String("roomId", roomID),
			zap.Error(err),
		)
	}

	common.RespondJSON(w, http.StatusCreated, message)
}

// UpdateMessage handles PUT /rooms/{roomID}/messages/{messageID}
func (h *ChatHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	var req sendMessageRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	message, err := h.chat.UpdateMessage(r.Context(), services.UpdateMessageInput{
		RoomID:    chi.URLParam(r, "roomID"),
		MessageID: chi.URLParam(r, "messageID"),
		UserID:    userID,
		Data: services.MessageData{
			Body:     req.Message,
			Format:   messageFormat(req.Format),
			Metadata: req.Metadata,
		},
	})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, message)
}

// DeleteMessage handles DELETE /rooms/{roomID}/messages/{messageID}
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated user")
		return
	}

	message, err := h.chat.DeleteMessage(r.Context(), services.DeleteMessageInput{
		RoomID:    chi.URLParam(r, "roomID"),
		MessageID: chi.URLParam(r, "messageID"),
		UserID:    userID,
	})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, message)
}

func (h *ChatHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body")
			return false
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return false
	}
	return true
}

func (h *ChatHandler) respondAppError(w http.ResponseWriter, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		appErr = apperrors.NewInternalError("internal error")
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.Error("chat request failed", zap.Error(err))
	}
	common.RespondError(w, appErr.HTTPStatus, appErr.Code, appErr.Message)
}

func pageOptionsFromQuery(r *http.Request) (services.PageOptions, error) {
	opts := services.PageOptions{
		Ascending: r.URL.Query().Get("ascending") == "true",
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		parsed, err := parseLimit(limit)
		if err != nil {
			return services.PageOptions{}, err
		}
		opts.Limit = parsed
	}

	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		startKey, err := common.DecodeCursor(cursor)
		if err != nil {
			return services.PageOptions{}, err
		}
		opts.ExclusiveStartKey = startKey
	}

	return opts, nil
}

func parseLimit(raw string) (int32, error) {
	limit, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || limit < 1 || limit > 100 {
		return 0, apperrors.NewValidationError("limit must be an integer between 1 and 100")
	}
	return int32(limit), nil
}

func messageFormat(format string) chat.MessageFormat {
	if format == "" {
		return chat.MessageFormatText
	}
	return chat.MessageFormat(format)
}
