// Package services implements the chat domain operations on top of the
// query-builder persistence layer.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-backend/domain/chat"
	store "chat-backend/infrastructure/dynamodb"
	apperrors "chat-backend/pkg/errors"
)

// EventPublisher publishes chat domain events. A nil publisher disables
// eventing; publish failures are logged and never fail the user operation.
type EventPublisher interface {
	Publish(ctx context.Context, event chat.Event) error
}

// PageOptions controls ordering and pagination of list queries
type PageOptions struct {
	Ascending         bool
	Limit             int32
	ExclusiveStartKey store.Item
}

// RoomPage is one page of rooms plus the resume key for the next page
type RoomPage struct {
	Rooms            []chat.Room
	LastEvaluatedKey store.Item
}

// MessagePage is one page of messages plus the resume key for the next page
type MessagePage struct {
	Messages         []chat.Message
	LastEvaluatedKey store.Item
}

// MessageData carries the caller-supplied parts of a message
type MessageData struct {
	Body     string
	Format   chat.MessageFormat
	Metadata map[string]interface{}
}

// AddMemberInput identifies the room, the acting member, and the users to add
type AddMemberInput struct {
	RoomID         string
	ActorID        string
	ParticipantIDs []string
}

// RemoveMemberInput identifies the room, the acting member, and the target
type RemoveMemberInput struct {
	RoomID       string
	ActorID      string
	RemoveUserID string
}

// UpdateRoomDetailsInput carries a member-gated room update
type UpdateRoomDetailsInput struct {
	RoomID     string
	UserID     string
	UpdateData map[string]interface{}
}

// UpdateMessageInput carries an owner-gated message edit
type UpdateMessageInput struct {
	RoomID    string
	MessageID string
	UserID    string
	Data      MessageData
}

// DeleteMessageInput carries an owner-gated message tombstone request
type DeleteMessageInput struct {
	RoomID    string
	MessageID string
	UserID    string
}

// ChatService implements profile, room, membership, and message lifecycles.
// Every store access goes through the query builder; compound operations are
// best-effort (no transactions, no compensation) per the persistence model.
type ChatService struct {
	connector       store.Connector
	table           string
	keyUpdatedIndex string
	events          EventPublisher
	logger          *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewChatService creates a new chat service
func NewChatService(
	connector store.Connector,
	table string,
	keyUpdatedIndex string,
	events EventPublisher,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		connector:       connector,
		table:           table,
		keyUpdatedIndex: keyUpdatedIndex,
		events:          events,
		logger:          logger,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

/* ======================= profile ======================= */

// CreateProfile returns the user's existing profile or creates a fresh one
// with empty room lists. Idempotent: the second call is a pure read.
func (s *ChatService) CreateProfile(ctx context.Context, userID string, data *chat.ProfileData) (*chat.Profile, error) {
	existing, err := s.getProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now().UnixMilli()
	profile := &chat.Profile{
		BaseRecord: chat.BaseRecord{
			ChatID:    userID,
			ChatKey:   chat.ProfileKey,
			Type:      chat.RecordTypeProfile,
			CreatedAt: now,
			UpdatedAt: now,
		},
		GroupRoomIDs:   make([]string, 0),
		PrivateRoomIDs: make([]string, 0),
		SupportRoomIDs: make([]string, 0),
	}
	if data != nil {
		profile.DisplayName = data.DisplayName
		profile.FirstName = data.FirstName
		profile.LastName = data.LastName
		profile.Avatar = data.Avatar
		profile.Status = data.Status
	}

	_, err = store.NewQueryBuilder(store.RequestPut, s.connector).
		TableName(s.table).
		Key(profile).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat profile created", zap.String("userId", userID))
	return profile, nil
}

// AddRoomToProfile appends a room id to the profile list matching the room
// type, creating the profile first if the user has none.
func (s *ChatService) AddRoomToProfile(ctx context.Context, userID, roomID string, roomType chat.RoomType) error {
	profile, err := s.getProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		if profile, err = s.CreateProfile(ctx, userID, nil); err != nil {
			return err
		}
	}

	attribute := chat.RoomIDListAttribute(roomType)
	if attribute == "" {
		return apperrors.NewValidationError("unknown room type " + string(roomType))
	}

	_, err = store.NewQueryBuilder(store.RequestUpdate, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(profile.ChatID),
			"chatKey": stringAV(profile.ChatKey),
		}).
		FunctionUpdateFields(store.FunctionUpdateField{
			Function:      store.UpdateFunctionListAppend,
			AttributeName: attribute,
			Value:         []string{roomID},
		}).
		Execute(ctx)
	return err
}

// RemoveRoomFromProfile filters a room id out of the profile's group list.
// Group rooms only: one-to-one and support rooms cannot be left.
func (s *ChatService) RemoveRoomFromProfile(ctx context.Context, userID, roomID string) error {
	profile, err := s.getProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return chat.ErrProfileNotFound()
	}

	_, err = store.NewQueryBuilder(store.RequestUpdate, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(userID),
			"chatKey": stringAV(chat.ProfileKey),
		}).
		UpdateFields(map[string]interface{}{
			"groupRoomIds": without(profile.GroupRoomIDs, roomID),
		}).
		Execute(ctx)
	return err
}

/* ======================= room ======================== */

// CreateOneToOneRoom returns the pair's existing private room or creates it.
// The room id is canonical in the sorted pair, and the create is guarded by a
// conditional put so two concurrent callers converge on a single room.
func (s *ChatService) CreateOneToOneRoom(ctx context.Context, participantIDs []string) (*chat.Room, error) {
	if len(participantIDs) != 2 || participantIDs[0] == participantIDs[1] {
		return nil, chat.ErrPrivateRoomInvalidMemberCount()
	}

	existing, err := s.checkPrivateRoomExists(ctx, participantIDs)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	roomID := chat.OneToOneRoomID(participantIDs[0], participantIDs[1])
	now := s.now().UnixMilli()

	room := &chat.Room{
		BaseRecord: chat.BaseRecord{
			ChatID:    roomID,
			ChatKey:   chat.RoomKey,
			Type:      chat.RecordTypeRoom,
			CreatedAt: now,
			UpdatedAt: now,
		},
		MemberIDs:    participantIDs,
		AllMemberIDs: participantIDs,
		CreatorID:    participantIDs[0],
		RoomType:     chat.RoomTypeOneToOne,
	}

	_, err = store.NewQueryBuilder(store.RequestPut, s.connector).
		TableName(s.table).
		Key(room).
		ConditionNotExists("chatId", "chatKey").
		Execute(ctx)
	if err != nil {
		if store.IsConditionalCheckFailed(err) {
			// Lost the create race: the winner's room and profile updates
			// are authoritative, so just read it back.
			return s.GetRoomDetails(ctx, roomID)
		}
		return nil, err
	}

	members := make([]interface{}, 0, len(participantIDs))
	for _, userID := range participantIDs {
		members = append(members, s.newMember(roomID, userID, true, now))
	}
	_, err = store.NewQueryBuilder(store.RequestBatchWrite, s.connector).
		TableName(s.table).
		Keys(members...).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	first, second := participantIDs[0], participantIDs[1]
	err = fanOut(
		func() error { return s.AddRoomToProfile(ctx, first, roomID, chat.RoomTypeOneToOne) },
		func() error { return s.AddRoomToProfile(ctx, second, roomID, chat.RoomTypeOneToOne) },
	)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, chat.Event{
		Type:       chat.EventRoomCreated,
		RoomID:     roomID,
		RoomType:   chat.RoomTypeOneToOne,
		UserID:     room.CreatorID,
		MemberIDs:  room.MemberIDs,
		OccurredAt: now,
	})

	return room, nil
}

// CreateSupportRoom returns the user's existing support room or creates it.
// Idempotent: the room id is the user id itself.
func (s *ChatService) CreateSupportRoom(ctx context.Context, userID string) (*chat.Room, error) {
	roomID := chat.SupportRoomID(userID)

	existing, err := s.GetRoomDetails(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now().UnixMilli()
	room := &chat.Room{
		BaseRecord: chat.BaseRecord{
			ChatID:    roomID,
			ChatKey:   chat.RoomKey,
			Type:      chat.RecordTypeRoom,
			CreatedAt: now,
			UpdatedAt: now,
		},
		MemberIDs:    []string{userID},
		AllMemberIDs: []string{userID},
		CreatorID:    userID,
		RoomType:     chat.RoomTypeSupport,
	}

	_, err = store.NewQueryBuilder(store.RequestPut, s.connector).
		TableName(s.table).
		Key(room).
		ConditionNotExists("chatId", "chatKey").
		Execute(ctx)
	if err != nil {
		if store.IsConditionalCheckFailed(err) {
			return s.GetRoomDetails(ctx, roomID)
		}
		return nil, err
	}

	_, err = store.NewQueryBuilder(store.RequestBatchWrite, s.connector).
		TableName(s.table).
		Key(s.newMember(roomID, userID, true, now)).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.AddRoomToProfile(ctx, userID, roomID, chat.RoomTypeSupport); err != nil {
		return nil, err
	}

	s.publish(ctx, chat.Event{
		Type:       chat.EventRoomCreated,
		RoomID:     roomID,
		RoomType:   chat.RoomTypeSupport,
		UserID:     userID,
		MemberIDs:  room.MemberIDs,
		OccurredAt: now,
	})

	return room, nil
}

// CreateGroupRoom creates a new group room. Not idempotent: every call makes
// a fresh room. The first participant is the creator and owner.
func (s *ChatService) CreateGroupRoom(ctx context.Context, participantIDs []string) (*chat.Room, error) {
	if len(participantIDs) == 0 {
		return nil, apperrors.NewValidationError("group room requires at least one participant")
	}

	creatorID := participantIDs[0]
	roomID := s.newID()
	now := s.now().UnixMilli()

	room := &chat.Room{
		BaseRecord: chat.BaseRecord{
			ChatID:    roomID,
			ChatKey:   chat.RoomKey,
			Type:      chat.RecordTypeRoom,
			CreatedAt: now,
			UpdatedAt: now,
		},
		MemberIDs:    participantIDs,
		AllMemberIDs: dedupe(participantIDs),
		CreatorID:    creatorID,
		RoomType:     chat.RoomTypeGroup,
	}

	records := []interface{}{room}
	for _, userID := range participantIDs {
		records = append(records, s.newMember(roomID, userID, userID == creatorID, now))
	}
	_, err := store.NewQueryBuilder(store.RequestBatchWrite, s.connector).
		TableName(s.table).
		Keys(records...).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	updates := make([]func() error, 0, len(participantIDs))
	for _, userID := range participantIDs {
		userID := userID
		updates = append(updates, func() error {
			return s.AddRoomToProfile(ctx, userID, roomID, chat.RoomTypeGroup)
		})
	}
	if err := fanOut(updates...); err != nil {
		return nil, err
	}

	s.publish(ctx, chat.Event{
		Type:       chat.EventRoomCreated,
		RoomID:     roomID,
		RoomType:   chat.RoomTypeGroup,
		UserID:     creatorID,
		MemberIDs:  room.MemberIDs,
		OccurredAt: now,
	})

	return room, nil
}

// AddMember adds users to a group room on behalf of an existing member.
// Users already in the room are skipped. Returns the updated room.
func (s *ChatService) AddMember(ctx context.Context, input AddMemberInput) (*chat.Room, error) {
	room, err := s.requireGroupRoomMember(ctx, input.RoomID, input.ActorID)
	if err != nil {
		return nil, err
	}

	newParticipantIDs := make([]string, 0, len(input.ParticipantIDs))
	for _, id := range input.ParticipantIDs {
		if !contains(room.MemberIDs, id) && !contains(newParticipantIDs, id) {
			newParticipantIDs = append(newParticipantIDs, id)
		}
	}

	now := s.now().UnixMilli()
	if len(newParticipantIDs) > 0 {
		members := make([]interface{}, 0, len(newParticipantIDs))
		for _, userID := range newParticipantIDs {
			members = append(members, s.newMember(input.RoomID, userID, false, now))
		}
		_, err = store.NewQueryBuilder(store.RequestBatchWrite, s.connector).
			TableName(s.table).
			Keys(members...).
			Execute(ctx)
		if err != nil {
			return nil, err
		}

		updates := make([]func() error, 0, len(newParticipantIDs))
		for _, userID := range newParticipantIDs {
			userID := userID
			updates = append(updates, func() error {
				return s.AddRoomToProfile(ctx, userID, input.RoomID, chat.RoomTypeGroup)
			})
		}
		if err := fanOut(updates...); err != nil {
			return nil, err
		}
	}

	result, err := store.NewQueryBuilder(store.RequestUpdate, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(input.RoomID),
			"chatKey": stringAV(chat.RoomKey),
		}).
		UpdateFields(map[string]interface{}{
			"memberIds":    append(append([]string{}, room.MemberIDs...), newParticipantIDs...),
			"allMemberIds": dedupe(append(append([]string{}, room.AllMemberIDs...), newParticipantIDs...)),
			"updatedAt":    now,
		}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	return unmarshalRoom(result.Attributes)
}

// RemoveMember removes a user from a group room on behalf of an existing
// member. Returns the updated room.
func (s *ChatService) RemoveMember(ctx context.Context, input RemoveMemberInput) (*chat.Room, error) {
	room, err := s.requireGroupRoomMember(ctx, input.RoomID, input.ActorID)
	if err != nil {
		return nil, err
	}

	_, err = store.NewQueryBuilder(store.RequestDelete, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(input.RoomID),
			"chatKey": stringAV(chat.MemberKey(input.RemoveUserID)),
		}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.RemoveRoomFromProfile(ctx, input.RemoveUserID, input.RoomID); err != nil {
		return nil, err
	}

	result, err := store.NewQueryBuilder(store.RequestUpdate, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(input.RoomID),
			"chatKey": stringAV(chat.RoomKey),
		}).
		UpdateFields(map[string]interface{}{
			"memberIds": without(room.MemberIDs, input.RemoveUserID),
			"updatedAt": s.now().UnixMilli(),
		}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	return unmarshalRoom(result.Attributes)
}

// LeaveRoom removes the user from a group room they are a member of
func (s *ChatService) LeaveRoom(ctx context.Context, roomID, userID string) (*chat.Room, error) {
	return s.RemoveMember(ctx, RemoveMemberInput{
		RoomID:       roomID,
		ActorID:      userID,
		RemoveUserID: userID,
	})
}

// GetRooms lists the user's group and private rooms ordered by recency via
// the (chatKey, updatedAt) index, filtered by set-membership over the
// profile's room-id lists.
func (s *ChatService) GetRooms(ctx context.Context, userID string, opts PageOptions) (*RoomPage, error) {
	profile, err := s.getProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, chat.ErrProfileNotFound()
	}

	roomIDs := append(append([]string{}, profile.GroupRoomIDs...), profile.PrivateRoomIDs...)
	if len(roomIDs) == 0 {
		return &RoomPage{Rooms: []chat.Room{}}, nil
	}

	values := make([]interface{}, 0, len(roomIDs))
	for _, id := range roomIDs {
		values = append(values, id)
	}

	builder := store.NewQueryBuilder(store.RequestQuery, s.connector).
		TableName(s.table).
		Index(s.keyUpdatedIndex).
		Key(store.Item{"chatKey": stringAV(chat.RoomKey)}).
		ConditionFilterFields(store.KeyCondition{
			KeyName:  "chatId",
			Operator: store.ComparisonIn,
			Values:   values,
		}).
		ScanIndexForward(opts.Ascending).
		ExclusiveStartKey(opts.ExclusiveStartKey)
	if opts.Limit > 0 {
		builder = builder.Limit(opts.Limit)
	}

	result, err := builder.Execute(ctx)
	if err != nil {
		return nil, err
	}

	rooms := make([]chat.Room, 0, len(result.Items))
	for _, item := range result.Items {
		room, err := unmarshalRoom(item)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}

	return &RoomPage{Rooms: rooms, LastEvaluatedKey: result.LastEvaluatedKey}, nil
}

// GetRoomDetails returns the room record, or nil when absent
func (s *ChatService) GetRoomDetails(ctx context.Context, roomID string) (*chat.Room, error) {
	result, err := store.NewQueryBuilder(store.RequestGet, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(roomID),
			"chatKey": stringAV(chat.RoomKey),
		}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Item) == 0 {
		return nil, nil
	}

	return unmarshalRoom(result.Item)
}

// UpdateRoomDetails applies direct field updates to a room on behalf of a
// current member. Returns the post-update room.
func (s *ChatService) UpdateRoomDetails(ctx context.Context, input UpdateRoomDetailsInput) (*chat.Room, error) {
	check, err := s.checkRoomMember(ctx, input.RoomID, input.UserID)
	if err != nil {
		return nil, err
	}
	if !check.IsRoomMember {
		return nil, chat.ErrRoomNotMember()
	}

	result, err := store.NewQueryBuilder(store.RequestUpdate, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(input.RoomID),
			"chatKey": stringAV(chat.RoomKey),
		}).
		UpdateFields(input.UpdateData).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	return unmarshalRoom(result.Attributes)
}

// PropagateLatestMessage writes a message snapshot and recency stamp onto the
// room record. Callers invoke this after SendMessage; it is deliberately not
// automatic.
func (s *ChatService) PropagateLatestMessage(ctx context.Context, roomID string, message *chat.Message) (*chat.Room, error) {
	result, err := store.NewQueryBuilder(store.RequestUpdate, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(roomID),
			"chatKey": stringAV(chat.RoomKey),
		}).
		UpdateFields(map[string]interface{}{
			"latestMessage": message,
			"updatedAt":     s.now().UnixMilli(),
		}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	return unmarshalRoom(result.Attributes)
}

// GetRoomMembers returns the room's current membership snapshot. The room
// record's memberIds list is authoritative; member records are not re-read.
func (s *ChatService) GetRoomMembers(ctx context.Context, roomID string) ([]string, error) {
	room, err := s.GetRoomDetails(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, chat.ErrRoomNotFound()
	}

	return room.MemberIDs, nil
}

/* ====================== message ====================== */

// GetMessages pages through a room's messages in key order. The caller must
// be a current room member.
func (s *ChatService) GetMessages(ctx context.Context, roomID string, opts PageOptions, userID string) (*MessagePage, error) {
	check, err := s.checkRoomMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !check.IsRoomMember {
		return nil, chat.ErrRoomNotMember()
	}

	builder := store.NewQueryBuilder(store.RequestQuery, s.connector).
		TableName(s.table).
		Key(store.Item{"chatId": stringAV(roomID)}).
		SortKeyCondition(store.KeyCondition{
			KeyName:  "chatKey",
			Operator: store.ComparisonBeginsWith,
			Values:   []interface{}{string(chat.RecordTypeMessage)},
		}).
		ScanIndexForward(opts.Ascending).
		ExclusiveStartKey(opts.ExclusiveStartKey)
	if opts.Limit > 0 {
		builder = builder.Limit(opts.Limit)
	}

	result, err := builder.Execute(ctx)
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(result.Items))
	for _, item := range result.Items {
		message, err := unmarshalMessage(item)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}

	return &MessagePage{Messages: messages, LastEvaluatedKey: result.LastEvaluatedKey}, nil
}

// SendMessage stores a new message with a time-ordered key. The sender must
// be a current room member. Propagating latestMessage onto the room is the
// caller's follow-up via PropagateLatestMessage.
func (s *ChatService) SendMessage(ctx context.Context, roomID, senderID string, data MessageData) (*chat.Message, error) {
	check, err := s.checkRoomMember(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}
	if !check.IsRoomMember {
		return nil, chat.ErrRoomNotMember()
	}

	now := s.now()
	message := &chat.Message{
		BaseRecord: chat.BaseRecord{
			ChatID:    roomID,
			ChatKey:   chat.MessageKey(now, s.newID()),
			Type:      chat.RecordTypeMessage,
			CreatedAt: now.UnixMilli(),
			UpdatedAt: now.UnixMilli(),
		},
		SenderID: senderID,
		Body:     data.Body,
		Format:   data.Format,
		Metadata: data.Metadata,
	}

	_, err = store.NewQueryBuilder(store.RequestPut, s.connector).
		TableName(s.table).
		Key(message).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, chat.Event{
		Type:       chat.EventMessageSent,
		RoomID:     roomID,
		UserID:     senderID,
		MessageKey: message.ChatKey,
		OccurredAt: now.UnixMilli(),
	})

	return message, nil
}

// UpdateMessage applies an edit to a message the user sent, marking it
// edited and refreshing its update stamp.
func (s *ChatService) UpdateMessage(ctx context.Context, input UpdateMessageInput) (*chat.Message, error) {
	if err := s.requireMessageOwner(ctx, input.RoomID, input.MessageID, input.UserID); err != nil {
		return nil, err
	}

	metadata := input.Data.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	result, err := store.NewQueryBuilder(store.RequestUpdate, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(input.RoomID),
			"chatKey": stringAV(input.MessageID),
		}).
		UpdateFields(map[string]interface{}{
			"message":   input.Data.Body,
			"format":    input.Data.Format,
			"metadata":  metadata,
			"isEdited":  true,
			"updatedAt": s.now().UnixMilli(),
		}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	return unmarshalMessage(result.Attributes)
}

// DeleteMessage tombstones a message the user sent. The record keeps its key
// so ordering and pagination stay stable; content is blanked and the format
// set to unsent. Idempotent in effect.
func (s *ChatService) DeleteMessage(ctx context.Context, input DeleteMessageInput) (*chat.Message, error) {
	if err := s.requireMessageOwner(ctx, input.RoomID, input.MessageID, input.UserID); err != nil {
		return nil, err
	}

	result, err := store.NewQueryBuilder(store.RequestUpdate, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(input.RoomID),
			"chatKey": stringAV(input.MessageID),
		}).
		UpdateFields(map[string]interface{}{
			"message":   "",
			"format":    chat.MessageFormatUnsent,
			"metadata":  map[string]interface{}{},
			"isDeleted": true,
			"updatedAt": s.now().UnixMilli(),
		}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	return unmarshalMessage(result.Attributes)
}

/* ====================== helpers ====================== */

func (s *ChatService) getProfile(ctx context.Context, userID string) (*chat.Profile, error) {
	result, err := store.NewQueryBuilder(store.RequestGet, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(userID),
			"chatKey": stringAV(chat.ProfileKey),
		}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Item) == 0 {
		return nil, nil
	}

	var profile chat.Profile
	if err := attributevalue.UnmarshalMap(result.Item, &profile); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal profile")
	}
	return &profile, nil
}

// checkPrivateRoomExists probes both orderings of the pair id: rooms created
// before canonicalization may live under either one.
func (s *ChatService) checkPrivateRoomExists(ctx context.Context, participantIDs []string) (*chat.Room, error) {
	first, second := chat.PairRoomIDs(participantIDs[0], participantIDs[1])

	result, err := store.NewQueryBuilder(store.RequestBatchGet, s.connector).
		TableName(s.table).
		Key(store.Item{"chatId": stringAV(first), "chatKey": stringAV(chat.RoomKey)}).
		Key(store.Item{"chatId": stringAV(second), "chatKey": stringAV(chat.RoomKey)}).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	items := result.Responses[s.table]
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > 1 {
		return nil, chat.ErrPrivateRoomInvalidRoomCount()
	}

	return unmarshalRoom(items[0])
}

func (s *ChatService) checkRoomMember(ctx context.Context, roomID, userID string) (chat.MembershipCheck, error) {
	result, err := store.NewQueryBuilder(store.RequestGet, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(roomID),
			"chatKey": stringAV(chat.MemberKey(userID)),
		}).
		Execute(ctx)
	if err != nil {
		return chat.MembershipCheck{}, err
	}
	if len(result.Item) == 0 {
		return chat.MembershipCheck{}, nil
	}

	var member chat.Member
	if err := attributevalue.UnmarshalMap(result.Item, &member); err != nil {
		return chat.MembershipCheck{}, apperrors.Wrap(err, "failed to unmarshal member")
	}

	return chat.MembershipCheck{
		IsRoomMember: true,
		IsRoomOwner:  member.IsOwner,
		Member:       &member,
	}, nil
}

// requireGroupRoomMember loads the room and enforces the group-operation
// preconditions shared by add-member, remove-member, and leave-room.
func (s *ChatService) requireGroupRoomMember(ctx context.Context, roomID, actorID string) (*chat.Room, error) {
	room, err := s.GetRoomDetails(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, chat.ErrRoomNotFound()
	}
	if room.RoomType != chat.RoomTypeGroup {
		return nil, chat.ErrRoomNotGroup()
	}
	if !contains(room.MemberIDs, actorID) {
		return nil, chat.ErrRoomNotMember()
	}

	return room, nil
}

func (s *ChatService) requireMessageOwner(ctx context.Context, roomID, messageID, userID string) error {
	result, err := store.NewQueryBuilder(store.RequestGet, s.connector).
		TableName(s.table).
		Key(store.Item{
			"chatId":  stringAV(roomID),
			"chatKey": stringAV(messageID),
		}).
		Execute(ctx)
	if err != nil {
		return err
	}
	if len(result.Item) == 0 {
		return chat.ErrMessageNotFound()
	}

	message, err := unmarshalMessage(result.Item)
	if err != nil {
		return err
	}
	if message.SenderID != userID {
		return chat.ErrMessageNotOwner()
	}

	return nil
}

func (s *ChatService) newMember(roomID, userID string, isOwner bool, now int64) *chat.Member {
	return &chat.Member{
		BaseRecord: chat.BaseRecord{
			ChatID:    roomID,
			ChatKey:   chat.MemberKey(userID),
			Type:      chat.RecordTypeMember,
			CreatedAt: now,
			UpdatedAt: now,
		},
		UserID:  userID,
		IsOwner: isOwner,
	}
}

func (s *ChatService) publish(ctx context.Context, event chat.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish chat event",
			zap.String("eventType", string(event.Type)),
			zap.String("roomId", event.RoomID),
			zap.Error(err),
		)
	}
}

func unmarshalRoom(item store.Item) (*chat.Room, error) {
	var room chat.Room
	if err := attributevalue.UnmarshalMap(item, &room); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal room")
	}
	return &room, nil
}

func unmarshalMessage(item store.Item) (*chat.Message, error) {
	var message chat.Message
	if err := attributevalue.UnmarshalMap(item, &message); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal message")
	}
	return &message, nil
}

// fanOut runs the functions concurrently and returns the first failure.
// Relative completion order is unspecified and there is no compensation: a
// partial failure leaves the store partially updated, matching the
// persistence model's best-effort contract.
func fanOut(fns ...func() error) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(fns))

	for _, fn := range fns {
		wg.Add(1)
		go func(fn func() error) {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- err
			}
		}(fn)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func without(list []string, value string) []string {
	filtered := make([]string, 0, len(list))
	for _, item := range list {
		if item != value {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	unique := make([]string, 0, len(list))
	for _, item := range list {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

func stringAV(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}
