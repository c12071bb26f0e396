package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-backend/application/services"
	"chat-backend/domain/chat"
	apperrors "chat-backend/pkg/errors"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) CreateOneToOneRoom(ctx context.Context, participantIDs []string) (*chat.Room, error) {
	args := m.Called(ctx, participantIDs)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) CreateSupportRoom(ctx context.Context, userID string) (*chat.Room, error) {
	args := m.Called(ctx, userID)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) CreateGroupRoom(ctx context.Context, participantIDs []string) (*chat.Room, error) {
	args := m.Called(ctx, participantIDs)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) AddMember(ctx context.Context, input services.AddMemberInput) (*chat.Room, error) {
	args := m.Called(ctx, input)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) RemoveMember(ctx context.Context, input services.RemoveMemberInput) (*chat.Room, error) {
	args := m.Called(ctx, input)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) LeaveRoom(ctx context.Context, roomID, userID string) (*chat.Room, error) {
	args := m.Called(ctx, roomID, userID)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) GetRooms(ctx context.Context, userID string, opts services.PageOptions) (*services.RoomPage, error) {
	args := m.Called(ctx, userID, opts)
	page, _ := args.Get(0).(*services.RoomPage)
	return page, args.Error(1)
}

func (m *mockChat) GetRoomDetails(ctx context.Context, roomID string) (*chat.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) UpdateRoomDetails(ctx context.Context, input services.UpdateRoomDetailsInput) (*chat.Room, error) {
	args := m.Called(ctx, input)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) PropagateLatestMessage(ctx context.Context, roomID string, message *chat.Message) (*chat.Room, error) {
	args := m.Called(ctx, roomID, message)
	room, _ := args.Get(0).(*chat.Room)
	return room, args.Error(1)
}

func (m *mockChat) GetRoomMembers(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	members, _ := args.Get(0).([]string)
	return members, args.Error(1)
}

func (m *mockChat) GetMessages(ctx context.Context, roomID string, opts services.PageOptions, userID string) (*services.MessagePage, error) {
	args := m.Called(ctx, roomID, opts, userID)
	page, _ := args.Get(0).(*services.MessagePage)
	return page, args.Error(1)
}

func (m *mockChat) SendMessage(ctx context.Context, roomID, senderID string, data services.MessageData) (*chat.Message, error) {
	args := m.Called(ctx, roomID, senderID, data)
	message, _ := args.Get(0).(*chat.Message)
	return message, args.Error(1)
}

func (m *mockChat) UpdateMessage(ctx context.Context, input services.UpdateMessageInput) (*chat.Message, error) {
	args := m.Called(ctx, input)
	message, _ := args.Get(0).(*chat.Message)
	return message, args.Error(1)
}

func (m *mockChat) DeleteMessage(ctx context.Context, input services.DeleteMessageInput) (*chat.Message, error) {
	args := m.Called(ctx, input)
	message, _ := args.Get(0).(*chat.Message)
	return message, args.Error(1)
}

type mockNotifier struct {
	pushes []pushCall
}

type pushCall struct {
	userIDs []string
	exclude string
	payload interface{}
}

func (n *mockNotifier) SendToUsers(ctx context.Context, userIDs []string, excludeUserID string, payload interface{}) error {
	n.pushes = append(n.pushes, pushCall{userIDs: userIDs, exclude: excludeUserID, payload: payload})
	return nil
}

func frame(t *testing.T, action string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"action": action, "data": data})
	require.NoError(t, err)
	return raw
}

func testRoom(roomID string, members ...string) *chat.Room {
	return &chat.Room{
		BaseRecord: chat.BaseRecord{ChatID: roomID, ChatKey: chat.RoomKey},
		MemberIDs:  members,
		RoomType:   chat.RoomTypeGroup,
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	d := NewDispatcher(&mockChat{}, nil, zap.NewNop())

	resp := d.Dispatch(context.Background(), "alice", frame(t, "no-such-action", nil))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_ACTION", resp.Error.Code)
}

func TestDispatchMalformedFrame(t *testing.T) {
	d := NewDispatcher(&mockChat{}, nil, zap.NewNop())

	resp := d.Dispatch(context.Background(), "alice", []byte("{not json"))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
}

func TestDispatchValidatesPayload(t *testing.T) {
	chatAPI := &mockChat{}
	d := NewDispatcher(chatAPI, nil, zap.NewNop())

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionCreateOneToOneRoom, map[string]string{}))
	assert.False(t, resp.Success, "missing recipientId must fail validation")
	chatAPI.AssertNotCalled(t, "CreateOneToOneRoom")
}

func TestCreateOneToOneRoomPushesToRecipient(t *testing.T) {
	chatAPI := &mockChat{}
	notifier := &mockNotifier{}
	d := NewDispatcher(chatAPI, notifier, zap.NewNop())

	room := testRoom("alice_bob", "alice", "bob")
	chatAPI.On("CreateOneToOneRoom", mock.Anything, []string{"alice", "bob"}).Return(room, nil)

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionCreateOneToOneRoom, map[string]string{"recipientId": "bob"}))
	require.True(t, resp.Success)
	chatAPI.AssertExpectations(t)

	require.Len(t, notifier.pushes, 1)
	assert.Equal(t, []string{"alice", "bob"}, notifier.pushes[0].userIDs)
	assert.Equal(t, "alice", notifier.pushes[0].exclude)
}

func TestCreateGroupRoomPrependsCaller(t *testing.T) {
	chatAPI := &mockChat{}
	d := NewDispatcher(chatAPI, nil, zap.NewNop())

	room := testRoom("room-1", "alice", "bob")
	chatAPI.On("CreateGroupRoom", mock.Anything, []string{"alice", "bob"}).Return(room, nil)

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionCreateGroupRoom, map[string]interface{}{
		"participantIds": []string{"bob"},
	}))
	require.True(t, resp.Success)
	chatAPI.AssertExpectations(t)
}

func TestSendMessagePropagatesAndPushes(t *testing.T) {
	chatAPI := &mockChat{}
	notifier := &mockNotifier{}
	d := NewDispatcher(chatAPI, notifier, zap.NewNop())

	message := &chat.Message{
		BaseRecord: chat.BaseRecord{ChatID: "room-1", ChatKey: "message_1_x"},
		SenderID:   "alice",
		Body:       "hi",
		Format:     chat.MessageFormatText,
	}
	room := testRoom("room-1", "alice", "bob")

	chatAPI.On("SendMessage", mock.Anything, "room-1", "alice", services.MessageData{
		Body: "hi", Format: chat.MessageFormatText,
	}).Return(message, nil)
	chatAPI.On("PropagateLatestMessage", mock.Anything, "room-1", message).Return(room, nil)

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionSendMessage, map[string]string{
		"roomId":  "room-1",
		"message": "hi",
	}))
	require.True(t, resp.Success)
	chatAPI.AssertExpectations(t)

	require.Len(t, notifier.pushes, 1)
	assert.Equal(t, "alice", notifier.pushes[0].exclude)
	push, ok := notifier.pushes[0].payload.(*pushFrame)
	require.True(t, ok)
	assert.Equal(t, pushNewMessage, push.Action)
}

func TestSendMessagePropagationFailureStillSucceedsAndPushes(t *testing.T) {
	chatAPI := &mockChat{}
	notifier := &mockNotifier{}
	d := NewDispatcher(chatAPI, notifier, zap.NewNop())

	message := &chat.Message{
		BaseRecord: chat.BaseRecord{ChatID: "room-1", ChatKey: "message_1_x"},
		SenderID:   "alice",
		Body:       "hi",
		Format:     chat.MessageFormatText,
	}

	chatAPI.On("SendMessage", mock.Anything, "room-1", "alice", services.MessageData{
		Body: "hi", Format: chat.MessageFormatText,
	}).Return(message, nil)
	chatAPI.On("PropagateLatestMessage", mock.Anything, "room-1", message).
		Return(nil, apperrors.NewDatabaseError("UpdateItem", assert.AnError))
	chatAPI.On("GetRoomMembers", mock.Anything, "room-1").Return([]string{"alice", "bob"}, nil)

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionSendMessage, map[string]string{
		"roomId":  "room-1",
		"message": "hi",
	}))
	require.True(t, resp.Success, "a stored message must not be reported as failed")
	chatAPI.AssertExpectations(t)

	require.Len(t, notifier.pushes, 1)
	assert.Equal(t, []string{"alice", "bob"}, notifier.pushes[0].userIDs)
	push, ok := notifier.pushes[0].payload.(*pushFrame)
	require.True(t, ok)
	assert.Equal(t, pushNewMessage, push.Action)
}

func TestSendMessageRejectsUnknownFormat(t *testing.T) {
	chatAPI := &mockChat{}
	d := NewDispatcher(chatAPI, nil, zap.NewNop())

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionSendMessage, map[string]string{
		"roomId":  "room-1",
		"message": "hi",
		"format":  "carrier-pigeon",
	}))
	assert.False(t, resp.Success)
	chatAPI.AssertNotCalled(t, "SendMessage")
}

func TestGetMessagesRoundtripsCursor(t *testing.T) {
	chatAPI := &mockChat{}
	d := NewDispatcher(chatAPI, nil, zap.NewNop())

	page := &services.MessagePage{
		Messages: []chat.Message{{BaseRecord: chat.BaseRecord{ChatID: "room-1", ChatKey: "message_1_x"}}},
	}
	chatAPI.On("GetMessages", mock.Anything, "room-1", mock.MatchedBy(func(opts services.PageOptions) bool {
		return opts.Limit == 25 && opts.Ascending
	}), "alice").Return(page, nil)

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionGetMessages, map[string]interface{}{
		"roomId":    "room-1",
		"limit":     25,
		"ascending": true,
	}))
	require.True(t, resp.Success)
	chatAPI.AssertExpectations(t)

	result, ok := resp.Data.(*pageResponse)
	require.True(t, ok)
	assert.Empty(t, result.NextCursor, "final page carries no cursor")
}

func TestGetRoomDetailsAbsentRoom(t *testing.T) {
	chatAPI := &mockChat{}
	d := NewDispatcher(chatAPI, nil, zap.NewNop())

	chatAPI.On("GetRoomDetails", mock.Anything, "nope").Return(nil, nil)

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionGetRoomDetails, map[string]string{"roomId": "nope"}))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, chat.CodeRoomNotFound, resp.Error.Code)
}

func TestRemoveMemberNotifiesRemovedUser(t *testing.T) {
	chatAPI := &mockChat{}
	notifier := &mockNotifier{}
	d := NewDispatcher(chatAPI, notifier, zap.NewNop())

	room := testRoom("room-1", "alice")
	chatAPI.On("RemoveMember", mock.Anything, services.RemoveMemberInput{
		RoomID:       "room-1",
		ActorID:      "alice",
		RemoveUserID: "bob",
	}).Return(room, nil)

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionRemoveMember, map[string]string{
		"roomId": "room-1",
		"userId": "bob",
	}))
	require.True(t, resp.Success)

	require.Len(t, notifier.pushes, 1)
	assert.Contains(t, notifier.pushes[0].userIDs, "bob")
}

func TestUpdateMessageMemberLookupFailureSkipsPushOnly(t *testing.T) {
	chatAPI := &mockChat{}
	notifier := &mockNotifier{}
	d := NewDispatcher(chatAPI, notifier, zap.NewNop())

	message := &chat.Message{
		BaseRecord: chat.BaseRecord{ChatID: "room-1", ChatKey: "message_1_x"},
		SenderID:   "alice",
		Body:       "edited",
		Format:     chat.MessageFormatText,
	}
	chatAPI.On("UpdateMessage", mock.Anything, mock.Anything).Return(message, nil)
	chatAPI.On("GetRoomMembers", mock.Anything, "room-1").
		Return(nil, apperrors.NewDatabaseError("GetItem", assert.AnError))

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionUpdateMessage, map[string]string{
		"roomId":    "room-1",
		"messageId": "message_1_x",
		"message":   "edited",
	}))
	require.True(t, resp.Success)

	require.Len(t, notifier.pushes, 1)
	assert.Empty(t, notifier.pushes[0].userIDs)
}

func TestCreateSupportRoomTakesNoPayload(t *testing.T) {
	chatAPI := &mockChat{}
	d := NewDispatcher(chatAPI, nil, zap.NewNop())

	room := &chat.Room{
		BaseRecord: chat.BaseRecord{ChatID: "alice", ChatKey: chat.RoomKey},
		MemberIDs:  []string{"alice"},
		RoomType:   chat.RoomTypeSupport,
	}
	chatAPI.On("CreateSupportRoom", mock.Anything, "alice").Return(room, nil)

	resp := d.Dispatch(context.Background(), "alice", frame(t, ActionCreateSupportRoom, nil))
	require.True(t, resp.Success)
	chatAPI.AssertExpectations(t)
}
