package chat

// EventType names a chat domain event
type EventType string

const (
	EventRoomCreated EventType = "chat.room.created"
	EventMessageSent EventType = "chat.message.sent"
)

// Event is a chat domain event published after a state change. Payloads are
// intentionally small: consumers re-read the store for full records.
type Event struct {
	Type       EventType `json:"type"`
	RoomID     string    `json:"roomId"`
	RoomType   RoomType  `json:"roomType,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	MemberIDs  []string  `json:"memberIds,omitempty"`
	MessageKey string    `json:"messageKey,omitempty"`
	OccurredAt int64     `json:"occurredAt"`
}

// DetailType returns the event's EventBridge detail-type
func (e Event) DetailType() string {
	return string(e.Type)
}
