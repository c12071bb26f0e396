// Package chat defines the single-table chat records and their key shapes.
// All entities share one table keyed (chatId, chatKey) and are disambiguated
// by the type discriminator attribute.
package chat

// RecordType discriminates the entity kinds stored in the chat table
type RecordType string

const (
	RecordTypeProfile RecordType = "profile"
	RecordTypeRoom    RecordType = "room"
	RecordTypeMember  RecordType = "member"
	RecordTypeMessage RecordType = "message"
)

// RoomType classifies a room's membership model
type RoomType string

const (
	RoomTypeOneToOne RoomType = "one-to-one"
	RoomTypeGroup    RoomType = "group"
	RoomTypeSupport  RoomType = "support"
)

// MessageFormat describes a message body's content type
type MessageFormat string

const (
	MessageFormatText     MessageFormat = "text"
	MessageFormatImage    MessageFormat = "image"
	MessageFormatVideo    MessageFormat = "video"
	MessageFormatAudio    MessageFormat = "audio"
	MessageFormatFile     MessageFormat = "file"
	MessageFormatLocation MessageFormat = "location"
	// MessageFormatUnsent marks a tombstoned message
	MessageFormatUnsent MessageFormat = "unsent"
	// MessageFormatLog marks system entries: member added, room renamed, etc.
	MessageFormatLog MessageFormat = "log"
)

// BaseRecord carries the composite key, discriminator, and timestamps shared
// by every chat entity. Timestamps are unix milliseconds.
type BaseRecord struct {
	ChatID    string     `dynamodbav:"chatId" json:"chatId"`
	ChatKey   string     `dynamodbav:"chatKey" json:"chatKey"`
	Type      RecordType `dynamodbav:"type" json:"type"`
	CreatedAt int64      `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt int64      `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Profile is a user's chat profile, keyed (userId, "profile"). Created
// lazily on first chat activity. The three room-id lists give fast access to
// joined rooms without a table scan.
type Profile struct {
	BaseRecord
	DisplayName string `dynamodbav:"displayName,omitempty" json:"displayName,omitempty"`
	FirstName   string `dynamodbav:"firstName,omitempty" json:"firstName,omitempty"`
	LastName    string `dynamodbav:"lastName,omitempty" json:"lastName,omitempty"`
	Avatar      string `dynamodbav:"avatar,omitempty" json:"avatar,omitempty"`
	Status      string `dynamodbav:"status,omitempty" json:"status,omitempty"`
	LastSeenAt  int64  `dynamodbav:"lastSeenAt,omitempty" json:"lastSeenAt,omitempty"`

	GroupRoomIDs   []string `dynamodbav:"groupRoomIds" json:"groupRoomIds"`
	PrivateRoomIDs []string `dynamodbav:"privateRoomIds" json:"privateRoomIds"`
	SupportRoomIDs []string `dynamodbav:"supportRoomIds" json:"supportRoomIds"`
}

// ProfileData holds the optional profile attributes a caller may supply when
// a profile is first created.
type ProfileData struct {
	DisplayName string
	FirstName   string
	LastName    string
	Avatar      string
	Status      string
}

// Room is a room's identity and membership snapshot, keyed (roomId, "config").
// MemberIDs is the current membership; AllMemberIDs is every user who ever
// joined, deduplicated, kept so departed members retain history access.
type Room struct {
	BaseRecord
	Name         string   `dynamodbav:"name,omitempty" json:"name,omitempty"`
	MemberIDs    []string `dynamodbav:"memberIds" json:"memberIds"`
	AllMemberIDs []string `dynamodbav:"allMemberIds" json:"allMemberIds"`
	CreatorID    string   `dynamodbav:"userId" json:"creatorId"`
	RoomType     RoomType `dynamodbav:"roomType" json:"roomType"`

	LatestMessage *Message `dynamodbav:"latestMessage,omitempty" json:"latestMessage,omitempty"`
}

// Member marks a user's membership in a room, keyed (roomId, "member_"+userId).
// Existence of this record is the membership predicate.
type Member struct {
	BaseRecord
	UserID  string `dynamodbav:"userId" json:"userId"`
	IsOwner bool   `dynamodbav:"isOwner" json:"isOwner"`
}

// Message is one chat message, keyed (roomId, "message_"+millis+"_"+uuid).
// The creation time embedded in the key makes lexicographic order equal
// chronological order. Deleted messages are tombstoned, never removed, so
// ordering and pagination stay stable.
type Message struct {
	BaseRecord
	SenderID  string                 `dynamodbav:"userId" json:"senderId"`
	Body      string                 `dynamodbav:"message" json:"message"`
	Format    MessageFormat          `dynamodbav:"format" json:"format"`
	Metadata  map[string]interface{} `dynamodbav:"metadata,omitempty" json:"metadata,omitempty"`
	IsEdited  bool                   `dynamodbav:"isEdited" json:"isEdited"`
	IsDeleted bool                   `dynamodbav:"isDeleted" json:"isDeleted"`
}

// MembershipCheck is the explicit result of a room-membership lookup. Call
// sites must read IsRoomMember; the struct itself is always non-zero-value
// usable so truthiness mistakes are impossible.
type MembershipCheck struct {
	IsRoomMember bool
	IsRoomOwner  bool
	Member       *Member
}
