package chat

import (
	"fmt"
	"time"
)

// Sort-key literals and prefixes for the chat table
const (
	ProfileKey       = "profile"
	RoomKey          = "config"
	MemberKeyPrefix  = "member_"
	MessageKeyPrefix = "message_"
)

// MemberKey returns the sort key of a user's membership record
func MemberKey(userID string) string {
	return MemberKeyPrefix + userID
}

// MessageKey returns the sort key of a message created at the given instant.
// The millisecond timestamp precedes the uuid so keys sharing a partition
// sort chronologically.
func MessageKey(at time.Time, id string) string {
	return fmt.Sprintf("%s%d_%s", MessageKeyPrefix, at.UnixMilli(), id)
}

// OneToOneRoomID derives the canonical room id for a participant pair. The
// pair is ordered lexicographically first, so both argument orders yield the
// same id.
func OneToOneRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// PairRoomIDs returns both possible orderings of a pair room id. Rooms
// written before ids were canonicalized may live under either ordering, so
// existence checks probe both.
func PairRoomIDs(a, b string) (string, string) {
	return a + "_" + b, b + "_" + a
}

// SupportRoomID derives a user's support room id
func SupportRoomID(userID string) string {
	return userID
}

// RoomIDListAttribute maps a room type to the profile list attribute that
// tracks rooms of that type.
func RoomIDListAttribute(roomType RoomType) string {
	switch roomType {
	case RoomTypeGroup:
		return "groupRoomIds"
	case RoomTypeOneToOne:
		return "privateRoomIds"
	case RoomTypeSupport:
		return "supportRoomIds"
	}
	return ""
}
