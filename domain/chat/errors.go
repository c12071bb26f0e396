package chat

import (
	apperrors "chat-backend/pkg/errors"
)

// Error codes for the chat domain
const (
	CodeProfileNotFound               = "PROFILE_NOT_FOUND"
	CodeRoomNotFound                  = "ROOM_NOT_FOUND"
	CodeRoomNotGroup                  = "ROOM_NOT_GROUP"
	CodeRoomNotMember                 = "ROOM_NOT_MEMBER"
	CodePrivateRoomInvalidMemberCount = "PRIVATE_ROOM_INVALID_MEMBER_COUNT"
	CodePrivateRoomInvalidRoomCount   = "PRIVATE_ROOM_INVALID_ROOM_COUNT"
	CodeMessageNotFound               = "MESSAGE_NOT_FOUND"
	CodeMessageNotOwner               = "MESSAGE_NOT_OWNER"
)

// ErrProfileNotFound indicates the user has no chat profile
func ErrProfileNotFound() error {
	return apperrors.NewNotFoundError("profile").WithCode(CodeProfileNotFound)
}

// ErrRoomNotFound indicates the room record is absent
func ErrRoomNotFound() error {
	return apperrors.NewNotFoundError("room").WithCode(CodeRoomNotFound)
}

// ErrRoomNotGroup indicates a group-only operation was attempted on a
// one-to-one or support room.
func ErrRoomNotGroup() error {
	return apperrors.NewConflictError("room is not a group").WithCode(CodeRoomNotGroup)
}

// ErrRoomNotMember indicates the acting user is not a member of the room
func ErrRoomNotMember() error {
	return apperrors.NewForbiddenError("user is not a member of the room").WithCode(CodeRoomNotMember)
}

// ErrPrivateRoomInvalidMemberCount indicates a one-to-one room was requested
// with other than exactly two participants.
func ErrPrivateRoomInvalidMemberCount() error {
	return apperrors.NewValidationError("private room must have exactly 2 members").
		WithCode(CodePrivateRoomInvalidMemberCount)
}

// ErrPrivateRoomInvalidRoomCount indicates both orderings of a pair resolved
// to distinct room records. Unreachable under correct concurrency.
func ErrPrivateRoomInvalidRoomCount() error {
	return apperrors.NewInternalError("private room must have exactly 1 room").
		WithCode(CodePrivateRoomInvalidRoomCount)
}

// ErrMessageNotFound indicates the message key did not resolve
func ErrMessageNotFound() error {
	return apperrors.NewNotFoundError("message").WithCode(CodeMessageNotFound)
}

// ErrMessageNotOwner indicates the acting user is not the message's sender
func ErrMessageNotOwner() error {
	return apperrors.NewForbiddenError("message is not owned by the user").WithCode(CodeMessageNotOwner)
}

// IsProfileNotFound reports whether err is a missing-profile error
func IsProfileNotFound(err error) bool { return apperrors.HasCode(err, CodeProfileNotFound) }

// IsRoomNotFound reports whether err is a missing-room error
func IsRoomNotFound(err error) bool { return apperrors.HasCode(err, CodeRoomNotFound) }

// IsRoomNotGroup reports whether err is a not-a-group error
func IsRoomNotGroup(err error) bool { return apperrors.HasCode(err, CodeRoomNotGroup) }

// IsRoomNotMember reports whether err is a not-a-member error
func IsRoomNotMember(err error) bool { return apperrors.HasCode(err, CodeRoomNotMember) }

// IsMessageNotFound reports whether err is a missing-message error
func IsMessageNotFound(err error) bool { return apperrors.HasCode(err, CodeMessageNotFound) }

// IsMessageNotOwner reports whether err is a not-the-sender error
func IsMessageNotOwner(err error) bool { return apperrors.HasCode(err, CodeMessageNotOwner) }
