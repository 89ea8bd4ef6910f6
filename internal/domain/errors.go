package domain

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomInactive      = errors.New("room is no longer active")
	ErrRoomCodeExhausted = errors.New("could not generate a unique room code")
	ErrWrongPassword     = errors.New("incorrect password")
	ErrNotOwner          = errors.New("only the room owner can do this")
	ErrNotMember         = errors.New("you are not a member of this room")
	ErrMemberNotFound    = errors.New("member not found")

	ErrPasteNotFound    = errors.New("paste not found")
	ErrPasteExpired     = errors.New("paste has expired")
	ErrPasteLocked      = errors.New("paste is password protected")
	ErrSlugTaken        = errors.New("custom URL is already taken")
	ErrInvalidExpiry    = errors.New("invalid expiration format, use e.g. 10m, 1h, 7d, 1M")
	ErrAnonymousLimited = errors.New("login is required for custom URLs, expiration, or unlisted visibility")

	ErrClipboardNotFound  = errors.New("clipboard not found")
	ErrClipboardExhausted = errors.New("could not generate a unique clipboard ID")

	ErrUserNotFound = errors.New("user not found")

	ErrExecutionUnsupported = errors.New("execution not supported for this language")

	ErrUnknownAuditEvent = errors.New("unknown audit event type")
)
