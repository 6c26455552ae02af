package rooms

import "errors"

// Errors reported back to the connection that triggered them.
var (
	ErrInvalidRoomCode    = errors.New("room code must be between 2 and 20 characters")
	ErrRoomAlreadyExists  = errors.New("room already exists, pick another code")
	ErrRoomNotFound       = errors.New("room does not exist")
	ErrRoomClosed         = errors.New("room is closed")
	ErrRoomSpaceExhausted = errors.New("no free room codes left")
	ErrUnauthorized       = errors.New("only the room creator can do that")
	ErrAlreadyInRoom      = errors.New("connection is already in a room")
)
