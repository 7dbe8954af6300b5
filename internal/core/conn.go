package core

import (
	"errors"
	"fmt"
)

// Conn is a live client connection. Implementations are compared by
// identity, so they must be pointer types. Send and Close are safe for
// concurrent use.
type Conn interface {
	// Identity returns the identity derived once, when the connection
	// was accepted.
	Identity() Identity
	Send(payload []byte) error
	Close() error
}

// Identity is the token and address pair derived from a connection's
// handshake. It is used for logging and acknowledgements only.
type Identity struct {
	Token      string
	RemoteAddr string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s:%s", id.Token, id.RemoteAddr)
}

var (
	// ErrDuplicateName is returned when a room name is already taken.
	ErrDuplicateName = errors.New("chatroom with the same name already exists")
	// ErrRoomExists is returned when a room id is already taken.
	ErrRoomExists = errors.New("chatroom id already exists")
	// ErrRoomNotFound is returned for operations on an unknown room id.
	ErrRoomNotFound = errors.New("chatroom not found")
	// ErrRoomFull is returned when a room already holds MaxUsers members.
	ErrRoomFull = errors.New("chatroom is full")
	// ErrInvalidRoom is returned when room metadata fails validation.
	ErrInvalidRoom = errors.New("invalid chatroom")
	// ErrRegistryClosed is returned by Register once the registry has been
	// closed for shutdown.
	ErrRegistryClosed = errors.New("connection registry closed")
)
