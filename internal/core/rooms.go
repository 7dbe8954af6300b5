package core

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valed-dm/chatroom-server/internal/protocol"
)

// RoomInfo is the immutable metadata of one room.
type RoomInfo struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	MaxUsers    int
}

// RoomSummary is RoomInfo plus the current member count.
type RoomSummary struct {
	RoomInfo
	CurrentUsers int
}

type room struct {
	info    RoomInfo
	members map[Conn]struct{}
}

// RoomStore owns room metadata and per-room membership. All state is
// guarded by one mutex; broadcasts snapshot members under the lock and send
// after releasing it.
type RoomStore struct {
	mu     sync.Mutex
	rooms  map[string]*room
	byName map[string]string
}

// NewRoomStore returns an empty room store.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:  make(map[string]*room),
		byName: make(map[string]string),
	}
}

// AddRoom inserts a room under id. The name check and the insert happen in
// one critical section.
func (s *RoomStore) AddRoom(id string, info RoomInfo) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRoom)
	}
	if info.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRoom)
	}
	if info.MaxUsers <= 0 {
		return fmt.Errorf("%w: max users must be positive", ErrInvalidRoom)
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}
	info.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[info.Name]; taken {
		return ErrDuplicateName
	}
	if _, taken := s.rooms[id]; taken {
		return ErrRoomExists
	}
	s.rooms[id] = &room{info: info, members: make(map[Conn]struct{})}
	s.byName[info.Name] = id

	slog.Info("chatroom added", "room_id", id, "name", info.Name, "max_users", info.MaxUsers, "total_rooms", len(s.rooms))
	return nil
}

// CreateRoom assigns a fresh id and adds the room.
func (s *RoomStore) CreateRoom(name, description string, maxUsers int) (RoomInfo, error) {
	info := RoomInfo{
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		MaxUsers:    maxUsers,
	}
	id := uuid.NewString()
	if err := s.AddRoom(id, info); err != nil {
		return RoomInfo{}, err
	}
	info.ID = id
	return info, nil
}

// Room returns one room's summary.
func (s *RoomStore) Room(id string) (RoomSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return RoomSummary{}, false
	}
	return RoomSummary{RoomInfo: r.info, CurrentUsers: len(r.members)}, true
}

// Rooms returns summaries of all rooms ordered by creation time.
func (s *RoomStore) Rooms() []RoomSummary {
	s.mu.Lock()
	out := make([]RoomSummary, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, RoomSummary{RoomInfo: r.info, CurrentUsers: len(r.members)})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of rooms.
func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// AddMember adds conn to a room. Adding an existing member is a no-op.
// Unknown rooms yield ErrRoomNotFound and rooms at capacity ErrRoomFull;
// neither changes any state.
func (s *RoomStore) AddMember(roomID string, conn Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if _, member := r.members[conn]; member {
		return nil
	}
	if len(r.members) >= r.info.MaxUsers {
		return ErrRoomFull
	}
	r.members[conn] = struct{}{}

	slog.Info("member added", "room_id", roomID, "client", conn.Identity().String(), "members", len(r.members))
	return nil
}

// RemoveMember removes conn from a room and reports whether it was a
// member. Unknown rooms and non-members are ignored.
func (s *RoomStore) RemoveMember(roomID string, conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	if _, member := r.members[conn]; !member {
		return false
	}
	delete(r.members, conn)

	slog.Info("member removed", "room_id", roomID, "client", conn.Identity().String(), "members", len(r.members))
	return true
}

// Members returns a snapshot of a room's members.
func (s *RoomStore) Members(roomID string) []Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membersLocked(roomID, nil)
}

// Broadcast sends ev to the members of a room, skipping except when it is
// non-nil. Membership is captured once, under the lock; sends happen after
// the lock is released.
func (s *RoomStore) Broadcast(roomID string, ev protocol.Event, except Conn) Delivery {
	s.mu.Lock()
	targets := s.membersLocked(roomID, except)
	s.mu.Unlock()

	d := BroadcastEvent(targets, ev)
	slog.Debug("room broadcast", "room_id", roomID, "type", ev.Type, "recipients", d.Recipients, "failed", d.Failed)
	return d
}

func (s *RoomStore) membersLocked(roomID string, except Conn) []Conn {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(r.members))
	for conn := range r.members {
		if except != nil && conn == except {
			continue
		}
		out = append(out, conn)
	}
	return out
}
