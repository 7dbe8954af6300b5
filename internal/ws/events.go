package ws

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valed-dm/chatroom-server/internal/core"
	"github.com/valed-dm/chatroom-server/internal/metrics"
	"github.com/valed-dm/chatroom-server/internal/protocol"
)

func (s *session) handleJoin(ev protocol.Event) {
	if !protocol.Present(ev.UserID, ev.Username) {
		s.notify("Missing 'userId' or 'username'.")
		return
	}

	err := s.h.rooms.AddMember(s.roomID, s.conn)
	switch {
	case errors.Is(err, core.ErrRoomNotFound):
		s.notify(fmt.Sprintf("Chatroom %s does not exist.", s.roomID))
		return
	case errors.Is(err, core.ErrRoomFull):
		s.notify("Chatroom is full.")
		return
	case err != nil:
		s.log.Error("join failed", "err", err)
		return
	}

	s.log.Info("user joined", "user_id", ev.UserID, "username", ev.Username)
	s.broadcast(protocol.System(fmt.Sprintf("%s with id %s joined the chat.", ev.Username, ev.UserID)), nil)
}

func (s *session) handleMessage(ev protocol.Event) {
	if !protocol.Present(ev.UserID, ev.Username, ev.Content) {
		s.notify("Missing required fields in chat message.")
		return
	}

	var except core.Conn
	if !s.h.opts.EchoToSender {
		except = s.conn
	}
	s.broadcast(protocol.Chat(ev.UserID, ev.Username, ev.Content), except)
}

func (s *session) handleDisconnect(ev protocol.Event) {
	s.h.rooms.RemoveMember(s.roomID, s.conn)

	name := strings.TrimSpace(ev.Username)
	if name == "" {
		name = "A user"
	}
	content := name + " left the chat."
	if reason := strings.TrimSpace(ev.Reason); reason != "" {
		content += " Reason: " + reason
	}
	s.log.Info("user left", "user_id", ev.UserID, "username", ev.Username)
	s.broadcast(protocol.System(content), nil)
}

func (s *session) broadcast(ev protocol.Event, except core.Conn) {
	d := s.h.rooms.Broadcast(s.roomID, ev, except)
	s.h.metrics.Incr(metrics.Broadcasts, 1)
	if d.Failed > 0 {
		s.h.metrics.Incr(metrics.SendFailures, int64(d.Failed))
	}
}
