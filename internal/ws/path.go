package ws

import "regexp"

var roomPathRe = regexp.MustCompile(`^/ws/chatrooms/([A-Za-z0-9_-]+)$`)

// MatchRoomPath extracts the room id from a relay path.
func MatchRoomPath(path string) (string, bool) {
	m := roomPathRe.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
