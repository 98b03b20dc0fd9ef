// Package sessions derives the canonical, stable session name for a
// conversation from its channel and chat id.
//
// Unlike a multi-agent router, each instance here has exactly one agent
// endpoint, so the key does not need to carry an agent id — the instance
// name already scopes it. The format is:
//
//	{channel}:{direct|group}:{chatID}
package sessions

import "fmt"

// PeerKind distinguishes a direct (1:1) chat from a group chat.
type PeerKind string

const (
	PeerDirect PeerKind = "direct"
	PeerGroup  PeerKind = "group"
)

// PeerKindFromGroup returns PeerGroup if isGroup is true, PeerDirect otherwise.
func PeerKindFromGroup(isGroup bool) PeerKind {
	if isGroup {
		return PeerGroup
	}
	return PeerDirect
}

// BuildSessionName derives the canonical, stable session name for a
// conversation. The same (channel, kind, chatID) always yields the same
// string, so repeated calls of a given conversation stay pinned to one
// agent-side session.
func BuildSessionName(channel string, kind PeerKind, chatID string) string {
	return fmt.Sprintf("%s:%s:%s", channel, kind, chatID)
}
