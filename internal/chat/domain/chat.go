// Package domain holds the chat room types and the membership rules that
// apply to each of them.
package domain

import (
	"errors"
	"slices"
	"strings"
)

type RoomType string

const (
	RoomDirect  RoomType = "direct"
	RoomGroup   RoomType = "group"
	RoomChannel RoomType = "channel"
	RoomProject RoomType = "project"
	RoomSupport RoomType = "support"
)

// MaxContentLength is the maximum message length in runes after sanitizing.
const MaxContentLength = 4000

var (
	ErrUnknownRoomType = errors.New("unknown room type")
	ErrDirectMembers   = errors.New("a direct room has exactly two distinct members")
	ErrMembersRequired = errors.New("group and channel rooms need at least one member")
	ErrFixedMembership = errors.New("direct room membership cannot change")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrContentTooLong  = errors.New("message content exceeds 4000 characters")
	ErrBlankSubscriber = errors.New("subscriber id is blank")
)

var roomTypes = []RoomType{RoomDirect, RoomGroup, RoomChannel, RoomProject, RoomSupport}

func IsKnownRoomType(t RoomType) bool {
	return slices.Contains(roomTypes, t)
}

// RoomTypes returns the closed set of room types.
func RoomTypes() []RoomType {
	return slices.Clone(roomTypes)
}

// NormalizeMembers trims ids, drops blanks and duplicates and keeps the
// first-seen order.
func NormalizeMembers(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// MembersForNewRoom validates the requested members of a new room and
// returns the final member set with the creator included.
func MembersForNewRoom(t RoomType, creator string, requested []string) ([]string, error) {
	if !IsKnownRoomType(t) {
		return nil, ErrUnknownRoomType
	}
	creator = strings.TrimSpace(creator)
	if creator == "" {
		return nil, ErrBlankSubscriber
	}
	invited := NormalizeMembers(requested)
	members := NormalizeMembers(append([]string{creator}, invited...))

	switch t {
	case RoomDirect:
		if len(members) != 2 {
			return nil, ErrDirectMembers
		}
	case RoomGroup, RoomChannel:
		if len(members) < 2 && len(invited) == 0 {
			return nil, ErrMembersRequired
		}
	}
	return members, nil
}

// MembershipIsFixed reports whether members can be added to or removed
// from rooms of this type after creation.
func MembershipIsFixed(t RoomType) bool {
	return t == RoomDirect
}
