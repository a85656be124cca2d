package domain

import (
	"errors"
	"testing"
)

func TestMembersForNewRoom(t *testing.T) {
	tests := []struct {
		name      string
		roomType  RoomType
		creator   string
		requested []string
		want      int
		wantErr   error
	}{
		{"direct", RoomDirect, "a", []string{"b"}, 2, nil},
		{"direct duplicate of creator", RoomDirect, "a", []string{"a"}, 0, ErrDirectMembers},
		{"direct too many", RoomDirect, "a", []string{"b", "c"}, 0, ErrDirectMembers},
		{"group empty", RoomGroup, "a", []string{" ", ""}, 0, ErrMembersRequired},
		{"channel", RoomChannel, "a", []string{"b"}, 2, nil},
		{"support empty", RoomSupport, "a", nil, 1, nil},
		{"blank creator", RoomProject, " ", nil, 0, ErrBlankSubscriber},
		{"unknown", RoomType("x"), "a", nil, 0, ErrUnknownRoomType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members, err := MembersForNewRoom(tt.roomType, tt.creator, tt.requested)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if err == nil && len(members) != tt.want {
				t.Fatalf("expected %d members, got %v", tt.want, members)
			}
		})
	}
}

func TestNormalizeMembersKeepsFirstSeenOrder(t *testing.T) {
	got := NormalizeMembers([]string{" b", "a", "b", "", "c", "a "})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
