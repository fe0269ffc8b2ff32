package announce

import (
	"testing"
	"time"
)

func TestSanitizeRoomName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Game @everyone", "Game \\@everyone"},
		{"Game #general", "Game \\#general"},
		{"Game @here in #channel", "Game \\@here in \\#channel"},
		{"@user1 and @user2", "\\@user1 and \\@user2"},
		{"Normal Game Name", "Normal Game Name"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SanitizeRoomName(tc.in); got != tc.want {
			t.Errorf("SanitizeRoomName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderAnnouncement(t *testing.T) {
	closeDate := time.Date(2026, 9, 5, 20, 0, 0, 0, time.UTC)
	got := RenderAnnouncement("<@&42>", "<@7>", "Friday @night", "https://lobby/room/x", closeDate)
	want := "<@&42> <@7> is organizing an archipelago **Friday \\@night** at https://lobby/room/x on <t:1788984000:F>"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestExtractMentions(t *testing.T) {
	role, user := ExtractMentions("<@&42> <@7> is organizing an archipelago **x** at y on <t:1:F>")
	if role != "<@&42>" || user != "<@7>" {
		t.Fatalf("got role=%q user=%q", role, user)
	}

	role, user = ExtractMentions("no mentions here")
	if role != "<unknown>" || user != "<unknown>" {
		t.Fatalf("expected unknown placeholders, got role=%q user=%q", role, user)
	}

	// Nickname-style user mentions still count.
	_, user = ExtractMentions("<@!99> hello")
	if user != "<@!99>" {
		t.Fatalf("got user=%q", user)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("abcdef", 3); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("abc", 100); got != "abc" {
		t.Fatalf("got %q", got)
	}
	// Multibyte names must not be cut mid-rune.
	if got := TruncateRunes("ééééé", 2); got != "éé" {
		t.Fatalf("got %q", got)
	}
}
