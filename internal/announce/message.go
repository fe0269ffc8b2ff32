package announce

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SanitizeRoomName escapes the two characters Discord would otherwise render
// as mass mentions or channel references. Pure substitution; the two targets
// are disjoint so order does not matter.
func SanitizeRoomName(name string) string {
	name = strings.ReplaceAll(name, "@", "\\@")
	return strings.ReplaceAll(name, "#", "\\#")
}

// UserMention renders a Discord user mention.
func UserMention(userID int64) string { return fmt.Sprintf("<@%d>", userID) }

// CloseTimeToken renders the close time as a Discord full-date timestamp.
// The sweep uses substring presence of this token to detect drift.
func CloseTimeToken(t time.Time) string { return fmt.Sprintf("<t:%d:F>", t.Unix()) }

// RenderAnnouncement produces the announcement body. The same template is
// used for the initial post and for reconciliation edits, so mentions resolve
// identically in both.
func RenderAnnouncement(roleMention, userMention, roomName, roomURL string, closeDate time.Time) string {
	return fmt.Sprintf("%s %s is organizing an archipelago **%s** at %s on %s",
		roleMention, userMention, SanitizeRoomName(roomName), roomURL, CloseTimeToken(closeDate))
}

var (
	roleMentionRe = regexp.MustCompile(`<@&\d+>`)
	userMentionRe = regexp.MustCompile(`<@!?\d+>`)
)

// ExtractMentions pulls the first role and user mention out of an existing
// announcement so an edit can preserve them. Missing mentions come back as
// "<unknown>" rather than failing the edit.
func ExtractMentions(content string) (roleMention, userMention string) {
	roleMention = "<unknown>"
	userMention = "<unknown>"
	if m := roleMentionRe.FindString(content); m != "" {
		roleMention = m
	}
	if m := userMentionRe.FindString(content); m != "" {
		userMention = m
	}
	return roleMention, userMention
}

// TruncateRunes limits a string to n runes; thread names are capped at 100.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
