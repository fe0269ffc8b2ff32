package roomref

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Ref identifies a lobby room: the lobby root (scheme://host, no trailing
// slash) plus the room UUID in lowercase.
type Ref struct {
	RootURL string
	RoomID  string
}

// URL reassembles the canonical room page URL.
func (r Ref) URL() string {
	return r.RootURL + "/room/" + r.RoomID
}

// ParseError carries the reason a room URL was rejected; the message is
// shown verbatim to the requester.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

// Parse validates a user-supplied room URL. The path must be exactly
// /room/{uuid}; the scheme must be http or https.
func Parse(raw string) (Ref, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Ref{}, &ParseError{Reason: "missing scheme or domain"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Ref{}, &ParseError{Reason: fmt.Sprintf("scheme %q is not allowed", u.Scheme)}
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "room" {
		return Ref{}, &ParseError{Reason: "expected path /room/{uuid}"}
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Ref{}, &ParseError{Reason: fmt.Sprintf("malformed room id %q", parts[1])}
	}

	return Ref{
		RootURL: u.Scheme + "://" + u.Host,
		RoomID:  id.String(),
	}, nil
}
