package roomref

import (
	"errors"
	"strings"
	"testing"
)

const sampleID = "0755761d-bca9-46c2-8dd6-a6d03200ef66"

func TestParseValid(t *testing.T) {
	ref, err := Parse("https://ap-lobby.bananium.fr/room/" + sampleID)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ref.RootURL != "https://ap-lobby.bananium.fr" {
		t.Fatalf("root url: %q", ref.RootURL)
	}
	if ref.RoomID != sampleID {
		t.Fatalf("room id: %q", ref.RoomID)
	}
}

func TestParseLowercasesRoomID(t *testing.T) {
	ref, err := Parse("https://ap-lobby.bananium.fr/room/" + strings.ToUpper(sampleID))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ref.RoomID != sampleID {
		t.Fatalf("expected lowercase id, got %q", ref.RoomID)
	}
}

func TestParseIdempotent(t *testing.T) {
	ref, err := Parse("HTTPS://ap-lobby.bananium.fr/room/" + strings.ToUpper(sampleID))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	again, err := Parse(ref.URL())
	if err != nil {
		t.Fatalf("Parse(ref.URL()): %v", err)
	}
	if again != ref {
		t.Fatalf("round trip changed ref: %+v vs %+v", again, ref)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		reason string
	}{
		{"no scheme", "ap-lobby.bananium.fr/room/" + sampleID, "missing scheme"},
		{"bad scheme", "ftp://ap-lobby.bananium.fr/room/" + sampleID, "not allowed"},
		{"no room segment", "https://ap-lobby.bananium.fr/" + sampleID, "/room/{uuid}"},
		{"extra path", "https://ap-lobby.bananium.fr/room/" + sampleID + "/extra", "/room/{uuid}"},
		{"wrong literal", "https://ap-lobby.bananium.fr/rooms/" + sampleID, "/room/{uuid}"},
		{"bad uuid", "https://ap-lobby.bananium.fr/room/not-a-uuid", "malformed room id"},
		{"empty", "", "missing scheme"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.url)
			if err == nil {
				t.Fatalf("expected error for %q", tc.url)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %T", err)
			}
			if !strings.Contains(pe.Reason, tc.reason) {
				t.Fatalf("reason %q does not mention %q", pe.Reason, tc.reason)
			}
		})
	}
}
