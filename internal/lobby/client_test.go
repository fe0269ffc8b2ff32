package lobby

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testRoomID = "0755761d-bca9-46c2-8dd6-a6d03200ef66"

func TestRoomInfoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/room/"+testRoomID {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("api key header: %q", got)
		}
		w.Write([]byte(`{"id":"` + testRoomID + `","name":"Friday Night","close_date":"2026-09-05T20:00:00","description":"weekly"}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithTimeout(2*time.Second))
	room, ok := c.RoomInfo(context.Background(), srv.URL+"/", testRoomID)
	if !ok {
		t.Fatal("expected room")
	}
	if room.Name != "Friday Night" {
		t.Fatalf("name: %q", room.Name)
	}
	want := time.Date(2026, 9, 5, 20, 0, 0, 0, time.UTC)
	if !room.CloseDate.Equal(want) {
		t.Fatalf("close date: %v", room.CloseDate)
	}
	if room.URL != srv.URL+"/room/"+testRoomID {
		t.Fatalf("url: %q", room.URL)
	}
}

func TestRoomInfoAbsence(t *testing.T) {
	cases := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not json")) }},
		{"bad close date", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"x","name":"x","close_date":"soon","description":""}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.h)
			defer srv.Close()
			c := NewClient("secret", WithTimeout(2*time.Second))
			if _, ok := c.RoomInfo(context.Background(), srv.URL, testRoomID); ok {
				t.Fatal("expected absence")
			}
		})
	}
}

func TestRoomInfoNetworkFailure(t *testing.T) {
	c := NewClient("secret", WithTimeout(500*time.Millisecond))
	if _, ok := c.RoomInfo(context.Background(), "http://127.0.0.1:1", testRoomID); ok {
		t.Fatal("expected absence on connection failure")
	}
}

func TestParseCloseDateRFC3339(t *testing.T) {
	got, err := parseCloseDate("2026-09-05T20:00:00+02:00")
	if err != nil {
		t.Fatalf("parseCloseDate: %v", err)
	}
	want := time.Date(2026, 9, 5, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
