package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bananium-fr/botguette/internal/lobby"
	"github.com/bananium-fr/botguette/internal/roomref"
)

// Connectivity check against a lobby: resolves a room URL and prints what
// the API reports for it.
//
//	LOBBY_API_KEY=... lobbycheck https://ap-lobby.bananium.fr/room/<uuid>
func main() {
	apiKey := os.Getenv("LOBBY_API_KEY")
	if apiKey == "" {
		log.Fatal("LOBBY_API_KEY is required")
	}
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <room-url>", os.Args[0])
	}

	ref, err := roomref.Parse(os.Args[1])
	if err != nil {
		log.Fatalf("room url: %v", err)
	}

	client := lobby.NewClient(apiKey, lobby.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room, ok := client.RoomInfo(ctx, ref.RootURL, ref.RoomID)
	if !ok {
		log.Fatalf("room %s not available from %s", ref.RoomID, ref.RootURL)
	}

	fmt.Printf("id:    %s\n", room.ID)
	fmt.Printf("name:  %s\n", room.Name)
	fmt.Printf("close: %s (in %s)\n", room.CloseDate.Format(time.RFC3339), time.Until(room.CloseDate).Round(time.Second))
	if room.Description != "" {
		fmt.Printf("desc:  %s\n", room.Description)
	}
	if room.URL != "" {
		fmt.Printf("url:   %s\n", room.URL)
	}
}
