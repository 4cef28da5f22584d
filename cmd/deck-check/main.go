package main

import (
	"context"
	"flag"
	"log"
	"time"

	"card-czar/internal/deck"
)

// deck-check fetches a deck document and reports whether it passes the same
// validation the server applies at session creation.
func main() {
	url := flag.String("url", "", "deck url to validate")
	flag.Parse()

	if *url == "" {
		log.Fatal("deck url is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, info, err := deck.Fetch(ctx, *url)
	if err != nil {
		log.Fatalf("deck rejected: %v", err)
	}
	log.Printf("deck ok url=%s calls=%d responses=%d", *url, info.Calls, info.Responses)
}
