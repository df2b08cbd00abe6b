// Package main runs a demo WebSocket client for the optimization stream.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type streamMessage struct {
	Type     string          `json:"type"`
	Progress json.RawMessage `json:"progress,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
}

const defaultRequest = `{
  "custom": true,
  "search_types": ["all"],
  "destinations": [{"destination_id": 1, "nights": 3}],
  "global_date_range": {"start": "2025-12-01", "end": "2025-12-31"},
  "fixed_dates": ["2025-12-20"]
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	token := os.Getenv("TOKEN")
	if token == "" {
		token = "authenticated"
	}
	body := []byte(defaultRequest)
	if len(os.Args) > 1 {
		b, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Fatal(err)
		}
		body = b
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/itineraries/stream"}
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteMessage(websocket.TextMessage, body); err != nil {
		log.Fatal(err)
	}
	for {
		var m streamMessage
		if err := c.ReadJSON(&m); err != nil {
			log.Printf("read: %v", err)
			return
		}
		switch m.Type {
		case "progress":
			log.Printf("WS <- progress: %s", m.Progress)
		case "result":
			log.Printf("WS <- result: %d bytes", len(m.Result))
			return
		case "error":
			log.Printf("WS <- error: %s", m.Error)
			return
		}
	}
}
