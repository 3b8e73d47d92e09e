// Package main submits a scenario asynchronously and follows its monitor
// stream over WebSocket.
//
//	go run ./scripts/ws_client.go internal/scenario/testdata/three_requests.json
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"dronematch/internal/logger"
)

type streamEvent struct {
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record,omitempty"`
	Match  *struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Objective int64  `json:"objective"`
	} `json:"match,omitempty"`
}

func main() {
	log := logger.New("ws-client")
	if len(os.Args) < 2 {
		log.Errorf("usage: ws_client <scenario.json>")
		os.Exit(2)
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	body, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Errorf("read scenario: %v", err)
		os.Exit(1)
	}
	resp, err := http.Post(base+"/v1/matches?async=true", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Errorf("create match: %v", err)
		os.Exit(1)
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	err = json.NewDecoder(resp.Body).Decode(&created)
	_ = resp.Body.Close()
	if err != nil || created.ID == "" {
		log.Errorf("create match: status %d: %v", resp.StatusCode, err)
		os.Exit(1)
	}
	log.Infof("match %s %s", created.ID, created.Status)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/matches/" + created.ID + "/stream"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Errorf("dial: %v", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt streamEvent
			if err := c.ReadJSON(&evt); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Warnf("read: %v", err)
				}
				return
			}
			switch {
			case evt.Match != nil:
				log.Infof("%s: %s objective=%d", evt.Type, evt.Match.Status, evt.Match.Objective)
			default:
				log.Infof("%s: %s", evt.Type, string(evt.Record))
			}
		}
	}()

	select {
	case <-time.After(2 * time.Minute):
		log.Warnf("gave up waiting for match %s", created.ID)
	case <-done:
	}
}
