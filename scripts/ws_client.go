// Command ws_client submits a run to a local API and tails its solution
// stream over WebSocket.
//
//	go run ./scripts instances/c101.txt tabu
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type     string  `json:"type"`
	Seq      int     `json:"seq"`
	Routes   int     `json:"routes"`
	Distance float64 `json:"distance"`
	Status   string  `json:"status,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ws_client <instance> [strategy]")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	inst, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	strategy := "tabu"
	if len(os.Args) > 2 {
		strategy = os.Args[2]
	}
	body, _ := json.Marshal(map[string]any{"instance": string(inst), "strategy": strategy, "timeoutMs": 30000})
	resp, err := http.Post(base+"/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("create run: %s", resp.Status)
	}
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s", run.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	start := time.Now()
	for {
		var e event
		if err := c.ReadJSON(&e); err != nil {
			log.Printf("read: %v", err)
			return
		}
		log.Printf("WS <- %-8s #%d routes=%d distance=%.2f %s (+%v)", e.Type, e.Seq, e.Routes, e.Distance, e.Status, time.Since(start).Round(time.Millisecond))
		if e.Type == "finished" {
			return
		}
	}
}
