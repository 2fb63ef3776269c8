package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vrptw/internal/store"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// RunStreamHandler handles /v1/runs/{id}/ws. The client receives the stored
// latest solution, then every new one, then a finished event after which the
// server closes the connection.
func (s *Server) RunStreamHandler(w http.ResponseWriter, r *http.Request, runID string) {
	run, ch, ok := s.subscribe(w, r, runID)
	if !ok {
		return
	}
	defer s.Broker.Unsubscribe(runID, ch)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// the read loop only handles control frames and notices the client leaving
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	seen := 0
	for _, evt := range s.replay(r, run) {
		seen = evt.Seq
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
		if evt.Type == EventFinished {
			s.closeWS(conn)
			return
		}
	}

	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.Type == EventSolution && evt.Seq <= seen {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
			if evt.Type == EventFinished {
				s.closeWS(conn)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) closeWS(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// RunEventsHandler handles /v1/runs/{id}/events as a server-sent event stream.
func (s *Server) RunEventsHandler(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	run, ch, ok := s.subscribe(w, r, runID)
	if !ok {
		return
	}
	defer s.Broker.Unsubscribe(runID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	write := func(evt SolutionEvent) error {
		b, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Type, b); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	seen := 0
	for _, evt := range s.replay(r, run) {
		seen = evt.Seq
		if write(evt) != nil || evt.Type == EventFinished {
			return
		}
	}
	for {
		select {
		case evt, ok := <-ch:
			if ok && evt.Type == EventSolution && evt.Seq <= seen {
				continue
			}
			if !ok || write(evt) != nil || evt.Type == EventFinished {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// subscribe looks the run up and subscribes before reading its state, so no
// event falls between the replay and the live stream.
func (s *Server) subscribe(w http.ResponseWriter, r *http.Request, runID string) (store.Run, chan SolutionEvent, bool) {
	if _, err := s.Store.GetRun(r.Context(), runID); err != nil {
		s.storeProblem(w, r, "Get run failed", err)
		return store.Run{}, nil, false
	}
	ch := s.Broker.Subscribe(runID)
	run, err := s.Store.GetRun(r.Context(), runID)
	if err != nil {
		s.Broker.Unsubscribe(runID, ch)
		s.storeProblem(w, r, "Get run failed", err)
		return store.Run{}, nil, false
	}
	return run, ch, true
}

// replay renders what a late subscriber missed: the latest stored solution
// and, for a finished run, the finished event. Live solutions at or below the
// replayed seq are skipped by the callers.
func (s *Server) replay(r *http.Request, run store.Run) []SolutionEvent {
	var out []SolutionEvent
	if snap, err := s.Store.LatestSnapshot(r.Context(), run.ID); err == nil {
		out = append(out, SolutionEvent{
			Type: EventSolution, RunID: run.ID, Seq: snap.Seq,
			Routes: snap.Routes, Distance: snap.Distance, Body: snap.Body,
		})
	}
	if run.Status.Terminal() {
		out = append(out, SolutionEvent{
			Type: EventFinished, RunID: run.ID, Seq: run.Snapshots,
			Routes: run.BestRoutes, Distance: run.BestDistance, Status: string(run.Status),
		})
	}
	return out
}
