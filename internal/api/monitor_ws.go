package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dronematch/internal/store"
)

// Monitor stream over WebSocket. The server pushes Event messages as JSON:
// stored samples of a finished match followed by match.finished, or live
// match.monitor samples until the running match finishes.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait   = 60 * time.Second
	wsPingEvery  = 20 * time.Second
	wsWriteLimit = 5 * time.Second
)

// MonitorStreamHandler handles /v1/matches/{id}/stream
func (s *Server) MonitorStreamHandler(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := s.Store.GetMatch(r.Context(), id); err != nil {
		writeError(w, r, "Get match failed", err)
		return
	}
	// subscribe before the upgrade so no event between the check and the
	// first read is lost
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteLimit))
		return conn.WriteJSON(v)
	}

	// reader: only control frames are expected; it ends on close or timeout
	closed := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	rec, err := s.Store.GetMatch(r.Context(), id)
	if err != nil {
		return
	}
	if rec.Finished() {
		s.replay(r.Context(), rec, write)
		s.closeStream(conn)
		return
	}

	every := s.pingEvery
	if every <= 0 {
		every = wsPingEvery
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				return
			}
			if evt.Type == EventFinished {
				s.closeStream(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteLimit)); err != nil {
				return
			}
			// the finish event can be lost on a remote broker; the store has
			// the final word
			if cur, err := s.Store.GetMatch(r.Context(), id); err == nil && cur.Finished() {
				_ = write(Event{Type: EventFinished, Match: &cur})
				s.closeStream(conn)
				return
			}
		case <-closed:
			return
		}
	}
}

// replay sends the stored samples and the final state of a finished match.
func (s *Server) replay(ctx context.Context, rec store.Match, write func(any) error) {
	recs, err := s.Store.ListMonitorRecords(ctx, rec.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.Log.Warnf("stream %s: list monitor records: %v", rec.ID, err)
	}
	for i := range recs {
		if err := write(Event{Type: EventMonitor, Record: &recs[i]}); err != nil {
			return
		}
	}
	_ = write(Event{Type: EventFinished, Match: &rec})
}

func (s *Server) closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteLimit))
}
