// Package bridgetest runs an in-process TonConnect bridge for tests.
package bridgetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Query records one events subscription.
type Query struct {
	ClientIDs   []string
	LastEventID string
	// Header is the Last-Event-ID header sent on reconnect.
	Header string
}

// Posted is a message received on the message endpoint.
type Posted struct {
	From    string
	To      string
	TTL     int
	Message string
}

type event struct {
	id   int
	data string
}

type Server struct {
	server *httptest.Server

	mu          sync.Mutex
	nextID      int
	subscribers map[string][]chan event
	queries     []Query
	posted      []Posted
	streams     int
}

func NewServer() *Server {
	s := &Server{subscribers: make(map[string][]chan event)}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.events)
	mux.HandleFunc("/message", s.message)
	s.server = httptest.NewServer(mux)
	return s
}

func (s *Server) URL() string {
	return s.server.URL
}

func (s *Server) Close() {
	s.server.CloseClientConnections()
	s.server.Close()
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ids := strings.Split(r.URL.Query().Get("client_id"), ",")
	ch := make(chan event, 16)

	s.mu.Lock()
	s.queries = append(s.queries, Query{
		ClientIDs:   ids,
		LastEventID: r.URL.Query().Get("last_event_id"),
		Header:      r.Header.Get("Last-Event-ID"),
	})
	for _, id := range ids {
		s.subscribers[id] = append(s.subscribers[id], ch)
	}
	s.streams++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.streams--
		for _, id := range ids {
			subs := s.subscribers[id]
			for i, c := range subs {
				if c == ch {
					s.subscribers[id] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "event: heartbeat\ndata: heartbeat\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", e.id, e.data)
			flusher.Flush()
		}
	}
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	ttl, _ := strconv.Atoi(q.Get("ttl"))
	p := Posted{From: q.Get("client_id"), To: q.Get("to"), TTL: ttl, Message: string(body)}
	if p.From == "" || p.To == "" {
		http.Error(w, "client_id and to are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.posted = append(s.posted, p)
	s.mu.Unlock()

	s.Deliver(p.From, p.To, p.Message)
	w.WriteHeader(http.StatusOK)
}

// Deliver pushes a base64 message from one client id to the streams of
// another and returns the event id, or 0 when nobody listens.
func (s *Server) Deliver(from, to, message string) int {
	data, _ := json.Marshal(map[string]string{"from": from, "message": message})

	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subscribers[to]
	if len(subs) == 0 {
		return 0
	}
	s.nextID++
	e := event{id: s.nextID, data: string(data)}
	for _, ch := range subs {
		ch <- e
	}
	return e.id
}

// Redeliver sends an already delivered event again.
func (s *Server) Redeliver(id int, from, to, message string) {
	data, _ := json.Marshal(map[string]string{"from": from, "message": message})

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers[to] {
		ch <- event{id: id, data: string(data)}
	}
}

func (s *Server) Subscribed(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers[clientID]) > 0
}

func (s *Server) Streams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams
}

func (s *Server) Queries() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Query(nil), s.queries...)
}

func (s *Server) Posted() []Posted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Posted(nil), s.posted...)
}
