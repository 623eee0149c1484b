// Package relaytest runs an in-process relay speaking the irn JSON-RPC
// subset used by the client.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Published struct {
	Topic   string
	Message string
	Tag     int
	TTL     int
}

type rpcMessage struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(v interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.WriteJSON(v)
}

type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu             sync.Mutex
	handshakeDelay time.Duration
	subscribers map[string][]*peer
	mailbox     map[string][]Published
	peers       []*peer
	published   []Published
	queries     []map[string]string
	acks        int
}

func NewServer() *Server {
	s := &Server{
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		subscribers: make(map[string][]*peer),
		mailbox:     make(map[string][]Published),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// URL returns the websocket address of the relay.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// SetHandshakeDelay holds every following upgrade for d.
func (s *Server) SetHandshakeDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeDelay = d
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delay := s.handshakeDelay
	s.mu.Unlock()
	time.Sleep(delay)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn}

	s.mu.Lock()
	s.peers = append(s.peers, p)
	s.queries = append(s.queries, map[string]string{
		"auth":      r.URL.Query().Get("auth"),
		"projectId": r.URL.Query().Get("projectId"),
	})
	s.mu.Unlock()

	defer conn.Close()
	for {
		var msg rpcMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.drop(p)
			return
		}
		s.handle(p, &msg)
	}
}

func (s *Server) drop(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, peers := range s.subscribers {
		kept := peers[:0]
		for _, candidate := range peers {
			if candidate != p {
				kept = append(kept, candidate)
			}
		}
		s.subscribers[topic] = kept
	}
}

func (s *Server) unsubscribe(p *peer, topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.subscribers[topic][:0]
	for _, candidate := range s.subscribers[topic] {
		if candidate != p {
			kept = append(kept, candidate)
		}
	}
	s.subscribers[topic] = kept
}

func (s *Server) handle(p *peer, msg *rpcMessage) {
	if msg.Method == "" {
		s.mu.Lock()
		s.acks++
		s.mu.Unlock()
		return
	}

	var params struct {
		Topic   string `json:"topic"`
		Message string `json:"message"`
		Tag     int    `json:"tag"`
		TTL     int    `json:"ttl"`
	}
	_ = json.Unmarshal(msg.Params, &params)

	var result interface{} = true
	var forward []*peer
	var queued []Published
	msgPublished := Published{Topic: params.Topic, Message: params.Message, Tag: params.Tag, TTL: params.TTL}

	s.mu.Lock()
	switch msg.Method {
	case "irn_subscribe":
		s.subscribers[params.Topic] = append(s.subscribers[params.Topic], p)
		queued = s.mailbox[params.Topic]
		delete(s.mailbox, params.Topic)
		result = "sub-" + params.Topic
	case "irn_publish":
		s.published = append(s.published, msgPublished)
		for _, candidate := range s.subscribers[params.Topic] {
			if candidate != p {
				forward = append(forward, candidate)
			}
		}
		if len(forward) == 0 {
			s.mailbox[params.Topic] = append(s.mailbox[params.Topic], msgPublished)
		}
	}
	s.mu.Unlock()

	if msg.Method == "irn_unsubscribe" {
		s.unsubscribe(p, params.Topic)
	}

	data, _ := json.Marshal(result)
	p.send(rpcMessage{ID: msg.ID, JSONRPC: "2.0", Result: data})

	for _, m := range queued {
		p.send(subscription(m))
	}
	for _, target := range forward {
		target.send(subscription(msgPublished))
	}
}

func subscription(m Published) rpcMessage {
	params, _ := json.Marshal(map[string]interface{}{
		"id": "sub-" + m.Topic,
		"data": map[string]interface{}{
			"topic":       m.Topic,
			"message":     m.Message,
			"publishedAt": time.Now().UnixMilli(),
			"tag":         m.Tag,
		},
	})
	return rpcMessage{ID: time.Now().UnixNano(), JSONRPC: "2.0", Method: "irn_subscription", Params: params}
}

// Deliver pushes message to every subscriber of topic as a dApp would.
func (s *Server) Deliver(topic, message string, tag int) int {
	s.mu.Lock()
	peers := append([]*peer(nil), s.subscribers[topic]...)
	s.mu.Unlock()

	for _, p := range peers {
		p.send(subscription(Published{Topic: topic, Message: message, Tag: tag}))
	}
	return len(peers)
}

// DropConnections closes every open socket without unsubscribing.
func (s *Server) DropConnections() {
	s.mu.Lock()
	peers := s.peers
	s.peers = nil
	s.mu.Unlock()
	for _, p := range peers {
		_ = p.conn.Close()
	}
}

func (s *Server) Subscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers[topic]) > 0
}

func (s *Server) Published() []Published {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Published(nil), s.published...)
}

func (s *Server) Queries() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.queries...)
}

func (s *Server) Acks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acks
}
