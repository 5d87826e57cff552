// Package realtime pushes new-lead notices to connected dashboards over websockets.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/tenancy"
	"github.com/wolfman30/leaddesk/pkg/logging"
	"golang.org/x/net/websocket"
)

const (
	TypeHello    = "hello"
	TypeNewLeads = "new_leads"
	TypePong     = "pong"
)

// Message is what dashboards receive.
type Message struct {
	Type      string       `json:"type"`
	CompanyID string       `json:"company_id,omitempty"`
	PlaySound bool         `json:"play_sound,omitempty"`
	Count     int          `json:"count,omitempty"`
	Leads     []leads.Lead `json:"leads,omitempty"`
	SentAt    time.Time    `json:"sent_at"`
}

type inbound struct {
	Type string `json:"type"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg Message, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return websocket.JSON.Send(c.conn, msg)
}

// Hub tracks open dashboard sockets per company.
type Hub struct {
	logger       *logging.Logger
	writeTimeout time.Duration

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger:       logger,
		writeTimeout: 5 * time.Second,
		clients:      make(map[string]map[*client]struct{}),
	}
}

// ServeWS upgrades an authenticated request and keeps the socket registered until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenancy.CompanyIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing company", http.StatusUnauthorized)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn, companyID)
	}).ServeHTTP(w, r)
}

func (h *Hub) serve(conn *websocket.Conn, companyID string) {
	c := &client{conn: conn}
	h.register(companyID, c)
	defer h.unregister(companyID, c)

	h.logger.Info("realtime: dashboard connected", "company_id", companyID)
	_ = c.send(Message{Type: TypeHello, CompanyID: companyID, SentAt: time.Now().UTC()}, h.writeTimeout)

	for {
		var msg inbound
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("realtime: dashboard disconnected", "company_id", companyID, "error", err)
			return
		}
		if msg.Type == "ping" {
			_ = c.send(Message{Type: TypePong, SentAt: time.Now().UTC()}, h.writeTimeout)
		}
	}
}

// PublishNewLeads sends one new_leads message, with the sound cue, to every socket of the company.
// Sockets that fail to accept the write are dropped.
func (h *Hub) PublishNewLeads(ctx context.Context, companyID string, fresh []leads.Lead) error {
	if len(fresh) == 0 {
		return nil
	}
	targets := h.snapshot(companyID)
	if len(targets) == 0 {
		return nil
	}

	msg := Message{
		Type:      TypeNewLeads,
		CompanyID: companyID,
		PlaySound: true,
		Count:     len(fresh),
		Leads:     fresh,
		SentAt:    time.Now().UTC(),
	}
	for _, c := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.send(msg, h.writeTimeout); err != nil {
			h.logger.Warn("realtime: push failed, dropping socket", "company_id", companyID, "error", err)
			h.unregister(companyID, c)
			_ = c.conn.Close()
		}
	}
	return nil
}

// Clients reports the number of open sockets for a company.
func (h *Hub) Clients(companyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[companyID])
}

func (h *Hub) snapshot(companyID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients[companyID]))
	for c := range h.clients[companyID] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) register(companyID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[companyID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[companyID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(companyID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[companyID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, companyID)
	}
}
