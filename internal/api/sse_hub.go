package api

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"ringstat/domain/sweep"
	"ringstat/internal"

	"github.com/gin-gonic/gin"
)

// AllSweeps subscribes a client to every sweep
const AllSweeps = "*"

// SSEClient represents a connected SSE client
type SSEClient struct {
	SweepID string
	Channel chan sweep.ProgressEvent
}

// ProgressHub fans sweep progress out to Server-Sent Events clients and keeps
// the latest event of each sweep for status queries.
type ProgressHub struct {
	clients    map[string]map[chan sweep.ProgressEvent]bool
	clientsMu  sync.RWMutex
	latest     map[string]sweep.ProgressEvent
	latestMu   sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan sweep.ProgressEvent
	done       chan struct{}
	logger     *internal.Logger
}

// NewProgressHub creates a hub and starts its loop
func NewProgressHub() *ProgressHub {
	hub := &ProgressHub{
		clients:    make(map[string]map[chan sweep.ProgressEvent]bool),
		latest:     make(map[string]sweep.ProgressEvent),
		register:   make(chan SSEClient, 10),
		unregister: make(chan SSEClient, 10),
		broadcast:  make(chan sweep.ProgressEvent, 100),
		done:       make(chan struct{}),
		logger:     internal.DefaultLogger.For("SSE"),
	}

	go hub.run()
	return hub
}

// Close stops the hub loop
func (h *ProgressHub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// run processes hub operations
func (h *ProgressHub) run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.SweepID] == nil {
				h.clients[client.SweepID] = make(map[chan sweep.ProgressEvent]bool)
			}
			h.clients[client.SweepID][client.Channel] = true
			h.logger.Debug("Client registered for sweep %s (total clients: %d)",
				client.SweepID, len(h.clients[client.SweepID]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.SweepID]; exists {
				delete(clients, client.Channel)
				close(client.Channel)
				h.logger.Debug("Client unregistered from sweep %s (remaining clients: %d)",
					client.SweepID, len(clients))
				if len(clients) == 0 {
					delete(h.clients, client.SweepID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			h.deliver(h.clients[event.SweepID], event)
			h.deliver(h.clients[AllSweeps], event)
			h.clientsMu.RUnlock()
		}
	}
}

func (h *ProgressHub) deliver(clients map[chan sweep.ProgressEvent]bool, event sweep.ProgressEvent) {
	for clientChan := range clients {
		select {
		case clientChan <- event:
		default:
			h.logger.Warn("Client channel full for sweep %s, skipping event", event.SweepID)
		}
	}
}

// Report records the event as the sweep's latest state and queues it for
// streaming. Slow consumers lose events; sweeps never wait on them.
func (h *ProgressHub) Report(_ context.Context, event sweep.ProgressEvent) {
	h.latestMu.Lock()
	h.latest[event.SweepID] = event
	h.latestMu.Unlock()

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event for sweep %s", event.SweepID)
	}
}

// Latest returns the most recent event of every sweep seen so far
func (h *ProgressHub) Latest() map[string]sweep.ProgressEvent {
	h.latestMu.RLock()
	defer h.latestMu.RUnlock()

	out := make(map[string]sweep.ProgressEvent, len(h.latest))
	for id, ev := range h.latest {
		out[id] = ev
	}
	return out
}

// HandleSSE streams progress events. The sweep_id query parameter selects one
// sweep; without it the client receives every sweep.
func (h *ProgressHub) HandleSSE(c *gin.Context) {
	sweepID := c.DefaultQuery("sweep_id", AllSweeps)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control")

	clientChan := make(chan sweep.ProgressEvent, 10)

	select {
	case h.register <- SSEClient{SweepID: sweepID, Channel: clientChan}:
	default:
		c.JSON(500, gin.H{"error": "SSE hub registration failed"})
		return
	}

	defer func() {
		select {
		case h.unregister <- SSEClient{SweepID: sweepID, Channel: clientChan}:
		default:
		}
	}()

	c.Status(200)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to marshal event: %v", err)
				return true
			}
			c.SSEvent("progress", string(eventJSON))
			return true

		case <-time.After(30 * time.Second):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false

		case <-h.done:
			return false
		}
	})
}

// GetClientCount returns the number of active clients for a sweep
func (h *ProgressHub) GetClientCount(sweepID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	if clients, exists := h.clients[sweepID]; exists {
		return len(clients)
	}
	return 0
}
