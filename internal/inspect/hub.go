// Package inspect serves a read-only live view of a running engine. Every
// completed frame is pushed as JSON to the websocket clients of /frames.
package inspect

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/engine"
)

// sendBuffer is how many frames a client may lag before it is dropped.
const sendBuffer = 64

var (
	_ engine.Reporter  = (*Hub)(nil)
	_ observer.Monitor = (*Hub)(nil)
)

type TaskReport struct {
	Name   string `json:"name"`
	Micros int64  `json:"us"`
	Error  string `json:"error,omitempty"`
}

// FrameMessage is what /frames clients receive once per frame.
type FrameMessage struct {
	Engine     string                    `json:"engine"`
	Frame      uint64                    `json:"frame"`
	Micros     int64                     `json:"us"`
	Tasks      []TaskReport              `json:"tasks"`
	Posts      uint64                    `json:"posts"`
	Deliveries uint64                    `json:"deliveries"`
	PostErrors uint64                    `json:"post_errors"`
	POI        map[string]map[string]int `json:"poi,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans frame reports out to connected clients. It is an engine reporter
// and an observer registry monitor at the same time: posts are counted
// between two reports.
type Hub struct {
	log log.Log

	posts      atomic.Uint64
	deliveries atomic.Uint64
	postErrs   atomic.Uint64

	mu      sync.RWMutex
	clients map[*client]bool
	last    FrameMessage
}

func NewHub(logger log.Log) *Hub {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Hub{log: logger, clients: make(map[*client]bool)}
}

func (h *Hub) OnPosted(_ string, _ changes.Mask, delivered int, err error, _ time.Duration) {
	h.posts.Add(1)
	h.deliveries.Add(uint64(delivered))
	if err != nil {
		h.postErrs.Add(1)
	}
}

func (h *Hub) ReportFrame(fr engine.FrameReport) {
	msg := FrameMessage{
		Engine:     fr.Engine,
		Frame:      fr.Frame,
		Micros:     fr.Duration.Microseconds(),
		Posts:      h.posts.Swap(0),
		Deliveries: h.deliveries.Swap(0),
		PostErrors: h.postErrs.Swap(0),
		POI:        fr.POI,
	}
	for _, ts := range fr.Tasks {
		tr := TaskReport{Name: ts.Name, Micros: ts.Duration.Microseconds()}
		if ts.Err != nil {
			tr.Error = ts.Err.Error()
		}
		msg.Tasks = append(msg.Tasks, tr)
	}
	if fr.Err != nil {
		msg.Error = fr.Err.Error()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("encode frame report", log.Error(err))
		return
	}

	h.mu.Lock()
	h.last = msg
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("dropping slow inspector client", log.String("remote", c.conn.RemoteAddr().String()))
			delete(h.clients, c)
			c.close()
		}
	}
	h.mu.Unlock()
}

// Last returns the most recent frame message.
func (h *Hub) Last() FrameMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}
