// Package admin exposes a node's live storage stats over a websocket
// push feed, the same upgrade-then-push shape the teacher's own
// scm/network.go wires onto gorilla/websocket for its "websocket"
// builtin, applied here to one fixed JSON message instead of an
// arbitrary scheme callback.
package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/registry"
)

// StorageStat is one storage's reported size, sent as part of a Snapshot.
type StorageStat struct {
	Storage domain.StorageId `json:"storage"`
	Kind    string           `json:"kind"`
	Max     string           `json:"max"`
	Used    domain.Size      `json:"used"`
}

// Snapshot is the JSON document pushed to every connected websocket
// client once per Interval.
type Snapshot struct {
	Storages []StorageStat `json:"storages"`
}

var upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

// Handler serves a websocket endpoint that pushes a Snapshot of reg's
// storages every Interval until the client disconnects.
type Handler struct {
	Registry *registry.Registry
	Interval time.Duration
	Logger   *log.Logger
}

func (h *Handler) interval() time.Duration {
	if h.Interval <= 0 {
		return time.Second
	}
	return h.Interval
}

func (h *Handler) snapshot() Snapshot {
	ids := h.Registry.List()
	stats := make([]StorageStat, 0, len(ids))
	for _, id := range ids {
		kind, err := h.Registry.Kind(id)
		if err != nil {
			continue
		}
		max, err := h.Registry.SizeMax(id)
		if err != nil {
			continue
		}
		used, err := h.Registry.SizeUsed(id)
		if err != nil {
			continue
		}
		stats = append(stats, StorageStat{Storage: id, Kind: kind.String(), Max: max.String(), Used: used})
	}
	return Snapshot{Storages: stats}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader.CheckOrigin = func(*http.Request) bool { return true }
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	// Drain client reads so a disconnect surfaces promptly; the feed
	// itself is one-directional.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval())
	defer ticker.Stop()
	for range ticker.C {
		data, err := json.Marshal(h.snapshot())
		if err != nil {
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
