package sync

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/tomasen/realip"
)

// SyncStatusResponse is the body of GET /api/sync/status.
type SyncStatusResponse struct {
	Phase        Phase       `json:"phase"`
	QueueLen     int         `json:"queueLen"`
	Pending      []Direction `json:"pending"`
	DiskTotal    uint64      `json:"diskTotal"`
	DiskFree     uint64      `json:"diskFree"`
	RecentErrors []LogEntry  `json:"recentErrors"`
}

// Handlers holds the HTTP handlers for the sync control API.
type Handlers struct {
	daemon    *Daemon
	store     *Store // nil when history is disabled
	bus       *EventBus
	vaultRoot string
	token     string // HS256 secret; empty disables bearer auth
	upgrader  websocket.Upgrader
}

// NewHandlers creates the sync HTTP handlers. When controlToken is set,
// every route requires a bearer token signed with it.
func NewHandlers(daemon *Daemon, store *Store, bus *EventBus, vaultRoot, controlToken string) *Handlers {
	return &Handlers{
		daemon:    daemon,
		store:     store,
		bus:       bus,
		vaultRoot: vaultRoot,
		token:     controlToken,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router mounts the API under /api/sync.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)
	api := r.PathPrefix("/api/sync").Subrouter()
	api.Use(rejectCrossSite)
	if h.token != "" {
		api.Use(requireToken(h.token))
	}
	api.HandleFunc("/status", h.HandleStatus).Methods(http.MethodGet)
	api.HandleFunc("/{direction:upload|download}", h.HandleEnqueue).Methods(http.MethodPost)
	api.HandleFunc("/runs", h.HandleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", h.HandleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/events", h.HandleEvents).Methods(http.MethodGet)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub("handlers").Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "client", realip.FromRequest(r))
		next.ServeHTTP(w, r)
	})
}

// HandleStatus handles GET /api/sync/status
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := SyncStatusResponse{
		Phase:        h.daemon.Syncer().Phase(),
		QueueLen:     h.daemon.Queue().Len(),
		Pending:      h.daemon.Queue().Pending(),
		RecentErrors: RecentErrors(),
	}
	if usage, err := disk.UsageWithContext(r.Context(), h.vaultRoot); err == nil {
		resp.DiskTotal = usage.Total
		resp.DiskFree = usage.Free
	} else {
		sub("handlers").Debug("disk usage unavailable", "path", h.vaultRoot, "err", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleEnqueue handles POST /api/sync/{direction}
func (h *Handlers) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	dir, ok := ParseDirection(mux.Vars(r)["direction"])
	if !ok {
		http.Error(w, "invalid direction", http.StatusBadRequest)
		return
	}

	queued := h.daemon.Queue().Push(dir)
	l.Info("HTTP sync requested", "direction", dir, "queued", queued, "client", realip.FromRequest(r))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"direction": dir,
		"queued":    queued,
		"queueLen":  h.daemon.Queue().Len(),
	})
}

// HandleListRuns handles GET /api/sync/runs?limit=N
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	if h.store == nil {
		http.Error(w, "run history disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		l.Error("list runs failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": runs})
}

// HandleGetRun handles GET /api/sync/runs/{id}
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	if h.store == nil {
		http.Error(w, "run history disabled", http.StatusNotFound)
		return
	}

	id := mux.Vars(r)["id"]
	rep, err := h.store.GetRun(id)
	if errors.Is(err, ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		l.Error("get run failed", "run", id, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleEvents handles GET /api/sync/events, streaming notices over a
// websocket until the client goes away.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn("websocket upgrade failed", "client", realip.FromRequest(r), "err", err)
		return
	}
	defer conn.Close()

	ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(ch)

	// Reader goroutine: notices client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck
			if err := conn.WriteJSON(n); err != nil {
				l.Debug("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
