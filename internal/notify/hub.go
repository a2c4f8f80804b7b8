package notify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiroq/htswatch/internal/diaglog"
	"github.com/tiroq/htswatch/internal/logging"
)

const (
	// EventsPath is where the hub accepts websocket upgrades.
	EventsPath = "/events"

	clientBuffer = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// Hub broadcasts events to websocket clients. Each client has a bounded
// queue; a client that falls behind is disconnected rather than allowed to
// stall Emit.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	closed  bool

	logs *logging.Loggers
	diag *diaglog.Logger
}

type hubClient struct {
	conn *websocket.Conn
	send chan Event
	once sync.Once
}

// NewHub returns a hub with no clients. Only same-host origins are
// expected, so the origin check is disabled.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
		logs:    logging.Discard(),
		diag:    diaglog.NewNoOp(),
	}
}

// SetLoggers wires the out/err loggers.
func (h *Hub) SetLoggers(l *logging.Loggers) {
	h.logs = l.OrDiscard()
}

// SetDiagLogger wires the NDJSON diagnostic log.
func (h *Hub) SetDiagLogger(l *diaglog.Logger) {
	if l == nil {
		l = diaglog.NewNoOp()
	}
	h.diag = l
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Emit queues e for every client without blocking.
func (h *Hub) Emit(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			h.dropLocked(c, "send queue full")
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logs.Err.Printf("Websocket upgrade failed: %v", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan Event, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentNotifyHub,
		Event:     diaglog.EventHubClientConnected,
		Fields:    map[string]any{"remote": r.RemoteAddr},
	})

	go h.readLoop(c)
	h.writeLoop(c)
}

// readLoop discards client messages and notices disconnects.
func (h *Hub) readLoop(c *hubClient) {
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			h.drop(c, "client closed")
			return
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = c.conn.Close()
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(e); err != nil {
				h.drop(c, err.Error())
				_ = c.conn.Close()
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c, err.Error())
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) drop(c *hubClient, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c, reason)
}

// dropLocked unregisters c and closes its queue; writeLoop then sends a
// close frame and releases the connection.
func (h *Hub) dropLocked(c *hubClient, reason string) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.once.Do(func() { close(c.send) })

	h.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentNotifyHub,
		Event:     diaglog.EventHubClientDropped,
		Reason:    reason,
	})
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c, "hub closed")
	}
}

// Serve listens on addr and serves the hub until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return h.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (h *Hub) ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(EventsPath, h)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	h.logs.Out.Printf("Event hub listening on ws://%s%s", ln.Addr(), EventsPath)

	select {
	case <-ctx.Done():
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		h.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Dial connects to a hub at addr (host:port) and calls fn for every event
// until ctx is done or the connection fails.
func Dial(ctx context.Context, addr string, fn func(Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	url := "ws://" + addr + EventsPath
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		// Unblocks ReadJSON below.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		var e Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fn(e)
	}
}
