package channel

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coursechat/internal/metrics"
)

// WebSocket serves queries over a persistent connection. One connection
// handles many sequential queries; answers mirror POST /api/query.
type WebSocket struct {
	querier    Querier
	corsOrigin string
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

// wsConn pairs a connection with its write lock.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type WebSocketConfig struct {
	Querier    Querier
	CORSOrigin string
	Logger     *slog.Logger
}

func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	ws := &WebSocket{
		querier:    cfg.Querier,
		corsOrigin: cfg.CORSOrigin,
		logger:     cfg.Logger,
		conns:      make(map[*wsConn]struct{}),
	}
	ws.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     ws.checkOrigin,
	}
	return ws
}

// checkOrigin admits browser clients from the configured origin and
// non-browser clients that send no Origin header.
func (ws *WebSocket) checkOrigin(r *http.Request) bool {
	if ws.corsOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || strings.EqualFold(origin, ws.corsOrigin)
}

// HandleUpgrade upgrades the request and serves query frames until the
// client disconnects.
func (ws *WebSocket) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &wsConn{conn: conn}
	ws.mu.Lock()
	ws.conns[client] = struct{}{}
	ws.mu.Unlock()
	metrics.OpenWebsockets.Inc()
	ws.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	defer func() {
		ws.mu.Lock()
		delete(ws.conns, client)
		ws.mu.Unlock()
		metrics.OpenWebsockets.Dec()
		conn.Close()
		ws.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var frame wsQuery
		if err := json.Unmarshal(message, &frame); err != nil {
			client.send(wsError{Type: "error", Error: "invalid message"})
			continue
		}

		switch frame.Type {
		case "query":
			ws.serveQuery(r, client, frame)
		default:
			client.send(wsError{Type: "error", Error: "unsupported message type: " + frame.Type})
		}
	}
}

func (ws *WebSocket) serveQuery(r *http.Request, client *wsConn, frame wsQuery) {
	if strings.TrimSpace(frame.Query) == "" {
		client.send(wsError{Type: "error", Error: "query must not be empty"})
		return
	}

	start := time.Now()
	answer, sources, sessionID, err := ws.querier.Query(r.Context(), frame.Query, frame.SessionID)
	if err != nil {
		ws.logger.Error("websocket query failed", "session", frame.SessionID, "err", err)
		client.send(wsError{Type: "error", Error: err.Error()})
		return
	}
	metrics.QueriesTotal.Inc()
	metrics.QueryLatency.Observe(time.Since(start).Seconds())

	if err := client.send(wsAnswer{
		Type:      "answer",
		Answer:    answer,
		Sources:   renderSources(sources),
		SessionID: sessionID,
	}); err != nil {
		ws.logger.Debug("websocket write failed", "err", err)
	}
}

// CloseAll drops every open connection. Called on server shutdown.
func (ws *WebSocket) CloseAll() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for client := range ws.conns {
		client.conn.Close()
		delete(ws.conns, client)
	}
}

// --- Frame types ---

type wsQuery struct {
	Type      string `json:"type"`
	Query     string `json:"query,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type wsAnswer struct {
	Type      string   `json:"type"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
