package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prudhvinik1/fieldsync/internal/connectivity"
	"github.com/prudhvinik1/fieldsync/internal/logging"
)

const writeTimeout = 5 * time.Second

type MessageType string

const (
	MessageTypeBeneficiaries MessageType = "beneficiaries"
	MessageTypeConnectivity  MessageType = "connectivity"
)

// Message is one frame pushed to a stream client.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

type connectivityData struct {
	Online bool `json:"online"`
}

// StreamHandler pushes local store snapshots and connectivity changes to the
// form UI. Clients never send data; the read side only watches for close.
type StreamHandler struct {
	engine         SyncService
	oracle         connectivity.Oracle
	originPatterns []string
}

func NewStreamHandler(engine SyncService, oracle connectivity.Oracle, originPatterns []string) *StreamHandler {
	return &StreamHandler{engine: engine, oracle: oracle, originPatterns: originPatterns}
}

// Beneficiaries streams the filtered list, once on connect and again after
// every local change.
func (h *StreamHandler) Beneficiaries(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.accept(w, r)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	snapshots, err := h.engine.Watch(ctx, filter)
	if err != nil {
		logging.Error("failed to start beneficiary watch", err)
		conn.Close(websocket.StatusInternalError, "watch failed")
		return
	}

	for list := range snapshots {
		if err := send(ctx, conn, MessageTypeBeneficiaries, toViews(list)); err != nil {
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *StreamHandler) Connectivity(w http.ResponseWriter, r *http.Request) {
	conn, err := h.accept(w, r)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	for online := range h.oracle.Observe(ctx) {
		if err := send(ctx, conn, MessageTypeConnectivity, connectivityData{Online: online}); err != nil {
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *StreamHandler) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		logging.Warn("websocket upgrade failed", logging.Fields{"path": r.URL.Path, "error": err.Error()})
		return nil, err
	}
	logging.Debug("stream client connected", logging.Fields{"path": r.URL.Path})
	return conn, nil
}

func send(ctx context.Context, conn *websocket.Conn, typ MessageType, data any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, Message{Type: typ, Timestamp: time.Now(), Data: data})
}
