// Package statestream pushes identity-state snapshots to rendering clients
// over WebSocket. The stream is one-way: the server writes a frame for every
// state transition (conflated to the newest), the client only reads.
package statestream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"keel/cmd/internal/auth/state"

	"github.com/coder/websocket"
)

const (
	Subprotocol = "keel.state.v1"

	defaultWriteTimeout      = 5 * time.Second
	defaultHeartbeatInterval = 30 * time.Second

	// Clients have nothing to say; anything bigger than a close frame is a
	// protocol violation.
	maxInboundFrameBytes = 512
)

// Options tunes the gateway. Zero values mean defaults; origin hosts empty
// means same-host only (websocket.Accept's own policy).
type Options struct {
	AllowedOriginHosts []string
	DevInsecure        bool
	WriteTimeout       time.Duration
	HeartbeatInterval  time.Duration
}

// Gateway serves the /ws endpoint. One goroutine per connection writes
// snapshots; a second drains the client side to notice disconnects early.
type Gateway struct {
	log   *slog.Logger
	store *state.Store

	originPatterns    []string
	devInsecure       bool
	writeTimeout      time.Duration
	heartbeatInterval time.Duration
}

func NewGateway(log *slog.Logger, store *state.Store, opts Options) *Gateway {
	g := &Gateway{
		log:               log,
		store:             store,
		originPatterns:    opts.AllowedOriginHosts,
		devInsecure:       opts.DevInsecure,
		writeTimeout:      opts.WriteTimeout,
		heartbeatInterval: opts.HeartbeatInterval,
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = defaultWriteTimeout
	}
	if g.heartbeatInterval <= 0 {
		g.heartbeatInterval = defaultHeartbeatInterval
	}
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Info("statestream.accept_failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != Subprotocol {
		g.log.Info("statestream.reject_subprotocol", "got", sp)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxInboundFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain the client side so peer closes surface as a cancelled ctx.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	snapshots, unsubscribe := g.store.Subscribe()
	defer unsubscribe()

	g.log.Debug("statestream.connected", "remote", r.RemoteAddr)

	heartbeat := time.NewTicker(g.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, g.writeTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				g.log.Debug("statestream.ping_failed", "err", err)
				return
			}
		case snap, ok := <-snapshots:
			if !ok {
				// Store torn down; the process is shutting down.
				_ = conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := g.writeFrame(ctx, conn, snap); err != nil {
				g.log.Debug("statestream.write_failed", "close_status", websocket.CloseStatus(err), "err", err)
				return
			}
		}
	}
}

func (g *Gateway) writeFrame(parent context.Context, conn *websocket.Conn, snap state.Snapshot) error {
	ctx, cancel := context.WithTimeout(parent, g.writeTimeout)
	defer cancel()

	b, err := json.Marshal(newFrame(snap))
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
