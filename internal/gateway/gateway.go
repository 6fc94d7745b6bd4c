// Package gateway fans bus events out to WebSocket subscribers. Each push
// channel gets its own hub and its own bus consumer, so one channel
// stalling or dying never touches the others.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"chowline/internal/auth"
	"chowline/internal/bus"
	"chowline/internal/channels"
	"chowline/internal/config"
	"chowline/internal/httpx"
	"chowline/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type Gateway struct {
	hubs     map[channels.Channel]*hub
	verifier *auth.Verifier
	lg       *logger.Logger
}

func New(verifier *auth.Verifier, lg *logger.Logger) *Gateway {
	g := &Gateway{hubs: make(map[channels.Channel]*hub), verifier: verifier, lg: lg}
	for _, ch := range channels.All() {
		g.hubs[ch] = newHub(ch, lg)
	}
	return g
}

// ServeWS upgrades GET /ws/{channel}. Connections without a valid bearer
// credential are rejected before the upgrade; the analytics channel is
// admin-only.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor, err := g.verifier.Verify(bearerFrom(r))
	if err != nil {
		http.Error(w, "missing or invalid bearer token", http.StatusUnauthorized)
		return
	}
	ch := channels.Channel(r.PathValue("channel"))
	h, ok := g.hubs[ch]
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}
	if ch == channels.Analytics && !actor.IsAdmin() {
		http.Error(w, "admin only", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.lg.Error("ws_upgrade_failed", err, map[string]any{"channel": string(ch)})
		return
	}
	h.add(conn)

	// read pump: subscribers never send application data, but reading is
	// what surfaces the close.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// bearerFrom accepts the Authorization header or a token query parameter,
// browsers cannot set headers on WebSocket dials.
func bearerFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	return r.URL.Query().Get("token")
}

// pump consumes one channel's exchange and broadcasts every frame.
func (g *Gateway) pump(ctx context.Context, client *bus.Client, ch channels.Channel) error {
	deliveries, err := client.Consume(ch, "push-gateway-"+string(ch))
	if err != nil {
		return fmt.Errorf("consume %s: %w", ch, err)
	}
	h := g.hubs[ch]
	g.lg.Info("channel_pump_started", map[string]any{"channel": string(ch)})
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery stream for %s closed", ch)
			}
			h.broadcast(d.Body)
		}
	}
}

// Run starts the gateway: one AMQP consumer per channel plus the WS server.
func Run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("push-gateway")

	busClient, err := bus.Dial(cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer busClient.Close()

	g := New(auth.NewVerifier(cfg.Auth.JWTSecret), lg)
	defer func() {
		for _, h := range g.hubs {
			h.closeAll()
		}
	}()

	// broker-side closure diagnostics, same as the consumer loops
	go func() {
		if e := <-busClient.NotifyClose(); e != nil {
			lg.Error("amqp_connection_closed", e, nil)
		}
	}()

	for _, ch := range channels.All() {
		ch := ch
		go func() {
			if err := g.pump(ctx, busClient, ch); err != nil {
				lg.Error("channel_pump_stopped", err, map[string]any{"channel": string(ch)})
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{channel}", g.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.HTTP.GatewayPort)
	lg.Info("listening", map[string]any{"addr": addr})
	return httpx.New(addr, mux).Run(ctx)
}
