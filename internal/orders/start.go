package orders

import (
	"context"
	"fmt"

	"chowline/internal/auth"
	"chowline/internal/bus"
	"chowline/internal/config"
	"chowline/internal/db"
	"chowline/internal/httpx"
	"chowline/internal/logger"
	"chowline/internal/orders/handlers"
	"chowline/internal/orders/repository"
	"chowline/internal/orders/service"
)

// Run starts the order service: HTTP API backed by Postgres, publishing
// push events to the bus. Blocks until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("order-service")

	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close()

	busClient, err := bus.Dial(cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer busClient.Close()

	repo := repository.New(conn)
	svc := service.New(repo, busClient, lg)
	handler := handlers.NewOrderHandler(svc)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	addr := fmt.Sprintf(":%d", cfg.HTTP.OrderPort)
	lg.Info("listening", map[string]any{"addr": addr})
	return httpx.New(addr, handlers.Router(handler, verifier)).Run(ctx)
}
