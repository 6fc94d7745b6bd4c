package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chowline/internal/analytics"
	"chowline/internal/config"
	"chowline/internal/gateway"
	"chowline/internal/logger"
	"chowline/internal/orders"
)

func main() {
	mode := flag.String("mode", "", "order-service | push-gateway | analytics-publisher")
	flag.Parse()

	lg := logger.New("bootstrap")
	cfg, err := config.Load()
	if err != nil {
		lg.Error("config_load_failed", err, nil)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "order-service":
		lg.Info("service_started", map[string]any{"service": "order-service", "port": cfg.HTTP.OrderPort})
		err = orders.Run(ctx, cfg)
	case "push-gateway":
		lg.Info("service_started", map[string]any{"service": "push-gateway", "port": cfg.HTTP.GatewayPort})
		err = gateway.Run(ctx, cfg)
	case "analytics-publisher":
		lg.Info("service_started", map[string]any{"service": "analytics-publisher"})
		err = analytics.Run(ctx, cfg)
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: order-service | push-gateway | analytics-publisher")
		os.Exit(2)
	}
	if err != nil {
		lg.Error("fatal", err, nil)
		os.Exit(1)
	}
}
