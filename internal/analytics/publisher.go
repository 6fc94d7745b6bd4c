// Package analytics periodically aggregates order figures and pushes them
// on the analytics channel for admin dashboards.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"chowline/internal/bus"
	"chowline/internal/channels"
	"chowline/internal/config"
	"chowline/internal/db"
	"chowline/internal/domain"
	"chowline/internal/logger"
	"chowline/internal/orders/repository"
)

const snapshotInterval = 30 * time.Second

type Publisher struct {
	repo repository.OrderRepositoryInterface
	bus  *bus.Client
	lg   *logger.Logger
}

func (p *Publisher) snapshot(ctx context.Context) {
	counts, revenue, err := p.repo.StatusCounts(ctx)
	if err != nil {
		p.lg.Error("snapshot_query_failed", err, nil)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	update := domain.AnalyticsUpdate{
		TotalOrders:   total,
		CountByStatus: counts,
		Revenue:       revenue.String(),
		Timestamp:     time.Now().UTC(),
	}
	if err := p.bus.Publish(ctx, channels.Analytics, channels.EventAnalyticsUpdate, update); err != nil {
		p.lg.Error("snapshot_publish_failed", err, nil)
		return
	}
	p.lg.Debug("snapshot_published", map[string]any{"total_orders": total, "revenue": update.Revenue})
}

// Run schedules the snapshot job and blocks until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("analytics-publisher")

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

	p := &Publisher{repo: repository.New(conn), bus: busClient, lg: lg}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(snapshotInterval),
		gocron.NewTask(func() { p.snapshot(ctx) }),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule snapshot job: %w", err)
	}

	sched.Start()
	lg.Info("scheduler_started", map[string]any{"interval": snapshotInterval.String()})
	<-ctx.Done()
	return sched.Shutdown()
}
