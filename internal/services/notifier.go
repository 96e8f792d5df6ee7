package services

import (
  "context"
  "github.com/avelir/psalter-backend/internal/clients/redis"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/sse"
)

// StatsNotifier pushes refreshed chain stats to live SSE subscribers and,
// when a redis bus is configured, to the other server instances.
type StatsNotifier interface {
  StatsUpdated(ctx context.Context, slug string, stats ChainStats)
  CycleRolledOver(ctx context.Context, slug string, newCycle int, stats ChainStats)
}

type statsNotifier struct {
  log *logger.Logger
  hub *sse.SSEHub
  bus redis.StatsBus
}

func NewStatsNotifier(log *logger.Logger, hub *sse.SSEHub, bus redis.StatsBus) StatsNotifier {
  return &statsNotifier{
    log: log.With("service", "StatsNotifier"),
    hub: hub,
    bus: bus,
  }
}

func (n *statsNotifier) StatsUpdated(ctx context.Context, slug string, stats ChainStats) {
  n.send(ctx, sse.SSEMessage{
    Channel: sse.ChainChannel(slug),
    Event:   sse.SSEEventChainStatsUpdated,
    Data:    stats,
  })
}

func (n *statsNotifier) CycleRolledOver(ctx context.Context, slug string, newCycle int, stats ChainStats) {
  n.send(ctx, sse.SSEMessage{
    Channel: sse.ChainChannel(slug),
    Event:   sse.SSEEventCycleRolledOver,
    Data: map[string]any{
      "cycle": newCycle,
      "stats": stats,
    },
  })
}

func (n *statsNotifier) send(ctx context.Context, msg sse.SSEMessage) {
  if n.hub != nil {
    n.hub.Broadcast(msg)
  }
  if n.bus != nil {
    if err := n.bus.Publish(ctx, msg); err != nil {
      n.log.Warn("Stats bus publish failed", "channel", msg.Channel, "error", err)
    }
  }
}
