package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/pkg/config"
	"go.uber.org/zap"
)

type StatusSink interface {
	ApplyTxnStatus(ctx context.Context, ev txn.StatusEvent)
}

// EventBus publishes txn status events via Redis pub/sub so that the
// leader sees status changes made on any instance.
// It falls back to direct calls if Redis is disabled.
var _ txn.StatusPublisher = (*EventBus)(nil)

type EventBus struct {
	sink       StatusSink
	rdb        *redis.Client
	channel    string
	instanceID string
	logger     *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewEventBus constructs an event bus with an injected Redis client.
// If rdb is nil, it will fallback to direct in-process calls.
func NewEventBus(sink *TaskScheduler, rdb *redis.Client, cfg config.Config, logger *zap.Logger) *EventBus {
	return newEventBus(sink, rdb, cfg, logger)
}

func newEventBus(sink StatusSink, rdb *redis.Client, cfg config.Config, logger *zap.Logger) *EventBus {
	channel := cfg.Redis.Channel
	if channel == "" {
		channel = "routineload:txn-status"
	}
	return &EventBus{
		sink:       sink,
		rdb:        rdb,
		channel:    channel,
		instanceID: cfg.Scheduler.InstanceID,
		logger:     logger,
	}
}

func (e *EventBus) PublishTxnStatus(ctx context.Context, ev txn.StatusEvent) error {
	if e.rdb == nil { // fallback when redis disabled
		e.sink.ApplyTxnStatus(ctx, ev)
		return nil
	}

	payload, err := json.Marshal(RedisEvent{
		Type:      EventTxnStatus,
		Txn:       &ev,
		Source:    e.instanceID,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return e.rdb.Publish(ctx, e.channel, payload).Err()
}

// Subscribe 订阅状态事件并转发给调度器，redis 未启用时直接返回
func (e *EventBus) Subscribe(ctx context.Context) error {
	if e.rdb == nil {
		return nil
	}
	pubsub := e.rdb.Subscribe(ctx, e.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe %s: %w", e.channel, err)
	}

	e.mu.Lock()
	e.pubsub = pubsub
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for msg := range pubsub.Channel() {
			e.handle(ctx, msg.Payload)
		}
	}()
	e.logger.Info("subscribed txn status channel", zap.String("channel", e.channel))
	return nil
}

func (e *EventBus) handle(ctx context.Context, payload string) {
	var ev RedisEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		e.logger.Warn("failed to decode event", zap.String("payload", payload), zap.Error(err))
		return
	}
	switch ev.Type {
	case EventTxnStatus:
		if ev.Txn != nil {
			e.sink.ApplyTxnStatus(ctx, *ev.Txn)
		}
	default:
		e.logger.Debug("ignore unknown event", zap.String("type", string(ev.Type)))
	}
}

func (e *EventBus) Close() error {
	e.mu.Lock()
	pubsub := e.pubsub
	e.pubsub = nil
	e.mu.Unlock()
	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	e.wg.Wait()
	return err
}
