package txn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

type BeginRequest struct {
	DBID           uint64
	Label          string
	RequestID      string // 为空表示不做幂等校验
	Coordinator    string
	SourceType     SourceType
	ListenerID     uint64
	TimeoutSeconds int64
}

// StatusEvent 事务状态变化事件
type StatusEvent struct {
	TxnID      uint64 `json:"txn_id"`
	DBID       uint64 `json:"db_id"`
	Label      string `json:"label"`
	ListenerID uint64 `json:"listener_id"`
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  int64  `json:"ts"`
}

type StatusPublisher interface {
	PublishTxnStatus(ctx context.Context, ev StatusEvent) error
}

type IDGenerator interface {
	Next() uint64
}

// DefaultPublishTimeout 已提交事务等待执行节点发布的最长时间
const DefaultPublishTimeout = 30 * time.Second

type ManagerConfig struct {
	MaxRunningPerDB int
	PublishTimeout  time.Duration // 超时后由管理器发布
}

// Manager 全局事务管理器
type Manager struct {
	repo      Repo
	publisher StatusPublisher
	ids       IDGenerator
	logger    *zap.Logger
	cfg       ManagerConfig
	now       func() time.Time

	// begin 需要串行化 label 检查与创建
	beginMu sync.Mutex
}

func NewManager(repo Repo, publisher StatusPublisher, ids IDGenerator, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		repo:      repo,
		publisher: publisher,
		ids:       ids,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetPublisher 替换状态发布者，须在开始服务前调用
func (m *Manager) SetPublisher(p StatusPublisher) {
	m.publisher = p
}

func (m *Manager) BeginTransaction(ctx context.Context, req BeginRequest) (uint64, error) {
	if err := validateBegin(req); err != nil {
		return 0, err
	}

	m.beginMu.Lock()
	defer m.beginMu.Unlock()

	existing, err := m.repo.GetByLabel(ctx, req.DBID, req.Label)
	if err != nil {
		return 0, fmt.Errorf("failed to query txn by label: %w", err)
	}
	for _, t := range existing {
		if t.Status == StatusAborted {
			continue
		}
		if req.RequestID != "" && t.RequestID == req.RequestID {
			return t.ID, fmt.Errorf("%w: label %s, request %s, txn %d", ErrDuplicatedRequest, req.Label, req.RequestID, t.ID)
		}
		return 0, fmt.Errorf("%w: label %s is used by txn %d", ErrLabelAlreadyUsed, req.Label, t.ID)
	}

	if m.cfg.MaxRunningPerDB > 0 {
		running, err := m.repo.CountRunning(ctx, req.DBID)
		if err != nil {
			return 0, fmt.Errorf("failed to count running txns: %w", err)
		}
		if running >= int64(m.cfg.MaxRunningPerDB) {
			return 0, fmt.Errorf("%w: current running txns on db %d is %d, larger than limit %d",
				ErrBeginTxn, req.DBID, running, m.cfg.MaxRunningPerDB)
		}
	}

	now := m.now()
	t := &Transaction{
		ID:             m.ids.Next(),
		DBID:           req.DBID,
		Label:          req.Label,
		RequestID:      req.RequestID,
		Coordinator:    req.Coordinator,
		SourceType:     req.SourceType,
		ListenerID:     req.ListenerID,
		TimeoutSeconds: req.TimeoutSeconds,
		Status:         StatusPrepare,
		PrepareTime:    now,
	}
	if err := m.repo.Create(ctx, t); err != nil {
		return 0, fmt.Errorf("failed to create txn: %w", err)
	}

	m.logger.Info("begin transaction",
		zap.Uint64("txn_id", t.ID),
		zap.Uint64("db_id", t.DBID),
		zap.String("label", t.Label),
		zap.String("coordinator", t.Coordinator),
		zap.String("source_type", string(t.SourceType)))
	m.Notify(ctx, m.event(t))
	return t.ID, nil
}

func validateBegin(req BeginRequest) error {
	switch {
	case req.DBID == 0:
		return fmt.Errorf("%w: db id is required", ErrAnalysis)
	case req.Label == "":
		return fmt.Errorf("%w: label is required", ErrAnalysis)
	case len(req.Label) > 128:
		return fmt.Errorf("%w: label is longer than 128", ErrAnalysis)
	case !req.SourceType.Valid():
		return fmt.Errorf("%w: unknown source type %q", ErrAnalysis, req.SourceType)
	case req.TimeoutSeconds <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrAnalysis)
	}
	return nil
}

func (m *Manager) Get(ctx context.Context, id uint64) (*Transaction, error) {
	t, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	} else if t == nil {
		return nil, fmt.Errorf("%w: %d", ErrTxnNotFound, id)
	}
	return t, nil
}

func (m *Manager) List(ctx context.Context, filter *TransactionFilter) ([]*Transaction, error) {
	if filter == nil {
		filter = &TransactionFilter{}
	}
	return m.repo.List(ctx, filter)
}

func (m *Manager) Commit(ctx context.Context, id uint64) (*Transaction, error) {
	t, ev, err := m.CommitInTx(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Notify(ctx, ev)
	return t, nil
}

// CommitInTx 提交事务但不发布状态。
// 调用方在外层数据库事务提交成功后把返回的事件交给 Notify。
func (m *Manager) CommitInTx(ctx context.Context, id uint64) (*Transaction, StatusEvent, error) {
	t, err := m.apply(ctx, id, func(t *Transaction, now time.Time) (*TransactionPatch, error) {
		return t.Commit(now)
	})
	if err != nil {
		return nil, StatusEvent{}, err
	}
	return t, m.event(t), nil
}

func (m *Manager) Publish(ctx context.Context, id uint64) (*Transaction, error) {
	return m.transit(ctx, id, func(t *Transaction, now time.Time) (*TransactionPatch, error) {
		return t.Publish(now)
	})
}

func (m *Manager) Abort(ctx context.Context, id uint64, reason string) (*Transaction, error) {
	return m.transit(ctx, id, func(t *Transaction, now time.Time) (*TransactionPatch, error) {
		return t.Abort(now, reason)
	})
}

func (m *Manager) transit(ctx context.Context, id uint64, fn func(*Transaction, time.Time) (*TransactionPatch, error)) (*Transaction, error) {
	t, err := m.apply(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	m.Notify(ctx, m.event(t))
	return t, nil
}

func (m *Manager) apply(ctx context.Context, id uint64, fn func(*Transaction, time.Time) (*TransactionPatch, error)) (*Transaction, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, err := fn(t, m.now())
	if err != nil {
		return nil, err
	}
	if err := m.repo.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("failed to update txn %d: %w", id, err)
	}
	m.logger.Info("transaction status changed",
		zap.Uint64("txn_id", t.ID),
		zap.String("label", t.Label),
		zap.String("status", t.Status.String()))
	return t, nil
}

// AbortTimedOut 中止所有已超时的 PREPARE 事务，返回中止数量
func (m *Manager) AbortTimedOut(ctx context.Context) (int, error) {
	prepared, err := m.repo.List(ctx, &TransactionFilter{Status: mo.Some(StatusPrepare)})
	if err != nil {
		return 0, err
	}
	now := m.now()
	expired := lo.Filter(prepared, func(t *Transaction, _ int) bool {
		return t.IsTimeout(now)
	})

	aborted := 0
	for _, t := range expired {
		if _, err := m.Abort(ctx, t.ID, "timeout by txn manager"); err != nil {
			m.logger.Warn("failed to abort timed out txn",
				zap.Uint64("txn_id", t.ID),
				zap.Error(err))
			continue
		}
		aborted++
	}
	return aborted, nil
}

// PublishCommitted 发布提交后超过 PublishTimeout 仍未可见的事务，返回发布数量
func (m *Manager) PublishCommitted(ctx context.Context) (int, error) {
	committed, err := m.repo.List(ctx, &TransactionFilter{Status: mo.Some(StatusCommitted)})
	if err != nil {
		return 0, err
	}
	timeout := m.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	now := m.now()
	stalled := lo.Filter(committed, func(t *Transaction, _ int) bool {
		return t.CommitTime != nil && !now.Before(t.CommitTime.Add(timeout))
	})

	published := 0
	for _, t := range stalled {
		if _, err := m.Publish(ctx, t.ID); err != nil {
			m.logger.Warn("failed to publish committed txn",
				zap.Uint64("txn_id", t.ID),
				zap.Error(err))
			continue
		}
		published++
	}
	return published, nil
}

func (m *Manager) event(t *Transaction) StatusEvent {
	return StatusEvent{
		TxnID:      t.ID,
		DBID:       t.DBID,
		Label:      t.Label,
		ListenerID: t.ListenerID,
		Status:     t.Status,
		Reason:     t.Reason,
		Timestamp:  m.now().UnixMilli(),
	}
}

// Notify 发布状态事件，发布失败只记录日志
func (m *Manager) Notify(ctx context.Context, ev StatusEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishTxnStatus(ctx, ev); err != nil {
		m.logger.Warn("failed to publish txn status",
			zap.Uint64("txn_id", ev.TxnID),
			zap.String("status", ev.Status.String()),
			zap.Error(err))
	}
}
