package routineload

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobs/routineload/internal/biz/txn"
	"go.uber.org/zap"
)

// JobRegistry 按作业ID查找作业，未找到时返回 ErrJobNotFound
type JobRegistry interface {
	ResolveJob(ctx context.Context, jobID uint64) (*Job, error)
}

type TxnCoordinator interface {
	BeginTransaction(ctx context.Context, req txn.BeginRequest) (uint64, error)
}

// BeginTxn 为任务开启事务。
// 返回 true 表示开启成功；返回 false 且 err 为 nil 表示可重试的失败；
// label 冲突、作业不存在等不可恢复的错误通过 err 返回。
func (t *Task) BeginTxn(ctx context.Context, jobs JobRegistry, coord TxnCoordinator) (bool, error) {
	if t.HasTxn() {
		return false, fmt.Errorf("%w: task %s, txn %d", ErrTxnAlreadyBegun, t.id, t.TxnID())
	}

	job, err := jobs.ResolveJob(ctx, t.jobID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve job %d of task %s: %w", t.jobID, t.id, err)
	}

	txnID, err := coord.BeginTransaction(ctx, txn.BeginRequest{
		DBID:           job.DBID,
		Label:          t.Label(),
		Coordinator:    "FE: " + t.coordinatorHost,
		SourceType:     txn.SourceRoutineLoadTask,
		ListenerID:     job.ID,
		TimeoutSeconds: int64(t.timeout.Seconds()),
	})
	switch {
	case err == nil:
	case errors.Is(err, txn.ErrLabelAlreadyUsed):
		return false, err
	case errors.Is(err, txn.ErrDuplicatedRequest):
		// 未传 request id，理论上不会出现
		t.logger.Warn("failed to begin txn for routine load task",
			zap.String("task_id", t.id.String()),
			zap.Error(err))
		return false, nil
	case errors.Is(err, txn.ErrAnalysis), errors.Is(err, txn.ErrBeginTxn):
		t.logger.Debug("begin txn failed for routine load task",
			zap.String("task_id", t.id.String()),
			zap.Error(err))
		return false, nil
	default:
		return false, fmt.Errorf("failed to begin txn for task %s: %w", t.id, err)
	}

	if !t.txnID.CompareAndSwap(unsetID, int64(txnID)) {
		return false, fmt.Errorf("%w: task %s, txn %d", ErrTxnAlreadyBegun, t.id, t.TxnID())
	}
	return true, nil
}
