package txn

import (
	"fmt"
	"time"
)

type Transaction struct {
	ID             uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DBID           uint64
	Label          string
	RequestID      string
	Coordinator    string
	SourceType     SourceType
	ListenerID     uint64 // 监听该事务的导入作业
	TimeoutSeconds int64
	Status         Status
	Reason         string
	PrepareTime    time.Time
	CommitTime     *time.Time
	FinishTime     *time.Time
}

// Deadline 事务超时时间点
func (t *Transaction) Deadline() time.Time {
	return t.PrepareTime.Add(time.Duration(t.TimeoutSeconds) * time.Second)
}

func (t *Transaction) IsTimeout(now time.Time) bool {
	return t.Status == StatusPrepare && !now.Before(t.Deadline())
}

func (t *Transaction) Commit(now time.Time) (*TransactionPatch, error) {
	if t.Status != StatusPrepare {
		return nil, fmt.Errorf("%w: commit txn %d in status %s", ErrIllegalStatus, t.ID, t.Status)
	}
	t.Status = StatusCommitted
	t.CommitTime = &now
	return NewTransactionPatch().WithStatus(t.Status).WithCommitTime(now), nil
}

// Publish 已提交的事务变为可见
func (t *Transaction) Publish(now time.Time) (*TransactionPatch, error) {
	if t.Status != StatusCommitted {
		return nil, fmt.Errorf("%w: publish txn %d in status %s", ErrIllegalStatus, t.ID, t.Status)
	}
	t.Status = StatusVisible
	t.FinishTime = &now
	return NewTransactionPatch().WithStatus(t.Status).WithFinishTime(now), nil
}

func (t *Transaction) Abort(now time.Time, reason string) (*TransactionPatch, error) {
	if t.Status != StatusPrepare {
		return nil, fmt.Errorf("%w: abort txn %d in status %s", ErrIllegalStatus, t.ID, t.Status)
	}
	t.Status = StatusAborted
	t.Reason = reason
	t.FinishTime = &now
	return NewTransactionPatch().WithStatus(t.Status).WithReason(reason).WithFinishTime(now), nil
}

type TransactionPatch struct {
	Status     *Status
	Reason     *string
	CommitTime *time.Time
	FinishTime *time.Time
}

func NewTransactionPatch() *TransactionPatch {
	return &TransactionPatch{}
}

func (p *TransactionPatch) WithStatus(status Status) *TransactionPatch {
	p.Status = &status
	return p
}

func (p *TransactionPatch) WithReason(reason string) *TransactionPatch {
	p.Reason = &reason
	return p
}

func (p *TransactionPatch) WithCommitTime(t time.Time) *TransactionPatch {
	p.CommitTime = &t
	return p
}

func (p *TransactionPatch) WithFinishTime(t time.Time) *TransactionPatch {
	p.FinishTime = &t
	return p
}
