package routineload

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/jobs/routineload/internal/biz/txn"
	"go.uber.org/zap"
)

const unsetID int64 = -1

// Task 例行导入任务，一次任务对应一个事务。
//
// 标识、作业、超时等在创建后不再变化；其余字段由调度线程与事务状态回调
// 分别写入，每个字段独立原子读写。
type Task struct {
	id           TaskID
	jobID        uint64
	clusterName  string
	timeout      time.Duration
	previousBeID int64
	createTimeMs int64
	source       Source

	clock           Clock
	logger          *zap.Logger
	coordinatorHost string

	txnID              atomic.Int64
	executeStartTimeMs atomic.Int64
	lastScheduledTime  atomic.Int64
	beID               atomic.Int64
	txnStatus          atomic.Value // txn.Status
}

type TaskOption func(*Task)

// WithPreviousBeID 替换失败任务时记录上一次的执行节点
func WithPreviousBeID(beID int64) TaskOption {
	return func(t *Task) { t.previousBeID = beID }
}

func WithClock(c Clock) TaskOption {
	return func(t *Task) { t.clock = c }
}

func WithLogger(l *zap.Logger) TaskOption {
	return func(t *Task) { t.logger = l }
}

// WithCoordinatorHost 开启事务时上报的本节点地址
func WithCoordinatorHost(host string) TaskOption {
	return func(t *Task) { t.coordinatorHost = host }
}

// NewTask timeout 按秒截断，不足一秒返回 ErrInvalidTimeout
func NewTask(id TaskID, jobID uint64, clusterName string, timeout time.Duration, source Source, opts ...TaskOption) (*Task, error) {
	timeout = timeout.Truncate(time.Second)
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	if source == nil {
		return nil, ErrUnknownSourceKind
	}
	t := &Task{
		id:           id,
		jobID:        jobID,
		clusterName:  clusterName,
		timeout:      timeout,
		previousBeID: unsetID,
		source:       source,
		clock:        SystemClock{},
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.coordinatorHost == "" {
		t.coordinatorHost = localHost()
	}
	t.createTimeMs = t.clock.Now().UnixMilli()
	t.txnID.Store(unsetID)
	t.executeStartTimeMs.Store(unsetID)
	t.lastScheduledTime.Store(unsetID)
	t.beID.Store(unsetID)
	t.txnStatus.Store(txn.StatusUnknown)
	return t, nil
}

func localHost() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "localhost"
	}
	return host
}

func (t *Task) ID() TaskID                { return t.id }
func (t *Task) JobID() uint64             { return t.jobID }
func (t *Task) ClusterName() string       { return t.clusterName }
func (t *Task) Timeout() time.Duration    { return t.timeout }
func (t *Task) TimeoutMs() int64          { return t.timeout.Milliseconds() }
func (t *Task) PreviousBeID() int64       { return t.previousBeID }
func (t *Task) CreateTimeMs() int64       { return t.createTimeMs }
func (t *Task) Source() Source            { return t.source }
func (t *Task) Label() string             { return t.id.String() }
func (t *Task) TxnID() int64              { return t.txnID.Load() }
func (t *Task) HasTxn() bool              { return t.txnID.Load() != unsetID }
func (t *Task) ExecuteStartTimeMs() int64 { return t.executeStartTimeMs.Load() }
func (t *Task) LastScheduledTime() int64  { return t.lastScheduledTime.Load() }
func (t *Task) BeID() int64               { return t.beID.Load() }
func (t *Task) TxnStatus() txn.Status     { return t.txnStatus.Load().(txn.Status) }

// SetLastScheduledTime 调度器每次处理该任务时更新
func (t *Task) SetLastScheduledTime(ms int64) {
	t.lastScheduledTime.Store(ms)
}

func (t *Task) SetBeID(beID int64) {
	t.beID.Store(beID)
}

// SetTxnStatus 由事务状态回调调用，后写覆盖先写
func (t *Task) SetTxnStatus(status txn.Status) {
	t.txnStatus.Store(status)
}

// IsRunning 任务已下发到执行节点
func (t *Task) IsRunning() bool {
	return t.executeStartTimeMs.Load() > 0
}

// SetExecuteStartTime 只生效一次，且必须在事务开启之后
func (t *Task) SetExecuteStartTime(ms int64) error {
	if !t.HasTxn() {
		return ErrTxnNotBegun
	}
	t.executeStartTimeMs.CompareAndSwap(unsetID, ms)
	return nil
}

func (t *Task) MarkRunning() error {
	return t.SetExecuteStartTime(t.clock.Now().UnixMilli())
}

// Equal 仅比较任务标识
func (t *Task) Equal(other *Task) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.id == other.id
}
