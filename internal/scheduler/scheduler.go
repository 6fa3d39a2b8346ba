package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
	"github.com/jobs/routineload/pkg/config"
	"github.com/robfig/cron/v3"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

type JobService interface {
	routineload.JobRegistry
	List(ctx context.Context, filter *routineload.JobFilter) ([]*routineload.Job, error)
	Activate(ctx context.Context, id uint64) error
	UpdateProgress(ctx context.Context, id uint64, progress map[string]string) error
}

type TxnService interface {
	routineload.TxnCoordinator
	CommitInTx(ctx context.Context, id uint64) (*txn.Transaction, txn.StatusEvent, error)
	Notify(ctx context.Context, ev txn.StatusEvent)
	Abort(ctx context.Context, id uint64, reason string) (*txn.Transaction, error)
	AbortTimedOut(ctx context.Context) (int, error)
	PublishCommitted(ctx context.Context) (int, error)
}

type TaskDispatcher interface {
	Select(previousBeID int64) (Backend, error)
	Dispatch(ctx context.Context, be Backend, req *routineload.ExecutorRequest) error
}

// TaskScheduler 例行导入任务调度器。
//
// 调度器持有全部内存中的任务，每个作业同一时间只有一个任务。
// 只有持有选主锁的实例会开启事务和下发任务。
type TaskScheduler struct {
	config     config.SchedulerConfig
	txnConfig  config.TxnConfig
	jobs       JobService
	txns       TxnService
	tx         commonrepo.Transaction
	dispatcher TaskDispatcher
	locker     LeaderLock
	metrics    *Metrics
	logger     *zap.Logger
	clock      routineload.Clock
	cron       *cron.Cron

	coordinatorHost string
	isLeader        atomic.Bool
	stopCh          chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup

	mu    sync.Mutex
	tasks map[routineload.TaskID]*routineload.Task
	byJob map[uint64]routineload.TaskID
	queue []routineload.TaskID
}

// New 创建调度器
func New(
	cfg config.Config,
	jobs JobService,
	txns TxnService,
	tx commonrepo.Transaction,
	dispatcher TaskDispatcher,
	locker LeaderLock,
	metrics *Metrics,
	logger *zap.Logger,
) (*TaskScheduler, error) {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TaskScheduler{
		config:          cfg.Scheduler,
		txnConfig:       cfg.Txn,
		jobs:            jobs,
		txns:            txns,
		tx:              tx,
		dispatcher:      dispatcher,
		locker:          locker,
		metrics:         metrics,
		logger:          logger,
		clock:           routineload.SystemClock{},
		coordinatorHost: cfg.Server.IP,
		stopCh:          make(chan struct{}),
		tasks:           make(map[routineload.TaskID]*routineload.Task),
		byJob:           make(map[uint64]routineload.TaskID),
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}

	s.cron.Schedule(cron.Every(cfg.Scheduler.Interval), cron.FuncJob(s.scheduleTick))
	s.cron.Schedule(cron.Every(cfg.Scheduler.TimeoutCheckInterval), cron.FuncJob(s.checkTick))
	if cfg.Txn.SweepInterval > 0 {
		s.cron.Schedule(cron.Every(cfg.Txn.SweepInterval), cron.FuncJob(s.sweepTxns))
	}
	return s, nil
}

// Start 启动调度器
func (s *TaskScheduler) Start() error {
	s.logger.Info("starting routine load scheduler",
		zap.String("instance_id", s.config.InstanceID))

	s.wg.Add(1)
	go s.leaderElection()
	return nil
}

// Stop 停止调度器
func (s *TaskScheduler) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	if s.isLeader.Load() {
		s.stepDown()
	}

	s.logger.Info("routine load scheduler stopped",
		zap.String("instance_id", s.config.InstanceID))
	return nil
}

func (s *TaskScheduler) IsLeader() bool {
	return s.isLeader.Load()
}

// leaderElection 领导者选举
func (s *TaskScheduler) leaderElection() {
	defer s.wg.Done()

	s.tryBecomeLeader()

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tryBecomeLeader()
		case <-s.stopCh:
			return
		}
	}
}

// tryBecomeLeader 尝试成为领导者，已是领导者时续约
func (s *TaskScheduler) tryBecomeLeader() {
	timeout := s.config.LockTimeout + time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.isLeader.Load() {
		if err := s.locker.Renew(ctx); err != nil {
			s.logger.Error("failed to renew leader lock", zap.Error(err))
			s.stepDown()
		}
		return
	}

	locked, err := s.locker.TryLock(ctx)
	if err != nil {
		s.logger.Error("failed to acquire leader lock", zap.Error(err))
		return
	}
	if !locked {
		return
	}

	s.isLeader.Store(true)
	s.metrics.IsLeader.Set(1)
	s.logger.Info("became leader",
		zap.String("instance_id", s.config.InstanceID))

	// 恢复可调度作业的任务
	s.syncJobs(context.Background())
	s.cron.Start()
}

// stepDown 失去领导权，停止调度并丢弃内存中的任务
func (s *TaskScheduler) stepDown() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isLeader.Store(false)
	s.metrics.IsLeader.Set(0)

	s.mu.Lock()
	s.tasks = make(map[routineload.TaskID]*routineload.Task)
	s.byJob = make(map[uint64]routineload.TaskID)
	s.queue = nil
	s.metrics.TasksInPool.Set(0)
	s.mu.Unlock()

	unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locker.Unlock(unlockCtx); err != nil {
		s.logger.Error("failed to release leader lock", zap.Error(err))
	}
	s.logger.Info("stepped down from leader",
		zap.String("instance_id", s.config.InstanceID))
}

// SubmitJob 为作业创建第一个任务；作业已有任务时返回已有任务
func (s *TaskScheduler) SubmitJob(ctx context.Context, jobID uint64) (*routineload.Task, error) {
	if !s.isLeader.Load() {
		return nil, ErrNotLeader
	}
	return s.spawn(ctx, jobID)
}

// RemoveJobTasks 作业暂停或停止后放弃其任务，返回放弃的任务数
func (s *TaskScheduler) RemoveJobTasks(ctx context.Context, jobID uint64, reason string) int {
	s.mu.Lock()
	id, ok := s.byJob[jobID]
	t := s.tasks[id]
	s.mu.Unlock()
	if !ok || t == nil {
		return 0
	}
	if s.discard(ctx, t, reason) {
		return 1
	}
	return 0
}

// Task 按任务ID查找
func (s *TaskScheduler) Task(id routineload.TaskID) (*routineload.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t, nil
}

// TasksOfJob 按创建时间排序
func (s *TaskScheduler) TasksOfJob(jobID uint64) []*routineload.Task {
	out := make([]*routineload.Task, 0, 1)
	for _, t := range s.snapshot() {
		if t.JobID() == jobID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTimeMs() < out[j].CreateTimeMs() })
	return out
}

// ApplyTxnStatus 事务状态回调，按 label 或事务ID定位任务
func (s *TaskScheduler) ApplyTxnStatus(ctx context.Context, ev txn.StatusEvent) {
	s.metrics.TxnStatus.WithLabelValues(ev.Status.String()).Inc()

	t := s.lookup(ev)
	if t == nil {
		return
	}
	t.SetTxnStatus(ev.Status)

	switch ev.Status {
	case txn.StatusVisible:
		if !s.removeTask(t.ID()) {
			return
		}
		s.logger.Info("routine load task finished",
			zap.String("task_id", t.ID().String()),
			zap.Uint64("txn_id", ev.TxnID),
			zap.Uint64("job_id", t.JobID()))
		if _, err := s.spawn(ctx, t.JobID()); err != nil {
			s.logger.Warn("failed to create next routine load task",
				zap.Uint64("job_id", t.JobID()),
				zap.Error(err))
		}
	case txn.StatusAborted:
		if !s.removeTask(t.ID()) {
			return
		}
		s.logger.Info("routine load task aborted",
			zap.String("task_id", t.ID().String()),
			zap.Uint64("txn_id", ev.TxnID),
			zap.String("reason", ev.Reason))
		if _, err := s.spawn(ctx, t.JobID(), routineload.WithPreviousBeID(t.BeID())); err != nil {
			s.logger.Warn("failed to renew aborted routine load task",
				zap.Uint64("job_id", t.JobID()),
				zap.Error(err))
		}
	}
}

// CommitTxn 提交事务并推进作业进度，两者在同一个数据库事务内完成。
// 状态事件在数据库事务提交之后才发布。
func (s *TaskScheduler) CommitTxn(ctx context.Context, txnID uint64, progress map[string]string) (*txn.Transaction, error) {
	var (
		committed *txn.Transaction
		ev        txn.StatusEvent
	)
	err := s.execute(ctx, func(ctx context.Context) error {
		t, e, err := s.txns.CommitInTx(ctx, txnID)
		if err != nil {
			return err
		}
		committed, ev = t, e
		if len(progress) == 0 {
			return nil
		}
		if err := s.jobs.UpdateProgress(ctx, t.ListenerID, progress); err != nil {
			return fmt.Errorf("failed to update progress of job %d: %w", t.ListenerID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.txns.Notify(ctx, ev)
	return committed, nil
}

func (s *TaskScheduler) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.Execute(ctx, fn)
}

func (s *TaskScheduler) scheduleTick() {
	ctx := context.Background()
	for _, t := range s.drainQueue() {
		s.scheduleTask(ctx, t)
	}
}

// scheduleTask 开启事务并下发任务
func (s *TaskScheduler) scheduleTask(ctx context.Context, t *routineload.Task) {
	t.SetLastScheduledTime(s.clock.Now().UnixMilli())

	job, err := s.jobs.ResolveJob(ctx, t.JobID())
	if err != nil {
		s.logger.Warn("drop routine load task of missing job",
			zap.String("task_id", t.ID().String()),
			zap.Error(err))
		s.removeTask(t.ID())
		return
	}
	if !job.IsSchedulable() {
		s.removeTask(t.ID())
		return
	}

	ok, err := t.BeginTxn(ctx, s.jobs, s.txns)
	if err != nil {
		s.metrics.BeginTxnTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("failed to begin txn, drop routine load task",
			zap.String("task_id", t.ID().String()),
			zap.Uint64("job_id", t.JobID()),
			zap.Error(err))
		s.removeTask(t.ID())
		return
	}
	if !ok {
		s.metrics.BeginTxnTotal.WithLabelValues("retry").Inc()
		s.enqueue(t.ID())
		return
	}
	s.metrics.BeginTxnTotal.WithLabelValues("ok").Inc()

	be, err := s.dispatcher.Select(t.PreviousBeID())
	if err != nil {
		s.replace(ctx, t, fmt.Sprintf("no executor for task: %v", err))
		return
	}
	t.SetBeID(be.ID)

	req, err := t.BuildExecutorRequest(ctx, s.jobs)
	if err != nil {
		s.replace(ctx, t, fmt.Sprintf("failed to build task request: %v", err))
		return
	}
	if err := s.dispatcher.Dispatch(ctx, be, req); err != nil {
		s.replace(ctx, t, fmt.Sprintf("failed to dispatch task: %v", err))
		return
	}
	if err := t.MarkRunning(); err != nil {
		s.logger.Error("failed to mark routine load task running",
			zap.String("task_id", t.ID().String()),
			zap.Error(err))
		return
	}
	if err := s.jobs.Activate(ctx, t.JobID()); err != nil {
		s.logger.Warn("failed to activate routine load job",
			zap.Uint64("job_id", t.JobID()),
			zap.Error(err))
	}
}

func (s *TaskScheduler) checkTick() {
	ctx := context.Background()
	s.publishCommitted(ctx)
	s.checkTimeouts(ctx)
	s.syncJobs(ctx)
}

// publishCommitted 执行节点提交后未发布的事务由调度器发布，任务随之被后继任务接替
func (s *TaskScheduler) publishCommitted(ctx context.Context) {
	n, err := s.txns.PublishCommitted(ctx)
	if err != nil {
		s.logger.Error("failed to publish committed txns", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("published committed txns", zap.Int("count", n))
	}
}

// checkTimeouts 超时任务中止事务并由新任务替换
func (s *TaskScheduler) checkTimeouts(ctx context.Context) int {
	now := s.clock.Now()
	replaced := 0
	for _, t := range s.snapshot() {
		if !t.IsTimeout(now) {
			continue
		}
		s.metrics.TimeoutTotal.Inc()
		s.logger.Info("routine load task timeout",
			zap.String("task_id", t.ID().String()),
			zap.Int64("txn_id", t.TxnID()),
			zap.Int64("be_id", t.BeID()),
			zap.Int64("timeout_ms", t.TimeoutMs()))
		if s.replace(ctx, t, "timeout") {
			replaced++
		}
	}
	return replaced
}

func (s *TaskScheduler) sweepTxns() {
	n, err := s.txns.AbortTimedOut(context.Background())
	if err != nil {
		s.logger.Error("failed to abort timed out txns", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("aborted timed out txns", zap.Int("count", n))
	}
}

// syncJobs 为可调度且无任务的作业创建任务，放弃不可调度作业的任务
func (s *TaskScheduler) syncJobs(ctx context.Context) {
	schedulable := make(map[uint64]struct{})
	for _, state := range []routineload.JobState{routineload.JobStateNeedSchedule, routineload.JobStateRunning} {
		jobs, err := s.jobs.List(ctx, &routineload.JobFilter{State: mo.Some(state)})
		if err != nil {
			s.logger.Error("failed to list routine load jobs", zap.Error(err))
			return
		}
		for _, j := range jobs {
			schedulable[j.ID] = struct{}{}
		}
	}

	for _, t := range s.snapshot() {
		if _, ok := schedulable[t.JobID()]; !ok {
			s.discard(ctx, t, "job is not schedulable")
		}
	}
	for jobID := range schedulable {
		if s.hasJob(jobID) {
			continue
		}
		if _, err := s.spawn(ctx, jobID); err != nil {
			s.logger.Warn("failed to create routine load task",
				zap.Uint64("job_id", jobID),
				zap.Error(err))
		}
	}
}

// replace 中止旧任务的事务，用新任务替换，新任务记录旧任务的执行节点
func (s *TaskScheduler) replace(ctx context.Context, old *routineload.Task, reason string) bool {
	if !s.discard(ctx, old, reason) {
		return false
	}
	if _, err := s.spawn(ctx, old.JobID(), routineload.WithPreviousBeID(old.BeID())); err != nil {
		s.logger.Warn("failed to renew routine load task",
			zap.String("task_id", old.ID().String()),
			zap.Uint64("job_id", old.JobID()),
			zap.Error(err))
	}
	return true
}

// discard 从任务池移除并中止未提交的事务
func (s *TaskScheduler) discard(ctx context.Context, t *routineload.Task, reason string) bool {
	if !s.removeTask(t.ID()) {
		return false
	}
	if !t.HasTxn() || t.TxnStatus().IsDurable() {
		return true
	}
	if _, err := s.txns.Abort(ctx, uint64(t.TxnID()), reason); err != nil && !errors.Is(err, txn.ErrIllegalStatus) {
		s.logger.Warn("failed to abort txn of routine load task",
			zap.String("task_id", t.ID().String()),
			zap.Int64("txn_id", t.TxnID()),
			zap.Error(err))
	}
	return true
}

// spawn 按作业当前进度创建任务并放入待调度队列
func (s *TaskScheduler) spawn(ctx context.Context, jobID uint64, opts ...routineload.TaskOption) (*routineload.Task, error) {
	job, err := s.jobs.ResolveJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsSchedulable() {
		return nil, fmt.Errorf("%w: job %d is %s", routineload.ErrIllegalJobState, job.ID, job.State)
	}
	src, err := job.NewSource()
	if err != nil {
		return nil, err
	}

	clusterName := job.ClusterName
	if clusterName == "" {
		clusterName = s.config.ClusterName
	}
	opts = append([]routineload.TaskOption{
		routineload.WithClock(s.clock),
		routineload.WithLogger(s.logger),
		routineload.WithCoordinatorHost(s.coordinatorHost),
	}, opts...)
	t, err := routineload.NewTask(routineload.NewTaskID(), job.ID, clusterName, job.TaskTimeout(), src, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byJob[job.ID]; ok {
		return s.tasks[id], nil
	}
	s.tasks[t.ID()] = t
	s.byJob[job.ID] = t.ID()
	s.queue = append(s.queue, t.ID())
	s.metrics.TasksInPool.Set(float64(len(s.tasks)))

	s.logger.Debug("routine load task created",
		zap.String("task_id", t.ID().String()),
		zap.Uint64("job_id", job.ID),
		zap.Int64("previous_be_id", t.PreviousBeID()))
	return t, nil
}

func (s *TaskScheduler) lookup(ev txn.StatusEvent) *routineload.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, err := routineload.ParseTaskID(ev.Label); err == nil {
		if t, ok := s.tasks[id]; ok {
			if !t.HasTxn() || t.TxnID() == int64(ev.TxnID) {
				return t
			}
			return nil
		}
	}
	for _, t := range s.tasks {
		if t.HasTxn() && t.TxnID() == int64(ev.TxnID) {
			return t
		}
	}
	return nil
}

func (s *TaskScheduler) removeTask(id routineload.TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	delete(s.tasks, id)
	if s.byJob[t.JobID()] == id {
		delete(s.byJob, t.JobID())
	}
	s.metrics.TasksInPool.Set(float64(len(s.tasks)))
	return true
}

func (s *TaskScheduler) enqueue(id routineload.TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, id)
}

// drainQueue 取出待调度队列中仍在任务池的任务
func (s *TaskScheduler) drainQueue() []*routineload.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*routineload.Task, 0, len(s.queue))
	for _, id := range s.queue {
		if t, ok := s.tasks[id]; ok {
			out = append(out, t)
		}
	}
	s.queue = nil
	return out
}

func (s *TaskScheduler) snapshot() []*routineload.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*routineload.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

func (s *TaskScheduler) hasJob(jobID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byJob[jobID]
	return ok
}
