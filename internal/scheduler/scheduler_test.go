package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeJobs struct {
	mu          sync.Mutex
	jobs        map[uint64]*routineload.Job
	progressErr error
}

func newFakeJobs(jobs ...*routineload.Job) *fakeJobs {
	f := &fakeJobs{jobs: make(map[uint64]*routineload.Job)}
	for _, j := range jobs {
		f.jobs[j.ID] = j
	}
	return f
}

func (f *fakeJobs) ResolveJob(_ context.Context, id uint64) (*routineload.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, routineload.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) List(_ context.Context, filter *routineload.JobFilter) ([]*routineload.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*routineload.Job
	for _, j := range f.jobs {
		if filter.State.IsPresent() && j.State != filter.State.MustGet() {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeJobs) Activate(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j := f.jobs[id]; j.State == routineload.JobStateNeedSchedule {
		j.State = routineload.JobStateRunning
	}
	return nil
}

func (f *fakeJobs) UpdateProgress(_ context.Context, id uint64, progress map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return f.progressErr
	}
	j := f.jobs[id]
	for k, v := range progress {
		j.Progress[k] = v
	}
	return nil
}

func (f *fakeJobs) setState(id uint64, state routineload.JobState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].State = state
}

func (f *fakeJobs) get(id uint64) routineload.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[id]
}

type fakeTxns struct {
	mu       sync.Mutex
	next     uint64
	txns     map[uint64]*txn.Transaction
	beginErr error
	aborted  map[uint64]string
	notified []txn.StatusEvent
	sink     StatusSink
}

func newFakeTxns() *fakeTxns {
	return &fakeTxns{next: 1000, txns: make(map[uint64]*txn.Transaction), aborted: make(map[uint64]string)}
}

func (f *fakeTxns) BeginTransaction(_ context.Context, req txn.BeginRequest) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return 0, f.beginErr
	}
	f.next++
	f.txns[f.next] = &txn.Transaction{
		ID:         f.next,
		DBID:       req.DBID,
		Label:      req.Label,
		ListenerID: req.ListenerID,
		Status:     txn.StatusPrepare,
	}
	return f.next, nil
}

func (f *fakeTxns) CommitInTx(_ context.Context, id uint64) (*txn.Transaction, txn.StatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txns[id]
	if !ok {
		return nil, txn.StatusEvent{}, txn.ErrTxnNotFound
	}
	if t.Status != txn.StatusPrepare {
		return nil, txn.StatusEvent{}, txn.ErrIllegalStatus
	}
	t.Status = txn.StatusCommitted
	cp := *t
	return &cp, eventOf(&cp), nil
}

func (f *fakeTxns) Notify(ctx context.Context, ev txn.StatusEvent) {
	f.mu.Lock()
	f.notified = append(f.notified, ev)
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.ApplyTxnStatus(ctx, ev)
	}
}

// PublishCommitted 发布全部已提交事务
func (f *fakeTxns) PublishCommitted(ctx context.Context) (int, error) {
	f.mu.Lock()
	var events []txn.StatusEvent
	for _, t := range f.txns {
		if t.Status == txn.StatusCommitted {
			t.Status = txn.StatusVisible
			events = append(events, eventOf(t))
		}
	}
	f.mu.Unlock()
	for _, ev := range events {
		f.Notify(ctx, ev)
	}
	return len(events), nil
}

func (f *fakeTxns) notifiedStatuses() []txn.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]txn.Status, 0, len(f.notified))
	for _, ev := range f.notified {
		out = append(out, ev.Status)
	}
	return out
}

func eventOf(t *txn.Transaction) txn.StatusEvent {
	return txn.StatusEvent{TxnID: t.ID, DBID: t.DBID, Label: t.Label, ListenerID: t.ListenerID, Status: t.Status}
}

func (f *fakeTxns) Abort(_ context.Context, id uint64, reason string) (*txn.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txns[id]
	if !ok {
		return nil, txn.ErrTxnNotFound
	}
	if t.Status != txn.StatusPrepare {
		return nil, txn.ErrIllegalStatus
	}
	t.Status = txn.StatusAborted
	f.aborted[id] = reason
	cp := *t
	return &cp, nil
}

func (f *fakeTxns) AbortTimedOut(context.Context) (int, error) {
	return 0, nil
}

func (f *fakeTxns) abortReason(id int64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.aborted[uint64(id)]
	return r, ok
}

type fakeDispatcher struct {
	mu       sync.Mutex
	backends []Backend
	next     int
	fail     error
	requests []*routineload.ExecutorRequest
	prevSeen []int64
}

func (d *fakeDispatcher) Select(previousBeID int64) (Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prevSeen = append(d.prevSeen, previousBeID)
	if len(d.backends) == 0 {
		return Backend{}, ErrNoExecutor
	}
	for i := 0; i < len(d.backends); i++ {
		be := d.backends[(d.next+i)%len(d.backends)]
		if be.ID != previousBeID || len(d.backends) == 1 {
			d.next = (d.next + i + 1) % len(d.backends)
			return be, nil
		}
	}
	return d.backends[0], nil
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ Backend, req *routineload.ExecutorRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.requests = append(d.requests, req)
	return nil
}

func (d *fakeDispatcher) dispatched() []*routineload.ExecutorRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*routineload.ExecutorRequest(nil), d.requests...)
}

func testJob(id uint64) *routineload.Job {
	return &routineload.Job{
		ID:          id,
		Name:        fmt.Sprintf("job_%d", id),
		ClusterName: "",
		DBID:        11,
		DBName:      "sales",
		TableName:   "orders",
		SourceKind:  routineload.SourceKafka,
		Properties: map[string]any{
			routineload.PropKafkaBrokerList: "127.0.0.1:9092",
			routineload.PropKafkaTopic:      "orders",
		},
		Progress:           map[string]string{"0": "100", "1": "200"},
		TaskTimeoutSeconds: 10,
		State:              routineload.JobStateNeedSchedule,
	}
}

type harness struct {
	sched      *TaskScheduler
	clock      *fakeClock
	jobs       *fakeJobs
	txns       *fakeTxns
	dispatcher *fakeDispatcher
}

func newHarness(t *testing.T, jobs ...*routineload.Job) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Server.IP = "10.0.0.1"
	h := &harness{
		clock:      &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		jobs:       newFakeJobs(jobs...),
		txns:       newFakeTxns(),
		dispatcher: &fakeDispatcher{backends: []Backend{{ID: 1, URL: "http://be1"}, {ID: 2, URL: "http://be2"}}},
	}
	s, err := New(*cfg, h.jobs, h.txns, nil, h.dispatcher, &localLock{}, nil, nil)
	require.NoError(t, err)
	s.clock = h.clock
	s.isLeader.Store(true)
	h.txns.sink = s
	h.sched = s
	return h
}

func (h *harness) onlyTask(t *testing.T, jobID uint64) *routineload.Task {
	t.Helper()
	tasks := h.sched.TasksOfJob(jobID)
	require.Len(t, tasks, 1)
	return tasks[0]
}

func TestSubmitJobRequiresLeader(t *testing.T) {
	h := newHarness(t, testJob(7))
	h.sched.isLeader.Store(false)

	_, err := h.sched.SubmitJob(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotLeader)
}

func TestSubmitJobIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	first, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	second, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	_, err = h.sched.SubmitJob(ctx, 99)
	assert.ErrorIs(t, err, routineload.ErrJobNotFound)
}

func TestScheduleTickDispatchesTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	assert.False(t, task.IsRunning())

	h.sched.scheduleTick()

	assert.True(t, task.HasTxn())
	assert.True(t, task.IsRunning())
	assert.Equal(t, h.clock.Now().UnixMilli(), task.ExecuteStartTimeMs())
	assert.Equal(t, h.clock.Now().UnixMilli(), task.LastScheduledTime())
	assert.Equal(t, int64(1), task.BeID())
	assert.Equal(t, 10*time.Second, task.Timeout())

	reqs := h.dispatcher.dispatched()
	require.Len(t, reqs, 1)
	assert.Equal(t, task.Label(), reqs[0].Label)
	assert.Equal(t, task.TxnID(), reqs[0].TxnID)
	assert.Equal(t, int64(1), reqs[0].BeID)
	assert.Equal(t, "default_cluster", reqs[0].ClusterName)
	require.NotNil(t, reqs[0].Kafka)
	assert.Equal(t, map[int32]int64{0: 100, 1: 200}, reqs[0].Kafka.PartitionBeginOffset)

	assert.Equal(t, routineload.JobStateRunning, h.jobs.get(7).State)
}

func TestScheduleTickRequeuesRetryableBeginFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))
	h.txns.beginErr = fmt.Errorf("%w: too many running txns", txn.ErrBeginTxn)

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)

	h.sched.scheduleTick()
	assert.False(t, task.HasTxn())
	assert.Len(t, h.sched.TasksOfJob(7), 1)

	h.txns.beginErr = nil
	h.sched.scheduleTick()
	assert.True(t, task.IsRunning())
}

func TestScheduleTickDropsTaskOnLabelConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))
	h.txns.beginErr = fmt.Errorf("%w: label used", txn.ErrLabelAlreadyUsed)

	_, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)

	h.sched.scheduleTick()
	assert.Empty(t, h.sched.TasksOfJob(7))
}

func TestCheckTimeoutsReplacesTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	old, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	h.sched.scheduleTick()
	require.True(t, old.IsRunning())

	h.clock.Advance(9 * time.Second)
	assert.Zero(t, h.sched.checkTimeouts(ctx))

	h.clock.Advance(time.Second)
	assert.Equal(t, 1, h.sched.checkTimeouts(ctx))

	reason, aborted := h.txns.abortReason(old.TxnID())
	assert.True(t, aborted)
	assert.Equal(t, "timeout", reason)

	renewed := h.onlyTask(t, 7)
	assert.False(t, renewed.Equal(old))
	assert.Equal(t, old.BeID(), renewed.PreviousBeID())
	assert.False(t, renewed.HasTxn())

	_, err = h.sched.Task(old.ID())
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// 新任务避开上一次的执行节点
	h.sched.scheduleTick()
	assert.True(t, renewed.IsRunning())
	assert.Equal(t, int64(2), renewed.BeID())
}

func TestCommittedTaskDoesNotTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	h.sched.scheduleTick()

	h.sched.ApplyTxnStatus(ctx, txn.StatusEvent{TxnID: uint64(task.TxnID()), Label: task.Label(), Status: txn.StatusCommitted})
	assert.Equal(t, txn.StatusCommitted, task.TxnStatus())

	h.clock.Advance(time.Minute)
	assert.Zero(t, h.sched.checkTimeouts(ctx))
	assert.True(t, h.onlyTask(t, 7).Equal(task))
}

func TestVisibleTaskSpawnsSuccessor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	h.sched.scheduleTick()

	_, err = h.sched.CommitTxn(ctx, uint64(task.TxnID()), map[string]string{"0": "150"})
	require.NoError(t, err)
	h.sched.ApplyTxnStatus(ctx, txn.StatusEvent{TxnID: uint64(task.TxnID()), Label: task.Label(), Status: txn.StatusVisible})

	next := h.onlyTask(t, 7)
	assert.False(t, next.Equal(task))
	assert.Equal(t, int64(-1), next.PreviousBeID())

	kafka, ok := next.Source().(*routineload.KafkaSource)
	require.True(t, ok)
	assert.Equal(t, map[int32]int64{0: 150, 1: 200}, kafka.Offsets())
}

func TestFailedCommitKeepsTaskUncommitted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	h.sched.scheduleTick()
	require.True(t, task.IsRunning())

	h.jobs.progressErr = routineload.ErrInvalidJob
	_, err = h.sched.CommitTxn(ctx, uint64(task.TxnID()), map[string]string{"abc": "1"})
	assert.ErrorIs(t, err, routineload.ErrInvalidJob)

	// 回滚的提交不发布状态，任务仍会超时
	assert.NotContains(t, h.txns.notifiedStatuses(), txn.StatusCommitted)
	assert.NotEqual(t, txn.StatusCommitted, task.TxnStatus())
	h.clock.Advance(10 * time.Second)
	assert.True(t, task.IsTimeout(h.clock.Now()))
}

func TestCommittedTxnPublishedByScheduler(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	h.sched.scheduleTick()

	_, err = h.sched.CommitTxn(ctx, uint64(task.TxnID()), map[string]string{"0": "150"})
	require.NoError(t, err)
	assert.Equal(t, txn.StatusCommitted, task.TxnStatus())
	assert.True(t, h.onlyTask(t, 7).Equal(task))

	// 执行节点未调用 publish
	h.sched.checkTick()

	assert.Equal(t, txn.StatusVisible, task.TxnStatus())
	next := h.onlyTask(t, 7)
	assert.False(t, next.Equal(task))
	kafka, ok := next.Source().(*routineload.KafkaSource)
	require.True(t, ok)
	assert.Equal(t, map[int32]int64{0: 150, 1: 200}, kafka.Offsets())
}

func TestAbortedTaskIsRenewed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	h.sched.scheduleTick()

	// 旧事务的事件不影响当前任务
	h.sched.ApplyTxnStatus(ctx, txn.StatusEvent{TxnID: 1, Label: task.Label(), Status: txn.StatusAborted})
	assert.True(t, h.onlyTask(t, 7).Equal(task))

	h.sched.ApplyTxnStatus(ctx, txn.StatusEvent{TxnID: uint64(task.TxnID()), Label: task.Label(), Status: txn.StatusAborted, Reason: "executor failure"})
	renewed := h.onlyTask(t, 7)
	assert.False(t, renewed.Equal(task))
	assert.Equal(t, task.BeID(), renewed.PreviousBeID())
}

func TestDispatchFailureReplacesTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))
	h.dispatcher.fail = errors.New("connection refused")

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	h.sched.scheduleTick()

	_, aborted := h.txns.abortReason(task.TxnID())
	assert.True(t, aborted)
	renewed := h.onlyTask(t, 7)
	assert.False(t, renewed.Equal(task))
	assert.Equal(t, int64(1), renewed.PreviousBeID())
	assert.False(t, task.IsRunning())
}

func TestSyncJobsFollowsJobState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7), testJob(8))

	h.sched.syncJobs(ctx)
	assert.Len(t, h.sched.TasksOfJob(7), 1)
	assert.Len(t, h.sched.TasksOfJob(8), 1)

	h.sched.scheduleTick()
	paused := h.onlyTask(t, 8)
	require.True(t, paused.HasTxn())

	h.jobs.setState(8, routineload.JobStatePaused)
	h.sched.syncJobs(ctx)

	assert.Empty(t, h.sched.TasksOfJob(8))
	reason, aborted := h.txns.abortReason(paused.TxnID())
	assert.True(t, aborted)
	assert.Equal(t, "job is not schedulable", reason)
	assert.Len(t, h.sched.TasksOfJob(7), 1)
}

func TestRemoveJobTasks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))

	task, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)
	h.sched.scheduleTick()

	assert.Equal(t, 1, h.sched.RemoveJobTasks(ctx, 7, "job paused"))
	assert.Zero(t, h.sched.RemoveJobTasks(ctx, 7, "job paused"))
	reason, _ := h.txns.abortReason(task.TxnID())
	assert.Equal(t, "job paused", reason)
}

func TestStepDownClearsPool(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testJob(7))
	_, err := h.sched.SubmitJob(ctx, 7)
	require.NoError(t, err)

	h.sched.stepDown()
	assert.False(t, h.sched.IsLeader())
	assert.Empty(t, h.sched.TasksOfJob(7))
}
