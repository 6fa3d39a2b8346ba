package routineload

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[uint64]*Job
	next uint64
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[uint64]*Job)}
}

func (r *memJobRepo) Create(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	job.ID = r.next
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id uint64) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) GetByName(_ context.Context, name string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.Name == name {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memJobRepo) List(_ context.Context, filter *JobFilter) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Job
	for _, j := range r.jobs {
		if filter.State.IsPresent() && j.State != filter.State.MustGet() {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memJobRepo) Update(_ context.Context, id uint64, patch *JobPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[id]
	if patch.State != nil {
		j.State = *patch.State
	}
	if patch.Reason != nil {
		j.Reason = *patch.Reason
	}
	if patch.Progress != nil {
		j.Progress = *patch.Progress
	}
	return nil
}

func newKafkaJob(name string) *Job {
	j := testJob()
	j.ID = 0
	j.Name = name
	j.Progress = map[string]string{"0": "0", "1": "0"}
	return j
}

func TestJobUsecaseCreate(t *testing.T) {
	ctx := context.Background()
	u := NewJobUsecase(newMemJobRepo(), nil)

	job := newKafkaJob("j1")
	require.NoError(t, u.Create(ctx, job))
	assert.NotZero(t, job.ID)
	assert.Equal(t, JobStateNeedSchedule, job.State)
	assert.Equal(t, DefaultTaskTimeoutSeconds, job.TaskTimeoutSeconds)

	err := u.Create(ctx, newKafkaJob("j1"))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestJobUsecaseCreateValidation(t *testing.T) {
	ctx := context.Background()
	u := NewJobUsecase(newMemJobRepo(), nil)

	noTopic := newKafkaJob("a")
	delete(noTopic.Properties, PropKafkaTopic)
	assert.ErrorIs(t, u.Create(ctx, noTopic), ErrInvalidJob)

	badKind := newKafkaJob("b")
	badKind.SourceKind = "RABBIT"
	assert.ErrorIs(t, u.Create(ctx, badKind), ErrUnknownSourceKind)

	badProgress := newKafkaJob("c")
	badProgress.Progress = map[string]string{"x": "1"}
	assert.ErrorIs(t, u.Create(ctx, badProgress), ErrInvalidJob)

	noTable := newKafkaJob("d")
	noTable.TableName = ""
	assert.ErrorIs(t, u.Create(ctx, noTable), ErrInvalidJob)
}

func TestJobUsecaseResolveJob(t *testing.T) {
	ctx := context.Background()
	u := NewJobUsecase(newMemJobRepo(), nil)

	_, err := u.ResolveJob(ctx, 99)
	assert.ErrorIs(t, err, ErrJobNotFound)

	job := newKafkaJob("j")
	require.NoError(t, u.Create(ctx, job))
	got, err := u.ResolveJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "j", got.Name)
}

func TestJobUsecaseStateTransitions(t *testing.T) {
	ctx := context.Background()
	u := NewJobUsecase(newMemJobRepo(), nil)
	job := newKafkaJob("j")
	require.NoError(t, u.Create(ctx, job))

	_, err := u.Resume(ctx, job.ID)
	assert.ErrorIs(t, err, ErrIllegalJobState)

	require.NoError(t, u.Activate(ctx, job.ID))
	got, err := u.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateRunning, got.State)

	got, err = u.Pause(ctx, job.ID, "manual")
	require.NoError(t, err)
	assert.Equal(t, JobStatePaused, got.State)
	assert.False(t, got.IsSchedulable())

	_, err = u.Pause(ctx, job.ID, "again")
	assert.ErrorIs(t, err, ErrIllegalJobState)

	got, err = u.Resume(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateNeedSchedule, got.State)

	got, err = u.Stop(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateStopped, got.State)

	_, err = u.Stop(ctx, job.ID)
	assert.ErrorIs(t, err, ErrIllegalJobState)
}

func TestJobUsecaseUpdateProgress(t *testing.T) {
	ctx := context.Background()
	u := NewJobUsecase(newMemJobRepo(), nil)
	job := newKafkaJob("j")
	require.NoError(t, u.Create(ctx, job))

	require.NoError(t, u.UpdateProgress(ctx, job.ID, map[string]string{"1": "250"}))
	got, err := u.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0": "0", "1": "250"}, got.Progress)

	src, err := got.NewSource()
	require.NoError(t, err)
	assert.Equal(t, `{"0":0,"1":250}`, src.Properties())

	assert.ErrorIs(t, u.UpdateProgress(ctx, job.ID, map[string]string{"1": "oops"}), ErrInvalidJob)
}
