package routineload

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var _ JobRegistry = (*JobUsecase)(nil)

type JobUsecase struct {
	repo   JobRepo
	logger *zap.Logger
}

func NewJobUsecase(repo JobRepo, logger *zap.Logger) *JobUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobUsecase{repo: repo, logger: logger}
}

func (u *JobUsecase) Create(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	existing, err := u.repo.GetByName(ctx, job.Name)
	if err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, job.Name)
	}
	job.State = JobStateNeedSchedule
	if job.TaskTimeoutSeconds == 0 {
		job.TaskTimeoutSeconds = DefaultTaskTimeoutSeconds
	}
	if err := u.repo.Create(ctx, job); err != nil {
		return err
	}
	u.logger.Info("routine load job created",
		zap.Uint64("job_id", job.ID),
		zap.String("name", job.Name),
		zap.String("source", string(job.SourceKind)))
	return nil
}

func (u *JobUsecase) Get(ctx context.Context, id uint64) (*Job, error) {
	job, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	} else if job == nil {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return job, nil
}

// ResolveJob implements JobRegistry.
func (u *JobUsecase) ResolveJob(ctx context.Context, jobID uint64) (*Job, error) {
	return u.Get(ctx, jobID)
}

func (u *JobUsecase) List(ctx context.Context, filter *JobFilter) ([]*Job, error) {
	if filter == nil {
		filter = &JobFilter{}
	}
	return u.repo.List(ctx, filter)
}

func (u *JobUsecase) Pause(ctx context.Context, id uint64, reason string) (*Job, error) {
	return u.transit(ctx, id, func(j *Job) (*JobPatch, error) { return j.Pause(reason) })
}

func (u *JobUsecase) Resume(ctx context.Context, id uint64) (*Job, error) {
	return u.transit(ctx, id, func(j *Job) (*JobPatch, error) { return j.Resume() })
}

func (u *JobUsecase) Stop(ctx context.Context, id uint64) (*Job, error) {
	return u.transit(ctx, id, func(j *Job) (*JobPatch, error) { return j.Stop() })
}

// Activate 首个任务下发后作业进入 RUNNING
func (u *JobUsecase) Activate(ctx context.Context, id uint64) error {
	job, err := u.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.State != JobStateNeedSchedule {
		return nil
	}
	return u.repo.Update(ctx, id, NewJobPatch().WithState(JobStateRunning))
}

// UpdateProgress 事务提交后推进作业的消费进度
func (u *JobUsecase) UpdateProgress(ctx context.Context, id uint64, progress map[string]string) error {
	if len(progress) == 0 {
		return nil
	}
	job, err := u.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := NewSource(job.SourceKind, progress); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return u.repo.Update(ctx, id, job.MergeProgress(progress))
}

func (u *JobUsecase) transit(ctx context.Context, id uint64, fn func(*Job) (*JobPatch, error)) (*Job, error) {
	job, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, err := fn(job)
	if err != nil {
		return nil, err
	}
	if err := u.repo.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	u.logger.Info("routine load job state changed",
		zap.Uint64("job_id", id),
		zap.String("state", string(job.State)))
	return job, nil
}
